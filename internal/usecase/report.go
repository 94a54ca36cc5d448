package usecase

import (
	"bufio"
	"fmt"
	"os"

	"github.com/shotmark/shotmark-detection-service/internal/transnet"
)

// writePredictions writes one line per frame with both transition
// probabilities, in frame order.
func writePredictions(path string, preds *transnet.Predictions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create predictions file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i := range preds.Single {
		if _, err := fmt.Fprintf(w, "%.6f %.6f\n", preds.Single[i], preds.Many[i]); err != nil {
			return fmt.Errorf("write predictions: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush predictions: %w", err)
	}
	return nil
}

// writeScenes writes one "start end" line per scene.
func writeScenes(path string, scenes []transnet.Scene) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create scenes file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, sc := range scenes {
		if _, err := fmt.Fprintf(w, "%d %d\n", sc.Start, sc.End); err != nil {
			return fmt.Errorf("write scenes: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush scenes: %w", err)
	}
	return nil
}
