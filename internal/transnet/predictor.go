package transnet

import (
	"context"
	"fmt"
	"math"
)

// Scorer window contract, fixed by the model: every call takes exactly
// WindowSize frames, and only the center stride frames of its output are
// trusted. The trim margins carry too little one-sided context.
const (
	WindowSize = 100
	trimMargin = 25
	stride     = WindowSize - 2*trimMargin
)

// WindowScorer scores one WindowSize-frame window of packed rgb24 pixels
// and returns two raw logit slices, one entry per frame in the window.
// Implementations must be stateless across calls.
type WindowScorer interface {
	ScoreWindow(ctx context.Context, window []byte) (single, many []float64, err error)
}

// WindowError reports a scorer failure at a specific window. Offset is the
// index of the window's first frame within the padded sequence.
type WindowError struct {
	Offset int
	Err    error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("transnet: score window at padded offset %d: %v", e.Offset, e.Err)
}

func (e *WindowError) Unwrap() error { return e.Err }

// Predictions holds the per-frame shot transition probabilities for one
// video. Both slices have exactly one entry per decoded frame, in order.
type Predictions struct {
	Single []float64 // single-frame transition head
	Many   []float64 // many-hot (all-frames) transition head
}

// Predict runs the scorer over the whole sequence in overlapping windows and
// reassembles frame-aligned probability sequences.
//
// The sequence is padded with trimMargin copies of the first frame and with
// enough copies of the last frame that the slide ends exactly on a window
// boundary: tail = trimMargin + (stride - total%stride), or a full extra
// stride when total is already a multiple. Each window contributes its
// center stride outputs; the concatenation is truncated to total and pushed
// through a sigmoid.
//
// A single scorer failure aborts the run; nothing partial is returned.
func Predict(ctx context.Context, scorer WindowScorer, frames *FrameSequence) (*Predictions, error) {
	if frames == nil || frames.Len() == 0 {
		return nil, ErrEmptySequence
	}
	total := frames.Len()

	tail := trimMargin + stride
	if total%stride != 0 {
		tail = trimMargin + stride - total%stride
	}
	padded := frames.padded(trimMargin, tail)
	paddedLen := len(padded) / FrameBytes

	single := make([]float64, 0, total+stride)
	many := make([]float64, 0, total+stride)

	for ptr := 0; ptr+WindowSize <= paddedLen; ptr += stride {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		window := padded[ptr*FrameBytes : (ptr+WindowSize)*FrameBytes]
		s, m, err := scorer.ScoreWindow(ctx, window)
		if err != nil {
			return nil, &WindowError{Offset: ptr, Err: err}
		}
		if len(s) != WindowSize || len(m) != WindowSize {
			return nil, &WindowError{
				Offset: ptr,
				Err:    fmt.Errorf("scorer returned %d/%d scores, want %d", len(s), len(m), WindowSize),
			}
		}
		single = append(single, s[trimMargin:WindowSize-trimMargin]...)
		many = append(many, m[trimMargin:WindowSize-trimMargin]...)
	}

	single = single[:total]
	many = many[:total]
	for i := range single {
		single[i] = sigmoid(single[i])
		many[i] = sigmoid(many[i])
	}
	return &Predictions{Single: single, Many: many}, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
