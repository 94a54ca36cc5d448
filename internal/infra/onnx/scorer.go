package onnx

import (
	"context"
	"fmt"

	"github.com/shotmark/shotmark-detection-service/internal/transnet"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Scorer runs the exported TransNetV2 ONNX model over one window at a time.
// Input is a uint8 tensor [1, 100, 27, 48, 3]; the model emits two logit
// heads, one value per frame.
type Scorer struct {
	session *ort.DynamicAdvancedSession
	logger  *zap.Logger
}

type ScorerConfig struct {
	ModelPath   string
	LibraryPath string
}

func NewScorer(cfg ScorerConfig, logger *zap.Logger) (*Scorer, error) {
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnx environment: %w", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}

	// Try CUDA first, fall back to CPU.
	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err == nil {
		if err := cudaOpts.Update(map[string]string{"device_id": "0"}); err == nil {
			if err := opts.AppendExecutionProviderCUDA(cudaOpts); err == nil {
				logger.Info("onnxruntime using CUDA execution provider")
			} else {
				logger.Warn("could not enable CUDA provider, using CPU", zap.Error(err))
			}
		}
		cudaOpts.Destroy()
	} else {
		logger.Info("CUDA not available, using CPU", zap.Error(err))
	}

	if err := opts.SetIntraOpNumThreads(0); err != nil {
		logger.Warn("could not set onnxruntime thread count", zap.Error(err))
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{"frames"},
		[]string{"single_frame_pred", "all_frames_pred"},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &Scorer{session: session, logger: logger}, nil
}

func (s *Scorer) ScoreWindow(_ context.Context, window []byte) ([]float64, []float64, error) {
	shape := ort.NewShape(1, transnet.WindowSize,
		transnet.InputHeight, transnet.InputWidth, transnet.InputChannels)
	input, err := ort.NewTensor(shape, window)
	if err != nil {
		return nil, nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := make([]ort.Value, 2)
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()
	defer outputs[1].Destroy()

	single, err := copyLogits(outputs[0])
	if err != nil {
		return nil, nil, fmt.Errorf("single_frame_pred: %w", err)
	}
	many, err := copyLogits(outputs[1])
	if err != nil {
		return nil, nil, fmt.Errorf("all_frames_pred: %w", err)
	}
	return single, many, nil
}

// copyLogits widens a [1, 100, 1] float32 output into float64, copying it
// out before the tensor is destroyed.
func copyLogits(v ort.Value) ([]float64, error) {
	tensor, ok := v.(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("output tensor is not float32")
	}
	data := tensor.GetData()
	if len(data) != transnet.WindowSize {
		return nil, fmt.Errorf("got %d logits, want %d", len(data), transnet.WindowSize)
	}
	out := make([]float64, len(data))
	for i, f := range data {
		out[i] = float64(f)
	}
	return out, nil
}

func (s *Scorer) Close() error {
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
	return nil
}
