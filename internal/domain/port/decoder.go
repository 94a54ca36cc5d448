package port

import (
	"context"

	"github.com/shotmark/shotmark-detection-service/internal/transnet"
)

type DecodeResult struct {
	Frames        *transnet.FrameSequence
	VideoDuration float64
}

// FrameDecoder turns a video file into the raw frame sequence the model
// consumes, in presentation order at the model's fixed resolution.
type FrameDecoder interface {
	DecodeFrames(ctx context.Context, videoPath string) (*DecodeResult, error)
}
