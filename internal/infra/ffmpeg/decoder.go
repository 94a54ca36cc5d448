package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shotmark/shotmark-detection-service/internal/domain/port"
	"github.com/shotmark/shotmark-detection-service/internal/transnet"
	"go.uber.org/zap"
)

// Decoder extracts raw rgb24 frames at the model's input resolution by
// piping ffmpeg's rawvideo output straight into memory.
type Decoder struct {
	logger *zap.Logger
}

func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{logger: logger}
}

func (d *Decoder) DecodeFrames(ctx context.Context, videoPath string) (*port.DecodeResult, error) {
	duration, err := d.probeDuration(ctx, videoPath)
	if err != nil {
		d.logger.Warn("could not get video duration", zap.Error(err))
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", transnet.InputWidth, transnet.InputHeight),
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w, output: %s", err, stderr.String())
	}

	frames, err := transnet.NewFrameSequence(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("assemble frame sequence: %w", err)
	}

	d.logger.Info("video decoded",
		zap.Int("frame_count", frames.Len()),
		zap.Float64("video_duration", duration),
	)

	return &port.DecodeResult{
		Frames:        frames,
		VideoDuration: duration,
	}, nil
}

func (d *Decoder) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}
