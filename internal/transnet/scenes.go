package transnet

import (
	"errors"
	"fmt"
)

// DefaultThreshold is the probability above which a frame counts as part of
// a shot transition.
const DefaultThreshold = 0.5

var ErrBadThreshold = errors.New("transnet: threshold must be in (0, 1)")

// Scene is a maximal run of frames with no detected shot transition. Start
// is inclusive. End is the index of the first transition frame after the
// run, except for the trailing scene, which ends at the last frame index.
type Scene struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Scenes collapses a probability sequence into an ordered, non-overlapping
// scene list using a two-state scan over the thresholded flags. If the
// sequence never transitions, the whole video becomes a single scene.
func Scenes(preds []float64, threshold float64) ([]Scene, error) {
	if len(preds) == 0 {
		return nil, ErrEmptySequence
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("%w: %v", ErrBadThreshold, threshold)
	}

	var scenes []Scene
	prev, start, t := 0, 0, 0
	for i, p := range preds {
		t = 0
		if p > threshold {
			t = 1
		}
		if prev == 1 && t == 0 {
			start = i
		}
		if prev == 0 && t == 1 && i != 0 {
			scenes = append(scenes, Scene{Start: start, End: i})
		}
		prev = t
	}
	// The trailing scene keeps the original detector's closing convention
	// and ends at the last frame index, not one past it.
	if t == 0 {
		scenes = append(scenes, Scene{Start: start, End: len(preds) - 1})
	}
	if len(scenes) == 0 {
		scenes = append(scenes, Scene{Start: 0, End: len(preds) - 1})
	}
	return scenes, nil
}
