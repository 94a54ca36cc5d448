package transnet

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probs turns binary flags into probabilities on either side of the default
// threshold.
func probs(flags ...int) []float64 {
	out := make([]float64, len(flags))
	for i, f := range flags {
		if f == 1 {
			out[i] = 0.9
		} else {
			out[i] = 0.1
		}
	}
	return out
}

func TestScenesMultiTransition(t *testing.T) {
	scenes, err := Scenes(probs(0, 0, 1, 1, 0, 0, 1, 0, 0), DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, []Scene{{Start: 0, End: 2}, {Start: 4, End: 6}, {Start: 7, End: 8}}, scenes)
}

func TestScenesAllStable(t *testing.T) {
	scenes, err := Scenes(probs(0, 0, 0, 0, 0, 0), DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, []Scene{{Start: 0, End: 5}}, scenes)
}

func TestScenesSingleFrame(t *testing.T) {
	scenes, err := Scenes(probs(0), DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, []Scene{{Start: 0, End: 0}}, scenes)

	// a lone transition frame still yields the fallback whole-video scene
	scenes, err = Scenes(probs(1), DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, []Scene{{Start: 0, End: 0}}, scenes)
}

// TestScenesTrailingIndex pins the trailing scene's closing index: it is the
// last frame index, one less than the exclusive bound an in-loop emission
// would have used. Changing this silently moves every final scene boundary.
func TestScenesTrailingIndex(t *testing.T) {
	scenes, err := Scenes(probs(1, 1, 0, 0), DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, []Scene{{Start: 2, End: 3}}, scenes)
}

func TestScenesEndsInTransition(t *testing.T) {
	scenes, err := Scenes(probs(0, 0, 1), DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, []Scene{{Start: 0, End: 2}}, scenes)
}

func TestScenesOrderedNonOverlapping(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	preds := make([]float64, 500)
	for i := range preds {
		preds[i] = rng.Float64()
	}

	scenes, err := Scenes(preds, DefaultThreshold)
	require.NoError(t, err)
	require.NotEmpty(t, scenes)
	for i, sc := range scenes {
		assert.GreaterOrEqual(t, sc.End, sc.Start)
		if i > 0 {
			assert.Greater(t, sc.Start, scenes[i-1].Start)
			assert.GreaterOrEqual(t, sc.Start, scenes[i-1].End)
		}
	}
}

func TestScenesBadInput(t *testing.T) {
	_, err := Scenes(nil, DefaultThreshold)
	assert.ErrorIs(t, err, ErrEmptySequence)

	for _, th := range []float64{0, 1, -0.2, 1.5} {
		_, err := Scenes(probs(0, 1, 0), th)
		assert.ErrorIs(t, err, ErrBadThreshold, "threshold=%v", th)
	}
}
