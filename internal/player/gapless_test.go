package player

import (
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// markStreamer emits `remaining` samples of a constant marker value.
type markStreamer struct {
	value     float64
	remaining int
}

func (m *markStreamer) Stream(samples [][2]float64) (int, bool) {
	if m.remaining == 0 {
		return 0, false
	}
	n := min(len(samples), m.remaining)
	for i := 0; i < n; i++ {
		samples[i][0] = m.value
		samples[i][1] = m.value
	}
	m.remaining -= n
	return n, true
}

func (m *markStreamer) Err() error { return nil }

var _ beep.Streamer = (*markStreamer)(nil)

func TestGaplessTransitionFillsSameBuffer(t *testing.T) {
	switched := 0
	g := &gaplessStreamer{
		current:  &markStreamer{value: 1, remaining: 10},
		onSwitch: func() { switched++ },
	}
	g.SetNext(&markStreamer{value: 2, remaining: 10})

	// One pull crossing the boundary: first 10 samples from the old
	// source, the rest from the preload, no silence in between.
	buf := make([][2]float64, 16)
	n, ok := g.Stream(buf)
	require.True(t, ok)
	require.Equal(t, 16, n)

	for i := 0; i < 10; i++ {
		assert.Equal(t, 1.0, buf[i][0], "sample %d", i)
	}
	for i := 10; i < 16; i++ {
		assert.Equal(t, 2.0, buf[i][0], "sample %d", i)
	}
	assert.Equal(t, 1, switched)
	assert.False(t, g.HasNext())
}

func TestGaplessExactBoundary(t *testing.T) {
	switched := 0
	g := &gaplessStreamer{
		current:  &markStreamer{value: 1, remaining: 8},
		onSwitch: func() { switched++ },
	}
	g.SetNext(&markStreamer{value: 2, remaining: 8})

	buf := make([][2]float64, 8)
	n, ok := g.Stream(buf)
	require.True(t, ok)
	assert.Equal(t, 8, n)
	assert.Equal(t, 1.0, buf[7][0])
	assert.Equal(t, 1, switched)

	n, ok = g.Stream(buf)
	require.True(t, ok)
	assert.Equal(t, 8, n)
	assert.Equal(t, 2.0, buf[0][0])
	assert.Equal(t, 1, switched)
}

func TestGaplessWithoutNextEnds(t *testing.T) {
	g := &gaplessStreamer{current: &markStreamer{value: 1, remaining: 4}}

	buf := make([][2]float64, 8)
	n, ok := g.Stream(buf)
	assert.Equal(t, 4, n)
	assert.False(t, ok)
}

func TestGaplessClearNext(t *testing.T) {
	g := &gaplessStreamer{current: &markStreamer{value: 1, remaining: 4}}
	g.SetNext(&markStreamer{value: 2, remaining: 4})
	require.True(t, g.HasNext())
	g.ClearNext()
	assert.False(t, g.HasNext())

	buf := make([][2]float64, 8)
	_, ok := g.Stream(buf)
	assert.False(t, ok)
}

func TestGaplessSwitchNow(t *testing.T) {
	switched := 0
	g := &gaplessStreamer{
		current:  &markStreamer{value: 1, remaining: 100},
		onSwitch: func() { switched++ },
	}

	// Without a successor this is a no-op.
	g.SwitchNow()
	assert.Zero(t, switched)

	g.SetNext(&markStreamer{value: 2, remaining: 4})
	g.SwitchNow()
	assert.Equal(t, 1, switched)

	buf := make([][2]float64, 4)
	n, ok := g.Stream(buf)
	require.True(t, ok)
	assert.Equal(t, 4, n)
	assert.Equal(t, 2.0, buf[0][0])
}
