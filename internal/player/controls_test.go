package player

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectKinds(t *testing.T, c *Controls, n int) []EventKind {
	t.Helper()
	kinds := make([]EventKind, 0, n)
	for i := 0; i < n; i++ {
		select {
		case ev := <-c.Events():
			kinds = append(kinds, ev.Kind)
		default:
			t.Fatalf("expected %d events, got %d", n, len(kinds))
		}
	}
	return kinds
}

func TestControlsDefaults(t *testing.T) {
	c := newControls()
	assert.False(t, c.IsPlaying())
	assert.True(t, c.IsStopped())
	assert.False(t, c.IsLooping())
	assert.False(t, c.IsNormalizing())
	assert.False(t, c.IsFilePreloaded())
	assert.Equal(t, float32(1.0), c.Volume())
	assert.Equal(t, ProgressState{}, c.Progress())
}

func TestControlsPlayPauseStopFlags(t *testing.T) {
	c := newControls()

	c.Play()
	assert.True(t, c.IsPlaying())
	assert.False(t, c.IsStopped())

	c.Pause()
	assert.False(t, c.IsPlaying())
	assert.False(t, c.IsStopped())

	c.Stop()
	assert.False(t, c.IsPlaying())
	assert.True(t, c.IsStopped())

	assert.Equal(t, []EventKind{EventPlay, EventPause, EventStop}, collectKinds(t, c, 3))
}

func TestControlsStopDrainsQueue(t *testing.T) {
	c := newControls()

	c.Play()
	c.Pause()
	c.Stop()

	// Stop drained everything queued before it; only the stop survives.
	ev, ok := c.queue.pop()
	require.True(t, ok)
	assert.Equal(t, internalStop, ev.kind)
	_, ok = c.queue.pop()
	assert.False(t, ok)
}

func TestControlsOpenQueuesSource(t *testing.T) {
	c := newControls()
	signal := &atomic.Bool{}
	signal.Store(true)

	c.Open(nil, signal, true)
	assert.True(t, c.IsPlaying())
	assert.False(t, c.IsStopped())

	ev, ok := c.queue.pop()
	require.True(t, ok)
	assert.Equal(t, internalOpen, ev.kind)
	assert.Same(t, signal, ev.bufferSignal)
}

func TestControlsVolumeClamped(t *testing.T) {
	c := newControls()

	c.SetVolume(1.5)
	assert.Equal(t, float32(1.0), c.Volume())
	c.SetVolume(-0.5)
	assert.Equal(t, float32(0.0), c.Volume())
	c.SetVolume(0.25)
	assert.Equal(t, float32(0.25), c.Volume())
}

func TestControlsSeekLatestWins(t *testing.T) {
	c := newControls()

	_, ok := c.takeSeek()
	assert.False(t, ok)

	c.Seek(1000)
	c.Seek(2000)
	c.Seek(3000)

	ts, ok := c.takeSeek()
	require.True(t, ok)
	assert.Equal(t, uint64(3000), ts)

	// Consumed: nothing pending anymore.
	_, ok = c.takeSeek()
	assert.False(t, ok)
}

func TestControlsPreloadFlag(t *testing.T) {
	c := newControls()
	signal := &atomic.Bool{}

	c.Preload(nil, signal)
	assert.True(t, c.IsFilePreloaded())

	ev, ok := c.queue.pop()
	require.True(t, ok)
	assert.Equal(t, internalPreload, ev.kind)
}

func TestControlsProgressPublishes(t *testing.T) {
	c := newControls()

	c.setProgress(ProgressState{Position: 1500, Duration: 180000})
	assert.Equal(t, ProgressState{Position: 1500, Duration: 180000}, c.Progress())

	ev := <-c.Events()
	assert.Equal(t, EventProgress, ev.Kind)
	assert.Equal(t, uint64(1500), ev.Progress.Position)
}
