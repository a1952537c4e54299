package player

import (
	"sync"

	"github.com/gopxl/beep/v2"
)

var _ beep.Streamer = (*gaplessStreamer)(nil)

// gaplessStreamer chains a playing streamer to a preloaded successor. When
// the current streamer exhausts mid-buffer, the successor fills the rest of
// the very same sample buffer: no silence is emitted and the output device
// never restarts. onSwitch runs after the last sample of the old source and
// before the first sample of the new one.
type gaplessStreamer struct {
	mu       sync.Mutex
	current  beep.Streamer
	next     beep.Streamer
	onSwitch func()
}

// Stream implements beep.Streamer.
func (g *gaplessStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok = g.current.Stream(samples)

	// A short read may just be the decoder's internal buffering; probe
	// once more to learn whether the source is truly exhausted.
	if n < len(samples) && ok {
		n2, ok2 := g.current.Stream(samples[n:])
		n += n2
		ok = ok2
	}

	if !ok && g.next != nil {
		if g.onSwitch != nil {
			g.onSwitch()
		}
		g.current = g.next
		g.next = nil

		if n < len(samples) {
			n2, ok2 := g.current.Stream(samples[n:])
			n += n2
			ok = ok2
		} else {
			ok = true
		}
	}

	return n, ok
}

// Err implements beep.Streamer.
func (g *gaplessStreamer) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != nil {
		return g.current.Err()
	}
	return nil
}

// SetNext queues the successor streamer.
func (g *gaplessStreamer) SetNext(s beep.Streamer) {
	g.mu.Lock()
	g.next = s
	g.mu.Unlock()
}

// ClearNext drops a queued successor.
func (g *gaplessStreamer) ClearNext() {
	g.mu.Lock()
	g.next = nil
	g.mu.Unlock()
}

// HasNext reports whether a successor is queued.
func (g *gaplessStreamer) HasNext() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next != nil
}

// SwitchNow promotes the queued successor immediately, discarding whatever
// remains of the current source. No-op without a successor.
func (g *gaplessStreamer) SwitchNow() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next == nil {
		return
	}
	if g.onSwitch != nil {
		g.onSwitch()
	}
	g.current = g.next
	g.next = nil
}
