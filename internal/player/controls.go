package player

import (
	"sync"
	"sync/atomic"
)

// Controls is the client-facing handle on the decoder. It owns the sender
// side of the internal event queue; the decoder owns the receiver. Shared
// flags are atomics, shared values sit behind a lock — both sides refer to
// this one cell, never to each other.
type Controls struct {
	queue  *eventQueue
	events *Events

	isPlaying       atomic.Bool
	isStopped       atomic.Bool
	isLooping       atomic.Bool
	isNormalizing   atomic.Bool
	isFilePreloaded atomic.Bool

	mu       sync.RWMutex
	volume   float32
	seekTS   *uint64 // milliseconds; nil when no seek is pending
	progress ProgressState
}

func newControls() *Controls {
	c := &Controls{
		queue:  newEventQueue(),
		events: newEvents(),
		volume: 1.0,
	}
	c.isStopped.Store(true)
	return c
}

// Events returns the public event stream.
func (c *Controls) Events() <-chan Event {
	return c.events.C()
}

// IsPlaying reports whether the playing flag is set.
func (c *Controls) IsPlaying() bool { return c.isPlaying.Load() }

// IsStopped reports whether the decoder is stopped.
func (c *Controls) IsStopped() bool { return c.isStopped.Load() }

// IsLooping reports whether the current source loops at end of stream.
func (c *Controls) IsLooping() bool { return c.isLooping.Load() }

// SetLooping sets the loop flag.
func (c *Controls) SetLooping(v bool) { c.isLooping.Store(v) }

// IsNormalizing reports whether loudness normalization is on.
func (c *Controls) IsNormalizing() bool { return c.isNormalizing.Load() }

// SetNormalizing toggles loudness normalization.
func (c *Controls) SetNormalizing(v bool) { c.isNormalizing.Store(v) }

// IsFilePreloaded reports whether a preload source is queued.
func (c *Controls) IsFilePreloaded() bool { return c.isFilePreloaded.Load() }

// Volume returns the current volume (0.0–1.0, default 1.0).
func (c *Controls) Volume() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volume
}

// SetVolume stores the volume. The decoder applies it at the next packet.
func (c *Controls) SetVolume(v float32) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	c.mu.Lock()
	c.volume = v
	c.mu.Unlock()
}

// Progress returns the last reported progress.
func (c *Controls) Progress() ProgressState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.progress
}

// setProgress stores progress and publishes it.
func (c *Controls) setProgress(p ProgressState) {
	c.mu.Lock()
	c.progress = p
	c.mu.Unlock()
	c.events.sendProgress(p)
}

// Seek requests a jump to position (milliseconds). The decoder re-seeks at
// the next packet boundary; rapid calls collapse to the latest position.
func (c *Controls) Seek(positionMS uint64) {
	c.mu.Lock()
	ts := positionMS
	c.seekTS = &ts
	c.mu.Unlock()
}

// takeSeek consumes a pending seek request, if any.
func (c *Controls) takeSeek() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seekTS == nil {
		return 0, false
	}
	ts := *c.seekTS
	c.seekTS = nil
	return ts, true
}

// Open hands a source to the decoder. The decoder buffers until
// bufferSignal flips false, then starts playing or paused per the play
// argument.
func (c *Controls) Open(source Source, bufferSignal *atomic.Bool, play bool) {
	c.isPlaying.Store(play)
	c.isStopped.Store(false)
	c.isFilePreloaded.Store(false)
	c.queue.push(internalEvent{kind: internalOpen, source: source, bufferSignal: bufferSignal})
}

// Play starts or resumes output.
func (c *Controls) Play() {
	c.queue.push(internalEvent{kind: internalPlay})
	c.isPlaying.Store(true)
	c.isStopped.Store(false)
	c.events.sendLifecycle(EventPlay)
}

// Pause halts output by the next packet boundary.
func (c *Controls) Pause() {
	c.queue.push(internalEvent{kind: internalPause})
	c.isPlaying.Store(false)
	c.isStopped.Store(false)
	c.events.sendLifecycle(EventPause)
}

// Stop cancels the current decode and drains in-flight control events.
func (c *Controls) Stop() {
	c.queue.drain()
	c.queue.push(internalEvent{kind: internalStop})
	c.isPlaying.Store(false)
	c.isStopped.Store(true)
	c.events.sendLifecycle(EventStop)
}

// Preload queues a second source to swap in gaplessly when the current one
// runs out of frames.
func (c *Controls) Preload(source Source, bufferSignal *atomic.Bool) {
	c.isFilePreloaded.Store(true)
	c.queue.push(internalEvent{kind: internalPreload, source: source, bufferSignal: bufferSignal})
}

// PlayPreloaded promotes the preloaded source immediately.
func (c *Controls) PlayPreloaded() {
	c.queue.push(internalEvent{kind: internalPlayPreloaded})
}

// DeviceChanged tells the decoder the output device went away and must be
// reacquired.
func (c *Controls) DeviceChanged() {
	c.queue.push(internalEvent{kind: internalDeviceChanged})
}
