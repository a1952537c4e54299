package player

import (
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
)

const tickInterval = 100 * time.Millisecond

// loadedTrack is a decoded source bound to the output sample rate.
type loadedTrack struct {
	source    Source
	streamer  beep.StreamSeekCloser
	format    beep.Format
	resampled beep.Streamer
}

func (t *loadedTrack) close() {
	t.streamer.Close()
	t.source.Close()
}

// pendingOpen is a source waiting for its buffer signal to clear.
type pendingOpen struct {
	source       Source
	bufferSignal *atomic.Bool
}

// Decoder is the single goroutine that owns the output device. It drains
// the control queue, reacts to buffer signals, applies seeks at packet
// boundaries and reports progress. Decode failures never panic; the decoder
// transitions to Stopped and emits Stop.
type Decoder struct {
	controls *Controls
	output   Output
	killer   chan struct{}

	state   State
	pending *pendingOpen
	current *loadedTrack
	next    *loadedTrack

	gapless  *gaplessStreamer
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	finished chan struct{}
	switched chan struct{}
}

// NewDecoder pairs a decoder with fresh controls over the given output.
func NewDecoder(output Output) (*Decoder, *Controls) {
	controls := newControls()
	d := &Decoder{
		controls: controls,
		output:   output,
		killer:   make(chan struct{}),
		state:    StateIdle,
		finished: make(chan struct{}, 1),
		switched: make(chan struct{}, 1),
	}
	return d, controls
}

// Kill terminates the decoder goroutine and releases the device.
func (d *Decoder) Kill() {
	close(d.killer)
}

// Run is the decoder loop. Start it on a dedicated goroutine.
func (d *Decoder) Run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.killer:
			d.teardown()
			d.output.Close()
			d.controls.queue.close()
			return
		case <-d.controls.queue.wait():
			for {
				ev, ok := d.controls.queue.pop()
				if !ok {
					break
				}
				d.handle(ev)
			}
		case <-d.finished:
			d.onStreamEnd()
		case <-d.switched:
			d.promotePreload()
		case <-ticker.C:
			d.tick()
		}
	}
}

func (d *Decoder) handle(ev internalEvent) {
	switch ev.kind {
	case internalOpen:
		d.teardown()
		d.pending = &pendingOpen{source: ev.source, bufferSignal: ev.bufferSignal}
		d.state = StateBuffering
		d.tryFinishOpen()
	case internalPlay:
		if d.ctrl != nil {
			d.output.Lock()
			d.ctrl.Paused = false
			d.output.Unlock()
			d.state = StatePlaying
		}
	case internalPause:
		if d.ctrl != nil {
			d.output.Lock()
			d.ctrl.Paused = true
			d.output.Unlock()
			d.state = StatePaused
		}
	case internalStop:
		d.teardown()
		d.state = StateStopped
	case internalDeviceChanged:
		d.reacquireDevice()
	case internalPreload:
		d.loadPreload(ev.source)
	case internalPlayPreloaded:
		if d.gapless != nil && d.gapless.HasNext() {
			d.output.Lock()
			d.gapless.SwitchNow()
			d.output.Unlock()
		}
	}
}

// tryFinishOpen starts decoding once the buffer signal clears.
func (d *Decoder) tryFinishOpen() {
	if d.pending == nil || d.pending.bufferSignal.Load() {
		return
	}
	pending := d.pending
	d.pending = nil

	streamer, format, err := flac.Decode(pending.source)
	if err != nil {
		slog.Error("failed to open source", "err", err)
		pending.source.Close()
		d.fail()
		return
	}

	if err := d.output.Init(format.SampleRate); err != nil {
		slog.Error("failed to acquire output device", "err", err)
		streamer.Close()
		pending.source.Close()
		d.fail()
		return
	}

	track := &loadedTrack{
		source:    pending.source,
		streamer:  streamer,
		format:    format,
		resampled: streamer,
	}
	d.current = track

	d.gapless = &gaplessStreamer{
		current:  track.resampled,
		onSwitch: d.onGaplessSwitch,
	}
	d.ctrl = &beep.Ctrl{Streamer: d.gapless, Paused: !d.controls.IsPlaying()}
	d.volume = &effects.Volume{
		Streamer: d.ctrl,
		Base:     2,
		Volume:   levelToVolume(d.controls.Volume()),
		Silent:   d.controls.Volume() == 0,
	}

	d.output.Play(beep.Seq(d.volume, beep.Callback(d.onFinished)))

	if d.controls.IsPlaying() {
		d.state = StatePlaying
	} else {
		d.state = StatePaused
	}
	d.reportProgress()
}

// loadPreload decodes the next source while the current one plays. Failure
// is silent: playback falls back to a non-gapless transition.
func (d *Decoder) loadPreload(source Source) {
	if d.current == nil || d.gapless == nil {
		source.Close()
		return
	}
	streamer, format, err := flac.Decode(source)
	if err != nil {
		slog.Warn("failed to preload source", "err", err)
		source.Close()
		d.controls.isFilePreloaded.Store(false)
		return
	}

	var resampled beep.Streamer = streamer
	if format.SampleRate != d.current.format.SampleRate {
		resampled = beep.Resample(4, format.SampleRate, d.current.format.SampleRate, streamer)
	}

	d.next = &loadedTrack{source: source, streamer: streamer, format: format, resampled: resampled}
	d.gapless.SetNext(resampled)
}

// onGaplessSwitch runs on the output goroutine between the last sample of
// the old source and the first of the preload. It only signals; the decoder
// goroutine does the bookkeeping.
func (d *Decoder) onGaplessSwitch() {
	d.controls.isFilePreloaded.Store(false)
	select {
	case d.switched <- struct{}{}:
	default:
	}
	d.controls.events.sendLifecycle(EventPreloadPlayed)
}

// promotePreload retires the drained source and adopts the preload.
func (d *Decoder) promotePreload() {
	old := d.current
	d.current = d.next
	d.next = nil
	if old != nil {
		// Close off the hot path; the old streamer is already drained.
		go old.close()
	}
	d.reportProgress()
}

// onFinished fires when the whole sequence drains with no preload queued.
func (d *Decoder) onFinished() {
	select {
	case d.finished <- struct{}{}:
	default:
	}
}

func (d *Decoder) onStreamEnd() {
	if d.current == nil {
		return
	}
	if d.controls.IsLooping() {
		d.output.Lock()
		if err := d.current.streamer.Seek(0); err != nil {
			d.output.Unlock()
			d.fail()
			return
		}
		d.output.Unlock()
		d.output.Play(beep.Seq(d.volume, beep.Callback(d.onFinished)))
		return
	}

	d.teardown()
	d.state = StateStopped
	d.controls.isPlaying.Store(false)
	d.controls.isStopped.Store(true)
	d.controls.events.sendLifecycle(EventStop)
}

// fail is the decode-error path: release everything, stop, tell the world.
func (d *Decoder) fail() {
	d.teardown()
	d.state = StateStopped
	d.controls.isPlaying.Store(false)
	d.controls.isStopped.Store(true)
	d.controls.events.sendLifecycle(EventStop)
}

func (d *Decoder) tick() {
	d.tryFinishOpen()
	if d.current == nil || d.ctrl == nil {
		return
	}

	d.applyVolume()

	if ts, ok := d.controls.takeSeek(); ok {
		d.applySeek(ts)
	}

	if d.state == StatePlaying {
		d.reportProgress()
	}
}

func (d *Decoder) applyVolume() {
	level := d.controls.Volume()
	d.output.Lock()
	d.volume.Volume = levelToVolume(level)
	d.volume.Silent = level == 0
	d.output.Unlock()
}

func (d *Decoder) applySeek(positionMS uint64) {
	rate := d.current.format.SampleRate
	sample := rate.N(time.Duration(positionMS) * time.Millisecond)

	d.output.Lock()
	if sample >= d.current.streamer.Len() {
		sample = d.current.streamer.Len() - 1
	}
	if sample < 0 {
		sample = 0
	}
	err := d.current.streamer.Seek(sample)
	d.output.Unlock()
	if err != nil {
		slog.Warn("seek failed", "position_ms", positionMS, "err", err)
		return
	}
	d.reportProgress()
}

func (d *Decoder) reportProgress() {
	if d.current == nil {
		return
	}
	rate := d.current.format.SampleRate
	d.output.Lock()
	pos := d.current.streamer.Position()
	length := d.current.streamer.Len()
	d.output.Unlock()

	d.controls.setProgress(ProgressState{
		Position: uint64(rate.D(pos).Milliseconds()),
		Duration: uint64(rate.D(length).Milliseconds()),
	})
}

// teardown releases the current and preloaded sources.
func (d *Decoder) teardown() {
	d.output.Clear()
	if d.current != nil {
		d.current.close()
		d.current = nil
	}
	if d.next != nil {
		d.next.close()
		d.next = nil
	}
	if d.pending != nil {
		d.pending.source.Close()
		d.pending = nil
	}
	d.gapless = nil
	d.ctrl = nil
	d.volume = nil

	// Drop stale end-of-stream signals from the torn-down sequence.
	select {
	case <-d.finished:
	default:
	}
	select {
	case <-d.switched:
	default:
	}
}

func (d *Decoder) reacquireDevice() {
	if d.current == nil || d.volume == nil {
		return
	}
	d.output.Clear()
	if err := d.output.Init(d.current.format.SampleRate); err != nil {
		slog.Error("failed to reacquire output device", "err", err)
		d.fail()
		return
	}
	d.output.Play(beep.Seq(d.volume, beep.Callback(d.onFinished)))
}

// levelToVolume maps a 0–1 level onto the logarithmic volume scale:
// 1.0 passes through, 0.5 halves, approaching silence near zero.
func levelToVolume(level float32) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(float64(level))
}
