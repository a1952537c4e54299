package player

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Output abstracts the audio device so the decoder can be driven without
// real hardware in tests.
type Output interface {
	// Init prepares the device for the given sample rate. Safe to call
	// again on a rate change.
	Init(rate beep.SampleRate) error
	// Play starts pulling samples from s until it drains or Clear is
	// called.
	Play(s beep.Streamer)
	// Lock/Unlock guard mutations of anything the device is streaming
	// from.
	Lock()
	Unlock()
	// Clear stops pulling and discards the queued streamer.
	Clear()
	// Close releases the device.
	Close()
}

// speakerOutput drives the default audio device.
type speakerOutput struct {
	initialized bool
	rate        beep.SampleRate
}

func newSpeakerOutput() *speakerOutput {
	return &speakerOutput{}
}

func (o *speakerOutput) Init(rate beep.SampleRate) error {
	if o.initialized && o.rate == rate {
		return nil
	}
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return err
	}
	o.initialized = true
	o.rate = rate
	return nil
}

func (o *speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (o *speakerOutput) Lock()                { speaker.Lock() }
func (o *speakerOutput) Unlock()              { speaker.Unlock() }
func (o *speakerOutput) Clear()               { speaker.Clear() }

func (o *speakerOutput) Close() {
	if o.initialized {
		speaker.Close()
		o.initialized = false
	}
}

// pumpOutput pulls samples on a timer without a device. Used by tests and
// headless runs.
type pumpOutput struct {
	mu       sync.Mutex
	streamer beep.Streamer
	stop     chan struct{}
	interval time.Duration
	chunk    int
}

func newPumpOutput(interval time.Duration, chunk int) *pumpOutput {
	return &pumpOutput{interval: interval, chunk: chunk}
}

func (o *pumpOutput) Init(beep.SampleRate) error { return nil }

func (o *pumpOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	o.streamer = s
	if o.stop == nil {
		o.stop = make(chan struct{})
		go o.run(o.stop)
	}
	o.mu.Unlock()
}

func (o *pumpOutput) run(stop chan struct{}) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	buf := make([][2]float64, o.chunk)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			o.mu.Lock()
			s := o.streamer
			if s != nil {
				if _, ok := s.Stream(buf); !ok {
					o.streamer = nil
				}
			}
			o.mu.Unlock()
		}
	}
}

func (o *pumpOutput) Lock()   { o.mu.Lock() }
func (o *pumpOutput) Unlock() { o.mu.Unlock() }

func (o *pumpOutput) Clear() {
	o.mu.Lock()
	o.streamer = nil
	o.mu.Unlock()
}

func (o *pumpOutput) Close() {
	o.mu.Lock()
	if o.stop != nil {
		close(o.stop)
		o.stop = nil
	}
	o.streamer = nil
	o.mu.Unlock()
}
