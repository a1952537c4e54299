package player

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ProjectAnni/anni-go/internal/cache"
	"github.com/ProjectAnni/anni-go/internal/provider"
	"github.com/ProjectAnni/anni-go/internal/track"
)

// bufferReadyBytes is how much of a fill must land on disk before the
// decoder leaves Buffering. Enough for the FLAC head plus the first frames.
const bufferReadyBytes = 256 * 1024

// Player ties the pieces of the client together: a priority list of
// providers to fetch from, the content-addressed cache that fills once per
// track, and the decoder goroutine that plays whatever the cache serves.
type Player struct {
	Controls *Controls

	decoder *Decoder
	store   *cache.Store

	mu        sync.RWMutex
	providers *provider.Multiple

	fillMu     sync.Mutex
	fillCancel context.CancelFunc
}

// New starts a player over the default audio device.
func New(store *cache.Store) *Player {
	return NewWithOutput(store, newSpeakerOutput())
}

// NewWithOutput starts a player over a custom output. The decoder goroutine
// runs until Close.
func NewWithOutput(store *cache.Store, output Output) *Player {
	decoder, controls := NewDecoder(output)
	p := &Player{
		Controls:  controls,
		decoder:   decoder,
		store:     store,
		providers: provider.NewMultiple(),
	}
	go decoder.Run()
	return p
}

// Events returns the public event stream.
func (p *Player) Events() <-chan Event {
	return p.Controls.Events()
}

// AddProvider registers an audio source at the given priority.
func (p *Player) AddProvider(prov provider.Provider, priority int) {
	p.mu.Lock()
	p.providers.Insert(prov, priority)
	p.mu.Unlock()
}

// ClearProviders drops all registered sources.
func (p *Player) ClearProviders() {
	p.mu.Lock()
	p.providers = provider.NewMultiple()
	p.mu.Unlock()
}

// Open loads a track and leaves it paused.
func (p *Player) Open(id track.Identifier) error {
	slog.Info("loading track", "track", id.String())
	p.Controls.Pause()

	source, signal, err := p.openSource(id)
	if err != nil {
		return err
	}
	p.Controls.Open(source, signal, false)
	return nil
}

// OpenAndPlay loads a track and starts playback.
func (p *Player) OpenAndPlay(id track.Identifier) error {
	if err := p.Open(id); err != nil {
		return err
	}
	p.Controls.Play()
	return nil
}

// OpenFile loads a local file directly, bypassing providers and cache, and
// leaves it paused.
func (p *Player) OpenFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	signal := &atomic.Bool{}
	p.Controls.Open(f, signal, false)
	return nil
}

// Preload fetches the next track while the current one plays; the decoder
// swaps to it gaplessly when the current frames run out.
func (p *Player) Preload(id track.Identifier) error {
	slog.Info("preloading track", "track", id.String())
	source, signal, err := p.openSource(id)
	if err != nil {
		return err
	}
	p.Controls.Preload(source, signal)
	return nil
}

// openSource resolves a track through the cache. A valid entry serves
// immediately; otherwise the upstream bytes stream into the entry while the
// returned source tails it, and the buffer signal clears once enough bytes
// landed for decoding to start.
func (p *Player) openSource(id track.Identifier) (Source, *atomic.Bool, error) {
	entry, err := p.store.Acquire(id)
	if err != nil {
		return nil, nil, err
	}

	signal := &atomic.Bool{}
	if !entry.Filling() {
		// Complete and validated; no buffering phase needed.
		return entry.Reader, signal, nil
	}
	signal.Store(true)

	p.mu.RLock()
	providers := p.providers
	p.mu.RUnlock()

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := providers.GetAudio(ctx, id, track.FullRange())
	if err != nil {
		cancel()
		entry.Release()
		entry.Reader.Close()
		return nil, nil, fmt.Errorf("fetch %s: %w", id, err)
	}

	p.setFillCancel(cancel)

	done := &atomic.Bool{}
	go func() {
		defer stream.Close()
		written, err := copyWithThreshold(entry.Writer, stream.Body, bufferReadyBytes, func() {
			signal.Store(false)
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("track download failed", "track", id.String(), "written", written, "err", err)
		}
		entry.Release()
		done.Store(true)
		signal.Store(false)
	}()

	return newTailReader(entry.Reader, done), signal, nil
}

// copyWithThreshold copies src to dst, invoking ready once threshold bytes
// have been written (or at EOF for shorter streams).
func copyWithThreshold(dst io.Writer, src io.Reader, threshold int64, ready func()) (int64, error) {
	var written int64
	signalled := false
	buf := make([]byte, 32*1024)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if !signalled && written >= threshold {
				signalled = true
				ready()
			}
		}
		if readErr == io.EOF {
			if !signalled {
				ready()
			}
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func (p *Player) setFillCancel(cancel context.CancelFunc) {
	p.fillMu.Lock()
	if p.fillCancel != nil {
		p.fillCancel()
	}
	p.fillCancel = cancel
	p.fillMu.Unlock()
}

// Play resumes output.
func (p *Player) Play() { p.Controls.Play() }

// Pause halts output by the next packet boundary.
func (p *Player) Pause() { p.Controls.Pause() }

// Stop cancels the current decode and aborts an in-flight fill.
func (p *Player) Stop() {
	p.fillMu.Lock()
	if p.fillCancel != nil {
		p.fillCancel()
		p.fillCancel = nil
	}
	p.fillMu.Unlock()
	p.Controls.Stop()
}

// Seek jumps to the given position in milliseconds.
func (p *Player) Seek(positionMS uint64) { p.Controls.Seek(positionMS) }

// SetVolume sets the output volume (0.0–1.0).
func (p *Player) SetVolume(v float32) { p.Controls.SetVolume(v) }

// Progress returns the current playback progress.
func (p *Player) Progress() ProgressState { return p.Controls.Progress() }

// Close terminates the decoder and releases the audio device.
func (p *Player) Close() {
	p.Stop()
	p.decoder.Kill()
}
