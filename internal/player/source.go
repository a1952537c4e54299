package player

import (
	"io"
	"sync/atomic"
	"time"
)

// Source is what the decoder consumes: a seekable byte stream. Cache
// entries and plain files both qualify.
type Source interface {
	io.ReadSeekCloser
}

// tailReader reads a file that another goroutine is still appending to.
// EOF before the download completes means "wait for more bytes", not end
// of stream, so the decoder can start on a partially filled cache entry.
type tailReader struct {
	f    Source
	done *atomic.Bool

	pollInterval time.Duration
}

// newTailReader wraps f. done flips true when the writer has finished;
// from then on EOF is final.
func newTailReader(f Source, done *atomic.Bool) *tailReader {
	return &tailReader{f: f, done: done, pollInterval: 10 * time.Millisecond}
}

func (t *tailReader) Read(p []byte) (int, error) {
	for {
		n, err := t.f.Read(p)
		if n > 0 || err != io.EOF {
			if err == io.EOF && !t.done.Load() {
				err = nil
			}
			return n, err
		}
		if t.done.Load() {
			// Writer finished; one more read settles races between the
			// final write and the flag flip.
			if n2, err2 := t.f.Read(p); n2 > 0 {
				return n2, err2
			}
			return 0, io.EOF
		}
		time.Sleep(t.pollInterval)
	}
}

func (t *tailReader) Seek(offset int64, whence int) (int64, error) {
	return t.f.Seek(offset, whence)
}

func (t *tailReader) Close() error {
	return t.f.Close()
}

var _ Source = (*tailReader)(nil)
