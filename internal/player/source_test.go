package player

import (
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailReaderFollowsWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entry")
	writer, err := os.Create(path)
	require.NoError(t, err)
	reader, err := os.Open(path)
	require.NoError(t, err)

	done := &atomic.Bool{}
	tr := newTailReader(reader, done)
	tr.pollInterval = time.Millisecond

	go func() {
		for _, chunk := range []string{"first ", "second ", "third"} {
			_, _ = writer.WriteString(chunk)
			time.Sleep(5 * time.Millisecond)
		}
		writer.Close()
		done.Store(true)
	}()

	got, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, "first second third", string(got))
	require.NoError(t, tr.Close())
}

func TestTailReaderImmediateEOFWhenDone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entry")
	require.NoError(t, os.WriteFile(path, []byte("complete"), 0o644))
	reader, err := os.Open(path)
	require.NoError(t, err)

	done := &atomic.Bool{}
	done.Store(true)
	tr := newTailReader(reader, done)

	got, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, "complete", string(got))
	require.NoError(t, tr.Close())
}

func TestTailReaderSeek(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entry")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))
	reader, err := os.Open(path)
	require.NoError(t, err)
	defer reader.Close()

	done := &atomic.Bool{}
	done.Store(true)
	tr := newTailReader(reader, done)

	off, err := tr.Seek(4, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(4), off)

	got, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, "456789", string(got))
}

func TestCopyWithThreshold(t *testing.T) {
	var ready atomic.Int64

	src := make([]byte, 100*1024)
	dst := filepath.Join(t.TempDir(), "out")
	out, err := os.Create(dst)
	require.NoError(t, err)
	defer out.Close()

	written, err := copyWithThreshold(out, &slowReader{data: src}, 64*1024, func() {
		ready.Add(1)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(src)), written)
	assert.Equal(t, int64(1), ready.Load())
}

func TestCopyWithThresholdShortStream(t *testing.T) {
	var ready atomic.Int64
	out, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer out.Close()

	// Shorter than the threshold: ready still fires, at EOF.
	written, err := copyWithThreshold(out, &slowReader{data: make([]byte, 10)}, 64*1024, func() {
		ready.Add(1)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), written)
	assert.Equal(t, int64(1), ready.Load())
}

// slowReader yields its data in 8KB reads.
type slowReader struct {
	data []byte
	off  int
}

func (s *slowReader) Read(p []byte) (int, error) {
	if s.off >= len(s.data) {
		return 0, io.EOF
	}
	n := min(len(p), 8*1024)
	n = min(n, len(s.data)-s.off)
	copy(p, s.data[s.off:s.off+n])
	s.off += n
	return n, nil
}
