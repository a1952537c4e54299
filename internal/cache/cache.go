// Package cache materializes decoded tracks on disk, keyed by identity:
// one file per track at {root}/{album_id}/{disc_id}_{track_id}. An entry is
// either absent, mid-fill, or complete-and-valid; validity means a full
// decode pass with verification succeeds. The cache assumes a single
// process owns the directory — cross-process coordination is out of scope.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ProjectAnni/anni-go/internal/track"
)

var (
	// ErrAlreadyExists is returned by Add when the entry is present.
	ErrAlreadyExists = errors.New("cache entry already exists")

	// ErrInvalidCache is returned by Add when the source fails validation.
	ErrInvalidCache = errors.New("invalid cache source")
)

// Store is a content-addressed cache of decoded audio files.
type Store struct {
	root string

	// validate runs a full decode pass over a candidate file. Swappable
	// so tests can exercise the acquire protocol without real FLAC data.
	validate func(path string) (bool, error)

	mu       sync.Mutex
	inflight map[track.Identifier]*sync.Mutex
}

// NewStore returns a Store rooted at root.
func NewStore(root string) *Store {
	return &Store{
		root:     root,
		validate: ValidateFile,
		inflight: make(map[track.Identifier]*sync.Mutex),
	}
}

// Location returns the entry path for a track.
func (s *Store) Location(id track.Identifier) string {
	return filepath.Join(s.root, id.AlbumID.String(),
		fmt.Sprintf("%d_%d", id.DiscID, id.TrackID))
}

// Entry is the result of Acquire. When Writer is nil the entry was already
// valid and Reader serves it whole. Otherwise the caller must copy the
// upstream bytes to Writer while a decoder consumes Reader concurrently,
// then call Release; until Release returns, no other fill for the same
// identifier can start.
type Entry struct {
	Reader *os.File
	Writer *os.File

	release func()
}

// Filling reports whether this entry expects the caller to download.
func (e *Entry) Filling() bool {
	return e.Writer != nil
}

// Release closes the writer (if any) and ends the fill, letting queued
// acquirers of the same identifier proceed. Reader stays open; its consumer
// closes it.
func (e *Entry) Release() error {
	var err error
	if e.Writer != nil {
		err = e.Writer.Close()
		e.Writer = nil
	}
	if e.release != nil {
		e.release()
		e.release = nil
	}
	return err
}

// keyLock returns the per-identifier mutex, creating it on first use. The
// mutex outlives individual fills: at most one writer per entry per process
// lifetime is enforced by holding it across the whole fill.
func (s *Store) keyLock(id track.Identifier) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.inflight[id]
	if !ok {
		l = &sync.Mutex{}
		s.inflight[id] = l
	}
	return l
}

// Acquire opens the entry for a track. If a valid entry exists it is
// returned read-only. Otherwise the entry is created or truncated and
// returned with both ends open for a concurrent fill. Concurrent Acquire
// calls for one identifier serialize: the second call waits for the first
// fill's Release, then sees the validated entry and skips its own fill.
func (s *Store) Acquire(id track.Identifier) (*Entry, error) {
	lock := s.keyLock(id)
	lock.Lock()

	path := s.Location(id)
	if _, err := os.Stat(path); err == nil {
		if ok, err := s.validate(path); err == nil && ok {
			f, err := os.Open(path)
			if err != nil {
				lock.Unlock()
				return nil, err
			}
			lock.Unlock()
			return &Entry{Reader: f}, nil
		}
		// Entry exists but does not decode cleanly; refill it.
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		lock.Unlock()
		return nil, err
	}

	// Truncate first so stale bytes never reach the decoder.
	writer, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	reader, err := os.Open(path)
	if err != nil {
		writer.Close()
		lock.Unlock()
		return nil, err
	}

	return &Entry{Reader: reader, Writer: writer, release: lock.Unlock}, nil
}

// Add imports an already-downloaded file as the entry for id. The source
// must pass validation; an existing entry is never overwritten.
func (s *Store) Add(sourcePath string, id track.Identifier) error {
	lock := s.keyLock(id)
	lock.Lock()
	defer lock.Unlock()

	dest := s.Location(id)
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}

	ok, err := s.validate(sourcePath)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidCache, sourcePath)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	src, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}
