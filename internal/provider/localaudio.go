package provider

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/ProjectAnni/anni-go/internal/flacutil"
	"github.com/ProjectAnni/anni-go/internal/track"
)

// limitedReadCloser bounds a file to a range while keeping it closable.
type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error               { return l.c.Close() }

// openAudioFile opens an audio file, seeks to the range start and returns a
// stream bounded to the range. The duration always comes from the FLAC head:
// its 42 bytes are read from byte zero before seeking to the range start,
// whatever the range.
func openAudioFile(afs afero.Fs, filePath string, rng track.Range) (*AudioStream, error) {
	f, err := afs.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filePath)
		}
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	fileSize := uint64(st.Size())

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filePath), "."))

	var duration uint64
	info, err := flacutil.ReadStreamInfo(f)
	switch {
	case err == nil:
		duration = info.Duration()
	case ext == "flac":
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrFlac, err)
	}

	if _, err := f.Seek(int64(rng.Start), io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	return &AudioStream{
		Info: AudioInfo{
			Extension: ext,
			Size:      st.Size(),
			Duration:  duration,
		},
		Range: rng.Resolve(fileSize),
		Body: &limitedReadCloser{
			r: io.LimitReader(f, int64(rng.LengthLimit(fileSize))),
			c: f,
		},
	}, nil
}

// statAudioFile resolves AudioInfo without handing out a body.
func statAudioFile(afs afero.Fs, filePath string) (AudioInfo, error) {
	f, err := afs.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return AudioInfo{}, fmt.Errorf("%w: %s", ErrNotFound, filePath)
		}
		return AudioInfo{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return AudioInfo{}, err
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filePath), "."))

	var duration uint64
	if info, err := flacutil.ReadStreamInfo(f); err == nil {
		duration = info.Duration()
	} else if ext == "flac" {
		return AudioInfo{}, fmt.Errorf("%w: %v", ErrFlac, err)
	}

	return AudioInfo{Extension: ext, Size: st.Size(), Duration: duration}, nil
}

// openCoverFile opens a cover image, mapping absence to ErrNotFound.
func openCoverFile(afs afero.Fs, filePath string) (io.ReadCloser, error) {
	f, err := afs.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filePath)
		}
		return nil, err
	}
	return f, nil
}

// findByPrefix returns the full path of the first directory entry whose
// name starts with prefix, in lexical order for determinism.
func findByPrefix(afs afero.Fs, dir, prefix string) (string, error) {
	entries, err := afero.ReadDir(afs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			return path.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: no %q entry under %s", ErrNotFound, prefix, dir)
}
