package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ProjectAnni/anni-go/internal/track"
)

// Strict serves a UUID-sharded directory tree: layer levels of two-hex-char
// directories, then one directory per album id holding
// {disc}/{track}.{ext} and cover.jpg files. The album set is scanned once
// and cached until Reload.
type Strict struct {
	fs    afero.Fs
	root  string
	layer int

	mu     sync.RWMutex
	albums map[string]string // album id -> album directory
}

// NewStrict scans root and returns a caching strict-layout provider.
func NewStrict(fs afero.Fs, root string, layer int) (*Strict, error) {
	p := &Strict{fs: fs, root: root, layer: layer}
	if err := p.Reload(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

// shardedAlbumPath places albumID under layer levels of two-hex-char
// shards derived from the id's leading characters.
func shardedAlbumPath(root, albumID string, layer int) string {
	p := root
	for i := 0; i < layer; i++ {
		p = path.Join(p, albumID[2*i:2*i+2])
	}
	return path.Join(p, albumID)
}

// walkAlbumDirs walks exactly layer levels below root and calls fn for
// every directory at that depth whose name parses as a UUID. Anything else
// at that depth is logged and skipped.
func walkAlbumDirs(fs afero.Fs, root string, layer int, fn func(albumID, dir string)) error {
	type frame struct {
		dir   string
		depth int
	}
	queue := []frame{{dir: root, depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := afero.ReadDir(fs, cur.dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			child := path.Join(cur.dir, entry.Name())
			if cur.depth < layer {
				queue = append(queue, frame{dir: child, depth: cur.depth + 1})
				continue
			}
			id, err := uuid.Parse(entry.Name())
			if err != nil {
				slog.Warn("skipping non-uuid directory", "path", child)
				continue
			}
			fn(id.String(), child)
		}
	}
	return nil
}

func (p *Strict) Albums(_ context.Context) (map[string]struct{}, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	albums := make(map[string]struct{}, len(p.albums))
	for id := range p.albums {
		albums[id] = struct{}{}
	}
	return albums, nil
}

func (p *Strict) HasAlbum(_ context.Context, albumID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.albums[albumID]
	return ok
}

func (p *Strict) albumDir(albumID string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	dir, ok := p.albums[albumID]
	if !ok {
		return "", fmt.Errorf("%w: album %s", ErrNotFound, albumID)
	}
	return dir, nil
}

func (p *Strict) trackPath(id track.Identifier) (string, error) {
	dir, err := p.albumDir(id.AlbumID.String())
	if err != nil {
		return "", err
	}
	discDir := path.Join(dir, strconv.Itoa(int(id.DiscID)))
	return findByPrefix(p.fs, discDir, fmt.Sprintf("%d.", id.TrackID))
}

func (p *Strict) GetAudioInfo(_ context.Context, id track.Identifier) (AudioInfo, error) {
	file, err := p.trackPath(id)
	if err != nil {
		return AudioInfo{}, err
	}
	return statAudioFile(p.fs, file)
}

func (p *Strict) GetAudio(_ context.Context, id track.Identifier, rng track.Range) (*AudioStream, error) {
	file, err := p.trackPath(id)
	if err != nil {
		return nil, err
	}
	return openAudioFile(p.fs, file, rng)
}

func (p *Strict) GetCover(_ context.Context, albumID string, discID uint8) (io.ReadCloser, error) {
	dir, err := p.albumDir(albumID)
	if err != nil {
		return nil, err
	}
	if discID > 0 {
		dir = path.Join(dir, strconv.Itoa(int(discID)))
	}
	return openCoverFile(p.fs, path.Join(dir, "cover.jpg"))
}

func (p *Strict) Reload(_ context.Context) error {
	albums := make(map[string]string)
	err := walkAlbumDirs(p.fs, p.root, p.layer, func(albumID, dir string) {
		albums[albumID] = dir
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.albums = albums
	p.mu.Unlock()
	return nil
}

var _ Provider = (*Strict)(nil)
