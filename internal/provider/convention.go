package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"strconv"
	"sync"

	"github.com/spf13/afero"

	"github.com/ProjectAnni/anni-go/internal/repodb"
	"github.com/ProjectAnni/anni-go/internal/track"
)

// Directory name grammar of the convention layout. Albums are
// "[YYYY-MM-DD][CATALOG] Title" with an optional " [N Discs]" suffix;
// disc subdirectories are "[CATALOG] Title [Disc K]".
var (
	albumDirRe = regexp.MustCompile(`^\[[^\]]*\]\[([^\]]+)\] (.+?)(?: \[(\d+) Discs\])?$`)
	discDirRe  = regexp.MustCompile(`\[Disc (\d+)\]$`)
)

type conventionAlbum struct {
	dir   string
	discs map[uint8]string // disc id -> directory
}

// Convention serves albums stored under human-readable directory names.
// Identity still keys by UUID: the repo database maps the catalog number
// embedded in each directory name back to its album id.
type Convention struct {
	fs   afero.Fs
	root string
	db   *repodb.Database

	mu     sync.RWMutex
	albums map[string]conventionAlbum
}

// NewConvention scans root and returns a convention-layout provider.
func NewConvention(fs afero.Fs, root string, db *repodb.Database) (*Convention, error) {
	p := &Convention{fs: fs, root: root, db: db}
	if err := p.Reload(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Convention) Reload(_ context.Context) error {
	entries, err := afero.ReadDir(p.fs, p.root)
	if err != nil {
		return err
	}

	albums := make(map[string]conventionAlbum)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := albumDirRe.FindStringSubmatch(entry.Name())
		if m == nil {
			slog.Warn("skipping unrecognized album directory", "name", entry.Name())
			continue
		}
		catalog := m[1]
		discCount := 1
		if m[3] != "" {
			discCount, _ = strconv.Atoi(m[3])
		}

		album, err := p.db.AlbumByCatalog(catalog)
		if errors.Is(err, repodb.ErrNotFound) {
			slog.Warn("catalog missing from repo database", "catalog", catalog)
			continue
		}
		if err != nil {
			return err
		}

		dir := path.Join(p.root, entry.Name())
		discs, err := p.scanDiscs(dir, discCount)
		if err != nil {
			return err
		}
		albums[album.AlbumID] = conventionAlbum{dir: dir, discs: discs}
	}

	p.mu.Lock()
	p.albums = albums
	p.mu.Unlock()
	return nil
}

// scanDiscs maps disc ids to directories. Single-disc albums keep their
// tracks directly in the album directory.
func (p *Convention) scanDiscs(albumDir string, discCount int) (map[uint8]string, error) {
	discs := make(map[uint8]string, discCount)
	if discCount <= 1 {
		discs[1] = albumDir
		return discs, nil
	}

	entries, err := afero.ReadDir(p.fs, albumDir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := discDirRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		k, err := strconv.ParseUint(m[1], 10, 8)
		if err != nil || k == 0 {
			slog.Warn("skipping disc directory with bad index", "name", entry.Name())
			continue
		}
		discs[uint8(k)] = path.Join(albumDir, entry.Name())
	}
	return discs, nil
}

func (p *Convention) Albums(_ context.Context) (map[string]struct{}, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	albums := make(map[string]struct{}, len(p.albums))
	for id := range p.albums {
		albums[id] = struct{}{}
	}
	return albums, nil
}

func (p *Convention) HasAlbum(_ context.Context, albumID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.albums[albumID]
	return ok
}

func (p *Convention) discDir(albumID string, discID uint8) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	album, ok := p.albums[albumID]
	if !ok {
		return "", fmt.Errorf("%w: album %s", ErrNotFound, albumID)
	}
	dir, ok := album.discs[discID]
	if !ok {
		return "", fmt.Errorf("%w: disc %d of album %s", ErrNotFound, discID, albumID)
	}
	return dir, nil
}

func (p *Convention) trackPath(id track.Identifier) (string, error) {
	dir, err := p.discDir(id.AlbumID.String(), id.DiscID)
	if err != nil {
		return "", err
	}
	return findByPrefix(p.fs, dir, fmt.Sprintf("%02d.", id.TrackID))
}

func (p *Convention) GetAudioInfo(_ context.Context, id track.Identifier) (AudioInfo, error) {
	file, err := p.trackPath(id)
	if err != nil {
		return AudioInfo{}, err
	}
	return statAudioFile(p.fs, file)
}

func (p *Convention) GetAudio(_ context.Context, id track.Identifier, rng track.Range) (*AudioStream, error) {
	file, err := p.trackPath(id)
	if err != nil {
		return nil, err
	}
	return openAudioFile(p.fs, file, rng)
}

func (p *Convention) GetCover(_ context.Context, albumID string, discID uint8) (io.ReadCloser, error) {
	var dir string
	var err error
	if discID > 0 {
		dir, err = p.discDir(albumID, discID)
	} else {
		p.mu.RLock()
		album, ok := p.albums[albumID]
		p.mu.RUnlock()
		if !ok {
			err = fmt.Errorf("%w: album %s", ErrNotFound, albumID)
		} else {
			dir = album.dir
		}
	}
	if err != nil {
		return nil, err
	}
	return openCoverFile(p.fs, path.Join(dir, "cover.jpg"))
}

var _ Provider = (*Convention)(nil)
