package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"

	"github.com/ProjectAnni/anni-go/internal/track"
)

const cacheInfoSuffix = ".info"

// Cache is a read-through wrapper: the first full-stream fetch of a track
// materializes its bytes at {root}/{album}/{disc}_{track}, and later
// requests, ranged or not, serve from disk. Fills are single-flight per
// identifier; concurrent requests share one upstream fetch. A non-zero
// size budget evicts least-recently-used entries after each fill.
type Cache struct {
	inner   Provider
	root    string
	maxSize uint64

	group singleflight.Group
}

// NewCache wraps inner with an on-disk cache rooted at root. maxSize of
// zero means no eviction.
func NewCache(inner Provider, root string, maxSize uint64) (*Cache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root %q: %w", root, err)
	}
	return &Cache{inner: inner, root: root, maxSize: maxSize}, nil
}

func (c *Cache) entryPath(id track.Identifier) string {
	return filepath.Join(c.root, id.AlbumID.String(), fmt.Sprintf("%d_%d", id.DiscID, id.TrackID))
}

func (c *Cache) Albums(ctx context.Context) (map[string]struct{}, error) {
	return c.inner.Albums(ctx)
}

func (c *Cache) HasAlbum(ctx context.Context, albumID string) bool {
	return c.inner.HasAlbum(ctx, albumID)
}

func (c *Cache) GetAudioInfo(ctx context.Context, id track.Identifier) (AudioInfo, error) {
	if info, err := c.readInfo(id); err == nil {
		return info, nil
	}
	return c.inner.GetAudioInfo(ctx, id)
}

func (c *Cache) GetAudio(ctx context.Context, id track.Identifier, rng track.Range) (*AudioStream, error) {
	if c.present(id) {
		return c.serve(id, rng)
	}

	if !rng.IsFull() {
		// A ranged miss streams straight through; partial bodies are
		// never cached.
		return c.inner.GetAudio(ctx, id, rng)
	}

	_, err, _ := c.group.Do(id.String(), func() (any, error) {
		if c.present(id) {
			return nil, nil
		}
		return nil, c.fill(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return c.serve(id, rng)
}

func (c *Cache) GetCover(ctx context.Context, albumID string, discID uint8) (io.ReadCloser, error) {
	return c.inner.GetCover(ctx, albumID, discID)
}

func (c *Cache) Reload(ctx context.Context) error {
	return c.inner.Reload(ctx)
}

// present reports whether a completed entry exists. Fills write to a
// temporary name and rename, so existence implies completeness.
func (c *Cache) present(id track.Identifier) bool {
	_, err := os.Stat(c.entryPath(id))
	if err != nil {
		return false
	}
	_, err = os.Stat(c.entryPath(id) + cacheInfoSuffix)
	return err == nil
}

func (c *Cache) readInfo(id track.Identifier) (AudioInfo, error) {
	raw, err := os.ReadFile(c.entryPath(id) + cacheInfoSuffix)
	if err != nil {
		return AudioInfo{}, err
	}
	var info AudioInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return AudioInfo{}, err
	}
	return info, nil
}

// fill downloads the full lossless stream into the entry.
func (c *Cache) fill(ctx context.Context, id track.Identifier) error {
	upstream, err := c.inner.GetAudio(ctx, id, track.FullRange())
	if err != nil {
		return err
	}
	defer upstream.Close()

	dest := c.entryPath(id)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".part*")
	if err != nil {
		return err
	}
	written, err := io.Copy(tmp, upstream.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}

	info := upstream.Info
	if info.Size == 0 {
		info.Size = written
	}
	raw, err := json.Marshal(info)
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.WriteFile(dest+cacheInfoSuffix, raw, 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		os.Remove(dest + cacheInfoSuffix)
		return err
	}

	slog.Debug("cached track",
		"track", id.String(), "size", humanize.Bytes(uint64(written)))
	c.evict()
	return nil
}

// serve opens a completed entry for the requested range.
func (c *Cache) serve(id track.Identifier, rng track.Range) (*AudioStream, error) {
	info, err := c.readInfo(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(c.entryPath(id))
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	fileSize := uint64(st.Size())
	if _, err := f.Seek(int64(rng.Start), io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	// Bump both timestamps so eviction sees the entry as recently used.
	now := time.Now()
	_ = os.Chtimes(c.entryPath(id), now, now)

	return &AudioStream{
		Info:  info,
		Range: rng.Resolve(fileSize),
		Body: &limitedReadCloser{
			r: io.LimitReader(f, int64(rng.LengthLimit(fileSize))),
			c: f,
		},
	}, nil
}

// evict removes least-recently-used entries until the cache fits the
// budget. Best effort: failures only log.
func (c *Cache) evict() {
	if c.maxSize == 0 {
		return
	}

	type entry struct {
		path    string
		size    uint64
		modTime time.Time
	}
	var entries []entry
	var total uint64
	err := filepath.Walk(c.root, func(path string, fi os.FileInfo, err error) error {
		if err != nil || fi.IsDir() || strings.HasSuffix(path, cacheInfoSuffix) {
			return err
		}
		entries = append(entries, entry{path: path, size: uint64(fi.Size()), modTime: fi.ModTime()})
		total += uint64(fi.Size())
		return nil
	})
	if err != nil {
		slog.Warn("cache eviction scan failed", "err", err)
		return
	}
	if total <= c.maxSize {
		return
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.Before(entries[j].modTime) })
	for _, e := range entries {
		if total <= c.maxSize {
			break
		}
		if err := os.Remove(e.path); err != nil {
			slog.Warn("cache eviction failed", "path", e.path, "err", err)
			continue
		}
		_ = os.Remove(e.path + cacheInfoSuffix)
		total -= e.size
		slog.Debug("evicted cache entry",
			"path", e.path, "freed", humanize.Bytes(e.size))
	}
}

var _ Provider = (*Cache)(nil)
