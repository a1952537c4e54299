package provider

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/ProjectAnni/anni-go/internal/track"
)

type prioritized struct {
	provider Provider
	priority int
}

// Multiple fans requests across an ordered list of providers. Higher
// priority wins; order of insertion breaks ties. A request routes to the
// first provider owning the album.
type Multiple struct {
	children []prioritized
}

// NewMultiple builds an empty composite. Add children with Insert.
func NewMultiple() *Multiple {
	return &Multiple{}
}

// Insert adds a provider at the given priority.
func (m *Multiple) Insert(p Provider, priority int) {
	m.children = append(m.children, prioritized{provider: p, priority: priority})
	sort.SliceStable(m.children, func(i, j int) bool {
		return m.children[i].priority > m.children[j].priority
	})
}

// Len returns the number of children.
func (m *Multiple) Len() int {
	return len(m.children)
}

func (m *Multiple) Albums(ctx context.Context) (map[string]struct{}, error) {
	albums := make(map[string]struct{})
	for _, child := range m.children {
		childAlbums, err := child.provider.Albums(ctx)
		if err != nil {
			return nil, err
		}
		for id := range childAlbums {
			albums[id] = struct{}{}
		}
	}
	return albums, nil
}

func (m *Multiple) HasAlbum(ctx context.Context, albumID string) bool {
	for _, child := range m.children {
		if child.provider.HasAlbum(ctx, albumID) {
			return true
		}
	}
	return false
}

// route returns the first provider owning the album, in priority order.
func (m *Multiple) route(ctx context.Context, albumID string) (Provider, error) {
	for _, child := range m.children {
		if child.provider.HasAlbum(ctx, albumID) {
			return child.provider, nil
		}
	}
	return nil, fmt.Errorf("%w: album %s", ErrNotFound, albumID)
}

func (m *Multiple) GetAudioInfo(ctx context.Context, id track.Identifier) (AudioInfo, error) {
	p, err := m.route(ctx, id.AlbumID.String())
	if err != nil {
		return AudioInfo{}, err
	}
	return p.GetAudioInfo(ctx, id)
}

func (m *Multiple) GetAudio(ctx context.Context, id track.Identifier, rng track.Range) (*AudioStream, error) {
	p, err := m.route(ctx, id.AlbumID.String())
	if err != nil {
		return nil, err
	}
	return p.GetAudio(ctx, id, rng)
}

func (m *Multiple) GetCover(ctx context.Context, albumID string, discID uint8) (io.ReadCloser, error) {
	p, err := m.route(ctx, albumID)
	if err != nil {
		return nil, err
	}
	return p.GetCover(ctx, albumID, discID)
}

// Reload reloads every child. All children are attempted; the first error
// observed is returned.
func (m *Multiple) Reload(ctx context.Context) error {
	var firstErr error
	for _, child := range m.children {
		if err := child.provider.Reload(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Provider = (*Multiple)(nil)
