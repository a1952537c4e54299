package provider

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/spf13/afero"

	"github.com/ProjectAnni/anni-go/internal/track"
)

// NoCacheStrict serves the same sharded layout as Strict but never caches
// the album set: every Albums call re-walks the tree. Intended for
// workspaces where albums appear and disappear between requests. Empty
// album directories are not reported; a workspace may pre-create them
// before any track lands.
type NoCacheStrict struct {
	fs    afero.Fs
	root  string
	layer int
}

func NewNoCacheStrict(fs afero.Fs, root string, layer int) *NoCacheStrict {
	return &NoCacheStrict{fs: fs, root: root, layer: layer}
}

func (p *NoCacheStrict) Albums(_ context.Context) (map[string]struct{}, error) {
	albums := make(map[string]struct{})
	err := walkAlbumDirs(p.fs, p.root, p.layer, func(albumID, dir string) {
		entries, err := afero.ReadDir(p.fs, dir)
		if err != nil || len(entries) == 0 {
			return
		}
		albums[albumID] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	return albums, nil
}

func (p *NoCacheStrict) HasAlbum(ctx context.Context, albumID string) bool {
	return HasAlbum(ctx, p, albumID)
}

func (p *NoCacheStrict) trackPath(id track.Identifier) (string, error) {
	discDir := path.Join(
		shardedAlbumPath(p.root, id.AlbumID.String(), p.layer),
		strconv.Itoa(int(id.DiscID)),
	)
	return findByPrefix(p.fs, discDir, fmt.Sprintf("%d.", id.TrackID))
}

func (p *NoCacheStrict) GetAudioInfo(_ context.Context, id track.Identifier) (AudioInfo, error) {
	file, err := p.trackPath(id)
	if err != nil {
		return AudioInfo{}, err
	}
	return statAudioFile(p.fs, file)
}

func (p *NoCacheStrict) GetAudio(_ context.Context, id track.Identifier, rng track.Range) (*AudioStream, error) {
	file, err := p.trackPath(id)
	if err != nil {
		return nil, err
	}
	return openAudioFile(p.fs, file, rng)
}

func (p *NoCacheStrict) GetCover(_ context.Context, albumID string, discID uint8) (io.ReadCloser, error) {
	dir := shardedAlbumPath(p.root, albumID, p.layer)
	if discID > 0 {
		dir = path.Join(dir, strconv.Itoa(int(discID)))
	}
	return openCoverFile(p.fs, path.Join(dir, "cover.jpg"))
}

func (p *NoCacheStrict) Reload(_ context.Context) error {
	// Nothing cached, nothing to refresh.
	return nil
}

var _ Provider = (*NoCacheStrict)(nil)
