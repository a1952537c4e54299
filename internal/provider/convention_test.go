package provider

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectAnni/anni-go/internal/repodb"
	"github.com/ProjectAnni/anni-go/internal/track"
)

const (
	singleAlbumID = "65cf12dc-9717-4503-9901-848e8cd3ebff"
	multiAlbumID  = "aa11bb22-0000-4000-8000-000000000001"
)

func newRepoDB(t *testing.T) *repodb.Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repo.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE album (
			album_id     TEXT PRIMARY KEY,
			catalog      TEXT NOT NULL,
			title        TEXT NOT NULL,
			release_date TEXT NOT NULL,
			disc_count   INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO album VALUES
		(?, 'TEST-001', 'First Sounds', '2020-01-15', 1),
		(?, 'TEST-002', 'Second Wave', '2021-06-01', 2)`,
		singleAlbumID, multiAlbumID)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	rdb, err := repodb.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func newConventionFixture(t *testing.T) (afero.Fs, *Convention) {
	t.Helper()
	fs := afero.NewMemMapFs()

	single := "lib/[2020-01-15][TEST-001] First Sounds"
	writeFile(t, fs, single+"/01. Intro.flac", testFlacBytes(t, 120, 500))
	writeFile(t, fs, single+"/02. Outro.flac", testFlacBytes(t, 90, 500))
	writeFile(t, fs, single+"/cover.jpg", []byte("single-cover"))

	multi := "lib/[2021-06-01][TEST-002] Second Wave [2 Discs]"
	writeFile(t, fs, multi+"/[TEST-002] Second Wave [Disc 1]/01. One.flac", testFlacBytes(t, 60, 100))
	writeFile(t, fs, multi+"/[TEST-002] Second Wave [Disc 2]/01. Uno.flac", testFlacBytes(t, 61, 100))
	writeFile(t, fs, multi+"/[TEST-002] Second Wave [Disc 2]/cover.jpg", []byte("disc2-cover"))
	writeFile(t, fs, multi+"/cover.jpg", []byte("multi-cover"))

	// Not in the repo database: skipped on reload.
	require.NoError(t, fs.MkdirAll("lib/[2022-01-01][UNKNOWN-9] Mystery", 0o755))
	// Does not match the naming convention at all.
	require.NoError(t, fs.MkdirAll("lib/random stuff", 0o755))

	p, err := NewConvention(fs, "lib", newRepoDB(t))
	require.NoError(t, err)
	return fs, p
}

func TestConventionAlbums(t *testing.T) {
	_, p := newConventionFixture(t)

	albums, err := p.Albums(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{
		singleAlbumID: {},
		multiAlbumID:  {},
	}, albums)
}

func TestConventionGetAudioSingleDisc(t *testing.T) {
	_, p := newConventionFixture(t)
	id := track.Identifier{AlbumID: uuid.MustParse(singleAlbumID), DiscID: 1, TrackID: 2}

	stream, err := p.GetAudio(context.Background(), id, track.FullRange())
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, uint64(90), stream.Info.Duration)
	assert.Equal(t, "flac", stream.Info.Extension)
}

func TestConventionGetAudioMultiDisc(t *testing.T) {
	_, p := newConventionFixture(t)

	id := track.Identifier{AlbumID: uuid.MustParse(multiAlbumID), DiscID: 2, TrackID: 1}
	stream, err := p.GetAudio(context.Background(), id, track.FullRange())
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, uint64(61), stream.Info.Duration)

	id.DiscID = 3
	_, err = p.GetAudio(context.Background(), id, track.FullRange())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConventionGetCover(t *testing.T) {
	_, p := newConventionFixture(t)

	rc, err := p.GetCover(context.Background(), multiAlbumID, 0)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "multi-cover", string(data))

	rc, err = p.GetCover(context.Background(), multiAlbumID, 2)
	require.NoError(t, err)
	data, _ = io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "disc2-cover", string(data))
}

func TestConventionUnknownAlbum(t *testing.T) {
	_, p := newConventionFixture(t)

	id := track.Identifier{AlbumID: uuid.New(), DiscID: 1, TrackID: 1}
	_, err := p.GetAudioInfo(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.GetCover(context.Background(), uuid.NewString(), 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAlbumDirRegexp(t *testing.T) {
	tests := []struct {
		name      string
		catalog   string
		title     string
		discCount string
		match     bool
	}{
		{"[2020-01-15][TEST-001] First Sounds", "TEST-001", "First Sounds", "", true},
		{"[2021-06-01][TEST-002] Second Wave [2 Discs]", "TEST-002", "Second Wave", "2", true},
		{"[][NODATE-1] Undated", "NODATE-1", "Undated", "", true},
		{"plain directory", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := albumDirRe.FindStringSubmatch(tt.name)
			if !tt.match {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.catalog, m[1])
			assert.Equal(t, tt.title, m[2])
			assert.Equal(t, tt.discCount, m[3])
		})
	}
}
