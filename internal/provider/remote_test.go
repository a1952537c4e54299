package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectAnni/anni-go/internal/track"
)

func TestRemoteGetAudio(t *testing.T) {
	albumID := "65cf12dc-9717-4503-9901-848e8cd3ebff"
	var gotAuth, gotQuality, gotRange string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/"+albumID+"/1/8", r.URL.Path)
		gotAuth = r.URL.Query().Get("auth")
		gotQuality = r.URL.Query().Get("quality")
		gotRange = r.Header.Get("Range")

		w.Header().Set("X-Origin-Size", "44100")
		w.Header().Set("X-Duration-Seconds", "1")
		w.Header().Set("Content-Type", "audio/flac")
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	p := NewRemote(srv.URL, "token")
	id := track.Identifier{AlbumID: uuid.MustParse(albumID), DiscID: 1, TrackID: 8}

	stream, err := p.GetAudio(context.Background(), id, track.FullRange())
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, "token", gotAuth)
	assert.Equal(t, "lossless", gotQuality)
	assert.Empty(t, gotRange)

	assert.Equal(t, AudioInfo{Extension: "flac", Size: 44100, Duration: 1}, stream.Info)
	assert.Equal(t, int64(44100), stream.Range.Total)
	assert.Equal(t, int64(44099), stream.Range.End)

	body, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(body))
}

func TestRemoteGetAudioRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=100-199", r.Header.Get("Range"))
		w.Header().Set("Content-Type", "audio/flac")
		w.Header().Set("X-Origin-Size", "1000")
		w.Header().Set("Content-Range", "bytes 100-199/1000")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	p := NewRemote(srv.URL, "token")
	id := track.Identifier{AlbumID: uuid.New(), DiscID: 1, TrackID: 1}

	stream, err := p.GetAudio(context.Background(), id, track.Range{Start: 100, End: 199, Total: -1})
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, track.Range{Start: 100, End: 199, Total: 1000}, stream.Range)
}

func TestRemoteAlbums(t *testing.T) {
	ids := []string{"65cf12dc-9717-4503-9901-848e8cd3ebff", "aa11bb22-0000-4000-8000-000000000001"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/albums", r.URL.Path)
		assert.Equal(t, "token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(ids)
	}))
	defer srv.Close()

	p := NewRemote(srv.URL, "token")
	albums, err := p.Albums(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{ids[0]: {}, ids[1]: {}}, albums)
}

func TestRemoteGetCoverPaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte("jpeg"))
	}))
	defer srv.Close()

	p := NewRemote(srv.URL, "token")
	albumID := uuid.NewString()

	rc, err := p.GetCover(context.Background(), albumID, 0)
	require.NoError(t, err)
	rc.Close()
	rc, err = p.GetCover(context.Background(), albumID, 2)
	require.NoError(t, err)
	rc.Close()

	assert.Equal(t, []string{"/" + albumID + "/cover", "/" + albumID + "/2/cover"}, paths)
}

func TestRemoteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/albums":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewRemote(srv.URL, "token")

	_, err := p.Albums(context.Background())
	require.ErrorIs(t, err, ErrRequest)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)

	id := track.Identifier{AlbumID: uuid.New(), DiscID: 1, TrackID: 1}
	_, err = p.GetAudio(context.Background(), id, track.FullRange())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoteReloadIsNoOp(t *testing.T) {
	p := NewRemote("http://unreachable.invalid", "token")
	assert.NoError(t, p.Reload(context.Background()))
}
