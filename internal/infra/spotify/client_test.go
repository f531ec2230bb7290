package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullTrackJSON = `{
	"id": "4uLU6hMCjMI75M1A2tKUQC",
	"type": "track",
	"name": "Kataomoi",
	"artists": [{"id": "a1", "name": "Aimer"}],
	"album": {
		"id": "al1",
		"name": "Daydream",
		"images": [{"url": "https://i.scdn.co/image/large", "height": 640, "width": 640}]
	},
	"duration_ms": 293000,
	"explicit": false
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return newWithBaseURL(server.Client(), server.URL+"/", "JP")
}

func TestGetTrack(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tracks/4uLU6hMCjMI75M1A2tKUQC", r.URL.Path)
		assert.Equal(t, "JP", r.URL.Query().Get("market"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, fullTrackJSON)
	})

	s, err := client.GetTrack(context.Background(), "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=x")
	require.NoError(t, err)
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC", s.ID)
	assert.Equal(t, "Kataomoi", s.Title)
	assert.Equal(t, []string{"Aimer"}, s.Artists)
	assert.Equal(t, "al1", s.AlbumID)
	assert.Equal(t, "Daydream", s.Album)
	assert.Equal(t, "https://i.scdn.co/image/large", s.ThumbnailURL)
	assert.Equal(t, 293*time.Second, s.Duration)
	assert.Nil(t, s.LikedAt)
}

func TestGetTrack_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error": {"status": 503, "message": "503 Service Unavailable"}}`)
			return
		}
		fmt.Fprint(w, fullTrackJSON)
	})

	s, err := client.GetTrack(context.Background(), "4uLU6hMCjMI75M1A2tKUQC")
	require.NoError(t, err)
	assert.Equal(t, "Kataomoi", s.Title)
	assert.Equal(t, int32(3), hits.Load())
}

func TestGetTrack_NotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": {"status": 404, "message": "non existing id"}}`)
	})

	_, err := client.GetTrack(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSearch(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "aimer", r.URL.Query().Get("q"))
		assert.Equal(t, "track", r.URL.Query().Get("type"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"tracks": {"items": [%s], "total": 1}}`, fullTrackJSON)
	})

	songs, err := client.Search(context.Background(), "aimer", 200)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "Kataomoi", songs[0].Title)

	_, err = client.Search(context.Background(), "  ", 10)
	assert.Error(t, err)
}

func TestGetAlbum(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/albums/al1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "al1",
			"name": "Daydream",
			"artists": [{"name": "Aimer"}],
			"images": [{"url": "https://i.scdn.co/image/album"}],
			"release_date": "2016-09-21",
			"release_date_precision": "day",
			"tracks": {
				"items": [
					{"id": "t1", "name": "Insane Dream", "artists": [{"name": "Aimer"}], "duration_ms": 250000},
					{"id": "t2", "name": "Kataomoi", "artists": [{"name": "Aimer"}], "duration_ms": 293000, "explicit": true}
				],
				"total": 2
			}
		}`)
	})

	album, err := client.GetAlbum(context.Background(), "spotify:album:al1")
	require.NoError(t, err)
	assert.Equal(t, "Daydream", album.Title)
	assert.Equal(t, "2016", album.Year)
	assert.Equal(t, "Aimer", album.AuthorsText)
	assert.Equal(t, "https://open.spotify.com/album/al1", album.ShareURL)
	require.Len(t, album.Songs, 2)
	assert.Equal(t, "al1", album.Songs[1].AlbumID)
	assert.Equal(t, "Daydream", album.Songs[1].Album)
	assert.Equal(t, "https://i.scdn.co/image/album", album.Songs[1].ThumbnailURL)
	assert.True(t, album.Songs[1].Explicit)
	assert.Equal(t, 543*time.Second, album.TotalDuration())
}

func TestGetRecommendations(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recommendations", r.URL.Path)
		// Only the five most recent seeds are sent
		assert.Equal(t, "s2,s3,s4,s5,s6", r.URL.Query().Get("seed_tracks"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"seeds": [],
			"tracks": [{"id": "r1", "name": "Ref:rain", "artists": [{"name": "Aimer"}], "duration_ms": 270000}]
		}`)
	})

	songs, err := client.GetRecommendations(context.Background(), []string{"s1", "s2", "s3", "s4", "s5", "s6"}, 10)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "r1", songs[0].ID)

	_, err = client.GetRecommendations(context.Background(), nil, 10)
	assert.Error(t, err)
}

func TestLoadPlaylist(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/playlists/pl1/tracks", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"items": [{"track": %s}], "total": 42}`, fullTrackJSON)
	})

	songs, total, err := client.LoadPlaylist(context.Background(), "https://open.spotify.com/playlist/pl1", 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 42, total)
	require.Len(t, songs, 1)
	assert.Equal(t, "Kataomoi", songs[0].Title)
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		kind     string
		expected string
	}{
		{name: "playlist URI", input: "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", kind: "playlist", expected: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "playlist URL", input: "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", kind: "playlist", expected: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "playlist URL with query params", input: "https://open.spotify.com/playlist/abc123?si=xyz&utm_source=copy", kind: "playlist", expected: "abc123"},
		{name: "intl track URL", input: "https://open.spotify.com/intl-ja/track/t1/", kind: "track", expected: "t1"},
		{name: "track URI", input: " spotify:track:t1 ", kind: "track", expected: "t1"},
		{name: "album URL", input: "https://open.spotify.com/album/al1?si=1", kind: "album", expected: "al1"},
		{name: "plain ID", input: "t1", kind: "track", expected: "t1"},
		{name: "empty", input: "", kind: "track", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractID(tt.input, tt.kind))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "rate limit error with 429", err: errors.New("Error 429: rate limit exceeded"), expected: true},
		{name: "server error 502", err: errors.New("502 Bad Gateway"), expected: true},
		{name: "client error 400", err: errors.New("400 Bad Request"), expected: false},
		{name: "not found error", err: errors.New("404 not found"), expected: false},
		{name: "generic error", err: errors.New("something went wrong"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

func TestReleaseYear(t *testing.T) {
	assert.Equal(t, "2016", releaseYear("2016-09-21"))
	assert.Equal(t, "1999", releaseYear("1999"))
	assert.Equal(t, "", releaseYear("99"))
}
