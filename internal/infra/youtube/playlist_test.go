package youtube

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeFetch(calls *int, entries []entry, err error) fetchFunc {
	return func(ctx context.Context, playlistID string) ([]entry, error) {
		*calls++
		return entries, err
	}
}

func TestLoadPlaylist_Pages(t *testing.T) {
	var calls int
	loader := newPlaylistLoader(Config{}, fakeFetch(&calls, []entry{
		{VideoID: "v1", Title: "One"},
		{VideoID: "", Title: "[Private video]"},
		{VideoID: "v2", Title: "Two"},
		{VideoID: "v3", Title: "Three"},
	}, nil))
	ctx := context.Background()

	tests := []struct {
		name   string
		offset int
		limit  int
		ids    []string
	}{
		{name: "first page", offset: 0, limit: 2, ids: []string{"v1", "v2"}},
		{name: "last page", offset: 2, limit: 2, ids: []string{"v3"}},
		{name: "past the end", offset: 5, limit: 2, ids: []string{}},
		{name: "no limit", offset: 1, limit: 0, ids: []string{"v2", "v3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			songs, total, err := loader.LoadPlaylist(ctx, "https://music.youtube.com/playlist?list=PL1", tt.offset, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, 3, total)
			ids := make([]string, 0, len(songs))
			for _, s := range songs {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
	assert.Equal(t, 1, calls, "playlist should be fetched once and served from cache")
}

func TestLoadPlaylist_CacheExpires(t *testing.T) {
	var calls int
	loader := newPlaylistLoader(Config{CacheTTL: time.Minute}, fakeFetch(&calls, []entry{{VideoID: "v1", Title: "One"}}, nil))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	loader.now = func() time.Time { return now }

	songs, _, err := loader.LoadPlaylist(context.Background(), "PL1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "https://i.ytimg.com/vi/v1/hqdefault.jpg", songs[0].ThumbnailURL)

	now = now.Add(2 * time.Minute)
	_, _, err = loader.LoadPlaylist(context.Background(), "PL1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestLoadPlaylist_Errors(t *testing.T) {
	var calls int
	loader := newPlaylistLoader(Config{}, fakeFetch(&calls, nil, errors.New("boom")))

	_, _, err := loader.LoadPlaylist(context.Background(), "PL1", 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, _, err = loader.LoadPlaylist(context.Background(), "  ", 0, 10)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "https://www.youtube.com/playlist?list=PLabc", expected: "PLabc"},
		{input: "https://www.youtube.com/watch?v=xyz&list=RDxyz&index=2", expected: "RDxyz"},
		{input: "PLabc", expected: "PLabc"},
		{input: "", expected: ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractPlaylistID(tt.input))
		})
	}
}
