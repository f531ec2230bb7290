package playlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/quaver/internal/domain/song"
)

func TestPlaylist_SongIDs(t *testing.T) {
	tests := []struct {
		name     string
		songs    []song.Song
		expected []string
	}{
		{
			name:     "empty playlist",
			songs:    []song.Song{},
			expected: []string{},
		},
		{
			name: "single song",
			songs: []song.Song{
				{ID: "song-1"},
			},
			expected: []string{"song-1"},
		},
		{
			name: "multiple songs",
			songs: []song.Song{
				{ID: "song-1"},
				{ID: "song-2"},
				{ID: "song-3"},
			},
			expected: []string{"song-1", "song-2", "song-3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Playlist{
				ID:    "playlist-1",
				Songs: tt.songs,
			}

			assert.Equal(t, tt.expected, p.SongIDs())
		})
	}
}

func TestPlaylist_TotalDuration(t *testing.T) {
	tests := []struct {
		name     string
		songs    []song.Song
		expected int64
	}{
		{
			name:     "empty playlist",
			songs:    []song.Song{},
			expected: 0,
		},
		{
			name: "multiple songs",
			songs: []song.Song{
				{ID: "1", Duration: 3 * time.Minute},
				{ID: "2", Duration: 4*time.Minute + 30*time.Second},
			},
			expected: 450,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Playlist{Songs: tt.songs}
			assert.Equal(t, tt.expected, p.TotalDuration())
		})
	}
}

func TestSortPreviews(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	previews := func() []Preview {
		return []Preview{
			{ID: "1", Name: "banana", SongCount: 3, CreatedAt: base.Add(2 * time.Hour)},
			{ID: "2", Name: "Apple", SongCount: 10, CreatedAt: base},
			{ID: "3", Name: "cherry", SongCount: 1, CreatedAt: base.Add(time.Hour)},
		}
	}
	ids := func(ps []Preview) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.ID
		}
		return out
	}

	tests := []struct {
		name     string
		by       SortBy
		order    SortOrder
		expected []string
	}{
		{name: "name asc is case insensitive", by: SortByName, order: Ascending, expected: []string{"2", "1", "3"}},
		{name: "name desc", by: SortByName, order: Descending, expected: []string{"3", "1", "2"}},
		{name: "song count asc", by: SortBySongCount, order: Ascending, expected: []string{"3", "1", "2"}},
		{name: "song count desc", by: SortBySongCount, order: Descending, expected: []string{"2", "1", "3"}},
		{name: "date added asc", by: SortByDateAdded, order: Ascending, expected: []string{"2", "3", "1"}},
		{name: "date added desc", by: SortByDateAdded, order: Descending, expected: []string{"1", "3", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := previews()
			SortPreviews(ps, tt.by, tt.order)
			assert.Equal(t, tt.expected, ids(ps))
		})
	}
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, SortByName, ParseSortBy("NAME"))
	assert.Equal(t, SortBySongCount, ParseSortBy("song_count"))
	assert.Equal(t, SortByDateAdded, ParseSortBy("bogus"))
	assert.Equal(t, Ascending, ParseSortOrder("asc"))
	assert.Equal(t, Descending, ParseSortOrder(""))
}
