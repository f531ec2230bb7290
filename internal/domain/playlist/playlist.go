// Package playlist provides the Playlist domain entity.
package playlist

import (
	"sort"
	"strings"
	"time"

	"github.com/osa030/quaver/internal/domain/song"
)

// Playlist represents a local playlist or a loaded remote one.
type Playlist struct {
	ID        string      // Local playlist ID (UUID)
	Name      string      // Playlist name
	BrowseID  string      // Remote playlist ID (empty for purely local playlists)
	CreatedAt time.Time   // Creation time
	Songs     []song.Song // Songs in playlist order
}

// SongIDs returns all song IDs in the playlist.
func (p *Playlist) SongIDs() []string {
	ids := make([]string, len(p.Songs))
	for i, s := range p.Songs {
		ids[i] = s.ID
	}
	return ids
}

// TotalDuration returns the total duration of all songs in seconds.
func (p *Playlist) TotalDuration() int64 {
	var total int64
	for _, s := range p.Songs {
		total += int64(s.Duration.Seconds())
	}
	return total
}

// Preview is the list form of a playlist.
type Preview struct {
	ID        string
	Name      string
	BrowseID  string
	CreatedAt time.Time
	SongCount int
}

// SortBy represents the preview sort key.
type SortBy string

const (
	SortByName      SortBy = "name"
	SortBySongCount SortBy = "song_count"
	SortByDateAdded SortBy = "date_added"
)

// SortOrder represents the sort direction.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// ParseSortBy parses a sort key, falling back to date added.
func ParseSortBy(s string) SortBy {
	switch SortBy(strings.ToLower(s)) {
	case SortByName:
		return SortByName
	case SortBySongCount:
		return SortBySongCount
	default:
		return SortByDateAdded
	}
}

// ParseSortOrder parses a sort order, falling back to descending.
func ParseSortOrder(s string) SortOrder {
	if SortOrder(strings.ToLower(s)) == Ascending {
		return Ascending
	}
	return Descending
}

// SortPreviews sorts previews in place. Ties keep their relative order.
func SortPreviews(previews []Preview, by SortBy, order SortOrder) {
	less := func(a, b Preview) bool {
		switch by {
		case SortByName:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case SortBySongCount:
			return a.SongCount < b.SongCount
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(previews, func(i, j int) bool {
		if order == Descending {
			return less(previews[j], previews[i])
		}
		return less(previews[i], previews[j])
	})
}
