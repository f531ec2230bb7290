// Package song provides the catalog Song and Album entities.
package song

import (
	"fmt"
	"strings"
	"time"
)

// Song represents a catalog track.
// Contains the metadata shared by every catalog source plus the local like state.
type Song struct {
	ID           string        // Catalog track ID (video ID for YouTube, track ID for Spotify)
	Title        string        // Track title
	Artists      []string      // Artist names
	AlbumID      string        // Album ID (empty if unknown)
	Album        string        // Album title
	ThumbnailURL string        // Artwork URL
	Duration     time.Duration // Track duration
	Explicit     bool          // Explicit content flag
	LikedAt      *time.Time    // Like timestamp (nil if not liked)
}

// ArtistsText returns the artists joined for display.
func (s Song) ArtistsText() string {
	return strings.Join(s.Artists, ", ")
}

// IsLiked reports whether the song carries a like timestamp.
func (s Song) IsLiked() bool {
	return s.LikedAt != nil
}

// ToggleLike returns a copy of the song with the like state flipped.
// A liked song becomes unliked; an unliked song is liked at now.
func (s Song) ToggleLike(now time.Time) Song {
	if s.LikedAt != nil {
		s.LikedAt = nil
		return s
	}
	s.LikedAt = &now
	return s
}

// Album represents a catalog album.
type Album struct {
	ID           string
	Title        string
	ThumbnailURL string
	Year         string
	AuthorsText  string
	ShareURL     string
	BookmarkedAt *time.Time // nil if not bookmarked
	Songs        []Song
}

// ToggleBookmark returns a copy of the album with the bookmark flipped.
func (a Album) ToggleBookmark(now time.Time) Album {
	if a.BookmarkedAt != nil {
		a.BookmarkedAt = nil
		return a
	}
	a.BookmarkedAt = &now
	return a
}

// TotalDuration returns the total duration of all album songs.
func (a Album) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range a.Songs {
		total += s.Duration
	}
	return total
}

// Endpoint is a watch endpoint: the seed a radio starts from.
// VideoID seeds a related-tracks radio, PlaylistID a playlist radio.
type Endpoint struct {
	VideoID    string
	PlaylistID string
	Params     string
}

// IsZero reports whether the endpoint has no seed at all.
func (e Endpoint) IsZero() bool {
	return e.VideoID == "" && e.PlaylistID == ""
}

// String returns a compact form for logging.
func (e Endpoint) String() string {
	switch {
	case e.VideoID != "" && e.PlaylistID != "":
		return fmt.Sprintf("watch:%s@%s", e.VideoID, e.PlaylistID)
	case e.PlaylistID != "":
		return "playlist:" + e.PlaylistID
	default:
		return "watch:" + e.VideoID
	}
}

// SearchQuery is a search history entry.
type SearchQuery struct {
	ID         int64
	Query      string
	SearchedAt time.Time
}

// Thumbnail returns the artwork URL resized to size pixels for hosts that
// support size suffixes. Other URLs are returned unchanged.
func Thumbnail(url string, size int) string {
	switch {
	case strings.HasPrefix(url, "https://lh3.googleusercontent.com"):
		return fmt.Sprintf("%s-w%d-h%d", url, size, size)
	case strings.HasPrefix(url, "https://yt3.ggpht.com"):
		return fmt.Sprintf("%s-w%d-h%d-s%d", url, size, size, size)
	default:
		return url
	}
}
