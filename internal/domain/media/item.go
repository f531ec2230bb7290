// Package media provides the player-consumable queue entry and the adapter
// that builds it from catalog songs.
package media

import (
	"math/rand/v2"
	"time"

	"github.com/osa030/quaver/internal/domain/song"
)

// Source represents how an item entered the queue.
type Source string

const (
	SourceUser     Source = "USER"     // Added by the user (album, playlist, search)
	SourceRadio    Source = "RADIO"    // Appended by a radio session
	SourceRestored Source = "RESTORED" // Restored from a persisted queue
)

// Item is a player-consumable media descriptor (queue entry).
type Item struct {
	ID         string        // Catalog track ID
	Title      string        // Display title
	Artists    []string      // Artist names
	AlbumID    string        // Album ID (empty if unknown)
	Album      string        // Album title
	ArtworkURL string        // Artwork URL
	Duration   time.Duration // Track duration
	Explicit   bool          // Explicit content flag
	Source     Source        // Source of insertion
	AddedAt    time.Time     // Time when added to the queue (zero until queued)
}

// FromSong converts a song into a queue entry.
// The mapping is pure: the like state is not carried and AddedAt stays zero.
func FromSong(s song.Song) Item {
	var artists []string
	if len(s.Artists) > 0 {
		artists = make([]string, len(s.Artists))
		copy(artists, s.Artists)
	}
	return Item{
		ID:         s.ID,
		Title:      s.Title,
		Artists:    artists,
		AlbumID:    s.AlbumID,
		Album:      s.Album,
		ArtworkURL: s.ThumbnailURL,
		Duration:   s.Duration,
		Explicit:   s.Explicit,
		Source:     SourceUser,
	}
}

// FromSongs converts songs into queue entries, keeping their order.
func FromSongs(songs []song.Song) []Item {
	items := make([]Item, len(songs))
	for i, s := range songs {
		items[i] = FromSong(s)
	}
	return items
}

// FromAlbum converts the album songs into queue entries.
// Album metadata fills in what the track listing leaves empty.
func FromAlbum(a song.Album) []Item {
	items := FromSongs(a.Songs)
	for i := range items {
		if items[i].AlbumID == "" {
			items[i].AlbumID = a.ID
		}
		if items[i].Album == "" {
			items[i].Album = a.Title
		}
		if items[i].ArtworkURL == "" {
			items[i].ArtworkURL = a.ThumbnailURL
		}
	}
	return items
}

// ToSong converts the item back into a song record for persistence.
func (i Item) ToSong() song.Song {
	var artists []string
	if len(i.Artists) > 0 {
		artists = make([]string, len(i.Artists))
		copy(artists, i.Artists)
	}
	return song.Song{
		ID:           i.ID,
		Title:        i.Title,
		Artists:      artists,
		AlbumID:      i.AlbumID,
		Album:        i.Album,
		ThumbnailURL: i.ArtworkURL,
		Duration:     i.Duration,
		Explicit:     i.Explicit,
	}
}

// WithSource returns a copy of the item tagged with src.
func (i Item) WithSource(src Source) Item {
	i.Source = src
	return i
}

// WithSource returns copies of items tagged with src.
func WithSource(items []Item, src Source) []Item {
	result := make([]Item, len(items))
	for i, it := range items {
		result[i] = it.WithSource(src)
	}
	return result
}

// Stamp returns copies of items with AddedAt set to at where it is unset.
func Stamp(items []Item, at time.Time) []Item {
	result := make([]Item, len(items))
	for i, it := range items {
		if it.AddedAt.IsZero() {
			it.AddedAt = at
		}
		result[i] = it
	}
	return result
}

// IDs returns the item IDs in order.
func IDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// Shuffle returns a shuffled copy of items. The input slice is not modified.
// The caller owns the random source so that shuffles can be reproduced.
func Shuffle(items []Item, rng *rand.Rand) []Item {
	result := make([]Item, len(items))
	copy(result, items)
	rng.Shuffle(len(result), func(i, j int) {
		result[i], result[j] = result[j], result[i]
	})
	return result
}
