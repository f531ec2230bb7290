package store

import (
	"time"

	"github.com/osa030/quaver/internal/domain/media"
	"github.com/osa030/quaver/internal/domain/song"
)

type songRow struct {
	ID           string   `gorm:"primaryKey"`
	Title        string   `gorm:"not null"`
	Artists      []string `gorm:"serializer:json"`
	AlbumID      string   `gorm:"index"`
	Album        string
	ThumbnailURL string
	DurationMs   int64
	Explicit     bool
	LikedAt      *time.Time `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (songRow) TableName() string { return "songs" }

func newSongRow(s song.Song) songRow {
	return songRow{
		ID:           s.ID,
		Title:        s.Title,
		Artists:      s.Artists,
		AlbumID:      s.AlbumID,
		Album:        s.Album,
		ThumbnailURL: s.ThumbnailURL,
		DurationMs:   s.Duration.Milliseconds(),
		Explicit:     s.Explicit,
		LikedAt:      s.LikedAt,
	}
}

func (r songRow) toSong() song.Song {
	return song.Song{
		ID:           r.ID,
		Title:        r.Title,
		Artists:      r.Artists,
		AlbumID:      r.AlbumID,
		Album:        r.Album,
		ThumbnailURL: r.ThumbnailURL,
		Duration:     time.Duration(r.DurationMs) * time.Millisecond,
		Explicit:     r.Explicit,
		LikedAt:      r.LikedAt,
	}
}

// Columns refreshed from the catalog on upsert. liked_at is owned by the store.
var songMetadataColumns = []string{"title", "artists", "album_id", "album", "thumbnail_url", "duration_ms", "explicit", "updated_at"}

type albumRow struct {
	ID           string `gorm:"primaryKey"`
	Title        string
	ThumbnailURL string
	Year         string
	AuthorsText  string
	ShareURL     string
	BookmarkedAt *time.Time `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (albumRow) TableName() string { return "albums" }

func newAlbumRow(a song.Album) albumRow {
	return albumRow{
		ID:           a.ID,
		Title:        a.Title,
		ThumbnailURL: a.ThumbnailURL,
		Year:         a.Year,
		AuthorsText:  a.AuthorsText,
		ShareURL:     a.ShareURL,
		BookmarkedAt: a.BookmarkedAt,
	}
}

func (r albumRow) toAlbum() song.Album {
	return song.Album{
		ID:           r.ID,
		Title:        r.Title,
		ThumbnailURL: r.ThumbnailURL,
		Year:         r.Year,
		AuthorsText:  r.AuthorsText,
		ShareURL:     r.ShareURL,
		BookmarkedAt: r.BookmarkedAt,
	}
}

var albumMetadataColumns = []string{"title", "thumbnail_url", "year", "authors_text", "share_url", "updated_at"}

type playlistRow struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Name      string `gorm:"not null"`
	BrowseID  string
	CreatedAt time.Time
}

func (playlistRow) TableName() string { return "playlists" }

type playlistSongRow struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	PlaylistID string `gorm:"type:varchar(36);index:idx_playlist_position,priority:1"`
	SongID     string `gorm:"index"`
	Position   int    `gorm:"index:idx_playlist_position,priority:2"`
}

func (playlistSongRow) TableName() string { return "playlist_songs" }

type searchQueryRow struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Query      string    `gorm:"uniqueIndex;not null"`
	SearchedAt time.Time `gorm:"index"`
}

func (searchQueryRow) TableName() string { return "search_queries" }

type queuedItemRow struct {
	Position   int    `gorm:"primaryKey;autoIncrement:false"`
	ItemID     string `gorm:"not null"`
	Title      string
	Artists    []string `gorm:"serializer:json"`
	AlbumID    string
	Album      string
	ArtworkURL string
	DurationMs int64
	Explicit   bool
	Source     string
	AddedAt    time.Time
}

func (queuedItemRow) TableName() string { return "queued_items" }

func newQueuedItemRow(pos int, it media.Item) queuedItemRow {
	return queuedItemRow{
		Position:   pos,
		ItemID:     it.ID,
		Title:      it.Title,
		Artists:    it.Artists,
		AlbumID:    it.AlbumID,
		Album:      it.Album,
		ArtworkURL: it.ArtworkURL,
		DurationMs: it.Duration.Milliseconds(),
		Explicit:   it.Explicit,
		Source:     string(it.Source),
		AddedAt:    it.AddedAt,
	}
}

func (r queuedItemRow) toItem() media.Item {
	return media.Item{
		ID:         r.ItemID,
		Title:      r.Title,
		Artists:    r.Artists,
		AlbumID:    r.AlbumID,
		Album:      r.Album,
		ArtworkURL: r.ArtworkURL,
		Duration:   time.Duration(r.DurationMs) * time.Millisecond,
		Explicit:   r.Explicit,
		Source:     media.Source(r.Source),
		AddedAt:    r.AddedAt,
	}
}

// queueStateRow is a singleton row (ID 1) holding the saved cursor.
type queueStateRow struct {
	ID         uint `gorm:"primaryKey"`
	Index      int
	PositionMs int64
	UpdatedAt  time.Time
}

func (queueStateRow) TableName() string { return "queue_state" }
