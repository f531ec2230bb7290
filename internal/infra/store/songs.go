package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/osa030/quaver/internal/domain/song"
)

// UpsertSong inserts a song or refreshes its catalog metadata.
// The stored like state is never overwritten.
func (s *Store) UpsertSong(ctx context.Context, sg song.Song) error {
	if err := upsertSong(s.db.WithContext(ctx), sg); err != nil {
		return errors.Wrapf(err, "failed to upsert song %s", sg.ID)
	}
	return nil
}

func upsertSong(tx *gorm.DB, sg song.Song) error {
	if sg.ID == "" {
		return errors.New("song ID is required")
	}
	row := newSongRow(sg)
	row.LikedAt = nil
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(songMetadataColumns),
	}).Create(&row).Error
}

// GetSong returns a stored song.
func (s *Store) GetSong(ctx context.Context, id string) (*song.Song, error) {
	var row songRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, errors.Wrapf(notFound(err), "failed to get song %s", id)
	}
	sg := row.toSong()
	return &sg, nil
}

// LikedAt returns the like timestamp of a song, nil when the song is unknown
// or not liked.
func (s *Store) LikedAt(ctx context.Context, id string) (*time.Time, error) {
	var row songRow
	err := s.db.WithContext(ctx).Select("liked_at").Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get like state of %s", id)
	}
	return row.LikedAt, nil
}

// ToggleLike flips the like state of a song in one transaction: the song is
// upserted, liked_at is flipped in place, and the stored value is returned.
// Concurrent toggles serialize; each one flips the state it finds.
func (s *Store) ToggleLike(ctx context.Context, sg song.Song, now time.Time) (*time.Time, error) {
	var likedAt *time.Time
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertSong(tx, sg); err != nil {
			return err
		}
		if err := tx.Model(&songRow{}).Where("id = ?", sg.ID).
			Update("liked_at", gorm.Expr("CASE WHEN liked_at IS NULL THEN ? ELSE NULL END", now)).Error; err != nil {
			return err
		}
		var row songRow
		if err := tx.Select("liked_at").Where("id = ?", sg.ID).Take(&row).Error; err != nil {
			return err
		}
		likedAt = row.LikedAt
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to toggle like of %s", sg.ID)
	}
	return likedAt, nil
}

// LikedSongs returns liked songs, most recently liked first.
func (s *Store) LikedSongs(ctx context.Context) ([]song.Song, error) {
	var rows []songRow
	if err := s.db.WithContext(ctx).Where("liked_at IS NOT NULL").Order("liked_at DESC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list liked songs")
	}
	songs := make([]song.Song, len(rows))
	for i, r := range rows {
		songs[i] = r.toSong()
	}
	return songs, nil
}

// UpsertAlbum inserts an album or refreshes its metadata, keeping the bookmark.
func (s *Store) UpsertAlbum(ctx context.Context, a song.Album) error {
	if err := upsertAlbum(s.db.WithContext(ctx), a); err != nil {
		return errors.Wrapf(err, "failed to upsert album %s", a.ID)
	}
	return nil
}

func upsertAlbum(tx *gorm.DB, a song.Album) error {
	if a.ID == "" {
		return errors.New("album ID is required")
	}
	row := newAlbumRow(a)
	row.BookmarkedAt = nil
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(albumMetadataColumns),
	}).Create(&row).Error
}

// GetAlbum returns a stored album without its songs.
func (s *Store) GetAlbum(ctx context.Context, id string) (*song.Album, error) {
	var row albumRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, errors.Wrapf(notFound(err), "failed to get album %s", id)
	}
	a := row.toAlbum()
	return &a, nil
}

// ToggleBookmark flips the bookmark of an album with the same guarantees as
// ToggleLike.
func (s *Store) ToggleBookmark(ctx context.Context, a song.Album, now time.Time) (*time.Time, error) {
	var bookmarkedAt *time.Time
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertAlbum(tx, a); err != nil {
			return err
		}
		if err := tx.Model(&albumRow{}).Where("id = ?", a.ID).
			Update("bookmarked_at", gorm.Expr("CASE WHEN bookmarked_at IS NULL THEN ? ELSE NULL END", now)).Error; err != nil {
			return err
		}
		var row albumRow
		if err := tx.Select("bookmarked_at").Where("id = ?", a.ID).Take(&row).Error; err != nil {
			return err
		}
		bookmarkedAt = row.BookmarkedAt
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to toggle bookmark of %s", a.ID)
	}
	return bookmarkedAt, nil
}

// BookmarkedAlbums returns bookmarked albums, most recent first.
func (s *Store) BookmarkedAlbums(ctx context.Context) ([]song.Album, error) {
	var rows []albumRow
	if err := s.db.WithContext(ctx).Where("bookmarked_at IS NOT NULL").Order("bookmarked_at DESC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list bookmarked albums")
	}
	albums := make([]song.Album, len(rows))
	for i, r := range rows {
		albums[i] = r.toAlbum()
	}
	return albums, nil
}
