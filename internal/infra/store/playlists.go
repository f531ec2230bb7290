package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/osa030/quaver/internal/domain/playlist"
	"github.com/osa030/quaver/internal/domain/song"
)

// CreatePlaylist creates an empty playlist.
func (s *Store) CreatePlaylist(ctx context.Context, name, browseID string, now time.Time) (*playlist.Playlist, error) {
	if name == "" {
		return nil, errors.New("playlist name is required")
	}
	row := playlistRow{
		ID:        uuid.NewString(),
		Name:      name,
		BrowseID:  browseID,
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to create playlist %s", name)
	}
	return &playlist.Playlist{ID: row.ID, Name: row.Name, BrowseID: row.BrowseID, CreatedAt: row.CreatedAt}, nil
}

// AddToPlaylist appends songs to a playlist, storing the songs as needed.
func (s *Store) AddToPlaylist(ctx context.Context, playlistID string, songs ...song.Song) error {
	if len(songs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&playlistRow{}).Where("id = ?", playlistID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}

		var next struct{ Max *int }
		if err := tx.Model(&playlistSongRow{}).Select("MAX(position) AS max").
			Where("playlist_id = ?", playlistID).Scan(&next).Error; err != nil {
			return err
		}
		pos := 0
		if next.Max != nil {
			pos = *next.Max + 1
		}

		rows := make([]playlistSongRow, 0, len(songs))
		for _, sg := range songs {
			if err := upsertSong(tx, sg); err != nil {
				return err
			}
			rows = append(rows, playlistSongRow{PlaylistID: playlistID, SongID: sg.ID, Position: pos})
			pos++
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return errors.Wrapf(err, "failed to add songs to playlist %s", playlistID)
	}
	return nil
}

// GetPlaylist returns a playlist with its songs in order.
func (s *Store) GetPlaylist(ctx context.Context, id string) (*playlist.Playlist, error) {
	db := s.db.WithContext(ctx)

	var row playlistRow
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, errors.Wrapf(notFound(err), "failed to get playlist %s", id)
	}

	var songRows []songRow
	if err := db.Select("songs.*").
		Joins("JOIN playlist_songs ON playlist_songs.song_id = songs.id").
		Where("playlist_songs.playlist_id = ?", id).
		Order("playlist_songs.position").
		Find(&songRows).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to get songs of playlist %s", id)
	}

	p := &playlist.Playlist{
		ID:        row.ID,
		Name:      row.Name,
		BrowseID:  row.BrowseID,
		CreatedAt: row.CreatedAt,
		Songs:     make([]song.Song, len(songRows)),
	}
	for i, r := range songRows {
		p.Songs[i] = r.toSong()
	}
	return p, nil
}

// PlaylistPreviews lists playlists with their song counts.
func (s *Store) PlaylistPreviews(ctx context.Context, by playlist.SortBy, order playlist.SortOrder) ([]playlist.Preview, error) {
	var rows []playlistRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list playlists")
	}

	var counts []struct {
		PlaylistID string
		SongCount  int
	}
	if err := s.db.WithContext(ctx).Model(&playlistSongRow{}).
		Select("playlist_id, COUNT(*) AS song_count").
		Group("playlist_id").
		Scan(&counts).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count playlist songs")
	}
	countByID := make(map[string]int, len(counts))
	for _, c := range counts {
		countByID[c.PlaylistID] = c.SongCount
	}

	previews := make([]playlist.Preview, len(rows))
	for i, r := range rows {
		previews[i] = playlist.Preview{
			ID:        r.ID,
			Name:      r.Name,
			BrowseID:  r.BrowseID,
			CreatedAt: r.CreatedAt,
			SongCount: countByID[r.ID],
		}
	}
	playlist.SortPreviews(previews, by, order)
	return previews, nil
}

// DeletePlaylist removes a playlist and its entries. Songs are kept.
func (s *Store) DeletePlaylist(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", id).Delete(&playlistSongRow{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&playlistRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to delete playlist %s", id)
	}
	return nil
}
