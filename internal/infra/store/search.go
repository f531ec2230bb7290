package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/osa030/quaver/internal/domain/song"
)

// RecordSearch stores a search query, refreshing its timestamp when it
// already exists, and trims the history to the newest limit entries.
func (s *Store) RecordSearch(ctx context.Context, query string, now time.Time, limit int) error {
	if query == "" {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := searchQueryRow{Query: query, SearchedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "query"}},
			DoUpdates: clause.AssignmentColumns([]string{"searched_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}
		if limit <= 0 {
			return nil
		}
		return tx.Exec(
			"DELETE FROM search_queries WHERE id NOT IN (SELECT id FROM search_queries ORDER BY searched_at DESC, id DESC LIMIT ?)",
			limit,
		).Error
	})
	if err != nil {
		return errors.Wrapf(err, "failed to record search %q", query)
	}
	return nil
}

// SearchHistory returns queries containing filter, newest first.
// An empty filter matches everything.
func (s *Store) SearchHistory(ctx context.Context, filter string) ([]song.SearchQuery, error) {
	var rows []searchQueryRow
	if err := s.db.WithContext(ctx).
		Where("query LIKE ?", "%"+filter+"%").
		Order("searched_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list search history")
	}
	queries := make([]song.SearchQuery, len(rows))
	for i, r := range rows {
		queries[i] = song.SearchQuery{ID: r.ID, Query: r.Query, SearchedAt: r.SearchedAt}
	}
	return queries, nil
}

// DeleteSearch removes one history entry.
func (s *Store) DeleteSearch(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&searchQueryRow{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to delete search %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "failed to delete search %d", id)
	}
	return nil
}

// ClearSearchHistory removes every history entry.
func (s *Store) ClearSearchHistory(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&searchQueryRow{}).Error; err != nil {
		return errors.Wrap(err, "failed to clear search history")
	}
	return nil
}
