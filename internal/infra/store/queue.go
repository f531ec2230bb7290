package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"

	"github.com/osa030/quaver/internal/domain/media"
)

const queueStateID = 1

// SavedQueue is a persisted queue with its cursor.
type SavedQueue struct {
	Items    []media.Item
	Index    int
	Position time.Duration
}

// SaveQueue replaces the persisted queue.
func (s *Store) SaveQueue(ctx context.Context, q SavedQueue) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&queuedItemRow{}).Error; err != nil {
			return err
		}
		if len(q.Items) > 0 {
			rows := make([]queuedItemRow, len(q.Items))
			for i, it := range q.Items {
				rows[i] = newQueuedItemRow(i, it)
			}
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return err
			}
		}
		state := queueStateRow{ID: queueStateID, Index: q.Index, PositionMs: q.Position.Milliseconds()}
		return tx.Save(&state).Error
	})
	if err != nil {
		return errors.Wrap(err, "failed to save queue")
	}
	return nil
}

// LoadQueue returns the persisted queue, or ErrNotFound when nothing was
// saved or the saved queue is empty.
func (s *Store) LoadQueue(ctx context.Context) (*SavedQueue, error) {
	db := s.db.WithContext(ctx)

	var state queueStateRow
	if err := db.Where("id = ?", queueStateID).Take(&state).Error; err != nil {
		return nil, errors.Wrap(notFound(err), "failed to load queue state")
	}

	var rows []queuedItemRow
	if err := db.Order("position").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load queue items")
	}
	if len(rows) == 0 {
		return nil, errors.Wrap(ErrNotFound, "saved queue is empty")
	}

	q := &SavedQueue{
		Items:    make([]media.Item, len(rows)),
		Index:    state.Index,
		Position: time.Duration(state.PositionMs) * time.Millisecond,
	}
	for i, r := range rows {
		q.Items[i] = r.toItem()
	}
	if q.Index < 0 || q.Index >= len(q.Items) {
		q.Index = 0
		q.Position = 0
	}
	return q, nil
}
