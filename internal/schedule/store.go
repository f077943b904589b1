// Package schedule persists the task entries of schedule reports as
// individually queryable records.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"memoflux/internal/analysis"
)

type Store struct {
	DB  *gorm.DB
	Log zerolog.Logger
}

func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{DB: db, Log: log}
}

// WithTx returns a store bound to tx.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{DB: tx, Log: s.Log}
}

// Replace drops every record of the memo and inserts one per task, in order.
func (s *Store) Replace(ctx context.Context, memoID uuid.UUID, tasks []analysis.Task) ([]TaskRecord, error) {
	recs := make([]TaskRecord, 0, len(tasks))
	seen := make(map[string]int, len(tasks))
	for i, t := range tasks {
		rec := recordFrom(memoID, i, t)
		if prev, dup := seen[rec.TaskID]; dup {
			s.Log.Warn().
				Str("memo_id", memoID.String()).
				Str("task_id", rec.TaskID).
				Int("position", i).
				Int("first_position", prev).
				Msg("task id collision")
		} else {
			seen[rec.TaskID] = i
		}
		recs = append(recs, rec)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("memo_id = ?", memoID).Delete(&TaskRecord{}).Error; err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		if len(recs) == 0 {
			return nil
		}
		if err := tx.Create(&recs).Error; err != nil {
			return fmt.Errorf("insert tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *Store) DeleteForMemo(ctx context.Context, memoID uuid.UUID) error {
	return s.DB.WithContext(ctx).Where("memo_id = ?", memoID).Delete(&TaskRecord{}).Error
}

// ForMemo returns the memo's records ordered by position.
func (s *Store) ForMemo(ctx context.Context, memoID uuid.UUID) ([]TaskRecord, error) {
	var out []TaskRecord
	err := s.DB.WithContext(ctx).
		Where("memo_id = ?", memoID).
		Order("position asc").
		Find(&out).Error
	return out, err
}

// CountForMemo is the number of records of the memo.
func (s *Store) CountForMemo(ctx context.Context, memoID uuid.UUID) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&TaskRecord{}).Where("memo_id = ?", memoID).Count(&n).Error
	return n, err
}

// OnDate returns tasks starting on the calendar day of day, in day's location.
func (s *Store) OnDate(ctx context.Context, day time.Time, pendingOnly bool) ([]TaskRecord, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	q := s.DB.WithContext(ctx).
		Where("start_at >= ? AND start_at < ?", start.UTC(), end.UTC())
	if pendingOnly {
		q = q.Where("status = ?", analysis.StatusPending)
	}

	var out []TaskRecord
	err := q.Order("start_at asc").Order("position asc").Find(&out).Error
	return out, err
}

// SetStatus updates one record.
func (s *Store) SetStatus(ctx context.Context, id uint64, status analysis.Status) error {
	res := s.DB.WithContext(ctx).Model(&TaskRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
