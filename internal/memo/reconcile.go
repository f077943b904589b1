package memo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"memoflux/internal/analysis"
	"memoflux/internal/jobs"
)

// BeginProcessing marks the memo as under analysis. The previous response and
// its task records are dropped. A memo already being processed yields
// ErrAlreadyProcessing and is left unchanged.
func (s *Service) BeginProcessing(ctx context.Context, id uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.begin(ctx, tx, id)
	})
	s.logFailure(err, id, "begin processing")
	return err
}

// Enqueue is BeginProcessing plus an ANALYZE_MEMO job, committed together.
func (s *Service) Enqueue(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	var job *jobs.Job
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.begin(ctx, tx, id); err != nil {
			return err
		}
		var err error
		job, err = s.Jobs.WithTx(tx).Enqueue(ctx, jobs.TypeAnalyzeMemo, id, s.now())
		return err
	})
	s.logFailure(err, id, "enqueue analysis")
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Service) begin(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	res := tx.Model(&Memo{}).
		Where("id = ? AND is_processing = ?", id, false).
		Updates(map[string]any{
			"is_processing": true,
			"has_response":  false,
			"response_data": nil,
			"processed_at":  nil,
			"updated_at":    s.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&Memo{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrAlreadyProcessing
	}
	return s.Tasks.WithTx(tx).DeleteForMemo(ctx, id)
}

// ApplyResponse stores a successful analysis: the encoded response, the merged
// tag list, a title when the memo has none, and the materialized tasks. If the
// response cannot be encoded, for instance because a task has an unknown
// status, the memo is marked failed instead.
func (s *Service) ApplyResponse(ctx context.Context, id uuid.UUID, resp *analysis.Response) (*Memo, error) {
	blob, encErr := analysis.Encode(resp)
	if encErr == nil {
		// store exactly what a later read will see
		resp, encErr = analysis.Decode(blob)
	}
	if encErr != nil {
		if err := s.MarkFailed(ctx, id); err != nil {
			s.Log.Error().Err(err).Str("memo_id", id.String()).Msg("mark failed after encode error")
		}
		return nil, fmt.Errorf("%w: %v", ErrEncodeResponse, encErr)
	}

	var out *Memo
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.get(tx, id)
		if err != nil {
			return err
		}

		now := s.now()
		m.ResponseData = blob
		m.HasResponse = true
		m.IsProcessing = false
		m.ProcessedAt = &now
		m.Tags = toJSON(analysis.MergeTags(m.Tags, resp.AllTags()))
		if strings.TrimSpace(m.Title) == "" {
			m.Title = resp.Title()
		}
		m.UpdatedAt = now

		if err := tx.Model(&Memo{}).Where("id = ?", id).Updates(map[string]any{
			"response_data": m.ResponseData,
			"has_response":  true,
			"is_processing": false,
			"processed_at":  now,
			"tags":          m.Tags,
			"title":         m.Title,
			"updated_at":    now,
		}).Error; err != nil {
			return err
		}
		if _, err := s.Tasks.WithTx(tx).Replace(ctx, id, resp.Tasks()); err != nil {
			return err
		}
		if err := s.Tags.WithTx(tx).Sync(ctx, m.Tags); err != nil {
			return err
		}
		out = m
		return nil
	})
	s.logFailure(err, id, "apply response")
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkFailed ends processing without a response.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID) error {
	res := s.DB.WithContext(ctx).Model(&Memo{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_processing": false,
			"has_response":  false,
			"response_data": nil,
			"updated_at":    s.now(),
		})
	if res.Error != nil {
		s.logFailure(res.Error, id, "mark failed")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetStuck clears the processing flag of memos that started before cutoff
// without a pending or running job, as left behind by a crash.
func (s *Service) ResetStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	active := s.DB.Model(&jobs.Job{}).
		Select("memo_id").
		Where("type = ? AND status IN ?", jobs.TypeAnalyzeMemo, []string{jobs.StatusPending, jobs.StatusRunning})
	res := s.DB.WithContext(ctx).Model(&Memo{}).
		Where("is_processing = ? AND updated_at < ? AND id NOT IN (?)", true, cutoff, active).
		Updates(map[string]any{"is_processing": false, "updated_at": s.now()})
	return res.RowsAffected, res.Error
}

func (s *Service) logFailure(err error, id uuid.UUID, op string) {
	switch {
	case err == nil,
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyProcessing),
		errors.Is(err, ErrNoResponse),
		errors.Is(err, ErrTaskNotFound):
		return
	}
	s.Log.Error().Err(err).Str("memo_id", id.String()).Msg(op)
}
