package memo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"memoflux/internal/analysis"
	"memoflux/internal/schedule"
)

// UpdateTaskStatus changes one task's status in both the task record and the
// memo's stored response. Record count must match the embedded task list;
// otherwise ErrTaskDrift is returned and nothing changes.
func (s *Service) UpdateTaskStatus(ctx context.Context, memoID uuid.UUID, taskID string, status analysis.Status) (*schedule.TaskRecord, error) {
	status, err := analysis.ParseStatus(string(status))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}

	var out schedule.TaskRecord
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.get(tx, memoID)
		if err != nil {
			return err
		}
		resp, err := m.Response()
		if err != nil {
			return err
		}

		tasks := resp.Tasks()
		idx := -1
		for i, t := range tasks {
			if t.ID == taskID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrTaskNotFound
		}

		store := s.Tasks.WithTx(tx)
		recs, err := store.ForMemo(ctx, memoID)
		if err != nil {
			return err
		}
		if len(recs) != len(tasks) {
			return fmt.Errorf("%w: %d records, %d tasks", ErrTaskDrift, len(recs), len(tasks))
		}

		var rec *schedule.TaskRecord
		for i := range recs {
			if recs[i].TaskID == taskID {
				rec = &recs[i]
				break
			}
		}
		if rec == nil {
			if recs[idx].Position != idx {
				return fmt.Errorf("%w: no record at position %d", ErrTaskDrift, idx)
			}
			rec = &recs[idx]
		}

		resp.Schedule.Tasks[idx].Status = status
		blob, err := analysis.Encode(resp)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEncodeResponse, err)
		}
		if err := tx.Model(&Memo{}).Where("id = ?", memoID).
			Updates(map[string]any{"response_data": blob, "updated_at": s.now()}).Error; err != nil {
			return err
		}
		if err := store.SetStatus(ctx, rec.ID, status); err != nil {
			return err
		}
		rec.Status = status
		out = *rec
		return nil
	})
	if err != nil {
		s.logFailure(err, memoID, "update task status")
		return nil, err
	}
	return &out, nil
}
