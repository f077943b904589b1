package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// stuckAfter is how long a RUNNING job may hold its lock before it is requeued.
const stuckAfter = 5 * time.Minute

type Repo struct {
	DB  *gorm.DB
	Now func() time.Time
}

// now is UTC so stored timestamps compare correctly as text on SQLite.
func (r *Repo) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

// WithTx returns a repo writing through tx, so jobs commit with the caller's changes.
func (r *Repo) WithTx(tx *gorm.DB) *Repo {
	return &Repo{DB: tx, Now: r.Now}
}

func (r *Repo) Enqueue(ctx context.Context, typ string, memoID uuid.UUID, runAt time.Time) (*Job, error) {
	j := Job{
		MemoID:      memoID,
		Type:        typ,
		RunAt:       runAt.UTC(),
		Status:      StatusPending,
		MaxAttempts: 5,
	}
	if err := r.DB.WithContext(ctx).Create(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// Claim one due job atomically. Postgres uses SKIP LOCKED; SQLite has a single
// writer, so a conditional update inside the transaction is enough.
func (r *Repo) Claim(ctx context.Context, workerID string) (*Job, error) {
	now := r.now()
	var job Job
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// requeue stuck RUNNING jobs
		if err := tx.Exec(`
update jobs
set status=?, locked_by=null, locked_at=null, updated_at=?
where status=? and locked_at is not null and locked_at < ?
`, StatusPending, now, StatusRunning, now.Add(-stuckAfter)).Error; err != nil {
			return err
		}

		if tx.Dialector.Name() == "postgres" {
			return tx.Raw(`
with cte as (
  select id
  from jobs
  where status=? and run_at <= ?
  order by run_at asc, id asc
  for update skip locked
  limit 1
)
update jobs
set status=?, locked_by=?, locked_at=?, updated_at=?
where id in (select id from cte)
returning *;
`, StatusPending, now, StatusRunning, workerID, now, now).Scan(&job).Error
		}

		err := tx.Where("status = ? AND run_at <= ?", StatusPending, now).
			Order("run_at asc").Order("id asc").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			job = Job{}
			return nil
		}
		if err != nil {
			return err
		}
		res := tx.Model(&Job{}).
			Where("id = ? AND status = ?", job.ID, StatusPending).
			Updates(map[string]any{"status": StatusRunning, "locked_by": workerID, "locked_at": now, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			job = Job{}
			return nil
		}
		job.Status = StatusRunning
		job.LockedBy = &workerID
		job.LockedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *Repo) MarkDone(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Exec(`update jobs set status=?, locked_by=null, locked_at=null, updated_at=? where id=?`,
		StatusDone, r.now(), id).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return r.DB.WithContext(ctx).Exec(`update jobs set status=?, last_error=?, locked_by=null, locked_at=null, updated_at=? where id=?`,
		StatusFailed, errMsg, r.now(), id).Error
}

func (r *Repo) RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.WithContext(ctx).Exec(`
update jobs
set status=?,
    attempts=?,
    run_at=?,
    locked_by=null,
    locked_at=null,
    last_error=?,
    updated_at=?
where id=?`, StatusPending, attempts, runAt.UTC(), errMsg, r.now(), id).Error
}

// CancelForMemo removes the memo's jobs that have not started.
func (r *Repo) CancelForMemo(ctx context.Context, memoID uuid.UUID) error {
	return r.DB.WithContext(ctx).
		Where("memo_id = ? AND status = ?", memoID, StatusPending).
		Delete(&Job{}).Error
}

func (r *Repo) Get(ctx context.Context, id uint64) (*Job, error) {
	var j Job
	if err := r.DB.WithContext(ctx).First(&j, id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// ForMemo lists the memo's jobs, oldest first.
func (r *Repo) ForMemo(ctx context.Context, memoID uuid.UUID) ([]Job, error) {
	var out []Job
	err := r.DB.WithContext(ctx).Where("memo_id = ?", memoID).Order("id asc").Find(&out).Error
	return out, err
}
