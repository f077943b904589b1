package schedule

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"memoflux/internal/analysis"
)

// TaskRecord mirrors one entry of a memo's embedded task list. Position is
// the entry's index in that list.
type TaskRecord struct {
	ID       uint64    `gorm:"primaryKey"`
	TaskID   string    `gorm:"index;not null"`
	MemoID   uuid.UUID `gorm:"type:uuid;index;not null"`
	Position int       `gorm:"not null"`

	StartTime string     `gorm:"type:text;not null;default:''"`
	EndTime   string     `gorm:"type:text;not null;default:''"`
	StartAt   *time.Time `gorm:"index"`

	People           datatypes.JSONSlice[string]
	Theme            string `gorm:"type:text;not null;default:''"`
	CoreTasks        datatypes.JSONSlice[string]
	Location         datatypes.JSONSlice[string]
	Tags             datatypes.JSONSlice[string]
	Category         string `gorm:"type:text;not null;default:''"`
	SuggestedActions datatypes.JSONSlice[string]

	Status analysis.Status `gorm:"type:text;index;not null;default:'pending'"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (TaskRecord) TableName() string { return "schedule_tasks" }

func recordFrom(memoID uuid.UUID, position int, t analysis.Task) TaskRecord {
	rec := TaskRecord{
		TaskID:           t.ResolvedID(),
		MemoID:           memoID,
		Position:         position,
		StartTime:        t.StartTime,
		EndTime:          t.EndTime,
		People:           t.People,
		Theme:            t.Theme,
		CoreTasks:        t.CoreTasks,
		Location:         t.Position,
		Tags:             t.Tags,
		Category:         t.Category,
		SuggestedActions: t.SuggestedActions,
		Status:           t.Status,
	}
	if rec.Status == "" {
		rec.Status = analysis.StatusPending
	}
	if ts, err := t.StartDate(); err == nil {
		utc := ts.UTC()
		rec.StartAt = &utc
	}
	return rec
}

// Task returns the record as a wire task.
func (r TaskRecord) Task() analysis.Task {
	return analysis.Task{
		ID:               r.TaskID,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		People:           r.People,
		Theme:            r.Theme,
		CoreTasks:        r.CoreTasks,
		Position:         r.Location,
		Tags:             r.Tags,
		Category:         r.Category,
		SuggestedActions: r.SuggestedActions,
		Status:           r.Status,
	}
}
