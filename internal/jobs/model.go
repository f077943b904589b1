package jobs

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeAnalyzeMemo   = "ANALYZE_MEMO"
	TypeRecognizeText = "RECOGNIZE_TEXT"
)

const (
	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

type Job struct {
	ID     uint64    `gorm:"primaryKey"`
	MemoID uuid.UUID `gorm:"type:uuid;not null"`

	Type string `gorm:"type:text;not null"` // ANALYZE_MEMO/RECOGNIZE_TEXT

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'PENDING'"` // PENDING/RUNNING/DONE/FAILED

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:5"`

	LockedBy *string `gorm:"type:text"`
	LockedAt *time.Time

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
