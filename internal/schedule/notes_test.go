package schedule

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"memoflux/internal/analysis"
)

func TestEventNotes(t *testing.T) {
	notes := EventNotes(analysis.Task{
		CoreTasks:        []string{"准备议程"},
		SuggestedActions: []string{"提前到"},
		People:           []string{"Ann", "Bo"},
		Position:         []string{"3F"},
		Tags:             []string{"会议"},
	})
	assert.Equal(t, "核心任务:\n• 准备议程\n\n建议行动:\n• 提前到\n\n参与人员: Ann, Bo\n地点: 3F\n标签: 会议", notes)

	assert.Equal(t, "参与人员: Ann", EventNotes(analysis.Task{People: []string{"Ann"}}))
	assert.Empty(t, EventNotes(analysis.Task{}))
}

func TestRecordRoundTrip(t *testing.T) {
	task := analysis.Task{ID: "x", StartTime: "2024-05-16T10:00:00+08:00", Theme: "t", Position: []string{"here"}, Status: analysis.StatusPending}
	rec := recordFrom(uuid.Nil, 2, task)
	assert.Equal(t, 2, rec.Position)
	assert.NotNil(t, rec.StartAt)
	assert.Equal(t, task, rec.Task())
}
