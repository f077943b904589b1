package schedule

import (
	"strings"

	"memoflux/internal/analysis"
)

// EventNotes renders the body used for calendar events and reminders.
func EventNotes(t analysis.Task) string {
	var b strings.Builder

	if len(t.CoreTasks) > 0 {
		b.WriteString("核心任务:\n")
		for _, c := range t.CoreTasks {
			b.WriteString("• " + c + "\n")
		}
		b.WriteString("\n")
	}
	if len(t.SuggestedActions) > 0 {
		b.WriteString("建议行动:\n")
		for _, a := range t.SuggestedActions {
			b.WriteString("• " + a + "\n")
		}
		b.WriteString("\n")
	}
	if len(t.People) > 0 {
		b.WriteString("参与人员: " + strings.Join(t.People, ", ") + "\n")
	}
	if len(t.Position) > 0 {
		b.WriteString("地点: " + strings.Join(t.Position, ", ") + "\n")
	}
	if len(t.Tags) > 0 {
		b.WriteString("标签: " + strings.Join(t.Tags, ", "))
	}
	return strings.TrimSpace(b.String())
}
