package handler

import (
	"net/http"
	"strings"
	"time"

	"memoflux/internal/schedule"
)

type TaskHandler struct {
	Store *schedule.Store
}

type taskDTO struct {
	MemoID           string    `json:"memoId"`
	ID               string    `json:"id"`
	Position         int       `json:"position"`
	StartTime        string    `json:"startTime"`
	EndTime          string    `json:"endTime"`
	People           []string  `json:"people"`
	Theme            string    `json:"theme"`
	CoreTasks        []string  `json:"coreTasks"`
	Location         []string  `json:"location"`
	Tags             []string  `json:"tags"`
	Category         string    `json:"category"`
	SuggestedActions []string  `json:"suggestedActions"`
	Status           string    `json:"status"`
	Notes            string    `json:"notes"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toTaskDTO(rec schedule.TaskRecord) taskDTO {
	t := rec.Task()
	return taskDTO{
		MemoID:           rec.MemoID.String(),
		ID:               rec.TaskID,
		Position:         rec.Position,
		StartTime:        rec.StartTime,
		EndTime:          rec.EndTime,
		People:           nonNil(t.People),
		Theme:            rec.Theme,
		CoreTasks:        nonNil(t.CoreTasks),
		Location:         nonNil(t.Position),
		Tags:             nonNil(t.Tags),
		Category:         rec.Category,
		SuggestedActions: nonNil(t.SuggestedActions),
		Status:           string(rec.Status),
		Notes:            schedule.EventNotes(t),
		UpdatedAt:        rec.UpdatedAt,
	}
}

func toTaskDTOs(recs []schedule.TaskRecord) []taskDTO {
	out := make([]taskDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toTaskDTO(rec))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// List returns the tasks starting on ?date=YYYY-MM-DD (today by default).
// pending=true keeps only pending ones.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if v := strings.TrimSpace(r.URL.Query().Get("date")); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, time.Local)
		if err != nil {
			badRequest(w, "invalid date (YYYY-MM-DD)")
			return
		}
		day = t
	}

	recs, err := h.Store.OnDate(r.Context(), day, r.URL.Query().Get("pending") == "true")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTOs(recs))
}
