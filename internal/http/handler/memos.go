package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"memoflux/internal/analysis"
	"memoflux/internal/jobs"
	"memoflux/internal/memo"
)

// maxImageBytes bounds uploaded image bodies.
const maxImageBytes = 20 << 20

// Analyzer starts analyses for memos.
type Analyzer interface {
	Analyze(ctx context.Context, id uuid.UUID) (*analysis.Response, error)
	Enqueue(ctx context.Context, id uuid.UUID) (*jobs.Job, error)
}

// Ingester stores an uploaded image as a memo and queues its processing.
type Ingester interface {
	Ingest(ctx context.Context, data []byte, source memo.Source, tagNames ...string) (*memo.Memo, error)
}

type MemoHandler struct {
	Svc      *memo.Service
	Analyzer Analyzer
	Images   Ingester
}

type createMemoReq struct {
	Text          string   `json:"text"`
	Title         string   `json:"title"`
	Tags          []string `json:"tags"`
	ScheduledDate *string  `json:"scheduledDate"` // RFC3339 or YYYY-MM-DD, optional
}

func (h *MemoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMemoReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}

	var scheduled *time.Time
	if req.ScheduledDate != nil && strings.TrimSpace(*req.ScheduledDate) != "" {
		t, err := parseDate(*req.ScheduledDate)
		if err != nil {
			badRequest(w, "invalid scheduledDate (RFC3339 or YYYY-MM-DD)")
			return
		}
		scheduled = &t
	}

	m, err := h.Svc.CreateText(r.Context(), memo.CreateTextInput{
		Text:          req.Text,
		Title:         req.Title,
		Tags:          req.Tags,
		ScheduledDate: scheduled,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemoDTO(m))
}

// CreateImage takes the raw image as the request body and ?tags=a,b as its
// initial tags. Text recognition and analysis are queued for the new memo.
func (h *MemoHandler) CreateImage(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "image too large"})
			return
		}
		badRequest(w, "read body")
		return
	}
	if len(data) == 0 {
		writeError(w, r, memo.ErrEmptyMemo)
		return
	}

	m, err := h.Images.Ingest(r.Context(), data, memo.SourceManual, splitList(r.URL.Query().Get("tags"))...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemoDTO(m))
}

func (h *MemoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setTagsReq struct {
	Tags []string `json:"tags"`
}

func (h *MemoHandler) SetTags(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	var req setTagsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}
	m, err := h.Svc.SetTags(r.Context(), id, req.Tags)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemoDTO(m))
}

func (h *MemoHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	m, err := h.Svc.AddTag(r.Context(), id, chi.URLParam(r, "tag"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemoDTO(m))
}

func (h *MemoHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	m, err := h.Svc.RemoveTag(r.Context(), id, chi.URLParam(r, "tag"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemoDTO(m))
}

// Analyze queues an analysis and answers 202. With ?wait=true the analysis
// runs within the request and the response is returned.
func (h *MemoHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		resp, err := h.Analyzer.Analyze(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	job, err := h.Analyzer.Enqueue(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"memoId": id.String(), "jobId": job.ID})
}

type updateTaskReq struct {
	Status string `json:"status"`
}

func (h *MemoHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	var req updateTaskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}

	rec, err := h.Svc.UpdateTaskStatus(r.Context(), id, chi.URLParam(r, "taskID"), analysis.Status(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*rec))
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, s, time.Local)
}
