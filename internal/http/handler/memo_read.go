package handler

import (
	"net/http"
	"strings"
	"time"

	"memoflux/internal/memo"
)

type MemoReadHandler struct {
	Svc *memo.Service
}

type memoDTO struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Text           string     `json:"text"`
	RecognizedText string     `json:"recognizedText"`
	Tags           []string   `json:"tags"`
	Source         string     `json:"source"`
	HasImage       bool       `json:"hasImage"`
	ScheduledDate  *time.Time `json:"scheduledDate"`
	IsProcessing   bool       `json:"isProcessing"`
	HasResponse    bool       `json:"hasResponse"`
	ProcessedAt    *time.Time `json:"processedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func toMemoDTO(m *memo.Memo) memoDTO {
	tagList := []string(m.Tags)
	if tagList == nil {
		tagList = []string{}
	}
	return memoDTO{
		ID:             m.ID.String(),
		Title:          m.Title,
		Text:           m.UserInputText,
		RecognizedText: m.RecognizedText,
		Tags:           tagList,
		Source:         string(m.Source),
		HasImage:       m.HasImage(),
		ScheduledDate:  m.ScheduledDate,
		IsProcessing:   m.IsProcessing,
		HasResponse:    m.HasResponse,
		ProcessedAt:    m.ProcessedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func (h *MemoReadHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Svc.List(r.Context(), memo.ListFilter{
		Tag:   strings.TrimSpace(r.URL.Query().Get("tag")),
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		Limit: queryLimit(r, 50, 200),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]memoDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toMemoDTO(&rows[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *MemoReadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	m, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemoDTO(m))
}

// Image serves the stored photo bytes.
func (h *MemoReadHandler) Image(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	m, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !m.HasImage() {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "memo has no image"})
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(m.ImageData))
	_, _ = w.Write(m.ImageData)
}

// Response returns the stored analysis.
func (h *MemoReadHandler) Response(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	m, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := m.Response()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MemoReadHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	if _, err := h.Svc.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	recs, err := h.Svc.Tasks.ForMemo(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTOs(recs))
}
