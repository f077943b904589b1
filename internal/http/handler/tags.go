package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"memoflux/internal/tags"
)

type TagHandler struct {
	Registry *tags.Registry
	Usage    tags.UsageSource
}

type tagDTO struct {
	Name       string    `json:"name"`
	UsageCount int64     `json:"usageCount"`
	Color      *string   `json:"color"`
	Category   *string   `json:"category"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

func toTagDTO(e tags.Entry) tagDTO {
	return tagDTO{
		Name:       e.Name,
		UsageCount: e.UsageCount,
		Color:      e.Color,
		Category:   e.Category,
		CreatedAt:  e.CreatedAt,
		LastUsedAt: e.LastUsedAt,
	}
}

// List supports ?q= substring search and ?sort=most_used|recent.
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 500)
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		rows []tags.Entry
		err  error
	)
	switch {
	case q != "":
		rows, err = h.Registry.Search(r.Context(), q, limit)
	case r.URL.Query().Get("sort") == "recent":
		rows, err = h.Registry.Recent(r.Context(), limit)
	default:
		rows, err = h.Registry.MostUsed(r.Context(), limit)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]tagDTO, 0, len(rows))
	for _, e := range rows {
		out = append(out, toTagDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

type createTagReq struct {
	Name     string  `json:"name"`
	Color    *string `json:"color"`
	Category *string `json:"category"`
}

func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTagReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}
	e, err := h.Registry.Create(r.Context(), req.Name, req.Color, req.Category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTagDTO(*e))
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TagHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Registry.Sweep(r.Context(), h.Usage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}
