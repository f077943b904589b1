package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"memoflux/internal/analysis"
	"memoflux/internal/inbox"
	"memoflux/internal/memo"
	"memoflux/internal/tags"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// writeError maps domain errors onto HTTP statuses. Unknown errors are logged
// and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *analysis.Error
	switch {
	case errors.Is(err, memo.ErrNotFound),
		errors.Is(err, memo.ErrTaskNotFound),
		errors.Is(err, memo.ErrNoResponse),
		errors.Is(err, tags.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, memo.ErrAlreadyProcessing),
		errors.Is(err, memo.ErrDuplicateImage),
		errors.Is(err, memo.ErrTaskDrift):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, memo.ErrEmptyMemo),
		errors.Is(err, memo.ErrInvalidStatus),
		errors.Is(err, tags.ErrEmptyName),
		errors.Is(err, inbox.ErrNotImage):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.As(err, &ae):
		code := http.StatusBadGateway
		if ae.Kind == analysis.KindEmptyContent {
			code = http.StatusUnprocessableEntity
		}
		writeJSON(w, code, errorBody{Error: ae.Error(), Kind: string(ae.Kind)})
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "server error"})
	}
}

func memoID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(r *http.Request, def, max int) int {
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
