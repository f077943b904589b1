package handler

import (
	"context"
	"net/http"

	"memoflux/internal/memo"
)

type InboxChecker interface {
	Check(ctx context.Context) (*memo.Memo, error)
}

type InboxHandler struct {
	Inbox InboxChecker
}

// Check imports the inbox file now. It answers 204 when there was nothing new.
func (h *InboxHandler) Check(w http.ResponseWriter, r *http.Request) {
	m, err := h.Inbox.Check(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if m == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, toMemoDTO(m))
}
