package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// SubmissionHandler serves the execution history recorded by the executor.
type SubmissionHandler struct {
	store  domain.SubmissionStore
	logger *slog.Logger
}

// NewSubmissionHandler creates a SubmissionHandler.
func NewSubmissionHandler(store domain.SubmissionStore, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "submission")),
	}
}

// ListRecent returns the most recent submission records.
// GET /api/submissions
func (h *SubmissionHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	recs, err := h.store.ListRecent(r.Context(), opts.Limit)
	if err != nil {
		h.logger.Error("submission list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"submissions": recs,
		"count":       len(recs),
	})
}

// GetByIntent returns the latest submission record for one intent.
// GET /api/submissions/{intentId}
func (h *SubmissionHandler) GetByIntent(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.GetByIntent(r.Context(), r.PathValue("intentId"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no submission for intent")
			return
		}
		h.logger.Error("submission get failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load submission")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
