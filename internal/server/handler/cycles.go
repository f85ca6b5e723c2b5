package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// CycleHistory lists past cycle reports, newest first.
type CycleHistory interface {
	ListRecent(ctx context.Context, instrument string, opts domain.ListOpts) ([]domain.CycleReport, error)
}

// CyclesHandler serves the cycle history.
type CyclesHandler struct {
	history    CycleHistory
	instrument string
	logger     *slog.Logger
}

// NewCyclesHandler creates a CyclesHandler. history may be nil when no
// history backend is configured.
func NewCyclesHandler(history CycleHistory, instrument string, logger *slog.Logger) *CyclesHandler {
	return &CyclesHandler{
		history:    history,
		instrument: instrument,
		logger:     logger.With(slog.String("handler", "cycles")),
	}
}

// ListCycles returns past reports, honouring limit and offset.
// GET /api/cycles
func (h *CyclesHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "cycle history is not enabled")
		return
	}
	instrument := r.URL.Query().Get("instrument")
	if instrument == "" {
		instrument = h.instrument
	}

	reports, err := h.history.ListRecent(r.Context(), instrument, parseListOpts(r))
	if err != nil {
		h.logger.Error("list cycles failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list cycles")
		return
	}
	if reports == nil {
		reports = []domain.CycleReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instrument": instrument,
		"cycles":     reports,
	})
}
