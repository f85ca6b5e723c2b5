package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/gridbot/internal/domain"
	"github.com/alanyoungcy/gridbot/internal/strategy"
)

// ReportSource exposes the latest cycle report and running totals.
type ReportSource interface {
	Last() (domain.CycleReport, bool)
	Totals() strategy.Totals
}

// SchedulerState exposes the scheduler's lifecycle.
type SchedulerState interface {
	State() strategy.State
}

// StatusHandler serves the bot status and the current grid.
type StatusHandler struct {
	mode      string
	venue     string
	params    strategy.Params
	reports   ReportSource
	scheduler SchedulerState
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode, venue string, params strategy.Params, reports ReportSource, scheduler SchedulerState) *StatusHandler {
	return &StatusHandler{mode: mode, venue: venue, params: params, reports: reports, scheduler: scheduler}
}

type lastCycle struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	DurationMS     int64     `json:"duration_ms"`
	ReferencePrice float64   `json:"reference_price"`
	Spread         int64     `json:"spread"`
	Error          string    `json:"error,omitempty"`
}

// GetStatus responds with mode, grid parameters, scheduler state, totals and
// a summary of the last cycle.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":       h.mode,
		"venue":      h.venue,
		"instrument": h.params.Instrument,
		"state":      h.scheduler.State().String(),
		"grid": map[string]any{
			"step":     h.params.Step,
			"levels":   h.params.Levels,
			"spread":   h.params.Spread,
			"quantity": h.params.Quantity.String(),
			"interval": h.params.Interval.String(),
		},
		"totals": h.reports.Totals(),
	}
	if last, ok := h.reports.Last(); ok {
		resp["last_cycle"] = lastCycle{
			ID:             last.ID,
			StartedAt:      last.StartedAt,
			DurationMS:     last.Duration.Milliseconds(),
			ReferencePrice: last.ReferencePrice,
			Spread:         last.Spread,
			Error:          last.Error,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetGrid responds with the full report of the last cycle: target and
// observed levels, the plan, and every operation result.
// GET /api/grid
func (h *StatusHandler) GetGrid(w http.ResponseWriter, r *http.Request) {
	last, ok := h.reports.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "no cycle has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, last)
}
