package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// AuditLog lists audit entries newest first.
type AuditLog interface {
	List(ctx context.Context, event string, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

type AuditHandler struct {
	audit  AuditLog
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler. audit may be nil when Postgres is
// disabled; the endpoint then answers 503.
func NewAuditHandler(audit AuditLog, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger.With(slog.String("handler", "audit"))}
}

// ListAudit returns failed cycles, failed orders and guard actions.
// GET /api/audit?event=order_failed&limit=20
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit log is not enabled")
		return
	}
	event := r.URL.Query().Get("event")
	entries, err := h.audit.List(r.Context(), event, parseListOpts(r))
	if err != nil {
		h.logger.Error("list audit failed", slog.String("event", event), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
