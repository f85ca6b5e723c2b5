package postgres

import (
	"context"
	"errors"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// Audit event names written by Recorder.
const (
	EventCycleFailed    = "cycle_failed"
	EventOrderFailed    = "order_failed"
	EventPositionClosed = "position_flattened"
	EventGuardFailed    = "guard_failed"
)

// Recorder persists every cycle report and writes audit entries for the
// events an operator would want to review later.
type Recorder struct {
	cycles domain.CycleStore
	audit  domain.AuditStore
}

// NewRecorder creates a Recorder. audit may be nil.
func NewRecorder(cycles domain.CycleStore, audit domain.AuditStore) *Recorder {
	return &Recorder{cycles: cycles, audit: audit}
}

// Name identifies the sink in logs.
func (r *Recorder) Name() string { return "postgres" }

// Observe saves report and its audit events.
func (r *Recorder) Observe(ctx context.Context, report domain.CycleReport) error {
	errs := []error{r.cycles.Save(ctx, report)}
	if r.audit != nil {
		for _, ev := range AuditEvents(report) {
			errs = append(errs, r.audit.Log(ctx, ev.Event, ev.Detail))
		}
	}
	return errors.Join(errs...)
}

// AuditEvent is one audit row derived from a cycle report.
type AuditEvent struct {
	Event  string
	Detail map[string]any
}

// AuditEvents extracts the auditable events of a cycle: an aborted cycle, each
// failed venue operation and any position guard intervention.
func AuditEvents(report domain.CycleReport) []AuditEvent {
	var out []AuditEvent
	base := func() map[string]any {
		return map[string]any{"cycle_id": report.ID, "instrument": report.Instrument}
	}

	if report.Failed() {
		d := base()
		d["error"] = report.Error
		out = append(out, AuditEvent{Event: EventCycleFailed, Detail: d})
	}
	for _, res := range report.Execution.Results {
		if res.Kind != domain.OpFailed {
			continue
		}
		d := base()
		d["reason"] = string(res.Reason)
		d["side"] = string(res.Side)
		d["level"] = int64(res.Level)
		if res.OrderID != 0 {
			d["order_id"] = res.OrderID.String()
		}
		d["error"] = res.Error
		out = append(out, AuditEvent{Event: EventOrderFailed, Detail: d})
	}
	switch report.Guard.Action {
	case domain.GuardFlattened:
		d := base()
		d["size"] = report.Guard.Size
		out = append(out, AuditEvent{Event: EventPositionClosed, Detail: d})
	case domain.GuardFailed:
		d := base()
		d["size"] = report.Guard.Size
		d["error"] = report.Guard.Error
		out = append(out, AuditEvent{Event: EventGuardFailed, Detail: d})
	}
	return out
}
