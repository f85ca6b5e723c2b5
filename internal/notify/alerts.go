package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// Alert event types, matched against NotifyConfig.Events.
const (
	EventCycleError     = "cycle_error"
	EventCycleRecovered = "cycle_recovered"
	EventFlatten        = "flatten"
	EventOrderFailed    = "order_failed"
)

// Alerts turns cycle reports into operator notifications. A run of identical
// cycle errors alerts once, and a recovery message follows the first healthy
// cycle after it.
type Alerts struct {
	notifier *Notifier

	mu        sync.Mutex
	lastError string
}

// NewAlerts creates an Alerts sink on top of notifier.
func NewAlerts(notifier *Notifier) *Alerts {
	return &Alerts{notifier: notifier}
}

// Name identifies the sink in logs.
func (a *Alerts) Name() string { return "notify" }

// Observe sends the alerts report warrants.
func (a *Alerts) Observe(ctx context.Context, report domain.CycleReport) error {
	var errs []error
	send := func(event, title, msg string) {
		if err := a.notifier.Notify(ctx, event, title, msg); err != nil {
			errs = append(errs, err)
		}
	}

	a.mu.Lock()
	prev := a.lastError
	a.lastError = report.Error
	a.mu.Unlock()

	switch {
	case report.Failed() && report.Error != prev:
		send(EventCycleError, "Grid cycle failed", fmt.Sprintf("%s: %s", report.Instrument, report.Error))
	case !report.Failed() && prev != "":
		send(EventCycleRecovered, "Grid cycle recovered", fmt.Sprintf("%s: cycles completing again", report.Instrument))
	}

	switch report.Guard.Action {
	case domain.GuardFlattened:
		send(EventFlatten, "Position flattened",
			fmt.Sprintf("%s: closed %s at ~%.2f", report.Instrument, report.Guard.Size, report.ReferencePrice))
	case domain.GuardFailed:
		send(EventFlatten, "Position flatten failed",
			fmt.Sprintf("%s: size %s: %s", report.Instrument, report.Guard.Size, report.Guard.Error))
	}

	if failed := failedOps(report.Execution); len(failed) > 0 {
		send(EventOrderFailed, "Grid orders failed",
			fmt.Sprintf("%s: %d operation(s) failed\n%s", report.Instrument, len(failed), strings.Join(failed, "\n")))
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// failedOps formats the failed results of an execution, capped at five lines.
func failedOps(r domain.ExecutionReport) []string {
	const maxLines = 5
	var out []string
	n := 0
	for _, res := range r.Results {
		if res.Kind != domain.OpFailed {
			continue
		}
		n++
		if len(out) < maxLines {
			out = append(out, fmt.Sprintf("- %s %s %d: %s", res.Reason, res.Side, res.Level, res.Error))
		}
	}
	if n > maxLines {
		out = append(out, fmt.Sprintf("- ... and %d more", n-maxLines))
	}
	return out
}
