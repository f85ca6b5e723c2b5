package strategy

import (
	"context"
	"sync"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// ReportSink consumes finished cycle reports. Sinks run after the cycle has
// completed; an error is logged and never affects trading.
type ReportSink interface {
	Name() string
	Observe(ctx context.Context, report domain.CycleReport) error
}

// SinkFunc adapts a function to ReportSink.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, report domain.CycleReport) error
}

func (s SinkFunc) Name() string { return s.SinkName }

func (s SinkFunc) Observe(ctx context.Context, report domain.CycleReport) error {
	return s.Fn(ctx, report)
}

// Status keeps the most recent cycle report and running totals for the HTTP
// status endpoints.
type Status struct {
	mu      sync.RWMutex
	last    domain.CycleReport
	has     bool
	cycles  int64
	failed  int64
	placed  int64
	cancels int64
}

// NewStatus creates an empty Status.
func NewStatus() *Status {
	return &Status{}
}

func (s *Status) Name() string { return "status" }

// Observe records report as the latest cycle.
func (s *Status) Observe(_ context.Context, report domain.CycleReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = report
	s.has = true
	s.cycles++
	if report.Failed() {
		s.failed++
	}
	s.placed += int64(report.Execution.Count(domain.OpPlaced))
	s.cancels += int64(report.Execution.Count(domain.OpCancelled))
	return nil
}

// Last returns the most recent report, if any cycle has completed.
func (s *Status) Last() (domain.CycleReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.has
}

// Totals is a snapshot of the running counters.
type Totals struct {
	Cycles    int64 `json:"cycles"`
	Failed    int64 `json:"failed"`
	Placed    int64 `json:"placed"`
	Cancelled int64 `json:"cancelled"`
}

// Totals returns the running counters.
func (s *Status) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Totals{Cycles: s.cycles, Failed: s.failed, Placed: s.placed, Cancelled: s.cancels}
}
