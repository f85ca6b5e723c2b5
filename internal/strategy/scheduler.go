package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// State is the scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "idle"
}

// CycleRunner executes a single reconciliation cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (domain.CycleReport, error)
}

// Scheduler repeats cycles at a fixed interval until its context is
// cancelled. Cancellation is only observed between cycles: a cycle that has
// started runs to completion.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	sinks    []ReportSink
	logger   *slog.Logger

	locks   domain.LockManager
	lockKey string
	lockTTL time.Duration

	state  atomic.Int32
	cycles atomic.Int64
}

// NewScheduler creates a Scheduler sleeping interval between cycles.
func NewScheduler(runner CycleRunner, interval time.Duration, logger *slog.Logger, sinks ...ReportSink) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		sinks:    sinks,
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// SetLock makes every cycle hold key in locks for at most ttl, so only one
// process drives an instrument at a time. A cycle that cannot take the lock
// is skipped.
func (s *Scheduler) SetLock(locks domain.LockManager, key string, ttl time.Duration) {
	s.locks = locks
	s.lockKey = key
	s.lockTTL = ttl
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Cycles returns the number of cycles started.
func (s *Scheduler) Cycles() int64 {
	return s.cycles.Load()
}

// Run loops until ctx is cancelled and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.state.Store(int32(StateRunning))
	defer s.state.Store(int32(StateStopped))

	s.logger.InfoContext(ctx, "scheduler started", slog.Duration("interval", s.interval))
	defer s.logger.Info("scheduler stopped", slog.Int64("cycles", s.cycles.Load()))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.runOnce(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.interval):
		}
	}
}

// runOnce executes one guarded cycle and hands the report to every sink.
func (s *Scheduler) runOnce(ctx context.Context) {
	n := s.cycles.Add(1)
	log := s.logger.With(slog.Int64("cycle", n))

	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, s.lockKey, s.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				log.InfoContext(ctx, "grid lock held by another process, skipping cycle", slog.String("key", s.lockKey))
			} else {
				log.WarnContext(ctx, "grid lock unavailable, skipping cycle", slog.String("error", err.Error()))
			}
			return
		}
		defer unlock()
	}

	report, err := s.safeCycle(ctx)
	if err != nil {
		log.ErrorContext(ctx, "cycle failed", slog.String("error", err.Error()))
	}

	for _, sink := range s.sinks {
		if err := sink.Observe(ctx, report); err != nil {
			log.WarnContext(ctx, "report sink failed",
				slog.String("sink", sink.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// safeCycle runs the cycle and converts a panic into an error.
func (s *Scheduler) safeCycle(ctx context.Context) (report domain.CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy: cycle panic: %v", r)
			report.Error = err.Error()
			s.logger.Error("cycle panic", slog.String("stack", string(debug.Stack())))
		}
	}()
	return s.runner.RunCycle(ctx)
}
