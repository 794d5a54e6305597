package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/loanflow/internal/ports/primary"
)

// Loop is the polling path: a single goroutine waking on a fixed interval
// and running, in sequence, the SLA scan, the recurring reminder generation,
// and the reminder dispatch tick. Nothing inside a tick is permitted to
// crash the loop.
type Loop struct {
	interval time.Duration
	sla      primary.SLAService
	sched    primary.ReminderService
	logger   *slog.Logger
	now      func() time.Time
}

// NewLoop creates a polling loop with the given tick interval.
func NewLoop(interval time.Duration, sla primary.SLAService, sched primary.ReminderService, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Loop{
		interval: interval,
		sla:      sla,
		sched:    sched,
		logger:   logger,
		now:      time.Now,
	}
}

// Run ticks until the context is cancelled. It runs one tick immediately so
// a freshly started worker does not idle a full interval.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("scheduler loop started", "interval", l.interval)
	l.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single tick. Each phase is isolated: a failure or panic
// in one phase is logged and the remaining phases still run.
func (l *Loop) RunOnce(ctx context.Context) {
	now := l.now()

	l.phase(ctx, "sla_scan", func() error {
		report, err := l.sla.Scan(ctx, now)
		if err != nil {
			return err
		}
		l.logger.Debug("sla scan complete",
			"scanned", report.Scanned,
			"warnings", report.Warnings,
			"breaches", report.Breaches,
			"rules_fired", report.RulesFired,
			"scan_errors", report.ScanErrors,
		)
		return nil
	})

	l.phase(ctx, "reminder_generation", func() error {
		n, err := l.sched.GenerateRecurring(ctx, now)
		if err != nil {
			return err
		}
		if n > 0 {
			l.logger.Debug("reminder jobs generated", "count", n)
		}
		return nil
	})

	l.phase(ctx, "reminder_tick", func() error {
		report, err := l.sched.Tick(ctx, now)
		if err != nil {
			return err
		}
		if report.Leased > 0 {
			l.logger.Debug("reminder tick complete",
				"reclaimed", report.Reclaimed,
				"due", report.Due,
				"leased", report.Leased,
				"sent", report.Sent,
				"retried", report.Retried,
				"failed", report.Failed,
				"exhausted", report.Exhausted,
			)
		}
		return nil
	})
}

func (l *Loop) phase(ctx context.Context, name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.ErrorContext(ctx, "tick phase panicked", "phase", name, "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(); err != nil {
		l.logger.ErrorContext(ctx, "tick phase failed", "phase", name, "error", err)
	}
}
