package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/primary"
)

type fakeSLAService struct {
	calls int
	panic bool
	err   error
}

func (f *fakeSLAService) Scan(ctx context.Context, now time.Time) (primary.ScanReport, error) {
	f.calls++
	if f.panic {
		panic("rule evaluation blew up")
	}
	return primary.ScanReport{}, f.err
}

type fakeReminderService struct {
	generateCalls int
	tickCalls     int
}

func (f *fakeReminderService) GenerateForTrigger(ctx context.Context, trigger models.TriggerType, entity *models.Entity, now time.Time) (int, error) {
	return 0, nil
}

func (f *fakeReminderService) GenerateRecurring(ctx context.Context, now time.Time) (int, error) {
	f.generateCalls++
	return 0, nil
}

func (f *fakeReminderService) Tick(ctx context.Context, now time.Time) (primary.TickReport, error) {
	f.tickCalls++
	return primary.TickReport{}, nil
}

func TestRunOnce_RunsAllPhases(t *testing.T) {
	sla := &fakeSLAService{}
	sched := &fakeReminderService{}
	loop := NewLoop(time.Minute, sla, sched, testLogger())

	loop.RunOnce(context.Background())

	if sla.calls != 1 || sched.generateCalls != 1 || sched.tickCalls != 1 {
		t.Errorf("all phases should run once: scan=%d generate=%d tick=%d",
			sla.calls, sched.generateCalls, sched.tickCalls)
	}
}

func TestRunOnce_PhasePanicDoesNotStopLaterPhases(t *testing.T) {
	sla := &fakeSLAService{panic: true}
	sched := &fakeReminderService{}
	loop := NewLoop(time.Minute, sla, sched, testLogger())

	loop.RunOnce(context.Background())

	if sched.generateCalls != 1 || sched.tickCalls != 1 {
		t.Errorf("phases after a panic should still run: generate=%d tick=%d",
			sched.generateCalls, sched.tickCalls)
	}
}

func TestRunOnce_PhaseErrorDoesNotStopLaterPhases(t *testing.T) {
	sla := &fakeSLAService{err: errors.New("store unavailable")}
	sched := &fakeReminderService{}
	loop := NewLoop(time.Minute, sla, sched, testLogger())

	loop.RunOnce(context.Background())

	if sched.tickCalls != 1 {
		t.Error("tick should run despite the scan error")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	sla := &fakeSLAService{}
	sched := &fakeReminderService{}
	loop := NewLoop(10 * time.Millisecond, sla, sched, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	err := loop.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run should return the context error, got %v", err)
	}
	// One immediate tick plus at least one interval tick.
	if sla.calls < 2 {
		t.Errorf("expected at least 2 ticks, got %d", sla.calls)
	}
}
