// Package task runs periodic tasks, each on its own goroutine locked to an
// OS thread so that it can be given a priority and pinned to a CPU core.
package task

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// NoCore means the task is not pinned to a core.
const NoCore = -1

// MaxPriority is the highest task priority. Priorities range from 0 to
// MaxPriority; higher runs first when the system is busy.
const MaxPriority = 7

// Task is a unit of periodic work.
type Task struct {
	// Name identifies the task in logs.
	Name string
	// Period is the time between the starts of two consecutive steps.
	Period time.Duration
	// Priority is the scheduling priority, from 0 to MaxPriority.
	Priority int
	// Core is the CPU core to pin the task to, or NoCore.
	Core int
	// Step is called once per period. It must return promptly.
	Step func(ctx context.Context)
}

// Validate checks that the task can be run.
func (t Task) Validate() error {
	if err := t.ValidateSchedule(); err != nil {
		return err
	}
	if t.Step == nil {
		return errors.Errorf("task %q: missing step", t.Name)
	}
	return nil
}

// ValidateSchedule checks the period, priority and core of the task.
func (t Task) ValidateSchedule() error {
	if t.Period <= 0 {
		return errors.Errorf("task %q: period must be positive", t.Name)
	}
	if t.Priority < 0 || t.Priority > MaxPriority {
		return errors.Errorf("task %q: priority %d out of range [0, %d]", t.Name, t.Priority, MaxPriority)
	}
	if t.Core < NoCore {
		return errors.Errorf("task %q: invalid core %d", t.Name, t.Core)
	}
	return nil
}

// Run runs the task until ctx is canceled. The first step runs immediately.
// Steps that overrun their period delay the next step instead of queueing up.
// Failing to apply the priority or core is logged and otherwise ignored.
func Run(ctx context.Context, t Task, logger *slog.Logger) error {
	if err := t.Validate(); err != nil {
		return err
	}

	// The thread is never unlocked, so the runtime discards it together with
	// its priority and affinity once the task returns.
	runtime.LockOSThread()

	logger = logger.With("task", t.Name)

	if err := setPriority(t.Priority); err != nil {
		logger.Warn(
			"failed to set task priority",
			"priority", t.Priority,
			"error", err)
	}

	if t.Core != NoCore {
		if err := pinToCore(t.Core); err != nil {
			logger.Warn(
				"failed to pin task to core",
				"core", t.Core,
				"error", err)
		}
	}

	logger.Debug(
		"task started",
		"period", t.Period,
		"priority", t.Priority,
		"core", t.Core)

	ticker := time.NewTicker(t.Period)
	defer ticker.Stop()

	for {
		t.Step(ctx)

		select {
		case <-ctx.Done():
			logger.Debug("task stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunAll runs all tasks concurrently until ctx is canceled or one of them
// fails to start.
func RunAll(ctx context.Context, logger *slog.Logger, tasks ...Task) error {
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	errg, ctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		t := t
		errg.Go(func() error { return Run(ctx, t, logger) })
	}
	return errg.Wait()
}
