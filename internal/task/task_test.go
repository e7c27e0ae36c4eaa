package task

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRunStepsPeriodically(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var steps atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Task{
			Name:     "counter",
			Period:   time.Millisecond,
			Priority: 1,
			Core:     NoCore,
			Step:     func(context.Context) { steps.Add(1) },
		}, discard)
	}()

	assert.Eventually(t, func() bool { return steps.Load() >= 5 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("task did not stop")
	}
}

func TestRunFirstStepImmediate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stepped := make(chan struct{}, 1)
	go Run(ctx, Task{
		Name:   "slow",
		Period: time.Hour,
		Core:   NoCore,
		Step: func(context.Context) {
			select {
			case stepped <- struct{}{}:
			default:
			}
		},
	}, discard)

	select {
	case <-stepped:
	case <-time.After(time.Second):
		t.Fatal("first step did not run immediately")
	}
}

func TestRunPinnedTaskStillRuns(t *testing.T) {
	// Pinning may fail in restricted environments; the task must run anyway.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var steps atomic.Int32
	go Run(ctx, Task{
		Name:     "pinned",
		Period:   time.Millisecond,
		Priority: MaxPriority,
		Core:     0,
		Step:     func(context.Context) { steps.Add(1) },
	}, discard)

	assert.Eventually(t, func() bool { return steps.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestValidate(t *testing.T) {
	step := func(context.Context) {}

	tests := []struct {
		name string
		task Task
		err  string
	}{
		{"ok", Task{Name: "a", Period: time.Second, Core: NoCore, Step: step}, ""},
		{"zero period", Task{Name: "a", Core: NoCore, Step: step}, `task "a": period must be positive`},
		{"priority", Task{Name: "a", Period: time.Second, Priority: MaxPriority + 1, Step: step}, `task "a": priority 8 out of range [0, 7]`},
		{"core", Task{Name: "a", Period: time.Second, Core: -2, Step: step}, `task "a": invalid core -2`},
		{"step", Task{Name: "a", Period: time.Second, Core: NoCore}, `task "a": missing step`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.task.Validate()
			if test.err == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, test.err)
			}
		})
	}
}

func TestRunAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var a, b atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- RunAll(ctx, discard,
			Task{Name: "a", Period: time.Millisecond, Core: NoCore, Step: func(context.Context) { a.Add(1) }},
			Task{Name: "b", Period: 2 * time.Millisecond, Core: NoCore, Step: func(context.Context) { b.Add(1) }},
		)
	}()

	assert.Eventually(t, func() bool { return a.Load() > 2 && b.Load() > 2 }, time.Second, time.Millisecond)
	cancel()
	require.True(t, errors.Is(<-done, context.Canceled))
}

func TestRunAllRejectsInvalid(t *testing.T) {
	err := RunAll(context.Background(), discard, Task{Name: "bad", Core: NoCore})
	assert.EqualError(t, err, `task "bad": period must be positive`)
}
