package tailglow

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libdb.so/tailglow/internal/led"
	"libdb.so/tailglow/internal/mode"
	"libdb.so/tailglow/internal/output"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingDriver struct {
	mu     sync.Mutex
	last   led.LEDs
	frames int
	closed bool
}

func (r *recordingDriver) Flush(leds led.LEDs) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = append(r.last[:0], leds...)
	r.frames++
	return nil
}

func (r *recordingDriver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingDriver) lastFrame() led.LEDs {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(led.LEDs(nil), r.last...)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Strip.Brightness = ptr(255)
	for name, t := range cfg.Tasks {
		t.Period = TOMLDuration(time.Millisecond)
		t.Core = ptr(-1)
		cfg.Tasks[name] = t
	}
	cfg.Command.Period = TOMLDuration(time.Millisecond)
	cfg.Command.Core = ptr(-1)
	return cfg
}

func startDaemon(t *testing.T, cfg *Config) (*Daemon, *recordingDriver) {
	t.Helper()

	d, err := NewDaemon(cfg, discard)
	require.NoError(t, err)

	driver := &recordingDriver{}
	d.openOutput = func(opts output.Options, _ *slog.Logger) (output.Driver, error) {
		assert.Equal(t, cfg.Strip.Length, opts.NumLEDs)
		return driver, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.True(t, errors.Is(err, context.Canceled), "unexpected error: %v", err)
		case <-time.After(2 * time.Second):
			t.Error("daemon did not stop")
		}
		assert.True(t, driver.closed, "driver not closed")
	})

	return d, driver
}

func isFilled(leds led.LEDs, c led.RGBColor) bool {
	for _, got := range leds {
		if got != c {
			return false
		}
	}
	return len(leds) > 0
}

func TestDaemonRendersDefault(t *testing.T) {
	_, driver := startDaemon(t, testConfig())

	assert.Eventually(t, func() bool {
		frame := driver.lastFrame()
		return len(frame) == 30 && frame[0] != frame[29] && frame[0] != led.Black
	}, 2*time.Second, time.Millisecond, "expected a rainbow frame")
}

func TestDaemonToggleStop(t *testing.T) {
	d, driver := startDaemon(t, testConfig())

	require.NoError(t, d.Commands().Deliver(context.Background(), []byte("S")))

	assert.Eventually(t, func() bool {
		return d.Commands().Status() == mode.Status{Stop: true}
	}, 2*time.Second, time.Millisecond)

	// Region 15 on both ends of 30 LEDs covers the whole strip.
	assert.Eventually(t, func() bool {
		return isFilled(driver.lastFrame(), led.Red)
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, d.Commands().Deliver(context.Background(), []byte("S")))

	assert.Eventually(t, func() bool {
		return d.Commands().Status() == mode.Status{Default: true}
	}, 2*time.Second, time.Millisecond)
}

func TestDaemonBrightness(t *testing.T) {
	cfg := testConfig()
	cfg.Strip.Brightness = ptr(127)
	d, driver := startDaemon(t, cfg)

	require.NoError(t, d.Commands().Deliver(context.Background(), []byte("S")))

	assert.Eventually(t, func() bool {
		return d.Commands().Status().Stop
	}, 2*time.Second, time.Millisecond)

	assert.Eventually(t, func() bool {
		return isFilled(driver.lastFrame(), led.RGBColor{127, 0, 0})
	}, 2*time.Second, time.Millisecond)
}

func TestNewDaemonInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strip.Length = 0

	_, err := NewDaemon(cfg, discard)
	assert.ErrorContains(t, err, "invalid configuration")
}
