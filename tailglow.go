// Package tailglow implements the tailglow daemon: a set of periodic
// animation tasks sharing one LED strip, toggled by commands from MQTT or a
// WebSocket control server.
package tailglow

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"libdb.so/tailglow/internal/animation"
	"libdb.so/tailglow/internal/command"
	"libdb.so/tailglow/internal/led"
	"libdb.so/tailglow/internal/mode"
	"libdb.so/tailglow/internal/output"
	"libdb.so/tailglow/internal/task"
	"libdb.so/tailglow/internal/transport/mqtt"
	"libdb.so/tailglow/internal/transport/wsctl"
)

// Daemon is the main tailglow daemon.
type Daemon struct {
	cfg      *Config
	logger   *slog.Logger
	flags    *mode.Flags
	commands *command.Channel

	// openOutput opens the output driver. It is replaced in tests.
	openOutput func(output.Options, *slog.Logger) (output.Driver, error)
}

// NewDaemon creates a new tailglow daemon.
func NewDaemon(cfg *Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	flags := mode.NewFlags()

	return &Daemon{
		cfg:        cfg,
		logger:     logger,
		flags:      flags,
		commands:   command.NewChannel(flags, logger.With("component", "command"), cfg.Command.Queue),
		openOutput: output.Open,
	}, nil
}

// Commands returns the command channel of the daemon. Commands delivered
// before Run are applied once Run starts.
func (d *Daemon) Commands() *command.Channel {
	return d.commands
}

// Run starts the daemon. It blocks until the given context is canceled or the
// output driver fails.
func (d *Daemon) Run(ctx context.Context) error {
	driver, err := d.openOutput(d.cfg.OutputOptions(), d.logger.With("component", "output"))
	if err != nil {
		return errors.Wrap(err, "failed to open output")
	}
	defer driver.Close()

	strip := led.NewStrip(d.cfg.Strip.Length, driver)
	strip.SetBrightness(uint8(*d.cfg.Strip.Brightness))

	errg, ctx := errgroup.WithContext(ctx)

	if runner, ok := driver.(output.Runner); ok {
		errg.Go(func() error {
			return errors.Wrap(runner.Run(ctx), "output failed")
		})
	}

	if err := strip.Clear(); err != nil {
		d.logger.Debug("failed to clear strip", "error", err)
	}

	if d.cfg.MQTT != nil {
		client := mqtt.New(d.cfg.MQTT.ClientConfig(), d.commands, d.logger.With("component", "mqtt"))
		d.commands.AddPublisher(client)
		errg.Go(func() error { return client.Run(ctx) })
	}

	if d.cfg.Control != nil {
		server := wsctl.New(d.commands, d.logger.With("component", "control"))
		d.commands.AddPublisher(server)
		errg.Go(func() error { return server.Run(ctx, d.cfg.Control.Listen) })
	}

	tasks := []task.Task{d.commandTask()}
	for _, anim := range animation.NewSet(d.cfg.Strip.Length, d.cfg.AnimationOptions()) {
		tasks = append(tasks, d.animationTask(anim, strip))
	}

	errg.Go(func() error { return task.RunAll(ctx, d.logger, tasks...) })

	return errg.Wait()
}

func (d *Daemon) commandTask() task.Task {
	t := d.cfg.CommandTask()
	t.Step = func(ctx context.Context) {
		d.commands.Drain(ctx)
	}
	return t
}

func (d *Daemon) animationTask(anim animation.Animation, strip *led.Strip) task.Task {
	t := d.cfg.AnimationTask(anim.Mode())
	logger := d.logger.With("task", t.Name)

	// failing is only touched by the task's own goroutine.
	var failing bool

	t.Step = func(ctx context.Context) {
		_, err := animation.Step(anim, d.flags, strip)
		switch {
		case err == nil:
			if failing {
				logger.Info("flushing frames again")
			}
			failing = false
		case !failing && !errors.Is(err, output.ErrNotReady):
			logger.Warn("failed to flush frame", "error", err)
			failing = true
		default:
			logger.Debug("failed to flush frame", "error", err)
		}
	}
	return t
}
