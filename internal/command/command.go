// Package command turns inbound command messages into mode toggles and sends
// the resulting status out to publishers.
package command

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"libdb.so/tailglow/internal/mode"
)

var (
	// ErrEmptyCommand is returned for an empty message.
	ErrEmptyCommand = errors.New("empty command")
	// ErrUnknownCommand is returned when a message's first character is not a
	// known command token.
	ErrUnknownCommand = errors.New("unrecognized command")
)

// Tokens maps each command token to the mode it toggles.
var Tokens = map[byte]mode.Name{
	'B': mode.Reverse,
	'I': mode.Intermittent,
	'L': mode.Left,
	'R': mode.Right,
	'S': mode.Stop,
}

// Parse returns the mode toggled by a command message. Only the first
// character of the message counts; the rest is ignored.
func Parse(payload []byte) (mode.Name, error) {
	if len(payload) == 0 {
		return "", ErrEmptyCommand
	}
	name, ok := Tokens[payload[0]]
	if !ok {
		return "", errors.Wrapf(ErrUnknownCommand, "%q", payload[0])
	}
	return name, nil
}

// Publisher receives the status after every accepted command.
type Publisher interface {
	PublishStatus(ctx context.Context, status mode.Status) error
}

// PublisherFunc is a function that implements Publisher.
type PublisherFunc func(ctx context.Context, status mode.Status) error

// PublishStatus implements Publisher.
func (f PublisherFunc) PublishStatus(ctx context.Context, status mode.Status) error {
	return f(ctx, status)
}

// DefaultQueueSize is the number of commands that can wait in the queue.
const DefaultQueueSize = 16

// Channel is the command channel. Any number of goroutines may Deliver
// messages; Drain applies them one at a time, in arrival order.
type Channel struct {
	flags  *mode.Flags
	logger *slog.Logger
	queue  chan []byte

	pubMu      sync.Mutex
	publishers []Publisher
}

// NewChannel creates a command channel toggling the given flags.
func NewChannel(flags *mode.Flags, logger *slog.Logger, queueSize int) *Channel {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Channel{
		flags:  flags,
		logger: logger,
		queue:  make(chan []byte, queueSize),
	}
}

// AddPublisher registers a publisher. Publishers are called in the order they
// were added.
func (c *Channel) AddPublisher(p Publisher) {
	c.pubMu.Lock()
	c.publishers = append(c.publishers, p)
	c.pubMu.Unlock()
}

// Status returns the current status.
func (c *Channel) Status() mode.Status {
	return c.flags.Snapshot()
}

// Deliver queues a command message. The payload is copied. It blocks while the
// queue is full until ctx is done.
func (c *Channel) Deliver(ctx context.Context, payload []byte) error {
	msg := append([]byte(nil), payload...)

	select {
	case c.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain applies the commands queued at the time of the call, in arrival
// order, and returns how many it applied. Rejected commands are logged and
// dropped. Drain must only be called from one goroutine at a time; the
// daemon calls it from the command task every period.
func (c *Channel) Drain(ctx context.Context) int {
	n := len(c.queue)
	for i := 0; i < n; i++ {
		c.Apply(ctx, <-c.queue)
	}
	return n
}

// Apply parses and applies one command message right away, then publishes the
// new status. It bypasses the queue, so it is not ordered with respect to
// Drain.
func (c *Channel) Apply(ctx context.Context, payload []byte) (mode.Status, error) {
	name, err := Parse(payload)
	if err != nil {
		c.logger.Warn(
			"rejected command",
			"payload", string(payload),
			"error", err)
		return c.flags.Snapshot(), err
	}

	status, err := c.flags.Toggle(name)
	if err != nil {
		return status, errors.Wrap(err, "toggle")
	}

	c.logger.Info(
		"toggled mode",
		"mode", name,
		"enabled", status.Get(name),
		"default", status.Default)

	c.publish(ctx, status)
	return status, nil
}

func (c *Channel) publish(ctx context.Context, status mode.Status) {
	c.pubMu.Lock()
	publishers := c.publishers
	c.pubMu.Unlock()

	for _, p := range publishers {
		if err := p.PublishStatus(ctx, status); err != nil {
			c.logger.Warn(
				"failed to publish status",
				"status", status,
				"error", err)
		}
	}
}
