package output

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"

	"libdb.so/tailglow/internal/led"
	"libdb.so/tailglow/ledserial"
)

// DefaultAckTimeout is how long a flush waits for the controller to
// acknowledge a frame when no timeout is configured.
const DefaultAckTimeout = 50 * time.Millisecond

var (
	// ErrAckTimeout is returned when the controller does not acknowledge a
	// packet in time.
	ErrAckTimeout = errors.New("timed out waiting for ack")
	// ErrNotReady is returned by Flush before the controller has been
	// initialized.
	ErrNotReady = errors.New("controller not initialized")
)

// Runner is implemented by drivers that need a background loop.
type Runner interface {
	// Run runs the loop until ctx is canceled.
	Run(ctx context.Context) error
}

// Serial flushes frames to an LED controller over a serial port. Run must be
// running for Flush to succeed.
type Serial struct {
	port       io.ReadWriteCloser
	logger     *slog.Logger
	numLEDs    int
	ackTimeout time.Duration

	writeMu sync.Mutex
	acks    chan ledserial.IncomingPacketType

	stateMu sync.Mutex
	ready   bool
	missed  int
	lost    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// MaxMissedAcks is the number of consecutive unacknowledged frames after which
// the controller is considered lost, such as after a reset, and is
// initialized again.
const MaxMissedAcks = 3

var (
	_ Driver = (*Serial)(nil)
	_ Runner = (*Serial)(nil)
)

// OpenSerial opens the serial device and returns a driver for it.
func OpenSerial(device string, baud, numLEDs int, ackTimeout time.Duration, logger *slog.Logger) (*Serial, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open serial port")
	}

	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to reset read timeout")
	}

	return NewSerial(port, numLEDs, ackTimeout, logger), nil
}

// NewSerial creates a driver speaking to a controller over port.
func NewSerial(port io.ReadWriteCloser, numLEDs int, ackTimeout time.Duration, logger *slog.Logger) *Serial {
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	return &Serial{
		port:       port,
		logger:     logger,
		numLEDs:    numLEDs,
		ackTimeout: ackTimeout,
		acks:       make(chan ledserial.IncomingPacketType, 1),
		lost:       make(chan struct{}, 1),
	}
}

// Run reads packets from the controller and initializes it, again every time
// the controller stops acknowledging frames. It returns when ctx is canceled
// or the port fails; the port is closed on return.
func (s *Serial) Run(ctx context.Context) error {
	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		<-ctx.Done()
		s.logger.Debug("closing serial port")
		if err := s.Close(); err != nil {
			return errors.Wrap(err, "failed to close serial port")
		}
		return ctx.Err()
	})
	errg.Go(func() error {
		return s.readPackets(ctx)
	})
	errg.Go(func() error {
		return s.maintain(ctx)
	})
	return errg.Wait()
}

func (s *Serial) maintain(ctx context.Context) error {
	for {
		if err := s.initialize(ctx); err != nil {
			return err
		}

		// Losses reported before this initialization are stale.
		select {
		case <-s.lost:
		default:
		}
		s.setReady(true)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.lost:
			s.logger.Warn("controller stopped acknowledging frames, initializing again")
		}
	}
}

func (s *Serial) initialize(ctx context.Context) error {
	for ctx.Err() == nil {
		s.logger.Debug("sending initialize packet", "num_leds", s.numLEDs)

		err := s.send(ledserial.InitializePacket{NumLEDs: uint16(s.numLEDs)})
		if err == nil {
			return nil
		}

		s.logger.Warn(
			"failed to initialize controller, retrying",
			"error", err)

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	}
	return ctx.Err()
}

func (s *Serial) readPackets(ctx context.Context) error {
	for ctx.Err() == nil {
		p, err := ledserial.ReadOutgoingPacket(s.port)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A bad checksum only loses one packet; the next flush will
			// time out and carry on.
			if errors.Is(err, ledserial.ErrChecksumMismatch) {
				s.logger.Warn("dropped corrupted packet from controller")
				continue
			}
			return errors.Wrap(err, "failed to read packet")
		}

		switch p := p.(type) {
		case ledserial.AckPacket:
			select {
			case s.acks <- p.IncomingPacketType:
			default:
			}

		case ledserial.ErrorPacket:
			s.logger.Warn(
				"received error packet from controller",
				"message", p.Message)

		case ledserial.PanicPacket:
			s.logger.Error("controller unrecoverably panicked")

		case ledserial.LogPacket:
			s.logger.Info(
				"received log packet from controller",
				"message", p.Message)

		default:
			s.logger.Warn(
				"received unknown packet from controller",
				"type", p.Type())
		}
	}

	return ctx.Err()
}

// Flush implements led.Flusher. It sends the frame and waits at most the ack
// timeout for the controller to acknowledge it.
//
// After MaxMissedAcks consecutive timeouts, Flush returns ErrNotReady until Run
// has initialized the controller again.
func (s *Serial) Flush(leds led.LEDs) error {
	if !s.isReady() {
		return ErrNotReady
	}

	err := s.send(ledserial.SetPacket{Pix: leds.AsPixels()})
	s.recordAck(err)
	return err
}

func (s *Serial) isReady() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.ready
}

func (s *Serial) setReady(ready bool) {
	s.stateMu.Lock()
	s.ready = ready
	s.missed = 0
	s.stateMu.Unlock()
}

func (s *Serial) recordAck(err error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if !errors.Is(err, ErrAckTimeout) {
		s.missed = 0
		return
	}

	s.missed++
	if s.missed < MaxMissedAcks || !s.ready {
		return
	}

	s.ready = false
	s.missed = 0

	select {
	case s.lost <- struct{}{}:
	default:
	}
}

// Close closes the serial port. It is safe to call more than once.
func (s *Serial) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.port.Close() })
	return s.closeErr
}

func (s *Serial) send(p ledserial.IncomingPacket) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Drop any late ack from an earlier packet.
	select {
	case <-s.acks:
	default:
	}

	if err := ledserial.WriteIncomingPacket(s.port, p); err != nil {
		return errors.Wrapf(err, "failed to write %s packet", p.Type())
	}

	timer := time.NewTimer(s.ackTimeout)
	defer timer.Stop()

	for {
		select {
		case acked := <-s.acks:
			if acked == p.Type() {
				return nil
			}
		case <-timer.C:
			return errors.Wrapf(ErrAckTimeout, "%s packet", p.Type())
		}
	}
}
