package output

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libdb.so/tailglow/internal/led"
	"libdb.so/tailglow/ledserial"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeController is the device end of the serial link.
type fakeController struct {
	conn    net.Conn
	ackSets bool

	mu          sync.Mutex
	frames      [][]byte
	initialized bool
	inits       int
}

// reset makes the controller forget its initialization, as after a reboot.
func (c *fakeController) reset() {
	c.mu.Lock()
	c.initialized = false
	c.mu.Unlock()
}

func (c *fakeController) initCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inits
}

func (c *fakeController) run() {
	var rctx ledserial.ReadContext
	for {
		p, err := ledserial.ReadIncomingPacket(c.conn, rctx)
		if err != nil {
			return
		}

		switch p := p.(type) {
		case ledserial.InitializePacket:
			rctx.NumLEDs = p.NumLEDs
			c.mu.Lock()
			c.initialized = true
			c.inits++
			c.mu.Unlock()
			ledserial.WriteOutgoingPacket(c.conn, ledserial.LogPacket{Message: "initialized"})
		case ledserial.SetPacket:
			c.mu.Lock()
			initialized := c.initialized
			if initialized {
				c.frames = append(c.frames, append([]byte(nil), p.Pix...))
			}
			c.mu.Unlock()
			if !initialized {
				ledserial.WriteOutgoingPacket(c.conn, ledserial.ErrorPacket{Message: "set before initialize"})
				continue
			}
			if !c.ackSets {
				continue
			}
		}

		ledserial.WriteOutgoingPacket(c.conn, ledserial.AckPacket{IncomingPacketType: p.Type()})
	}
}

func (c *fakeController) lastFrame() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

func startSerial(t *testing.T, ackSets bool) (*Serial, *fakeController, func() error) {
	host, device := net.Pipe()
	ctrl := &fakeController{conn: device, ackSets: ackSets}
	go ctrl.run()

	s := NewSerial(host, 2, 20*time.Millisecond, discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		device.Close()
	})

	stop := func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(time.Second):
			return errors.New("Run did not return")
		}
	}

	return s, ctrl, stop
}

func TestSerialFlush(t *testing.T) {
	s, ctrl, stop := startSerial(t, true)

	frame := led.LEDs{led.Red, led.Blue}
	assert.Eventually(t, func() bool { return s.Flush(frame) == nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{255, 0, 0, 0, 0, 255}, ctrl.lastFrame())

	require.NoError(t, s.Flush(led.LEDs{led.Green, led.Black}))
	assert.Equal(t, []byte{0, 255, 0, 0, 0, 0}, ctrl.lastFrame())

	assert.True(t, errors.Is(stop(), context.Canceled))
	assert.NoError(t, s.Close(), "second close must be harmless")
}

func TestSerialNotReady(t *testing.T) {
	host, device := net.Pipe()
	defer device.Close()

	s := NewSerial(host, 1, 0, discard)
	err := s.Flush(led.LEDs{led.Red})
	assert.True(t, errors.Is(err, ErrNotReady))
}

func TestSerialAckTimeout(t *testing.T) {
	s, ctrl, _ := startSerial(t, false)

	// Wait for initialization, which is acked.
	var err error
	assert.Eventually(t, func() bool {
		err = s.Flush(led.LEDs{led.White, led.White})
		return !errors.Is(err, ErrNotReady)
	}, time.Second, 5*time.Millisecond)

	assert.True(t, errors.Is(err, ErrAckTimeout), "got %v", err)
	assert.Equal(t, []byte{255, 255, 255, 255, 255, 255}, ctrl.lastFrame())
}

func TestSerialReinitializesAfterReset(t *testing.T) {
	s, ctrl, _ := startSerial(t, true)

	frame := led.LEDs{led.Red, led.Blue}
	assert.Eventually(t, func() bool { return s.Flush(frame) == nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, ctrl.initCount())

	ctrl.reset()

	// The first frames after the reset go unacknowledged. Once enough are
	// missed the driver initializes the controller again.
	frame = led.LEDs{led.Green, led.Green}
	assert.Eventually(t, func() bool { return s.Flush(frame) == nil }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, ctrl.initCount())
	assert.Equal(t, []byte{0, 255, 0, 0, 255, 0}, ctrl.lastFrame())
}

func TestSerialMissedAcks(t *testing.T) {
	host, device := net.Pipe()
	defer device.Close()

	s := NewSerial(host, 1, 0, discard)
	s.setReady(true)

	timeout := errors.Wrap(ErrAckTimeout, "set packet")

	for i := 1; i < MaxMissedAcks; i++ {
		s.recordAck(timeout)
	}
	s.recordAck(nil)
	assert.True(t, s.isReady(), "an ack resets the count")

	for i := 0; i < MaxMissedAcks; i++ {
		s.recordAck(timeout)
	}
	assert.False(t, s.isReady())
	assert.Len(t, s.lost, 1, "Run is told to initialize again")

	// Flush fails fast instead of waiting out the ack timeout.
	assert.True(t, errors.Is(s.Flush(led.LEDs{led.Red}), ErrNotReady))
}

func TestOpen(t *testing.T) {
	d, err := Open(Options{Kind: NoDriver, NumLEDs: 3}, discard)
	require.NoError(t, err)
	assert.Equal(t, Discard{}, d)
	assert.NoError(t, d.Flush(led.NewLEDs(3)))

	_, err = Open(Options{Kind: "laser", NumLEDs: 3}, discard)
	assert.EqualError(t, err, `unknown output driver "laser"`)

	_, err = Open(Options{Kind: NoDriver}, discard)
	assert.EqualError(t, err, "invalid number of LEDs: 0")
}
