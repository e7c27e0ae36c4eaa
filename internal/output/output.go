// Package output implements the drivers that flush frames to a physical (or
// simulated) LED strip.
package output

import (
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"libdb.so/tailglow/internal/led"
)

// Driver flushes frames to a strip.
type Driver interface {
	led.Flusher
	io.Closer
}

// Kind names a driver.
type Kind string

const (
	// SerialDriver sends frames to a microcontroller over a serial port using
	// the ledserial protocol.
	SerialDriver Kind = "serial"
	// SPIDriver drives a WS2812 strip directly from an SPI port.
	SPIDriver Kind = "spi"
	// ConsoleDriver prints frames to the terminal.
	ConsoleDriver Kind = "console"
	// NoDriver discards frames.
	NoDriver Kind = "none"
)

// Kinds lists every driver kind.
var Kinds = []Kind{SerialDriver, SPIDriver, ConsoleDriver, NoDriver}

// Options configures Open.
type Options struct {
	Kind Kind
	// NumLEDs is the length of the strip.
	NumLEDs int

	// Pin is the SPI port name for the spi driver. An empty name opens the
	// first port available.
	Pin string
	// SPIFreqKHz is the SPI clock for the spi driver.
	SPIFreqKHz int

	// Device is the serial device path for the serial driver.
	Device string
	// Baud is the baud rate for the serial driver.
	Baud int
	// AckTimeout bounds how long a serial flush waits for the controller.
	AckTimeout time.Duration
}

// Open opens the driver described by opts. Drivers that need a background
// loop (see Runner) must have it started by the caller.
func Open(opts Options, logger *slog.Logger) (Driver, error) {
	if opts.NumLEDs < 1 {
		return nil, errors.Errorf("invalid number of LEDs: %d", opts.NumLEDs)
	}

	switch opts.Kind {
	case SerialDriver:
		return OpenSerial(opts.Device, opts.Baud, opts.NumLEDs, opts.AckTimeout, logger)
	case SPIDriver:
		return OpenSPI(opts.Pin, opts.SPIFreqKHz, opts.NumLEDs)
	case ConsoleDriver:
		return OpenConsole(opts.NumLEDs), nil
	case NoDriver, "":
		return Discard{}, nil
	default:
		return nil, errors.Errorf("unknown output driver %q", opts.Kind)
	}
}

// Discard is a driver that drops every frame.
type Discard struct{}

func (Discard) Flush(led.LEDs) error { return nil }
func (Discard) Close() error         { return nil }
