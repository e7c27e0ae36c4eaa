package output

import (
	"image"
	"io"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"

	"libdb.so/tailglow/internal/led"
)

// DefaultSPIFreqKHz is the SPI clock used when none is configured. Each LED
// bit is sent as three SPI bits, so this gives the 800kHz WS2812 data rate
// plus some margin.
const DefaultSPIFreqKHz = 2500

// Drawer flushes frames to a periph display.Drawer, such as an nrzled strip
// or the terminal.
type Drawer struct {
	drawer display.Drawer
	closer io.Closer
}

// NewDrawer wraps a display.Drawer. closer, if not nil, is closed after the
// drawer is halted.
func NewDrawer(d display.Drawer, closer io.Closer) *Drawer {
	return &Drawer{drawer: d, closer: closer}
}

// OpenSPI opens a WS2812 strip on the given SPI port.
func OpenSPI(port string, freqKHz, numLEDs int) (*Drawer, error) {
	if freqKHz <= 0 {
		freqKHz = DefaultSPIFreqKHz
	}

	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host")
	}

	p, err := spireg.Open(port)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open SPI port %q", port)
	}

	d, err := NewNRZ(p, freqKHz, numLEDs)
	if err != nil {
		p.Close()
		return nil, err
	}
	d.closer = p
	return d, nil
}

// NewNRZ creates a WS2812 drawer on an already opened SPI port. The port is
// not closed by the returned Drawer.
func NewNRZ(p spi.Port, freqKHz, numLEDs int) (*Drawer, error) {
	dev, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: numLEDs,
		Channels:  3,
		Freq:      physic.Frequency(freqKHz) * physic.KiloHertz,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create nrzled device")
	}
	return NewDrawer(dev, nil), nil
}

// OpenConsole creates a drawer that prints the strip to the terminal.
func OpenConsole(numLEDs int) *Drawer {
	return NewDrawer(screen.New(numLEDs), nil)
}

// Flush implements led.Flusher.
func (d *Drawer) Flush(leds led.LEDs) error {
	if err := d.drawer.Draw(d.drawer.Bounds(), leds.Image(), image.Point{}); err != nil {
		return errors.Wrap(err, "failed to draw frame")
	}
	return nil
}

// Close turns the strip off and releases the device.
func (d *Drawer) Close() error {
	err := d.drawer.Halt()
	if d.closer != nil {
		if cerr := d.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
