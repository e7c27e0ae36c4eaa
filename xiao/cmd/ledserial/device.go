package main

import (
	"fmt"
	"image/color"
	"machine"

	"libdb.so/tailglow/ledserial"
	"tinygo.org/x/drivers/ws2812"
)

// Device stores the current state of the device.
type Device struct {
	serial SerialReadWriter
	led    ws2812.Device

	numLEDs uint16
	pixels  []byte
	colors  []color.RGBA
}

// NewDevice creates a new device.
func NewDevice(serial machine.Serialer, ledPin machine.Pin) *Device {
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &Device{
		serial: WrapSerial(serial),
		led:    ws2812.New(ledPin),
	}
}

// Run runs the device loop forever.
func (d *Device) Run() {
	for {
		p, err := d.readPacket()
		if err != nil {
			d.logError(err)
			continue
		}

		if err := d.handlePacket(p); err != nil {
			d.logError(err)
			continue
		}

		d.sendPacket(ledserial.AckPacket{
			IncomingPacketType: p.Type(),
		})
	}
}

func (d *Device) log(msg string) {
	d.sendPacket(ledserial.LogPacket{Message: msg})
}

func (d *Device) logError(err error) {
	showMainLED(errorColor)
	d.sendPacket(ledserial.ErrorPacket{Message: err.Error()})
}

func (d *Device) sendPacket(p ledserial.OutgoingPacket) {
	ledserial.WriteOutgoingPacket(d.serial, p)
}

func (d *Device) readPacket() (ledserial.IncomingPacket, error) {
	showMainLED(readingColor)
	defer turnOffMainLED()

	return ledserial.ReadIncomingPacket(d.serial, ledserial.ReadContext{
		NumLEDs: d.numLEDs,
		Buffer:  d.pixels,
	})
}

func (d *Device) handlePacket(p ledserial.IncomingPacket) error {
	switch p := p.(type) {
	case ledserial.InitializePacket:
		if p.NumLEDs < 1 {
			return fmt.Errorf("invalid number of LEDs: %d", p.NumLEDs)
		}
		d.numLEDs = p.NumLEDs
		d.pixels = make([]byte, 3*int(p.NumLEDs))
		d.colors = make([]color.RGBA, p.NumLEDs)
		d.log(fmt.Sprintf("initialized %d LEDs", p.NumLEDs))
		return d.clear()

	case ledserial.ClearPacket:
		if d.numLEDs == 0 {
			return fmt.Errorf("clear before initialize")
		}
		return d.clear()

	case ledserial.SetPacket:
		if d.numLEDs == 0 {
			return fmt.Errorf("set before initialize")
		}
		for i := range d.colors {
			d.colors[i] = color.RGBA{
				R: p.Pix[3*i],
				G: p.Pix[3*i+1],
				B: p.Pix[3*i+2],
				A: 0xFF,
			}
		}
		return d.led.WriteColors(d.colors)

	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}
}

func (d *Device) clear() error {
	for i := range d.colors {
		d.colors[i] = color.RGBA{A: 0xFF}
	}
	return d.led.WriteColors(d.colors)
}
