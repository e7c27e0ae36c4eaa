package main

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers/ws2812"
)

// The onboard NeoPixel shows what the firmware is doing.
// https://wiki.seeedstudio.com/XIAO-RP2040-with-Arduino/
var (
	mainLED      ws2812.Device
	mainLEDPower = machine.GPIO11
	mainLEDReady bool
)

var (
	readingColor = color.RGBA{G: 16, A: 0xFF}
	errorColor   = color.RGBA{R: 32, A: 0xFF}
)

func initMainLED() {
	if mainLEDReady {
		return
	}

	mainLEDPower.Configure(machine.PinConfig{Mode: machine.PinOutput})
	mainLEDPower.Low()

	machine.GPIO12.Configure(machine.PinConfig{Mode: machine.PinOutput})
	mainLED = ws2812.New(machine.GPIO12)

	mainLEDReady = true
}

func showMainLED(c color.RGBA) {
	initMainLED()
	mainLEDPower.High()
	mainLED.WriteColors([]color.RGBA{c})
}

func turnOffMainLED() {
	initMainLED()
	mainLEDPower.Low()
}
