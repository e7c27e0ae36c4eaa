// Command ledserial is the firmware for a Seeed XIAO RP2040 driving a WS2812
// strip on D10. It speaks the ledserial protocol over USB serial.
package main

import "machine"

func main() {
	NewDevice(machine.Serial, machine.D10).Run()
}
