package led

import (
	"fmt"
	"image/color"
)

// RGBColor is a single pixel value. There is no alpha channel; black is off.
type RGBColor [3]uint8

// Named colors used by the animations.
var (
	Black = RGBColor{0, 0, 0}
	White = RGBColor{255, 255, 255}
	Red   = RGBColor{255, 0, 0}
	Green = RGBColor{0, 255, 0}
	Blue  = RGBColor{0, 0, 255}
	Amber = RGBColor{255, 100, 0}
)

// Scale scales every channel by (brightness+1)/256. A brightness of 255 leaves
// the color unchanged and 0 turns it off.
func (c RGBColor) Scale(brightness uint8) RGBColor {
	scale := uint16(brightness) + 1
	return RGBColor{
		uint8(uint16(c[0]) * scale >> 8),
		uint8(uint16(c[1]) * scale >> 8),
		uint8(uint16(c[2]) * scale >> 8),
	}
}

// NRGBA converts the color to an opaque color.NRGBA.
func (c RGBColor) NRGBA() color.NRGBA {
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: 0xFF}
}

func (c RGBColor) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
