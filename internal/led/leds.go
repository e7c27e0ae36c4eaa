package led

import (
	"image"
	"unsafe"
)

// LEDs describes a strip of LEDs. It is a preallocated slice of RGBColor.
// All index-taking methods clamp or ignore indices outside [0, len(l)), so
// callers never fault on short strips.
type LEDs []RGBColor

// NewLEDs creates a new strip of LEDs. Colors are initialized to black
// (off).
func NewLEDs(numLEDs int) LEDs {
	return make(LEDs, numLEDs)
}

// AsPixels returns the LED strip as a slice of uint8 values. Each LED is
// represented by three values, one for each color channel. The returned slice
// aliases l.
func (l LEDs) AsPixels() []uint8 {
	if len(l) == 0 {
		return nil
	}
	return unsafe.Slice((*uint8)(unsafe.Pointer(&l[0])), 3*len(l))
}

// Set sets the color of the LED at the given index. It reports false and
// writes nothing if i is out of range.
func (l LEDs) Set(i int, c RGBColor) bool {
	if i < 0 || i >= len(l) {
		return false
	}
	l[i] = c
	return true
}

// SetRange sets the color of the LEDs in [start, end), clamped to the strip.
func (l LEDs) SetRange(start, end int, c RGBColor) {
	start, end = l.clamp(start, end)
	for i := start; i < end; i++ {
		l[i] = c
	}
}

// Fill sets every LED to c.
func (l LEDs) Fill(c RGBColor) {
	for i := range l {
		l[i] = c
	}
}

// Head returns the half-open range covering the first n LEDs, clamped to the
// strip.
func (l LEDs) Head(n int) (start, end int) {
	return l.clamp(0, n)
}

// Tail returns the half-open range covering the last n LEDs, clamped to the
// strip.
func (l LEDs) Tail(n int) (start, end int) {
	return l.clamp(len(l)-n, len(l))
}

// SetEnds sets the first n and the last n LEDs to c. When the strip is shorter
// than 2n the two regions overlap and the shared LEDs are simply set twice.
func (l LEDs) SetEnds(n int, c RGBColor) {
	start, end := l.Head(n)
	l.SetRange(start, end, c)
	start, end = l.Tail(n)
	l.SetRange(start, end, c)
}

func (l LEDs) clamp(start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > len(l) {
		end = len(l)
	}
	if end < start {
		end = start
	}
	return start, end
}

// Scaled returns a copy of the strip with the global brightness applied.
func (l LEDs) Scaled(brightness uint8) LEDs {
	out := make(LEDs, len(l))
	for i, c := range l {
		out[i] = c.Scale(brightness)
	}
	return out
}

// Image returns the strip as a single-row image, one pixel per LED.
func (l LEDs) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, len(l), 1))
	for x, c := range l {
		img.SetNRGBA(x, 0, c.NRGBA())
	}
	return img
}
