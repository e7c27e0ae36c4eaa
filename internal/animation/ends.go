package animation

import (
	"libdb.so/tailglow/internal/led"
	"libdb.so/tailglow/internal/mode"
)

// Blink alternates both ends of the strip between a color and black. The
// first frame is black. LEDs between the two ends are left alone.
type Blink struct {
	mode   mode.Name
	region int
	color  led.RGBColor
	on     bool
}

// NewBlink creates a blinking animation over the first and last region LEDs.
func NewBlink(m mode.Name, region int, color led.RGBColor) *Blink {
	return &Blink{mode: m, region: region, color: color}
}

func (b *Blink) Mode() mode.Name { return b.mode }

// On reports whether the next frame lights the ends.
func (b *Blink) On() bool { return b.on }

func (b *Blink) Render(leds led.LEDs) {
	color := led.Black
	if b.on {
		color = b.color
	}
	leds.SetEnds(b.region, color)
}

func (b *Blink) Advance() {
	b.on = !b.on
}

// Solid keeps both ends of the strip lit in one color.
type Solid struct {
	mode   mode.Name
	region int
	color  led.RGBColor
}

// NewSolid creates a solid animation over the first and last region LEDs.
func NewSolid(m mode.Name, region int, color led.RGBColor) *Solid {
	return &Solid{mode: m, region: region, color: color}
}

func (s *Solid) Mode() mode.Name { return s.mode }

func (s *Solid) Render(leds led.LEDs) {
	leds.SetEnds(s.region, s.color)
}

func (s *Solid) Advance() {}
