package animation

import (
	"libdb.so/tailglow/internal/led"
	"libdb.so/tailglow/internal/mode"
)

const (
	// RainbowHueStep is how far the starting hue moves every frame.
	RainbowHueStep = 1
	// RainbowHueDelta is the hue difference between neighboring LEDs.
	RainbowHueDelta = 7
)

// Rainbow fills the whole strip with a rotating rainbow.
type Rainbow struct {
	mode mode.Name
	hue  uint8
}

// NewRainbow creates a rainbow starting at hue 0.
func NewRainbow(m mode.Name) *Rainbow {
	return &Rainbow{mode: m}
}

func (r *Rainbow) Mode() mode.Name { return r.mode }

// Hue returns the hue of the first LED in the next frame.
func (r *Rainbow) Hue() uint8 { return r.hue }

func (r *Rainbow) Render(leds led.LEDs) {
	leds.FillRainbow(r.hue, RainbowHueDelta)
}

func (r *Rainbow) Advance() {
	r.hue += RainbowHueStep
}
