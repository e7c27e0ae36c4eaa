// Package animation implements the LED animations. Each animation owns its
// progress state and is driven once per period by Step.
package animation

import (
	"libdb.so/tailglow/internal/led"
	"libdb.so/tailglow/internal/mode"
)

// Animation draws one pattern into the frame buffer per period.
type Animation interface {
	// Mode returns the mode flag gating this animation.
	Mode() mode.Name
	// Render draws the current frame into leds. It is called with the strip
	// held and must not block.
	Render(leds led.LEDs)
	// Advance moves the animation to its next frame. It is called after the
	// strip is released.
	Advance()
}

// Enabler reports whether a mode is enabled.
type Enabler interface {
	Enabled(mode.Name) bool
}

// Step runs one period of the animation: if its mode is enabled, it renders
// into the strip, flushes and advances. It reports whether the animation ran.
// The returned error is the flush error; progress advances regardless.
func Step(a Animation, flags Enabler, strip *led.Strip) (bool, error) {
	if !flags.Enabled(a.Mode()) {
		return false, nil
	}
	err := strip.Render(a.Render)
	a.Advance()
	return true, err
}

// Options configures the geometry of the animations.
type Options struct {
	// Region is the number of LEDs lit at each end of the strip by the
	// reverse, intermittent and stop animations.
	Region int
	// ChaseWidth is the width of the moving block in the chase animations.
	ChaseWidth int
}

// DefaultOptions are the options used when none are given.
var DefaultOptions = Options{
	Region:     15,
	ChaseWidth: 2,
}

// NewSet creates one animation per mode for a strip of numLEDs LEDs, in the
// order of mode.All.
func NewSet(numLEDs int, opts Options) []Animation {
	return []Animation{
		NewRainbow(mode.Default),
		NewBlink(mode.Reverse, opts.Region, led.White),
		NewBlink(mode.Intermittent, opts.Region, led.Amber),
		NewChase(mode.Left, numLEDs, opts.ChaseWidth, Forward, led.Blue),
		NewChase(mode.Right, numLEDs, opts.ChaseWidth, Backward, led.Green),
		NewSolid(mode.Stop, opts.Region, led.Red),
	}
}
