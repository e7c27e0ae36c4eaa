package animation

import (
	"libdb.so/tailglow/internal/led"
	"libdb.so/tailglow/internal/mode"
)

// Direction is the direction a chase moves in.
type Direction int8

const (
	// Forward moves from the first LED towards the last.
	Forward Direction = 1
	// Backward moves from the last LED towards the first.
	Backward Direction = -1
)

// Chase clears the strip and lights a block of LEDs that moves one LED per
// frame, wrapping around at the end.
//
// Moving forward, the block covers [pos, pos+width) and pos cycles through
// 0..n-width. Moving backward, it covers (pos-width, pos] and pos cycles
// through n-1..width-1.
type Chase struct {
	mode  mode.Name
	n     int
	width int
	dir   Direction
	color led.RGBColor
	pos   int
}

// NewChase creates a chase over a strip of n LEDs.
func NewChase(m mode.Name, n, width int, dir Direction, color led.RGBColor) *Chase {
	if width < 1 {
		width = 1
	}
	c := &Chase{
		mode:  m,
		n:     n,
		width: width,
		dir:   dir,
		color: color,
	}
	c.pos = c.first()
	return c
}

func (c *Chase) Mode() mode.Name { return c.mode }

// Position returns the anchor LED of the next frame's block.
func (c *Chase) Position() int { return c.pos }

func (c *Chase) Render(leds led.LEDs) {
	leds.Fill(led.Black)
	if c.n < c.width {
		return
	}
	start := c.pos
	if c.dir == Backward {
		start = c.pos - c.width + 1
	}
	leds.SetRange(start, start+c.width, c.color)
}

func (c *Chase) Advance() {
	switch c.dir {
	case Forward:
		c.pos++
		if c.pos > c.n-c.width {
			c.pos = c.first()
		}
	case Backward:
		// Mirror of Forward: the block's far edge stops at LED 0, so pos
		// never goes below width-1.
		c.pos--
		if c.pos < c.width-1 {
			c.pos = c.first()
		}
	}
}

func (c *Chase) first() int {
	if c.dir == Backward {
		return c.n - 1
	}
	return 0
}
