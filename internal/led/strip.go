package led

import "sync"

// Flusher transmits a frame to the physical strip.
type Flusher interface {
	// Flush writes the given frame out. The frame must not be retained after
	// Flush returns.
	Flush(LEDs) error
}

// FlusherFunc is a function that implements Flusher.
type FlusherFunc func(LEDs) error

// Flush implements Flusher.
func (f FlusherFunc) Flush(l LEDs) error { return f(l) }

// Strip guards the frame buffer and the flush operation. Only one caller
// holds the strip at a time.
type Strip struct {
	mu         sync.Mutex
	leds       LEDs
	out        Flusher
	brightness uint8
}

// NewStrip creates a strip of numLEDs black LEDs flushed through out with full
// brightness.
func NewStrip(numLEDs int, out Flusher) *Strip {
	return &Strip{
		leds:       NewLEDs(numLEDs),
		out:        out,
		brightness: 255,
	}
}

// SetBrightness sets the global brightness applied when flushing.
func (s *Strip) SetBrightness(brightness uint8) {
	s.mu.Lock()
	s.brightness = brightness
	s.mu.Unlock()
}

// Render acquires the strip, lets f draw into the frame buffer, flushes the
// frame and releases the strip. The strip is released even if f or the
// flusher panics. f must not keep the LEDs after it returns.
func (s *Strip) Render(f func(LEDs)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f(s.leds)
	return s.flush()
}

// Clear turns every LED off and flushes.
func (s *Strip) Clear() error {
	return s.Render(func(l LEDs) { l.Fill(Black) })
}

// Snapshot returns a copy of the current frame buffer, without brightness
// applied.
func (s *Strip) Snapshot() LEDs {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append(LEDs(nil), s.leds...)
}

func (s *Strip) flush() error {
	if s.out == nil {
		return nil
	}
	if s.brightness == 255 {
		return s.out.Flush(s.leds)
	}
	return s.out.Flush(s.leds.Scaled(s.brightness))
}
