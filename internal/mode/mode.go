// Package mode holds the animation mode flags. Every non-default mode can be
// toggled on its own; the default mode is derived and is on exactly when every
// other mode is off.
package mode

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Name is the name of an animation mode.
type Name string

const (
	Default      Name = "default"
	Reverse      Name = "reverse"
	Intermittent Name = "intermittent"
	Left         Name = "left"
	Right        Name = "right"
	Stop         Name = "stop"
)

// All lists every mode, default first.
var All = []Name{Default, Reverse, Intermittent, Left, Right, Stop}

// Toggleable lists the modes that can be toggled.
var Toggleable = []Name{Reverse, Intermittent, Left, Right, Stop}

// ErrUnknownMode is returned when a mode name is not recognized or cannot be
// toggled.
var ErrUnknownMode = errors.New("unknown mode")

// ParseName parses a mode name.
func ParseName(s string) (Name, error) {
	for _, name := range All {
		if string(name) == s {
			return name, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownMode, "%q", s)
}

const (
	defaultBit uint32 = 1 << iota
	reverseBit
	intermittentBit
	leftBit
	rightBit
	stopBit
)

func (n Name) bit() (uint32, bool) {
	switch n {
	case Default:
		return defaultBit, true
	case Reverse:
		return reverseBit, true
	case Intermittent:
		return intermittentBit, true
	case Left:
		return leftBit, true
	case Right:
		return rightBit, true
	case Stop:
		return stopBit, true
	default:
		return 0, false
	}
}

// Status is a snapshot of every mode flag. It is the status payload sent out
// after each accepted command.
type Status struct {
	Default      bool `json:"default"`
	Reverse      bool `json:"reverse"`
	Intermittent bool `json:"intermittent"`
	Left         bool `json:"left"`
	Right        bool `json:"right"`
	Stop         bool `json:"stop"`
}

// Get returns the flag for the given mode.
func (s Status) Get(n Name) bool {
	switch n {
	case Default:
		return s.Default
	case Reverse:
		return s.Reverse
	case Intermittent:
		return s.Intermittent
	case Left:
		return s.Left
	case Right:
		return s.Right
	case Stop:
		return s.Stop
	default:
		return false
	}
}

func (s Status) String() string {
	return fmt.Sprintf(
		"default=%t reverse=%t intermittent=%t left=%t right=%t stop=%t",
		s.Default, s.Reverse, s.Intermittent, s.Left, s.Right, s.Stop)
}

// Flags is the set of mode flags. All flags live in a single word, so a reader
// sees either the state before or after a toggle and never a mix. The zero
// value has every flag off; use NewFlags for the startup state.
type Flags struct {
	bits atomic.Uint32
}

// NewFlags returns flags with only the default mode enabled.
func NewFlags() *Flags {
	f := &Flags{}
	f.bits.Store(defaultBit)
	return f
}

// Enabled reports whether the given mode is enabled. It never blocks.
func (f *Flags) Enabled(n Name) bool {
	bit, ok := n.bit()
	return ok && f.bits.Load()&bit != 0
}

// Toggle flips the given mode and recomputes the default flag. It returns the
// status right after the change. Only the modes in Toggleable are accepted;
// anything else returns ErrUnknownMode and leaves the flags untouched.
func (f *Flags) Toggle(n Name) (Status, error) {
	bit, ok := n.bit()
	if !ok || bit == defaultBit {
		return f.Snapshot(), errors.Wrapf(ErrUnknownMode, "cannot toggle %q", n)
	}

	for {
		old := f.bits.Load()
		next := (old ^ bit) &^ defaultBit
		if next == 0 {
			next = defaultBit
		}
		if f.bits.CompareAndSwap(old, next) {
			return statusOf(next), nil
		}
	}
}

// Snapshot returns the current status.
func (f *Flags) Snapshot() Status {
	return statusOf(f.bits.Load())
}

func statusOf(bits uint32) Status {
	return Status{
		Default:      bits&defaultBit != 0,
		Reverse:      bits&reverseBit != 0,
		Intermittent: bits&intermittentBit != 0,
		Left:         bits&leftBit != 0,
		Right:        bits&rightBit != 0,
		Stop:         bits&stopBit != 0,
	}
}
