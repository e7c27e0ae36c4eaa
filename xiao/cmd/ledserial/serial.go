package main

import (
	"io"
	"machine"
	"runtime"
	"time"
)

// pollInterval is how long Read sleeps while no byte is buffered.
const pollInterval = time.Millisecond

// SerialReadWriter is a serial device usable as an io.ReadWriter.
type SerialReadWriter interface {
	io.ReadWriter
	io.ByteReader
	io.ByteWriter
}

type serialIO struct {
	machine.Serialer
}

// WrapSerial wraps a machine.Serialer in a blocking io.ReadWriter.
func WrapSerial(serial machine.Serialer) SerialReadWriter {
	return serialIO{Serialer: serial}
}

// Read blocks until at least one byte is buffered, then reads as many
// buffered bytes as fit in b.
func (s serialIO) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	for s.Buffered() == 0 {
		time.Sleep(pollInterval)
	}

	var n int
	for n < len(b) && s.Buffered() > 0 {
		c, err := s.ReadByte()
		if err != nil {
			return n, err
		}
		b[n] = c
		n++
	}
	return n, nil
}

func (s serialIO) Write(b []byte) (int, error) {
	for i, c := range b {
		if err := s.WriteByte(c); err != nil {
			return i, err
		}
	}
	runtime.Gosched()
	return len(b), nil
}
