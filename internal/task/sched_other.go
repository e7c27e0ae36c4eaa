//go:build !linux

package task

import "github.com/pkg/errors"

var errUnsupported = errors.New("not supported on this platform")

func setPriority(priority int) error { return errUnsupported }

func pinToCore(core int) error { return errUnsupported }
