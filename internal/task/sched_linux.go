//go:build linux

package task

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// setPriority sets the nice level of the calling thread. The highest priority
// maps to the process's default nice level 0 and lower priorities are niced
// down, so no privileges are needed.
func setPriority(priority int) error {
	nice := MaxPriority - priority
	if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), nice); err != nil {
		return errors.Wrap(err, "setpriority")
	}
	return nil
}

// pinToCore restricts the calling thread to the given core.
func pinToCore(core int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return errors.Wrap(err, "sched_setaffinity")
	}
	return nil
}
