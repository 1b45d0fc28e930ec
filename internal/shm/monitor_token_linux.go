//go:build linux
// +build linux

// File: internal/shm/monitor_token_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux advisory locking for MonitorToken, via golang.org/x/sys/unix.Flock
// (BSD flock semantics: the lock belongs to the open file description and
// is released automatically when every descriptor referencing it is
// closed, including on process death), matching SPEC_FULL.md's explicit
// choice of unix.Flock for this role.

package shm

import (
	"os"

	"golang.org/x/sys/unix"
)

func lockExclusiveNonBlocking(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
