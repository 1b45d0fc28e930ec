//go:build windows
// +build windows

// File: internal/shm/monitor_token_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows advisory locking for MonitorToken, via LockFileEx/UnlockFileEx:
// an exclusive, non-blocking byte-range lock over the whole file, released
// by the OS when the owning handle closes (including on process death),
// mirroring the Linux flock's automatic-release-on-death property.

package shm

import (
	"os"

	"golang.org/x/sys/windows"
)

func lockExclusiveNonBlocking(f *os.File) error {
	var overlapped windows.Overlapped
	return windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0,
		^uint32(0), ^uint32(0),
		&overlapped,
	)
}

func unlockFile(f *os.File) error {
	var overlapped windows.Overlapped
	return windows.UnlockFileEx(
		windows.Handle(f.Fd()),
		0,
		^uint32(0), ^uint32(0),
		&overlapped,
	)
}
