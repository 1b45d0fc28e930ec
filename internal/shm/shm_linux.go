//go:build linux
// +build linux

// File: internal/shm/shm_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux mapping primitives for DynamicStorage, backed by plain files under
// the configured segment directory rather than POSIX shm_open, so segments
// are visible on whatever filesystem the caller points at (including
// tmpfs-backed directories such as /dev/shm when configured that way).

package shm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/zerocopy-ipc/api"
)

const (
	dynamicStorageInitialPermission = 0o200
	dynamicStorageFinalPermission   = 0o600
)

// createSegmentInternal exclusively creates and maps a read-write segment
// of the given size at path.
func createSegmentInternal(path string, size uintptr) (segment, error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, dynamicStorageInitialPermission)
	if err != nil {
		if err == unix.EEXIST {
			return segment{}, api.Wrap(api.ErrCodeIdentity, "create dynamic storage segment "+path, api.ErrAlreadyExists)
		}
		return segment{}, fmt.Errorf("create dynamic storage segment %s: %w", path, err)
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return segment{}, fmt.Errorf("size dynamic storage segment %s: %w", path, err)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return segment{}, fmt.Errorf("map dynamic storage segment %s: %w", path, err)
	}

	return segment{
		base: unsafe.Pointer(&data[0]),
		size: size,
		close: func() error {
			munmapErr := unix.Munmap(data)
			closeErr := unix.Close(fd)
			if munmapErr != nil {
				return fmt.Errorf("unmap dynamic storage segment %s: %w", path, munmapErr)
			}
			if closeErr != nil {
				return fmt.Errorf("close dynamic storage segment %s: %w", path, closeErr)
			}
			return nil
		},
	}, nil
}

// openSegmentInternal opens and maps an existing segment read-write.
// Returns ErrDoesNotExist if path has never been created, or
// ErrIsBeingCreatedByAnotherInstance if it exists but is still
// write-only (not yet finalized by its creator).
func openSegmentInternal(path string) (segment, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		switch err {
		case unix.ENOENT:
			return segment{}, api.Wrap(api.ErrCodeIdentity, "open dynamic storage segment "+path, api.ErrDoesNotExist)
		case unix.EACCES:
			return segment{}, api.Wrap(api.ErrCodeIdentity, "open dynamic storage segment "+path, api.ErrIsBeingCreatedByAnotherInstance)
		default:
			return segment{}, fmt.Errorf("open dynamic storage segment %s: %w", path, err)
		}
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return segment{}, fmt.Errorf("stat dynamic storage segment %s: %w", path, err)
	}
	size := uintptr(stat.Size)

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return segment{}, fmt.Errorf("map dynamic storage segment %s: %w", path, err)
	}

	return segment{
		base: unsafe.Pointer(&data[0]),
		size: size,
		close: func() error {
			munmapErr := unix.Munmap(data)
			closeErr := unix.Close(fd)
			if munmapErr != nil {
				return fmt.Errorf("unmap dynamic storage segment %s: %w", path, munmapErr)
			}
			if closeErr != nil {
				return fmt.Errorf("close dynamic storage segment %s: %w", path, closeErr)
			}
			return nil
		},
	}, nil
}

// finalizeSegmentPermissions widens path from creator-only-write to
// owner-read-write, the single synchronization point openers poll for.
func finalizeSegmentPermissions(path string) error {
	if err := unix.Chmod(path, dynamicStorageFinalPermission); err != nil {
		return api.Wrap(api.ErrCodePermissions, "finalize dynamic storage segment "+path, err)
	}
	return nil
}
