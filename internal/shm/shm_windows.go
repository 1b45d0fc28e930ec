//go:build windows
// +build windows

// File: internal/shm/shm_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows mapping primitives for DynamicStorage, built on CreateFile +
// CreateFileMapping + MapViewOfFile rather than POSIX mmap.

package shm

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/momentics/zerocopy-ipc/api"
)

const (
	dynamicStorageInitialPermission = 0o200
	dynamicStorageFinalPermission   = 0o600
)

// createSegmentInternal exclusively creates and maps a read-write segment
// of the given size at path.
func createSegmentInternal(path string, size uintptr) (segment, error) {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return segment{}, fmt.Errorf("convert dynamic storage path %s: %w", path, err)
	}

	handle, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.CREATE_NEW,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		if errors.Is(err, windows.ERROR_FILE_EXISTS) {
			return segment{}, api.Wrap(api.ErrCodeIdentity, "create dynamic storage segment "+path, api.ErrAlreadyExists)
		}
		return segment{}, fmt.Errorf("create dynamic storage segment %s: %w", path, err)
	}

	return mapHandle(path, handle, uint64(size))
}

// openSegmentInternal opens and maps an existing segment read-write.
func openSegmentInternal(path string) (segment, error) {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return segment{}, fmt.Errorf("convert dynamic storage path %s: %w", path, err)
	}

	handle, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		switch {
		case errors.Is(err, windows.ERROR_FILE_NOT_FOUND):
			return segment{}, api.Wrap(api.ErrCodeIdentity, "open dynamic storage segment "+path, api.ErrDoesNotExist)
		case errors.Is(err, windows.ERROR_ACCESS_DENIED):
			return segment{}, api.Wrap(api.ErrCodeIdentity, "open dynamic storage segment "+path, api.ErrIsBeingCreatedByAnotherInstance)
		default:
			return segment{}, fmt.Errorf("open dynamic storage segment %s: %w", path, err)
		}
	}

	var fileSize int64
	if fileSize, err = getFileSize(handle); err != nil {
		windows.CloseHandle(handle)
		return segment{}, fmt.Errorf("stat dynamic storage segment %s: %w", path, err)
	}

	return mapHandle(path, handle, uint64(fileSize))
}

func getFileSize(handle windows.Handle) (int64, error) {
	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(handle, &info); err != nil {
		return 0, err
	}
	return int64(info.FileSizeHigh)<<32 | int64(info.FileSizeLow), nil
}

func mapHandle(path string, handle windows.Handle, size uint64) (segment, error) {
	sizeHigh := uint32(size >> 32)
	sizeLow := uint32(size & 0xFFFFFFFF)

	mapping, err := windows.CreateFileMapping(handle, nil, windows.PAGE_READWRITE, sizeHigh, sizeLow, nil)
	if err != nil {
		windows.CloseHandle(handle)
		return segment{}, fmt.Errorf("create file mapping %s: %w", path, err)
	}

	addr, err := windows.MapViewOfFile(mapping, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(mapping)
		windows.CloseHandle(handle)
		return segment{}, fmt.Errorf("map view of file %s: %w", path, err)
	}

	return segment{
		base: unsafe.Pointer(addr),
		size: uintptr(size),
		close: func() error {
			unmapErr := windows.UnmapViewOfFile(addr)
			mapCloseErr := windows.CloseHandle(mapping)
			handleCloseErr := windows.CloseHandle(handle)
			if unmapErr != nil {
				return fmt.Errorf("unmap dynamic storage segment %s: %w", path, unmapErr)
			}
			if mapCloseErr != nil {
				return fmt.Errorf("close file mapping %s: %w", path, mapCloseErr)
			}
			if handleCloseErr != nil {
				return fmt.Errorf("close dynamic storage segment %s: %w", path, handleCloseErr)
			}
			return nil
		},
	}, nil
}

// finalizeSegmentPermissions is a no-op on Windows: CreateFile's sharing
// mode, not file ACLs, governs visibility here, and the version word itself
// is the finalize signal openers check.
func finalizeSegmentPermissions(path string) error {
	return nil
}
