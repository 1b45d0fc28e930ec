// File: internal/shm/dynamic_storage.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DynamicStorage maps a generic payload T into a named shared-memory
// segment: a 64-bit version word precedes T in the mapping, letting openers
// distinguish "not yet finalized" (version == 0) from "finalized" (version
// matches) from "foreign/incompatible" (version mismatch) without any
// separate synchronization file. The platform-specific create/open/mmap
// primitives live in shm_linux.go and shm_windows.go, selected at compile
// time by build tag.

package shm

import (
	"errors"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/memory"
)

// currentVersion is the layout version this build writes and expects.
const currentVersion uint64 = 1

const dynamicStorageHeaderSize = unsafe.Sizeof(uint64(0))

// segment is the platform-specific result of mapping a shared memory file.
type segment struct {
	base  unsafe.Pointer
	size  uintptr
	close func() error
}

// DynamicStorage is an opened, mapped T-carrying shared memory segment.
type DynamicStorage[T any] struct {
	name         string
	seg          segment
	data         *T
	version      *atomic.Uint64
	hasOwnership atomic.Bool
}

// Name returns the segment's identifying path.
func (s *DynamicStorage[T]) Name() string { return s.name }

// Get returns a pointer to the mapped payload.
func (s *DynamicStorage[T]) Get() *T { return s.data }

// HasOwnership reports whether this handle removes the segment on Close.
func (s *DynamicStorage[T]) HasOwnership() bool { return s.hasOwnership.Load() }

// AcquireOwnership marks this handle as responsible for removal on Close.
func (s *DynamicStorage[T]) AcquireOwnership() { s.hasOwnership.Store(true) }

// ReleaseOwnership marks this handle as not responsible for removal.
func (s *DynamicStorage[T]) ReleaseOwnership() { s.hasOwnership.Store(false) }

// Close unmaps the segment and, if owned, removes the backing file.
func (s *DynamicStorage[T]) Close() error {
	err := s.seg.close()
	if s.hasOwnership.Load() {
		if rmErr := RemoveDynamicStorage(s.name); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

// DynamicStorageBuilder configures a create-or-open of a named
// DynamicStorage[T].
type DynamicStorageBuilder[T any] struct {
	path              string
	supplementarySize uintptr
	hasOwnership      bool
	timeout           time.Duration
	initializer       func(data *T, alloc memory.Allocator) bool
}

// NewDynamicStorageBuilder starts a builder for the segment at path.
func NewDynamicStorageBuilder[T any](path string) *DynamicStorageBuilder[T] {
	return &DynamicStorageBuilder[T]{path: path, hasOwnership: true}
}

// SupplementarySize reserves extra bytes after T for variable-length data,
// handed to the initializer as a bump allocator.
func (b *DynamicStorageBuilder[T]) SupplementarySize(v uintptr) *DynamicStorageBuilder[T] {
	b.supplementarySize = v
	return b
}

// HasOwnership sets whether the resulting storage removes itself on Close.
func (b *DynamicStorageBuilder[T]) HasOwnership(v bool) *DynamicStorageBuilder[T] {
	b.hasOwnership = v
	return b
}

// Timeout bounds how long Open waits for a concurrent creator to finish.
func (b *DynamicStorageBuilder[T]) Timeout(v time.Duration) *DynamicStorageBuilder[T] {
	b.timeout = v
	return b
}

// Initializer supplies a function to construct T (and any supplementary
// data) in place over the freshly mapped, zeroed segment. It must return
// false on failure, aborting the create.
func (b *DynamicStorageBuilder[T]) Initializer(fn func(*T, memory.Allocator) bool) *DynamicStorageBuilder[T] {
	b.initializer = fn
	return b
}

// Create exclusively creates the segment, writes initial as the payload
// (subject to further in-place construction by the initializer), and
// finalizes it. Fails ErrAlreadyExists if the segment already exists.
func (b *DynamicStorageBuilder[T]) Create(initial T) (*DynamicStorage[T], error) {
	var zero T
	dataSize := unsafe.Sizeof(zero)
	total := dynamicStorageHeaderSize + dataSize + b.supplementarySize

	seg, err := createSegmentInternal(b.path, total)
	if err != nil {
		return nil, err
	}

	version := (*atomic.Uint64)(seg.base)
	version.Store(0)

	dataPtr := (*T)(unsafe.Add(seg.base, dynamicStorageHeaderSize))
	*dataPtr = initial

	if b.initializer != nil {
		supplementaryBase := unsafe.Add(seg.base, dynamicStorageHeaderSize+dataSize)
		alloc := memory.NewBumpAllocator(supplementaryBase, b.supplementarySize)
		if !b.initializer(dataPtr, alloc) {
			seg.close()
			os.Remove(b.path)
			return nil, api.NewError(api.ErrCodeInternal, "dynamic storage initializer failed for "+b.path)
		}
	}

	version.Store(currentVersion)

	if err := finalizeSegmentPermissions(b.path); err != nil {
		seg.close()
		return nil, err
	}

	s := &DynamicStorage[T]{name: b.path, seg: seg, data: dataPtr, version: version}
	s.hasOwnership.Store(b.hasOwnership)
	return s, nil
}

// Open waits (adaptive backoff, bounded by Timeout) for the segment at path
// to exist and be finalized, then maps and returns it. Fails
// ErrDoesNotExist if the segment never existed, ErrHangsInCreation if the
// timeout elapses first, ErrVersionMismatch if a finalized segment carries
// a layout version this build does not understand.
func (b *DynamicStorageBuilder[T]) Open() (*DynamicStorage[T], error) {
	start := time.Now()
	spins := 0
	sleep := time.Microsecond

	var zero T
	required := dynamicStorageHeaderSize + unsafe.Sizeof(zero)

	for {
		seg, err := openSegmentInternal(b.path)
		if err != nil {
			if errors.Is(err, api.ErrIsBeingCreatedByAnotherInstance) {
				if waitOrGiveUp(start, b.timeout, &spins, &sleep) {
					continue
				}
				return nil, api.Wrap(api.ErrCodeIdentity, "open dynamic storage "+b.path, api.ErrHangsInCreation)
			}
			return nil, err
		}

		if seg.size < required {
			seg.close()
			return nil, api.NewError(api.ErrCodeInternal, "dynamic storage "+b.path+" smaller than expected layout")
		}

		version := (*atomic.Uint64)(seg.base)
		v := version.Load()
		if v == 0 {
			seg.close()
			if waitOrGiveUp(start, b.timeout, &spins, &sleep) {
				continue
			}
			return nil, api.Wrap(api.ErrCodeIdentity, "open dynamic storage "+b.path, api.ErrHangsInCreation)
		}
		if v != currentVersion {
			seg.close()
			return nil, api.Wrap(api.ErrCodeCompatibility, "open dynamic storage "+b.path, api.ErrVersionMismatch)
		}

		dataPtr := (*T)(unsafe.Add(seg.base, dynamicStorageHeaderSize))
		s := &DynamicStorage[T]{name: b.path, seg: seg, data: dataPtr, version: version}
		s.hasOwnership.Store(b.hasOwnership)
		return s, nil
	}
}

// waitOrGiveUp backs off (spin then growing sleep) and reports whether the
// caller should retry, or false once timeout has elapsed.
func waitOrGiveUp(start time.Time, timeout time.Duration, spins *int, sleep *time.Duration) bool {
	if timeout > 0 && time.Since(start) > timeout {
		return false
	}
	if *spins < 64 {
		runtime.Gosched()
		*spins++
		return true
	}
	time.Sleep(*sleep)
	if *sleep < 4*time.Millisecond {
		*sleep *= 2
	}
	return true
}

// DoesDynamicStorageExist reports whether a segment file exists at path,
// regardless of whether it has been finalized yet.
func DoesDynamicStorageExist(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// RemoveDynamicStorage deletes the segment file at path. It is not an error
// if the segment does not exist.
func RemoveDynamicStorage(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return api.Wrap(api.ErrCodeInternal, "remove dynamic storage "+path, err)
	}
	return nil
}

// ListDynamicStorages lists the segment files in dir whose name ends in
// suffix, with the suffix stripped. A missing directory yields an empty
// list rather than an error.
func ListDynamicStorages(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "list dynamic storages in "+dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), suffix))
	}
	return names, nil
}
