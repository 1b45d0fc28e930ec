// File: core/memory/bump_allocator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BumpAllocator hands out monotonically increasing, alignment-rounded
// sub-slices of a fixed base region. It never deallocates; it exists purely
// to carve one-time layout regions (e.g. the fixed arrays behind a
// Queue or UniqueIndexSet) out of already-owned memory.

package memory

import (
	"unsafe"

	"github.com/momentics/zerocopy-ipc/api"
)

// Layout mirrors the (size, alignment) pair every allocator call needs.
type Layout struct {
	Size  uintptr
	Align uintptr
}

// NewLayout validates that align is a power of two and returns a Layout.
func NewLayout(size, align uintptr) Layout {
	if align == 0 || align&(align-1) != 0 {
		panic("memory: alignment must be a power of two")
	}
	return Layout{Size: size, Align: align}
}

// BumpAllocator carves out aligned byte slices from a fixed base address in
// strictly increasing order. Deterministic and zero-cost: no bookkeeping
// beyond the current offset.
type BumpAllocator struct {
	base      unsafe.Pointer
	capacity  uintptr
	offset    uintptr
}

// NewBumpAllocator creates an allocator over base[0:capacity).
func NewBumpAllocator(base unsafe.Pointer, capacity uintptr) *BumpAllocator {
	return &BumpAllocator{base: base, capacity: capacity}
}

func alignUp(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

// Allocate returns a pointer to layout.Size bytes aligned to layout.Align,
// or api.ErrOutOfMemory if the remaining capacity cannot satisfy the request.
func (b *BumpAllocator) Allocate(layout Layout) (unsafe.Pointer, error) {
	aligned := alignUp(b.offset, layout.Align)
	if aligned+layout.Size > b.capacity {
		return nil, api.ErrOutOfMemory
	}
	ptr := unsafe.Pointer(uintptr(b.base) + aligned)
	b.offset = aligned + layout.Size
	return ptr, nil
}

// Remaining reports how many bytes are still available without alignment
// padding taken into account.
func (b *BumpAllocator) Remaining() uintptr {
	if b.offset >= b.capacity {
		return 0
	}
	return b.capacity - b.offset
}

// Base returns the allocator's base address, useful for computing distances
// when initializing RelocatablePointer values against it.
func (b *BumpAllocator) Base() unsafe.Pointer { return b.base }
