// File: core/memory/pool_allocator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PoolAllocator slices a fixed data region into equal-sized, equal-aligned
// buckets and hands them out by index using a UniqueIndexSet as the
// free-list. Every allocation request must fit within one bucket
// (size <= bucketSize, align <= bucketAlign); the bucket itself is the unit
// of (de)allocation, so grow/shrink never move data, they only revalidate
// the new layout against the bucket's fixed capacity.
//
// The free-list bookkeeping (the UniqueIndexSet) is deliberately kept
// separate from the data region it governs: construction is two-phase,
// mirroring the rest of this package, so the index set can be placed in
// management memory distinct from the payload bytes it allocates out of
// (e.g. a small local BumpAllocator backing the index set, while the
// payload buckets live in a much larger shared-memory mapping).

package memory

import (
	"unsafe"

	"github.com/momentics/zerocopy-ipc/api"
)

// PoolAllocator hands out fixed-size, fixed-alignment buckets carved from a
// data region, tracked by an internal UniqueIndexSet free-list.
type PoolAllocator struct {
	bucketLayout Layout
	dataStart    uintptr
	numBuckets   uint32
	freeList     *UniqueIndexSet
}

// ManagementMemorySize returns the number of bytes a PoolAllocator with the
// given bucket layout and data capacity needs for its own free-list
// bookkeeping (the backing storage of its UniqueIndexSet).
func ManagementMemorySize(bucketLayout Layout, dataCapacity uintptr) uintptr {
	n := numberOfBuckets(bucketLayout, dataCapacity)
	return uintptr(n+1) * 4
}

func numberOfBuckets(bucketLayout Layout, dataCapacity uintptr) uint32 {
	if bucketLayout.Size == 0 {
		return 0
	}
	if dataCapacity < bucketLayout.Size {
		return 0
	}
	return uint32(dataCapacity / bucketLayout.Size)
}

// NewPoolAllocatorUninit constructs a latent pool allocator over
// dataBase[0:dataCapacity); Init must run (against a management allocator)
// before any Allocate/Deallocate call.
func NewPoolAllocatorUninit(bucketLayout Layout, dataBase unsafe.Pointer, dataCapacity uintptr) *PoolAllocator {
	aligned := alignUp(uintptr(dataBase), bucketLayout.Align)
	usable := dataCapacity
	if pad := aligned - uintptr(dataBase); pad < dataCapacity {
		usable = dataCapacity - pad
	} else {
		usable = 0
	}
	return &PoolAllocator{
		bucketLayout: bucketLayout,
		dataStart:    aligned,
		numBuckets:   numberOfBuckets(bucketLayout, usable),
	}
}

// NewPoolAllocator is the single-phase convenience constructor: it builds
// its own UniqueIndexSet directly over mgmtAlloc in one step.
func NewPoolAllocator(bucketLayout Layout, dataBase unsafe.Pointer, dataCapacity uintptr, mgmtAlloc Allocator) (*PoolAllocator, error) {
	p := NewPoolAllocatorUninit(bucketLayout, dataBase, dataCapacity)
	if err := p.Init(mgmtAlloc); err != nil {
		return nil, err
	}
	return p, nil
}

// Init creates the free-list over mgmtAlloc. Must be called exactly once.
func (p *PoolAllocator) Init(mgmtAlloc Allocator) error {
	if p.numBuckets == 0 {
		return api.Wrap(api.ErrCodeCapacity, "pool allocator data region too small for one bucket", api.ErrOutOfMemory)
	}
	p.freeList = NewUniqueIndexSetUninit(p.numBuckets)
	return p.freeList.Init(mgmtAlloc)
}

// BucketSize returns the fixed size of every bucket in this pool.
func (p *PoolAllocator) BucketSize() uintptr { return p.bucketLayout.Size }

// MaxAlignment returns the fixed alignment guaranteed for every bucket.
func (p *PoolAllocator) MaxAlignment() uintptr { return p.bucketLayout.Align }

// NumberOfBuckets returns how many buckets this pool was carved into.
func (p *PoolAllocator) NumberOfBuckets() uint32 { return p.numBuckets }

func (p *PoolAllocator) validateRequest(layout Layout) error {
	if layout.Size > p.bucketLayout.Size {
		return api.Wrap(api.ErrCodeCapacity, "requested size exceeds bucket size", api.ErrSizeTooLarge)
	}
	if layout.Align > p.bucketLayout.Align {
		return api.Wrap(api.ErrCodeCapacity, "requested alignment exceeds bucket alignment", api.ErrAlignmentFailure)
	}
	return nil
}

// Allocate reserves one free bucket, failing with api.ErrSizeTooLarge or
// api.ErrAlignmentFailure if the request cannot fit this pool's buckets, or
// api.ErrOutOfMemory if every bucket is currently borrowed.
func (p *PoolAllocator) Allocate(layout Layout) (unsafe.Pointer, error) {
	if err := p.validateRequest(layout); err != nil {
		return nil, err
	}
	idx, ok := p.freeList.AcquireRawIndex()
	if !ok {
		return nil, api.ErrOutOfMemory
	}
	return p.bucketAddr(idx), nil
}

// AllocateZeroed behaves like Allocate but zero-fills layout.Size bytes of
// the returned bucket before returning it.
func (p *PoolAllocator) AllocateZeroed(layout Layout) (unsafe.Pointer, error) {
	ptr, err := p.Allocate(layout)
	if err != nil {
		return nil, err
	}
	zero(ptr, layout.Size)
	return ptr, nil
}

func (p *PoolAllocator) bucketAddr(idx uint32) unsafe.Pointer {
	return unsafe.Pointer(p.dataStart + uintptr(idx)*p.bucketLayout.Size)
}

// bucketIndexOf resolves ptr back to the bucket index it was carved from,
// panicking if ptr does not land exactly on a bucket boundary this pool
// owns -- the same fatal-on-misuse contract UniqueIndexSet uses internally.
func (p *PoolAllocator) bucketIndexOf(ptr unsafe.Pointer) uint32 {
	addr := uintptr(ptr)
	if addr < p.dataStart {
		panic("memory: deallocate/grow/shrink of chunk not owned by this PoolAllocator")
	}
	offset := addr - p.dataStart
	idx := offset / p.bucketLayout.Size
	if uint64(idx) >= uint64(p.numBuckets) || offset%p.bucketLayout.Size != 0 {
		panic("memory: deallocate/grow/shrink of chunk not owned by this PoolAllocator")
	}
	return uint32(idx)
}

// Deallocate returns ptr's bucket to the free list. ptr must be the exact
// address a prior Allocate/AllocateZeroed call returned.
func (p *PoolAllocator) Deallocate(ptr unsafe.Pointer, _ Layout) {
	idx := p.bucketIndexOf(ptr)
	p.freeList.ReleaseRawIndex(idx)
}

// Grow revalidates ptr's bucket for a larger layout without moving data:
// since every bucket is fixed-size, growing only ever needs to check the
// new layout still fits (newLayout.Size <= bucketSize, newLayout.Align <=
// bucketAlign) and that newLayout.Size did not shrink relative to oldLayout.
func (p *PoolAllocator) Grow(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, error) {
	p.bucketIndexOf(ptr) // panics if ptr is not a bucket this pool owns
	if newLayout.Size < oldLayout.Size {
		return nil, api.Wrap(api.ErrCodeCapacity, "grow requires newLayout.Size >= oldLayout.Size", api.ErrInvalidArgument)
	}
	if err := p.validateRequest(newLayout); err != nil {
		return nil, err
	}
	return ptr, nil
}

// GrowZeroed behaves like Grow, additionally zero-filling the newly grown
// tail [oldLayout.Size:newLayout.Size) of the bucket.
func (p *PoolAllocator) GrowZeroed(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, error) {
	grown, err := p.Grow(ptr, oldLayout, newLayout)
	if err != nil {
		return nil, err
	}
	tail := unsafe.Pointer(uintptr(grown) + oldLayout.Size)
	zero(tail, newLayout.Size-oldLayout.Size)
	return grown, nil
}

// Shrink revalidates ptr's bucket for a smaller layout; newLayout.Size must
// be strictly less than oldLayout.Size and newLayout.Align must not exceed
// this pool's bucket alignment.
func (p *PoolAllocator) Shrink(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, error) {
	p.bucketIndexOf(ptr)
	if newLayout.Size >= oldLayout.Size {
		return nil, api.Wrap(api.ErrCodeCapacity, "shrink requires newLayout.Size < oldLayout.Size", api.ErrInvalidArgument)
	}
	if newLayout.Align > p.bucketLayout.Align {
		return nil, api.Wrap(api.ErrCodeCapacity, "requested alignment exceeds bucket alignment", api.ErrAlignmentFailure)
	}
	return ptr, nil
}

func zero(ptr unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	b := unsafe.Slice((*byte)(ptr), int(n))
	for i := range b {
		b[i] = 0
	}
}
