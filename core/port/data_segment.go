// File: core/port/data_segment.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DataSegment is the payload region a Sender loans samples from and a
// Receiver reads zero-copy, keyed by a byte offset from the segment's own
// base. It pairs a core/memory.PoolAllocator (the free-list/bucket
// arithmetic) with a SegmentState (the per-bucket reference counts the pool
// allocator itself knows nothing about), keeping free-list bookkeeping
// separate from the payload bytes it governs
// (core/memory/pool_allocator.go's doc comment).

package port

import (
	"sync"
	"unsafe"

	"github.com/momentics/zerocopy-ipc/core/memory"
)

// DataSegment carves one PoolAllocator out of a freshly allocated Go byte
// slice and layers reference counting on top of its buckets. One DataSegment
// backs one Sender; multi-segment growth (adding a larger segment once the
// first is exhausted) is out of scope here, matching the rest of this
// module's single-segment PointerOffset usage (segment id is always 0).
type DataSegment struct {
	mu          sync.Mutex
	pool        *memory.PoolAllocator
	alignedBase uintptr
	bucketSize  uintptr
	state       *SegmentState

	// data and mgmt keep the backing slices reachable for as long as the
	// DataSegment lives; the PoolAllocator only ever sees raw pointers
	// into them.
	data []byte
	mgmt []byte
}

// NewDataSegment builds a DataSegment with room for capacity bytes, bucketed
// per layout.
func NewDataSegment(layout memory.Layout, capacity uintptr) (*DataSegment, error) {
	data := make([]byte, capacity)
	dataBase := unsafe.Pointer(&data[0])

	mgmtSize := memory.ManagementMemorySize(layout, capacity)
	mgmt := make([]byte, mgmtSize)
	mgmtAlloc := memory.NewBumpAllocator(unsafe.Pointer(&mgmt[0]), mgmtSize)

	pool, err := memory.NewPoolAllocator(layout, dataBase, capacity, mgmtAlloc)
	if err != nil {
		return nil, err
	}

	return &DataSegment{
		pool:        pool,
		alignedBase: alignUp(uintptr(dataBase), layout.Align),
		bucketSize:  layout.Size,
		state:       NewSegmentState(pool.NumberOfBuckets()),
		data:        data,
		mgmt:        mgmt,
	}, nil
}

func alignUp(addr, align uintptr) uintptr {
	if align <= 1 {
		return addr
	}
	return (addr + align - 1) &^ (align - 1)
}

func (d *DataSegment) bucketIndexOfPtr(ptr unsafe.Pointer) uint32 {
	return uint32((uintptr(ptr) - d.alignedBase) / d.bucketSize)
}

func (d *DataSegment) bucketIndexOfOffset(offset uint64) uint32 {
	return uint32(offset / uint64(d.bucketSize))
}

// Allocate reserves one bucket sized for payloadSize (against the fixed
// layout this segment was built with) and returns its offset, with its
// reference count set to one: the allocation itself is the first borrower.
func (d *DataSegment) Allocate(payloadSize uint64, layout memory.Layout) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ptr, err := d.pool.Allocate(layout)
	if err != nil {
		return 0, err
	}
	idx := d.bucketIndexOfPtr(ptr)
	d.state.SetPayloadSize(idx, payloadSize)
	d.state.Borrow(idx)
	return uint64(idx) * uint64(d.bucketSize), nil
}

// PointerAt resolves offset back to the bucket's address for zero-copy
// reads and writes.
func (d *DataSegment) PointerAt(offset uint64) unsafe.Pointer {
	return unsafe.Pointer(d.alignedBase + uintptr(offset))
}

// PayloadSize returns the size recorded by Allocate for the bucket at offset.
func (d *DataSegment) PayloadSize(offset uint64) uint64 {
	return d.state.PayloadSize(d.bucketIndexOfOffset(offset))
}

// Borrow adds one more outstanding reference to the bucket at offset, used
// when a sample is fanned out to an additional connection.
func (d *DataSegment) Borrow(offset uint64) {
	d.state.Borrow(d.bucketIndexOfOffset(offset))
}

// Release drops one outstanding reference to the bucket at offset and
// returns it to the pool once no borrower remains.
func (d *DataSegment) Release(offset uint64, layout memory.Layout) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.bucketIndexOfOffset(offset)
	if remaining := d.state.Release(idx); remaining <= 0 {
		d.pool.Deallocate(d.PointerAt(offset), layout)
	}
}

// BucketSize returns the fixed size of every bucket in this segment.
func (d *DataSegment) BucketSize() uintptr { return d.bucketSize }

// NumberOfBuckets returns how many buckets this segment was carved into.
func (d *DataSegment) NumberOfBuckets() uint32 { return d.pool.NumberOfBuckets() }
