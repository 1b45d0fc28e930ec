// File: core/lockfree/mpmc/container.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Container is a threadsafe, lock-free, unordered slot table: Add reserves
// a free slot via a UniqueIndexSet and stores value there; the returned
// UniqueIndex owns that slot until Release (Go has no destructor to do
// this implicitly the way the source's Drop impl does). ContainerState is
// a point-in-time snapshot taken by GetState/Update, used by readers that
// want a stable view (e.g. a Subscriber enumerating live Publishers)
// without blocking concurrent Add/RemoveRawIndex calls.
//
// T must not require cleanup on removal: removing a slot only flips its
// active flag and returns the index to the free list, it never runs a
// destructor on the stored value.

package mpmc

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/memory"
)

// Container stores values of type T in fixed slots addressed by index,
// reserved and released through an internal UniqueIndexSet.
type Container[T any] struct {
	activeIndex []atomic.Bool
	data        []T
	capacity    uint32
	indexSet    *memory.UniqueIndexSet
	initialized atomic.Bool
}

// NewContainerUninit constructs a latent container; Init must run before
// any Add/GetState call.
func NewContainerUninit[T any](capacity uint32) *Container[T] {
	return &Container[T]{capacity: capacity, indexSet: memory.NewUniqueIndexSetUninit(capacity)}
}

// Init allocates the free-list, active-flag, and data storage from alloc.
// Must be called exactly once.
func (c *Container[T]) Init(alloc memory.Allocator) error {
	if c.initialized.Load() {
		panic("mpmc: Container initialized twice, undefined behavior")
	}
	if err := c.indexSet.Init(alloc); err != nil {
		return api.Wrap(api.ErrCodeCapacity, "initialize Container free-list", err)
	}

	var zeroFlag atomic.Bool
	activePtr, err := alloc.Allocate(memory.NewLayout(uintptr(c.capacity)*unsafe.Sizeof(zeroFlag), unsafe.Alignof(zeroFlag)))
	if err != nil {
		return api.Wrap(api.ErrCodeCapacity, "allocate Container active-index storage", err)
	}
	c.activeIndex = unsafe.Slice((*atomic.Bool)(activePtr), c.capacity)

	var zeroT T
	dataPtr, err := alloc.Allocate(memory.NewLayout(uintptr(c.capacity)*unsafe.Sizeof(zeroT), unsafe.Alignof(zeroT)))
	if err != nil {
		return api.Wrap(api.ErrCodeCapacity, "allocate Container data storage", err)
	}
	c.data = unsafe.Slice((*T)(dataPtr), c.capacity)

	c.initialized.Store(true)
	return nil
}

// NewContainer allocates a heap-backed container of the given capacity,
// ready to use immediately.
func NewContainer[T any](capacity uint32) *Container[T] {
	c := NewContainerUninit[T](capacity)

	var zeroFlag atomic.Bool
	var zeroT T
	total := uintptr(capacity+1)*4 +
		uintptr(capacity)*unsafe.Sizeof(zeroFlag) +
		uintptr(capacity)*unsafe.Sizeof(zeroT) + 64 // alignment slack between the three regions
	mgmt := make([]byte, total)
	alloc := memory.NewBumpAllocator(unsafe.Pointer(&mgmt[0]), uintptr(len(mgmt)))

	if err := c.Init(alloc); err != nil {
		panic(fmt.Sprintf("mpmc: Container memory_size computation is wrong, preallocated buffer too small: %v", err))
	}
	return c
}

func (c *Container[T]) verifyInit(source string) {
	if !c.initialized.Load() {
		panic("mpmc: Container." + source + " called before Init, undefined behavior")
	}
}

// Capacity returns the maximum number of elements this container can hold.
func (c *Container[T]) Capacity() uint32 { return c.capacity }

// Len returns the number of elements currently stored.
func (c *Container[T]) Len() int64 { return c.indexSet.BorrowedIndices() }

// IsEmpty reports whether the container currently holds no elements.
func (c *Container[T]) IsEmpty() bool { return c.Len() == 0 }

// UniqueIndex is the handle Add returns; it owns its slot until Release is
// called, at which point the slot's value is considered removed and the
// index becomes available for reuse.
type UniqueIndex[T any] struct {
	container *Container[T]
	index     uint32
	released  bool
}

// Value returns the fixed slot index this handle owns.
func (u *UniqueIndex[T]) Value() uint32 { return u.index }

// Release removes the element from the container, returning its slot to
// the free list. Release must be called at most once per UniqueIndex.
func (u *UniqueIndex[T]) Release() {
	if u.released {
		panic("mpmc: UniqueIndex released twice, undefined behavior")
	}
	u.released = true
	u.container.RemoveRawIndex(u.index)
}

// Add reserves a free slot and stores value there, returning (nil, false)
// if the container is full.
func (c *Container[T]) Add(value T) (*UniqueIndex[T], bool) {
	c.verifyInit("Add")
	idx, ok := c.indexSet.AcquireRawIndex()
	if !ok {
		return nil, false
	}
	c.data[idx] = value
	c.activeIndex[idx].Store(true)
	return &UniqueIndex[T]{container: c, index: idx}, true
}

// RemoveRawIndex force-removes the element at index without going through
// a UniqueIndex handle. Intended for IPC recovery when the process that
// held the UniqueIndex has died; calling it while a live UniqueIndex for
// that index still exists causes a double free or frees a slot reused by
// a later Add.
func (c *Container[T]) RemoveRawIndex(index uint32) {
	c.verifyInit("RemoveRawIndex")
	c.activeIndex[index].Store(false)
	c.indexSet.ReleaseRawIndex(index)
}

type containerEntry[T any] struct {
	index uint32
	value T
}

// ContainerState is a point-in-time snapshot of a Container's active
// slots, refreshed with Update.
type ContainerState[T any] struct {
	container           *Container[T]
	currentIndexSetHead uint64
	data                []containerEntry[T]
	activeIndex         []bool
}

// GetState takes a fresh snapshot of every currently active slot.
func (c *Container[T]) GetState() *ContainerState[T] {
	c.verifyInit("GetState")
	state := &ContainerState[T]{
		container:   c,
		data:        make([]containerEntry[T], c.capacity),
		activeIndex: make([]bool, c.capacity),
	}
	c.updateState(state)
	return state
}

// ForEach invokes fn for every slot active at the time of the last
// GetState/Update call, in index order.
func (s *ContainerState[T]) ForEach(fn func(index uint32, value T)) {
	for i, active := range s.activeIndex {
		if active {
			fn(s.data[i].index, s.data[i].value)
		}
	}
}

// Update refreshes the snapshot against the container's current contents,
// reporting whether anything changed since the last snapshot.
func (s *ContainerState[T]) Update() bool {
	return s.container.updateState(s)
}

// updateState walks every slot, re-reading it if the free-list head moves
// mid-scan so a concurrent Add/Release never leaves a stale entry behind;
// it restarts the affected slot's read rather than the whole scan, which
// keeps this operation lock-free even under contention.
func (c *Container[T]) updateState(state *ContainerState[T]) bool {
	currentHead := c.indexSet.Head()
	if state.currentIndexSetHead == currentHead {
		return false
	}
	state.currentIndexSetHead = currentHead

	for i := uint32(0); i < c.capacity; i++ {
		for {
			active := c.activeIndex[i].Load()
			state.activeIndex[i] = active
			if active {
				state.data[i] = containerEntry[T]{index: i, value: c.data[i]}
			}

			newHead := c.indexSet.Head()
			if newHead == currentHead {
				break
			}
			currentHead = newHead
		}
	}
	return true
}
