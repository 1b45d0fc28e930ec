// File: core/memory/unique_index_set.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// UniqueIndexSet is a threadsafe, lock-free, ABA-safe set of u32 indices in
// [0, capacity). It backs both the bucket free-list of PoolAllocator and,
// via the mpmc package, the slot allocator of the MPMC Container. It lives
// in this package (rather than alongside the rest of the lock-free
// containers) so PoolAllocator can depend on it without an import cycle
// between core/memory and core/lockfree/mpmc.
//
// Free indices form an intrusive Treiber-style stack: cell i's "next free"
// value is stored at data[i]; the list head is packed into one 64-bit CAS
// word together with an ABA counter so concurrent acquire/release never
// mis-splices the list. Capacity must be <= 2^32-2; an acquired index's
// cell is overwritten with `capacity+1`, a value no free-list link ever
// holds, to mark it as owned.

package memory

import (
	"sync/atomic"
	"unsafe"

	"github.com/momentics/zerocopy-ipc/api"
)

// UniqueIndexSet is a relocatable, lock-free allocator of index values. The
// free-list cells live directly in memory handed out by an Allocator (bump
// or pool, possibly shared-memory backed): Init reinterprets that raw
// region as a []uint32 in place rather than copying it into a fresh
// heap slice, so the structure is genuinely zero-copy over its backing
// store the way the rest of this package's containers are.
type UniqueIndexSet struct {
	data            []uint32 // reinterpreted view over allocator-owned memory
	capacity        uint32
	borrowedIndices atomic.Int64
	head            atomic.Uint64
	initialized     atomic.Bool
}

// NewUniqueIndexSetUninit constructs a latent set; Init must run before use.
func NewUniqueIndexSetUninit(capacity uint32) *UniqueIndexSet {
	return &UniqueIndexSet{capacity: capacity}
}

// Init allocates capacity+1 uint32 cells via allocator and seeds the
// initial free list 0 -> 1 -> 2 -> ... -> capacity-1 -> capacity (the
// sentinel "past the end" value). Must be called exactly once.
func (s *UniqueIndexSet) Init(alloc Allocator) error {
	if s.initialized.Load() {
		panic("memory: UniqueIndexSet initialized twice, undefined behavior")
	}
	n := int(s.capacity) + 1
	ptr, err := alloc.Allocate(NewLayout(uintptr(n)*4, 4))
	if err != nil {
		return api.Wrap(api.ErrCodeCapacity, "allocate UniqueIndexSet backing storage", err)
	}
	s.data = unsafe.Slice((*uint32)(ptr), n)
	for i := range s.data {
		s.data[i] = uint32(i) + 1
	}
	s.head.Store(0)
	s.initialized.Store(true)
	return nil
}

func (s *UniqueIndexSet) verifyInit() {
	if !s.initialized.Load() {
		panic("memory: UniqueIndexSet used before Init, undefined behavior")
	}
}

// Capacity returns the number of indices this set was created with.
func (s *UniqueIndexSet) Capacity() uint32 { return s.capacity }

// BorrowedIndices returns the current count of outstanding (acquired, not
// yet released) indices.
func (s *UniqueIndexSet) BorrowedIndices() int64 { return s.borrowedIndices.Load() }

func packHeadAba(head, aba uint32) uint64 {
	return (uint64(head) << 32) | uint64(aba)
}

func unpackHeadAba(v uint64) (head, aba uint32) {
	return uint32(v >> 32), uint32(v)
}

// AcquireRawIndex removes one index from the free list and returns it, or
// false if the set is exhausted. The index must be returned manually with
// ReleaseRawIndex.
func (s *UniqueIndexSet) AcquireRawIndex() (uint32, bool) {
	s.verifyInit()
	old := s.head.Load()
	oldHead, oldAba := unpackHeadAba(old)

	for {
		if oldHead >= s.capacity {
			return 0, false
		}

		newHead := s.data[oldHead]
		newAba := oldAba + 1
		newVal := packHeadAba(newHead, newAba)

		if s.head.CompareAndSwap(old, newVal) {
			break
		}
		old = s.head.Load()
		oldHead, oldAba = unpackHeadAba(old)
	}

	index := oldHead
	s.data[index] = s.capacity + 1 // mark as owned, matches the source's sentinel convention
	s.borrowedIndices.Add(1)
	return index, true
}

// ReleaseRawIndex returns a previously acquired index to the free list.
// The caller must guarantee the index was acquired exactly once and is not
// released twice (double-release is a fatal invariant violation).
func (s *UniqueIndexSet) ReleaseRawIndex(index uint32) {
	s.verifyInit()
	old := s.head.Load()
	oldHead, oldAba := unpackHeadAba(old)

	for {
		s.data[index] = oldHead
		newAba := oldAba + 1
		newVal := packHeadAba(index, newAba)

		if s.head.CompareAndSwap(old, newVal) {
			s.borrowedIndices.Add(-1)
			return
		}
		old = s.head.Load()
		oldHead, oldAba = unpackHeadAba(old)
	}
}

// Head returns the raw packed head word, used by ContainerState to detect
// whether the underlying free list moved between snapshot refreshes.
func (s *UniqueIndexSet) Head() uint64 { return s.head.Load() }
