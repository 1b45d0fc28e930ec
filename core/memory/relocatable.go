// File: core/memory/relocatable.go
// Package memory implements the L0 relocatable/allocator primitives that
// live inside shared memory: RelocatablePointer, BumpAllocator,
// PoolAllocator and FixedSizeByteString.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A RelocatablePointer never stores an absolute address. It stores the
// signed byte distance between its own storage address and the address it
// points to, so the whole region it lives in (a shared-memory segment) can
// be mapped at a different virtual address in every process that attaches
// to it: resolve() simply adds the stored distance to &p.distance.

package memory

import (
	"fmt"
	"unsafe"
)

// RelocatablePointer is a self-relative pointer to a value of type T.
// It must never be copied out of the relocatable region it was initialized
// against: the distance it stores is only valid relative to its own address.
type RelocatablePointer[T any] struct {
	distance    int64
	initialized bool
}

// NewUninitRelocatablePointer constructs a pointer that must not be
// resolved until Init is called.
func NewUninitRelocatablePointer[T any]() RelocatablePointer[T] {
	return RelocatablePointer[T]{}
}

// NewRelocatablePointerWithDistance constructs an already-initialized
// pointer from a caller-computed distance. The distance is relative to the
// address of this pointer's own distance field, not to any containing
// struct's address.
func NewRelocatablePointerWithDistance[T any](distance int64) RelocatablePointer[T] {
	return RelocatablePointer[T]{distance: distance, initialized: true}
}

// Init performs late initialization from an absolute address, computing and
// storing the signed distance to it. Must be called at most once.
func (p *RelocatablePointer[T]) Init(absolute unsafe.Pointer) {
	if p.initialized {
		panic("memory: RelocatablePointer initialized twice, undefined behavior")
	}
	self := unsafe.Pointer(&p.distance)
	p.distance = int64(uintptr(absolute)) - int64(uintptr(self))
	p.initialized = true
}

// IsInitialized reports whether Init/NewRelocatablePointerWithDistance ran.
func (p *RelocatablePointer[T]) IsInitialized() bool { return p.initialized }

// Resolve returns the absolute address this pointer designates. Resolving an
// uninitialized pointer is undefined behavior in the original design; here
// it panics so misuse is caught rather than silently dereferencing garbage.
func (p *RelocatablePointer[T]) Resolve() *T {
	if !p.initialized {
		panic(fmt.Sprintf("memory: resolve of uninitialized RelocatablePointer[%T]", *new(T)))
	}
	self := unsafe.Pointer(&p.distance)
	addr := uintptr(self) + uintptr(p.distance)
	return (*T)(unsafe.Pointer(addr))
}

// Distance returns the raw stored byte distance, mainly for tests and for
// callers that need to replicate the same offset into a sibling struct.
func (p *RelocatablePointer[T]) Distance() int64 { return p.distance }
