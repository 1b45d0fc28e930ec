// File: core/container/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Queue is a ring buffer with a capacity fixed at construction, used both
// as an ordinary heap-backed FIFO and, via Init, as a relocatable queue
// carved out of a shared-memory region. Go generics cannot parametrize an
// array length by a type parameter the way the source's FixedSizeQueue
// does (`[T; CAPACITY]`), so this single type folds the source's three
// variants (Queue, RelocatableQueue, FixedSizeQueue) into one: capacity is
// a runtime field, and callers choose NewQueue (heap) or
// NewRelocatableQueueUninit+Init (allocator-backed) depending on whether
// the backing storage must be shared-memory compatible.

package container

import (
	"fmt"
	"unsafe"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/memory"
)

// Queue is a single-threaded ring buffer of fixed capacity.
type Queue[T any] struct {
	data        []T
	start       int
	length      int
	capacity    int
	initialized bool
}

// NewQueue allocates a heap-backed queue with the given capacity, ready to
// use immediately.
func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{data: make([]T, capacity), capacity: capacity, initialized: true}
}

// NewRelocatableQueueUninit constructs a latent queue; Init must run
// (against an Allocator, typically one backed by shared memory) before the
// queue accepts any Push/Pop call.
func NewRelocatableQueueUninit[T any](capacity int) *Queue[T] {
	return &Queue[T]{capacity: capacity}
}

// Init reinterprets capacity*sizeof(T) bytes from alloc as this queue's
// backing slice. Must be called exactly once.
func (q *Queue[T]) Init(alloc memory.Allocator) error {
	if q.initialized {
		panic("container: Queue initialized twice, undefined behavior")
	}
	var zero T
	layout := memory.NewLayout(uintptr(q.capacity)*unsafe.Sizeof(zero), maxUintptr(1, unsafe.Alignof(zero)))
	ptr, err := alloc.Allocate(layout)
	if err != nil {
		return api.Wrap(api.ErrCodeCapacity, "allocate Queue backing storage", err)
	}
	q.data = unsafe.Slice((*T)(ptr), q.capacity)
	q.initialized = true
	return nil
}

func (q *Queue[T]) verifyInit(source string) {
	if !q.initialized {
		panic(fmt.Sprintf("container: %s used before Init, undefined behavior", source))
	}
}

// IsEmpty reports whether the queue currently holds no elements.
func (q *Queue[T]) IsEmpty() bool { return q.length == 0 }

// IsFull reports whether the queue is at capacity.
func (q *Queue[T]) IsFull() bool { return q.length == q.capacity }

// Len returns the number of elements currently stored.
func (q *Queue[T]) Len() int { return q.length }

// Capacity returns the maximum number of elements the queue can hold.
func (q *Queue[T]) Capacity() int { return q.capacity }

// Clear removes all elements from the queue.
func (q *Queue[T]) Clear() {
	for {
		if _, ok := q.Pop(); !ok {
			return
		}
	}
}

// Pop removes and returns the oldest element, or false if the queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.IsEmpty() {
		return zero, false
	}
	q.verifyInit("Queue.Pop")
	index := (q.start - q.length) % q.capacity
	value := q.data[index]
	q.data[index] = zero
	q.length--
	return value, true
}

// Push appends value, returning false without modifying the queue if it is
// already full.
func (q *Queue[T]) Push(value T) bool {
	if q.length == q.capacity {
		return false
	}
	q.verifyInit("Queue.Push")
	q.unsafePush(value)
	return true
}

// PushWithOverflow appends value. If the queue was full, the oldest element
// is evicted to make room and returned alongside hadOverflow=true.
func (q *Queue[T]) PushWithOverflow(value T) (overridden T, hadOverflow bool) {
	if q.length == q.capacity {
		overridden, _ = q.Pop()
		hadOverflow = true
	}
	q.verifyInit("Queue.PushWithOverflow")
	q.unsafePush(value)
	return overridden, hadOverflow
}

func (q *Queue[T]) unsafePush(value T) {
	index := q.start % q.capacity
	q.data[index] = value
	q.start++
	q.length++
}

// Get returns a copy of the element at index, where 0 is the oldest
// element still in the queue. Panics if index >= Len().
func (q *Queue[T]) Get(index int) T {
	if index >= q.length {
		panic(fmt.Sprintf("container: Queue.Get index %d out of range (len=%d)", index, q.length))
	}
	return q.data[(q.start-q.length+index)%q.capacity]
}

func maxUintptr(a, b uintptr) uintptr {
	if a > b {
		return a
	}
	return b
}
