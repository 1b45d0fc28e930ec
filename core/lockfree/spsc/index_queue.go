// File: core/lockfree/spsc/index_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// IndexQueue is a threadsafe, lock-free single-producer single-consumer
// ring buffer of u64 values (indices, offsets, whatever the caller wants
// to hand off across the bipartite channel in core/connection). Producer
// and Consumer are acquired exclusively via a CAS on a pair of "available"
// flags, so at most one goroutine at a time may call Push, and at most one
// goroutine at a time may call Pop -- concurrent push and pop from their
// respective single owners still race-free against each other.
//
// Go has no destructor to mirror the source's Drop impl that returns the
// acquire flag automatically when a Producer/Consumer goes out of scope;
// callers must call Release explicitly when done with a Producer/Consumer
// handle.

package spsc

import (
	"sync/atomic"
	"unsafe"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/memory"
)

// IndexQueue is a relocatable SPSC ring buffer of uint64 values.
type IndexQueue struct {
	data          []uint64
	capacity      uint64
	writePosition atomic.Uint64
	readPosition  atomic.Uint64
	hasProducer   atomic.Bool
	hasConsumer   atomic.Bool
	initialized   atomic.Bool
}

// NewIndexQueueUninit constructs a latent queue; Init must run before any
// producer/consumer acquisition.
func NewIndexQueueUninit(capacity uint64) *IndexQueue {
	q := &IndexQueue{capacity: capacity}
	q.hasProducer.Store(true)
	q.hasConsumer.Store(true)
	return q
}

// NewIndexQueue allocates a heap-backed queue ready to use immediately.
func NewIndexQueue(capacity uint64) *IndexQueue {
	q := &IndexQueue{capacity: capacity, data: make([]uint64, capacity)}
	q.hasProducer.Store(true)
	q.hasConsumer.Store(true)
	q.initialized.Store(true)
	return q
}

// Init reinterprets capacity*8 bytes from alloc as this queue's storage.
// Must be called exactly once.
func (q *IndexQueue) Init(alloc memory.Allocator) error {
	if q.initialized.Load() {
		panic("spsc: IndexQueue initialized twice, undefined behavior")
	}
	ptr, err := alloc.Allocate(memory.NewLayout(uintptr(q.capacity)*8, 8))
	if err != nil {
		return api.Wrap(api.ErrCodeCapacity, "allocate IndexQueue backing storage", err)
	}
	q.data = unsafe.Slice((*uint64)(ptr), q.capacity)
	q.initialized.Store(true)
	return nil
}

func (q *IndexQueue) verifyInit(source string) {
	if !q.initialized.Load() {
		panic("spsc: IndexQueue." + source + " called before Init, undefined behavior")
	}
}

// Capacity returns the fixed maximum number of elements the queue can hold.
func (q *IndexQueue) Capacity() uint64 { return q.capacity }

func (q *IndexQueue) cellAt(position uint64) *uint64 {
	return &q.data[position%q.capacity]
}

// Producer is the exclusive single-writer handle to an IndexQueue.
type Producer struct {
	queue *IndexQueue
}

// AcquireProducer claims the producer role, or returns (nil, false) if
// another goroutine already holds it.
func (q *IndexQueue) AcquireProducer() (*Producer, bool) {
	q.verifyInit("AcquireProducer")
	if q.hasProducer.CompareAndSwap(true, false) {
		return &Producer{queue: q}, true
	}
	return nil, false
}

// Release returns the producer role, allowing another goroutine to acquire it.
func (p *Producer) Release() { p.queue.hasProducer.Store(true) }

// Push adds value to the queue, returning false if the queue is full. Only
// the goroutine holding this Producer handle may call Push.
func (p *Producer) Push(value uint64) bool {
	return p.queue.push(value)
}

func (q *IndexQueue) push(value uint64) bool {
	writePos := q.writePosition.Load()
	if writePos == q.readPosition.Load()+q.capacity {
		return false
	}
	*q.cellAt(writePos) = value
	q.writePosition.Store(writePos + 1)
	return true
}

// Consumer is the exclusive single-reader handle to an IndexQueue.
type Consumer struct {
	queue *IndexQueue
}

// AcquireConsumer claims the consumer role, or returns (nil, false) if
// another goroutine already holds it.
func (q *IndexQueue) AcquireConsumer() (*Consumer, bool) {
	q.verifyInit("AcquireConsumer")
	if q.hasConsumer.CompareAndSwap(true, false) {
		return &Consumer{queue: q}, true
	}
	return nil, false
}

// Release returns the consumer role, allowing another goroutine to acquire it.
func (c *Consumer) Release() { c.queue.hasConsumer.Store(true) }

// Pop removes and returns the oldest value, or false if the queue is empty.
// Only the goroutine holding this Consumer handle may call Pop.
func (c *Consumer) Pop() (uint64, bool) {
	return c.queue.pop()
}

func (q *IndexQueue) pop() (uint64, bool) {
	readPos := q.readPosition.Load()
	if readPos == q.writePosition.Load() {
		return 0, false
	}
	value := *q.cellAt(readPos)
	q.readPosition.Store(readPos + 1)
	return value, true
}

func (q *IndexQueue) acquireReadAndWritePosition() (write, read uint64) {
	for {
		w := q.writePosition.Load()
		r := q.readPosition.Load()
		if w == q.writePosition.Load() && r == q.readPosition.Load() {
			return w, r
		}
	}
}

// IsEmpty reports whether the queue held no elements at the moment of the
// call. Meaningful mainly outside concurrent producer/consumer use.
func (q *IndexQueue) IsEmpty() bool {
	w, r := q.acquireReadAndWritePosition()
	return w == r
}

// Len reports how many elements the queue held at the moment of the call.
func (q *IndexQueue) Len() uint64 {
	w, r := q.acquireReadAndWritePosition()
	return w - r
}

// IsFull reports whether the queue was at capacity at the moment of the call.
func (q *IndexQueue) IsFull() bool {
	w, r := q.acquireReadAndWritePosition()
	return w == r+q.capacity
}
