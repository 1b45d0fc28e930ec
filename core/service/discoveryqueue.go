// File: core/service/discoveryqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DiscoveryQueue is a process-local FIFO of pending connection-update work
// items, drained once per discovery cycle by a port's update-connections
// protocol (start_update_connection_cycle / update_connection /
// finish_update_connection_cycle). It never crosses the shared-memory
// boundary — only the offsets a ZeroCopyConnection carries do that — so it
// is built on github.com/eapache/queue rather than on any lock-free shared
// structure.

package service

import (
	"sync"

	"github.com/eapache/queue"
)

// ConnectionUpdateWork names one peer discovered (or lost) during a
// discovery cycle that a port still needs to act on.
type ConnectionUpdateWork struct {
	PeerPortUUID string
	Appeared     bool // true: peer newly discovered; false: peer gone
}

// DiscoveryQueue is a thread-safe FIFO of ConnectionUpdateWork items.
type DiscoveryQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

// NewDiscoveryQueue returns an empty queue.
func NewDiscoveryQueue() *DiscoveryQueue {
	return &DiscoveryQueue{q: queue.New()}
}

// Push enqueues one unit of work.
func (d *DiscoveryQueue) Push(work ConnectionUpdateWork) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.q.Add(work)
}

// Pop dequeues the oldest unit of work, reporting false if the queue is
// empty.
func (d *DiscoveryQueue) Pop() (ConnectionUpdateWork, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.q.Length() == 0 {
		return ConnectionUpdateWork{}, false
	}
	item := d.q.Remove()
	work, _ := item.(ConnectionUpdateWork)
	return work, true
}

// Len reports the number of pending work items.
func (d *DiscoveryQueue) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.q.Length()
}

// DrainAll pops and applies every currently pending item, in FIFO order, to
// fn. New items pushed by another goroutine during the drain are not
// included, matching one discovery cycle's bounded scope.
func (d *DiscoveryQueue) DrainAll(fn func(ConnectionUpdateWork)) {
	for n := d.Len(); n > 0; n-- {
		work, ok := d.Pop()
		if !ok {
			return
		}
		fn(work)
	}
}
