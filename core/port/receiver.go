// File: core/port/receiver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Receiver is the subscriber-side service port: a set of
// core/connection.Receiver handles, one per publisher currently discovered
// for this service, polled in order (the first connection with a pending
// sample wins) for incoming samples. No direct
// receiver-side counterpart to sender.rs exists in the retrieved original
// source; this is derived from the complementary half of Sender's design
// (fan-out becomes fan-in, the update-connection cycle is symmetric).

package port

import (
	"sync"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/connection"
)

type receiverConnection struct {
	peerPortUUID  string
	receiver      *connection.Receiver
	lastSeenCycle uint64
}

// Receiver is one subscriber port of a publish-subscribe service.
type Receiver struct {
	mu sync.Mutex

	serviceUUID string
	portUUID    string

	connections  []*receiverConnection
	currentCycle uint64

	maxBorrowedSamples int
	borrowed           map[connection.PointerOffset]*receiverConnection

	degradationCallback DegradationCallback

	stats api.PortStats
}

// NewReceiver builds a subscriber port that may hold at most
// maxBorrowedSamples offsets on loan across all of its connections at once.
func NewReceiver(serviceUUID, portUUID string, maxBorrowedSamples int, cb DegradationCallback) *Receiver {
	return &Receiver{
		serviceUUID:         serviceUUID,
		portUUID:            portUUID,
		maxBorrowedSamples:  maxBorrowedSamples,
		borrowed:            make(map[connection.PointerOffset]*receiverConnection),
		degradationCallback: cb,
	}
}

// Receive polls every tracked connection in order and returns the first
// available offset, or (0, false, nil) if none currently has one. Fails
// ErrReceiveWouldExceedMaxBorrow if maxBorrowedSamples offsets are already
// outstanding; callers must Release before receiving further.
func (r *Receiver) Receive() (connection.PointerOffset, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.borrowed) >= r.maxBorrowedSamples {
		return 0, false, api.Wrap(api.ErrCodeCapacity, "receive on "+r.portUUID, api.ErrReceiveWouldExceedMaxBorrow)
	}

	for _, c := range r.connections {
		v, err := c.receiver.Receive()
		if err != nil {
			if r.degradationCallback != nil {
				r.degradationCallback(r.serviceUUID, c.peerPortUUID)
			}
			continue
		}
		if v == nil {
			continue
		}
		r.borrowed[*v] = c
		r.stats.SamplesReceived++
		return *v, true, nil
	}
	return 0, false, nil
}

// Release returns offset to the publisher it was received from, failing if
// offset is not currently borrowed through this Receiver.
func (r *Receiver) Release(offset connection.PointerOffset) error {
	r.mu.Lock()
	c, ok := r.borrowed[offset]
	if !ok {
		r.mu.Unlock()
		return api.NewError(api.ErrCodeIdentity, "release of offset not currently borrowed on "+r.portUUID)
	}
	delete(r.borrowed, offset)
	r.mu.Unlock()

	return c.receiver.Release(offset)
}

// BorrowedCount reports how many offsets are currently on loan.
func (r *Receiver) BorrowedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.borrowed)
}

// RemoveConnection tears down the connection to peerPortUUID immediately,
// dropping any of its offsets still on loan without returning them (the
// publisher side's own teardown is responsible for reclaiming them).
func (r *Receiver) RemoveConnection(peerPortUUID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeConnectionLocked(peerPortUUID)
}

func (r *Receiver) removeConnectionLocked(peerPortUUID string) {
	kept := r.connections[:0]
	for _, c := range r.connections {
		if c.peerPortUUID != peerPortUUID {
			kept = append(kept, c)
			continue
		}
		for offset, bc := range r.borrowed {
			if bc == c {
				delete(r.borrowed, offset)
			}
		}
		c.receiver.Close()
	}
	r.connections = kept
}

// StartUpdateConnectionCycle begins a new connection-refresh pass. Call
// UpdateConnection once per currently discovered publisher, then
// FinishUpdateConnectionCycle to drop whatever was not mentioned.
func (r *Receiver) StartUpdateConnectionCycle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentCycle++
}

// UpdateConnection tags the connection to peerPortUUID as live for the
// current cycle, building it via build if this peer is newly discovered.
func (r *Receiver) UpdateConnection(peerPortUUID string, build func() (*connection.Receiver, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.connections {
		if c.peerPortUUID == peerPortUUID {
			c.lastSeenCycle = r.currentCycle
			return nil
		}
	}

	recv, err := build()
	if err != nil {
		action := DegradationIgnore
		if r.degradationCallback != nil {
			action = r.degradationCallback(r.serviceUUID, peerPortUUID)
		}
		if action == DegradationFail {
			return err
		}
		return nil
	}

	r.connections = append(r.connections, &receiverConnection{
		peerPortUUID:  peerPortUUID,
		receiver:      recv,
		lastSeenCycle: r.currentCycle,
	})
	return nil
}

// FinishUpdateConnectionCycle removes and closes every connection not
// touched by UpdateConnection since the matching StartUpdateConnectionCycle.
func (r *Receiver) FinishUpdateConnectionCycle() {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.connections[:0]
	for _, c := range r.connections {
		if c.lastSeenCycle == r.currentCycle {
			kept = append(kept, c)
			continue
		}
		for offset, bc := range r.borrowed {
			if bc == c {
				delete(r.borrowed, offset)
			}
		}
		c.receiver.Close()
	}
	r.connections = kept
}

// Stats returns a snapshot of this port's counters.
func (r *Receiver) Stats() api.PortStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stats
	st.ConnectionsLive = len(r.connections)
	return st
}

// ConnectionCount reports how many connections are currently tracked.
func (r *Receiver) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections)
}

// PortUUID returns this port's own identifier, as registered in the
// service's DynamicConfig -- callers need it to drive later refresh cycles.
func (r *Receiver) PortUUID() string { return r.portUUID }

// PeerPortUUIDs returns the port UUIDs of every connection currently
// tracked, for callers driving the update-connections cycle to diff against
// a fresh discovery scan.
func (r *Receiver) PeerPortUUIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.connections))
	for i, c := range r.connections {
		out[i] = c.peerPortUUID
	}
	return out
}

// Close tears down every remaining connection.
func (r *Receiver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.connections {
		c.receiver.Close()
	}
	r.connections = nil
	r.borrowed = make(map[connection.PointerOffset]*receiverConnection)
}
