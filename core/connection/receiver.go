// File: core/connection/receiver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package connection

import (
	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/lockfree/spsc"
)

// Receiver is the exclusive read side of a ZeroCopyConnection: it pops
// PointerOffset values from the receive channel and returns them to the
// sender through the retrieve channel once it is done with each one.
type Receiver struct {
	mgmt             *management
	receiveConsumer  *spsc.OverflowingConsumer
	retrieveProducer *spsc.Producer
	borrowCounter    int
	closed           bool
}

// Name returns the connection's identifying name.
func (r *Receiver) Name() string { return r.mgmt.name }

// BufferSize returns the configured receive channel depth.
func (r *Receiver) BufferSize() int { return r.mgmt.bufferSize }

// MaxBorrowedSamples returns the configured max-borrowed-samples setting.
func (r *Receiver) MaxBorrowedSamples() int { return r.mgmt.maxBorrowedSamples }

// HasEnabledSafeOverflow reports whether this connection evicts on overflow.
func (r *Receiver) HasEnabledSafeOverflow() bool { return r.mgmt.enableSafeOverflow }

// IsConnected reports whether a sender is currently attached.
func (r *Receiver) IsConnected() bool {
	return State(r.mgmt.name) == api.ConnectionBoth
}

// Receive pops the next offset from the receive channel, or (nil, nil) if
// none are pending. Fails ErrReceiveWouldExceedMaxBorrow if the borrow
// counter is already at the configured max-borrowed-samples limit; callers
// must Release previously received offsets before receiving more.
func (r *Receiver) Receive() (*PointerOffset, error) {
	if r.borrowCounter >= r.mgmt.maxBorrowedSamples {
		return nil, api.Wrap(api.ErrCodeCapacity, "receive on "+r.mgmt.name, api.ErrReceiveWouldExceedMaxBorrow)
	}
	v, ok := r.receiveConsumer.Pop()
	if !ok {
		return nil, nil
	}
	r.borrowCounter++
	pv := PointerOffset(v)
	return &pv, nil
}

// Release returns offset to the sender via the retrieve channel and
// decrements the borrow counter. Fails ErrRetrieveBufferFull, which
// indicates an invariant violation: the sender's send-path precondition
// guarantees the retrieve channel always has room for every outstanding
// borrow.
func (r *Receiver) Release(offset PointerOffset) error {
	if !r.retrieveProducer.Push(uint64(offset)) {
		return api.Wrap(api.ErrCodeCapacity, "release on "+r.mgmt.name, api.ErrRetrieveBufferFull)
	}
	r.borrowCounter--
	return nil
}

// Close releases the receiver's presence bit and channel-role handles. If
// the sender has already closed, the connection's registry entry is
// removed. Close must be called at most once.
func (r *Receiver) Close() {
	if r.closed {
		panic("connection: Receiver closed twice, undefined behavior")
	}
	r.closed = true
	r.receiveConsumer.Release()
	r.retrieveProducer.Release()
	cleanupConnection(r.mgmt.name, presenceReceiver)
}
