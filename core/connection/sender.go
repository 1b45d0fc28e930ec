// File: core/connection/sender.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package connection

import (
	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/lockfree/spsc"
)

// Sender is the exclusive write side of a ZeroCopyConnection: it pushes
// PointerOffset values into the receive channel and drains returned offsets
// from the retrieve channel.
type Sender struct {
	mgmt             *management
	receiveProducer  *spsc.OverflowingProducer
	retrieveConsumer *spsc.Consumer
	closed           bool
}

// Name returns the connection's identifying name.
func (s *Sender) Name() string { return s.mgmt.name }

// BufferSize returns the configured receive channel depth.
func (s *Sender) BufferSize() int { return s.mgmt.bufferSize }

// MaxBorrowedSamples returns the configured max-borrowed-samples setting.
func (s *Sender) MaxBorrowedSamples() int { return s.mgmt.maxBorrowedSamples }

// HasEnabledSafeOverflow reports whether this connection evicts on overflow.
func (s *Sender) HasEnabledSafeOverflow() bool { return s.mgmt.enableSafeOverflow }

// IsConnected reports whether a receiver is currently attached.
func (s *Sender) IsConnected() bool {
	return State(s.mgmt.name) == api.ConnectionBoth
}

// TrySend pushes offset into the receive channel without blocking.
//
// Returns (displaced, nil) where displaced is non-nil iff the push evicted
// an older, not-yet-retrieved offset (only possible with safe overflow
// enabled). Fails ErrClearRetrieveChannelBeforeSend if the retrieve channel
// cannot guarantee room to return every sample the receiver could still be
// holding; fails ErrReceiveBufferFull if safe overflow is disabled and the
// channel is already full.
func (s *Sender) TrySend(offset PointerOffset) (*PointerOffset, error) {
	retrieve := s.mgmt.retrieveChannel
	receive := s.mgmt.receiveChannel

	spaceInRetrieve := retrieve.Capacity() - retrieve.Len()
	if spaceInRetrieve <= uint64(s.mgmt.maxBorrowedSamples)+receive.Len() {
		return nil, api.Wrap(api.ErrCodeCapacity, "send on "+s.mgmt.name, api.ErrClearRetrieveChannelBeforeSend)
	}
	if !s.mgmt.enableSafeOverflow && receive.IsFull() {
		return nil, api.Wrap(api.ErrCodeCapacity, "send on "+s.mgmt.name, api.ErrReceiveBufferFull)
	}

	evicted, hadOverflow := s.receiveProducer.Push(uint64(offset))
	if !hadOverflow {
		return nil, nil
	}
	v := PointerOffset(evicted)
	return &v, nil
}

// BlockingSend waits (via adaptive backoff) while the receive channel is
// full, then delegates to TrySend. Only meaningful when safe overflow is
// disabled; with safe overflow enabled it never blocks, matching TrySend.
func (s *Sender) BlockingSend(offset PointerOffset) (*PointerOffset, error) {
	if !s.mgmt.enableSafeOverflow {
		waitWhile(s.mgmt.receiveChannel.IsFull)
	}
	return s.TrySend(offset)
}

// Reclaim pops the next offset the receiver has returned, or (nil, nil) if
// none are pending.
func (s *Sender) Reclaim() (*PointerOffset, error) {
	v, ok := s.retrieveConsumer.Pop()
	if !ok {
		return nil, nil
	}
	pv := PointerOffset(v)
	return &pv, nil
}

// AcquireUsedOffsets walks every offset still sitting in the receive
// channel -- samples this side pushed that the receiver never retrieved,
// as happens when it dies before returning them -- invoking fn on each so
// the caller can release the reference it held. Only safe to call once the
// receiver is known gone for good; callers use it during teardown of a dead
// connection, before Close.
func (s *Sender) AcquireUsedOffsets(fn func(PointerOffset)) {
	s.receiveProducer.AcquireUsedOffsets(func(v uint64) {
		fn(PointerOffset(v))
	})
}

// Close releases the sender's presence bit and channel-role handles. If the
// receiver has already closed, the connection's registry entry is removed.
// Close must be called at most once.
func (s *Sender) Close() {
	if s.closed {
		panic("connection: Sender closed twice, undefined behavior")
	}
	s.closed = true
	s.receiveProducer.Release()
	s.retrieveConsumer.Release()
	cleanupConnection(s.mgmt.name, presenceSender)
}
