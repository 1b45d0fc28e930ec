// File: core/connection/zerocopy_connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ZeroCopyConnection is the bipartite SPSC channel pair a publisher/sender
// and subscriber/receiver use to exchange PointerOffset values without ever
// copying the sample itself: only the offset travels through shared memory
// (or, for the process-local variant implemented here, through a registry
// entry shared by goroutines in the same process). The receive channel
// carries offsets sender->receiver and may silently evict the oldest
// in-flight offset when full ("safe overflow"); the retrieve channel
// carries offsets back receiver->sender once the receiver is done with
// them, sized so it can always absorb every outstanding borrow.
//
// Go has no destructor to mirror the source's Drop impl that clears a
// side's "present" bit and tears down the registry entry automatically;
// Sender and Receiver require an explicit Close call instead.

package connection

import (
	"sync"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/lockfree/spsc"
)

// Defaults mirror the publish-subscribe QoS defaults of service.GlobalConfig
// (subscriber_max_buffer_size, enable_safe_overflow,
// subscriber_max_borrowed_samples); a Builder caller is expected to override
// them from service.GlobalConfig in practice.
const (
	DefaultBufferSize         = 2
	DefaultEnableSafeOverflow = true
	DefaultMaxBorrowedSamples = 2
)

// PointerOffset packs a segment identifier (8 bits) and a byte offset
// within that segment (56 bits) into a single uint64, matching the wire
// format of one receive/retrieve channel cell.
type PointerOffset uint64

const segmentIDShift = 56
const offsetMask = (uint64(1) << segmentIDShift) - 1

// NewPointerOffset packs a segment id and an in-segment byte offset.
// offset must fit in 56 bits; callers controlling segment sizes (bounded by
// PoolAllocator capacity) never come close to that limit.
func NewPointerOffset(segmentID uint8, offset uint64) PointerOffset {
	return PointerOffset(uint64(segmentID)<<segmentIDShift | (offset & offsetMask))
}

// SegmentID returns the segment component of the offset.
func (p PointerOffset) SegmentID() uint8 { return uint8(uint64(p) >> segmentIDShift) }

// Offset returns the in-segment byte offset component.
func (p PointerOffset) Offset() uint64 { return uint64(p) & offsetMask }

type presenceState uint32

const (
	presenceSender   presenceState = 1 << 0
	presenceReceiver presenceState = 1 << 1
)

func (s presenceState) toConnectionState() api.ConnectionState {
	switch s {
	case presenceSender:
		return api.ConnectionSenderOnly
	case presenceReceiver:
		return api.ConnectionReceiverOnly
	case presenceSender | presenceReceiver:
		return api.ConnectionBoth
	default:
		return api.ConnectionAbsent
	}
}

// management is the shared state backing one named connection, kept alive
// in the process-local registry for as long as either side holds its
// presence bit.
type management struct {
	name               string
	receiveChannel     *spsc.SafelyOverflowingIndexQueue
	retrieveChannel    *spsc.IndexQueue
	enableSafeOverflow bool
	maxBorrowedSamples int
	bufferSize         int
	mu                 sync.Mutex // guards state; registry lock also serializes create/close
	state              presenceState
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]*management)
)

// Builder configures and opens one side (or both, from separate Builder
// values sharing a name) of a process-local ZeroCopyConnection.
type Builder struct {
	name               string
	bufferSize         int
	enableSafeOverflow bool
	maxBorrowedSamples int
}

// NewBuilder starts a Builder for the connection identified by name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:               name,
		bufferSize:         DefaultBufferSize,
		enableSafeOverflow: DefaultEnableSafeOverflow,
		maxBorrowedSamples: DefaultMaxBorrowedSamples,
	}
}

// BufferSize sets the receive channel depth.
func (b *Builder) BufferSize(v int) *Builder { b.bufferSize = v; return b }

// EnableSafeOverflow sets whether a full receive channel evicts its oldest
// entry (true) or rejects the send (false).
func (b *Builder) EnableSafeOverflow(v bool) *Builder { b.enableSafeOverflow = v; return b }

// MaxBorrowedSamples sets the maximum number of samples a receiver may hold
// on loan simultaneously.
func (b *Builder) MaxBorrowedSamples(v int) *Builder { b.maxBorrowedSamples = v; return b }

func (b *Builder) retrieveChannelSize() int {
	return b.bufferSize + b.maxBorrowedSamples + 1
}

func (b *Builder) checkCompatibility(entry *management) error {
	if entry.enableSafeOverflow != b.enableSafeOverflow {
		return api.Wrap(api.ErrCodeCompatibility, "overflow setting mismatch on "+b.name, api.ErrIncompatibleOverflowBehavior)
	}
	if entry.maxBorrowedSamples != b.maxBorrowedSamples {
		return api.Wrap(api.ErrCodeCompatibility, "max-borrowed-samples mismatch on "+b.name, api.ErrIncompatibleMaxBorrowedSetting)
	}
	if entry.bufferSize != b.bufferSize {
		return api.Wrap(api.ErrCodeCompatibility, "buffer size mismatch on "+b.name, api.ErrIncompatibleBufferSize)
	}
	return nil
}

// CreateSender opens (creating the connection if it does not yet exist) the
// sending side. Fails with ErrAnotherInstanceAlreadyConnected if a sender is
// already attached.
func (b *Builder) CreateSender() (*Sender, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	entry, err := b.openOrCreateLocked(presenceSender)
	if err != nil {
		return nil, err
	}
	producer, ok := entry.receiveChannel.AcquireProducer()
	if !ok {
		return nil, api.Wrap(api.ErrCodeConnection, "receive channel producer already held on "+b.name, api.ErrAnotherInstanceAlreadyConnected)
	}
	consumer, ok := entry.retrieveChannel.AcquireConsumer()
	if !ok {
		producer.Release()
		return nil, api.Wrap(api.ErrCodeConnection, "retrieve channel consumer already held on "+b.name, api.ErrAnotherInstanceAlreadyConnected)
	}
	return &Sender{mgmt: entry, receiveProducer: producer, retrieveConsumer: consumer}, nil
}

// CreateReceiver opens (creating the connection if it does not yet exist)
// the receiving side. Fails with ErrAnotherInstanceAlreadyConnected if a
// receiver is already attached.
func (b *Builder) CreateReceiver() (*Receiver, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	entry, err := b.openOrCreateLocked(presenceReceiver)
	if err != nil {
		return nil, err
	}
	consumer, ok := entry.receiveChannel.AcquireConsumer()
	if !ok {
		return nil, api.Wrap(api.ErrCodeConnection, "receive channel consumer already held on "+b.name, api.ErrAnotherInstanceAlreadyConnected)
	}
	producer, ok := entry.retrieveChannel.AcquireProducer()
	if !ok {
		consumer.Release()
		return nil, api.Wrap(api.ErrCodeConnection, "retrieve channel producer already held on "+b.name, api.ErrAnotherInstanceAlreadyConnected)
	}
	return &Receiver{mgmt: entry, receiveConsumer: consumer, retrieveProducer: producer}, nil
}

// openOrCreateLocked must be called with registryMu held.
func (b *Builder) openOrCreateLocked(side presenceState) (*management, error) {
	if entry, ok := registry[b.name]; ok {
		entry.mu.Lock()
		already := entry.state&side != 0
		if !already {
			if err := b.checkCompatibility(entry); err != nil {
				entry.mu.Unlock()
				return nil, err
			}
			entry.state |= side
		}
		entry.mu.Unlock()
		if already {
			return nil, api.Wrap(api.ErrCodeConnection, "side already connected on "+b.name, api.ErrAnotherInstanceAlreadyConnected)
		}
		return entry, nil
	}

	entry := &management{
		name:               b.name,
		receiveChannel:     spsc.NewSafelyOverflowingIndexQueue(uint64(b.bufferSize)),
		retrieveChannel:    spsc.NewIndexQueue(uint64(b.retrieveChannelSize())),
		enableSafeOverflow: b.enableSafeOverflow,
		maxBorrowedSamples: b.maxBorrowedSamples,
		bufferSize:         b.bufferSize,
		state:              side,
	}
	registry[b.name] = entry
	return entry, nil
}

// cleanupConnection clears side's presence bit and, if that was the last
// side still attached, removes the registry entry entirely. Called from
// Sender.Close/Receiver.Close in place of the source's Drop impl.
func cleanupConnection(name string, side presenceState) {
	registryMu.Lock()
	defer registryMu.Unlock()

	entry, ok := registry[name]
	if !ok {
		return
	}
	entry.mu.Lock()
	entry.state &^= side
	empty := entry.state == 0
	entry.mu.Unlock()
	if empty {
		delete(registry, name)
	}
}

// DoesExist reports whether a connection named name currently exists in the
// process-local registry.
func DoesExist(name string) bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	_, ok := registry[name]
	return ok
}

// List returns the names of every connection currently present in the
// process-local registry.
func List() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// Remove force-removes a connection's registry entry regardless of its
// presence bits. Intended for cross-process recovery after a dead peer is
// detected by a higher liveness layer; callers must ensure no live Sender or
// Receiver handle for name remains in use afterward.
func Remove(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, name)
}

// State reports the current sender/receiver presence of a named connection.
func State(name string) api.ConnectionState {
	registryMu.Lock()
	entry, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return api.ConnectionAbsent
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.state.toConnectionState()
}
