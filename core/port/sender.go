// File: core/port/sender.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sender is the publisher-side service port: one DataSegment it loans
// samples from, and a fan-out set of core/connection.Sender handles, one per
// subscriber currently discovered for this service. Grounded on
// original_source/iceoryx2/src/port/details/sender.rs's Sender<Service>:
// segment_states + data_segment for allocation/loan bookkeeping,
// connections + degradation_callback + unable_to_deliver_strategy for
// delivery, and the tagger-driven start/update/finish connection cycle for
// refreshing fan-out membership as subscribers come and go.

package port

import (
	"sync"
	"unsafe"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/connection"
	"github.com/momentics/zerocopy-ipc/core/memory"
)

type senderConnection struct {
	peerPortUUID  string
	sender        *connection.Sender
	lastSeenCycle uint64
}

// Sender is one publisher port of a publish-subscribe service.
type Sender struct {
	mu sync.Mutex

	serviceUUID string
	portUUID    string

	segment *DataSegment
	layout  memory.Layout

	connections  []*senderConnection
	currentCycle uint64

	unableToDeliverStrategy api.UnableToDeliverStrategy
	degradationCallback     DegradationCallback

	loanCounter      int
	maxLoanedSamples int

	stats api.PortStats
}

// NewSender builds a publisher port backed by segment, allocating payloads
// against layout. maxLoanedSamples bounds how many samples may be
// outstanding (loaned but not yet Sent or released) at once.
func NewSender(
	serviceUUID, portUUID string,
	segment *DataSegment,
	layout memory.Layout,
	strategy api.UnableToDeliverStrategy,
	maxLoanedSamples int,
	cb DegradationCallback,
) *Sender {
	return &Sender{
		serviceUUID:             serviceUUID,
		portUUID:                portUUID,
		segment:                 segment,
		layout:                  layout,
		unableToDeliverStrategy: strategy,
		degradationCallback:     cb,
		maxLoanedSamples:        maxLoanedSamples,
	}
}

// Loan reserves a bucket of the segment sized for payloadSize, failing with
// ErrExceedsMaxLoans if maxLoanedSamples outstanding loans are already held.
// The returned pointer is writable zero-copy sample storage; offset is what
// Send later delivers.
func (s *Sender) Loan(payloadSize uint64) (connection.PointerOffset, unsafe.Pointer, error) {
	s.mu.Lock()
	if s.loanCounter >= s.maxLoanedSamples {
		s.mu.Unlock()
		return 0, nil, api.Wrap(api.ErrCodeCapacity, "loan on sender "+s.portUUID, api.ErrExceedsMaxLoans)
	}
	s.loanCounter++
	s.mu.Unlock()

	rawOffset, err := s.segment.Allocate(payloadSize, s.layout)
	if err != nil {
		s.mu.Lock()
		s.loanCounter--
		s.mu.Unlock()
		return 0, nil, err
	}

	s.mu.Lock()
	s.stats.SamplesLoaned++
	s.mu.Unlock()

	return connection.NewPointerOffset(0, rawOffset), s.segment.PointerAt(rawOffset), nil
}

// ReleaseSample abandons a loaned-but-never-sent sample, returning its
// bucket to the segment and freeing its loan slot.
func (s *Sender) ReleaseSample(offset connection.PointerOffset) {
	s.segment.Release(offset.Offset(), s.layout)
	s.mu.Lock()
	s.loanCounter--
	s.mu.Unlock()
}

// Send fans offset out to every currently tracked connection, delivering per
// unableToDeliverStrategy, and reports how many connections actually
// received it. The loan this offset came from is consumed by this call
// regardless of how many connections accept it; a delivery that lands on
// zero connections drops the sample's last reference immediately.
func (s *Sender) Send(offset connection.PointerOffset) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.connections) == 0 {
		s.segment.Release(offset.Offset(), s.layout)
		s.loanCounter--
		return 0
	}

	delivered := 0
	for _, c := range s.connections {
		s.segment.Borrow(offset.Offset())
		if err := s.deliverToConnection(c, offset); err != nil {
			s.segment.Release(offset.Offset(), s.layout)
			continue
		}
		delivered++
	}
	// The loan's own reference is dropped only after the fan-out, so a failed
	// delivery can never return the bucket while later connections use it.
	s.segment.Release(offset.Offset(), s.layout)

	s.loanCounter--
	s.stats.SamplesSent += int64(delivered)
	return delivered
}

// deliverToConnection must be called with s.mu held.
func (s *Sender) deliverToConnection(c *senderConnection, offset connection.PointerOffset) error {
	var displaced *connection.PointerOffset
	var err error

	if s.unableToDeliverStrategy == api.StrategyBlock {
		displaced, err = c.sender.BlockingSend(offset)
	} else {
		displaced, err = c.sender.TrySend(offset)
	}

	if err != nil {
		if s.degradationCallback != nil {
			s.degradationCallback(s.serviceUUID, c.peerPortUUID)
		}
		return err
	}
	if displaced != nil {
		s.segment.Release(displaced.Offset(), s.layout)
	}
	return nil
}

// RetrieveReturnedSamples drains every connection's retrieve channel,
// releasing the segment reference each returned offset was holding, and
// reports how many were reclaimed.
func (s *Sender) RetrieveReturnedSamples() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.connections {
		for {
			v, err := c.sender.Reclaim()
			if err != nil || v == nil {
				break
			}
			s.segment.Release(v.Offset(), s.layout)
			n++
		}
	}
	s.stats.SamplesReclaimed += int64(n)
	return n
}

// drainAndClose must be called with s.mu held. It reclaims every offset the
// peer already returned via the retrieve channel, then -- since the peer is
// being torn down and will never return anything more -- acquires every
// offset still waiting unreceived in the receive channel. Offsets the peer
// had already received but not yet released are in neither channel and are
// not reclaimed here.
func (s *Sender) drainAndClose(c *senderConnection) {
	for {
		v, err := c.sender.Reclaim()
		if err != nil || v == nil {
			break
		}
		s.segment.Release(v.Offset(), s.layout)
	}
	c.sender.AcquireUsedOffsets(func(offset connection.PointerOffset) {
		s.segment.Release(offset.Offset(), s.layout)
	})
	c.sender.Close()
}

// PortUUID returns this port's own identifier, as registered in the
// service's DynamicConfig -- callers need it to drive later refresh cycles.
func (s *Sender) PortUUID() string { return s.portUUID }

// PeerPortUUIDs returns the port UUIDs of every connection currently
// tracked, for callers driving the update-connections cycle to diff against
// a fresh discovery scan.
func (s *Sender) PeerPortUUIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.connections))
	for i, c := range s.connections {
		out[i] = c.peerPortUUID
	}
	return out
}

// RemoveConnection tears down the connection to peerPortUUID immediately,
// reclaiming any samples it still had outstanding.
func (s *Sender) RemoveConnection(peerPortUUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.connections[:0]
	for _, c := range s.connections {
		if c.peerPortUUID == peerPortUUID {
			s.drainAndClose(c)
			continue
		}
		kept = append(kept, c)
	}
	s.connections = kept
}

// StartUpdateConnectionCycle begins a new connection-refresh pass. Call
// UpdateConnection once per currently discovered subscriber, then
// FinishUpdateConnectionCycle to drop whatever was not mentioned.
func (s *Sender) StartUpdateConnectionCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentCycle++
}

// UpdateConnection tags the connection to peerPortUUID as live for the
// current cycle, building it via build if this peer is newly discovered.
// Build failure invokes the degradation callback; DegradationFail propagates
// the error, anything else is swallowed and the peer is skipped this cycle.
func (s *Sender) UpdateConnection(peerPortUUID string, build func() (*connection.Sender, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.connections {
		if c.peerPortUUID == peerPortUUID {
			c.lastSeenCycle = s.currentCycle
			return nil
		}
	}

	sender, err := build()
	if err != nil {
		action := DegradationIgnore
		if s.degradationCallback != nil {
			action = s.degradationCallback(s.serviceUUID, peerPortUUID)
		}
		if action == DegradationFail {
			return err
		}
		return nil
	}

	s.connections = append(s.connections, &senderConnection{
		peerPortUUID:  peerPortUUID,
		sender:        sender,
		lastSeenCycle: s.currentCycle,
	})
	return nil
}

// FinishUpdateConnectionCycle removes and closes every connection not
// touched by UpdateConnection since the matching StartUpdateConnectionCycle.
func (s *Sender) FinishUpdateConnectionCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.connections[:0]
	for _, c := range s.connections {
		if c.lastSeenCycle == s.currentCycle {
			kept = append(kept, c)
			continue
		}
		s.drainAndClose(c)
	}
	s.connections = kept
}

// Stats returns a snapshot of this port's counters.
func (s *Sender) Stats() api.PortStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.ConnectionsLive = len(s.connections)
	return st
}

// ConnectionCount reports how many connections are currently tracked.
func (s *Sender) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// Close tears down every remaining connection, reclaiming outstanding
// samples from each.
func (s *Sender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.connections {
		s.drainAndClose(c)
	}
	s.connections = nil
}
