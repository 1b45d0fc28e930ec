// File: core/service/port_factory.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// CreatePublisher/CreateSubscriber build a core/port.Sender/Receiver over an
// already-open service, register the new port in the service's
// DynamicConfig so peer ports can discover it, and run one
// update-connections cycle against whatever peers are already registered.
// RefreshConnections repeats that cycle later, e.g. from a caller's own
// polling loop, so a long-lived port picks up peers that appear or vanish
// after it was created.
//
// Each refresh diffs a fresh scan of svc.Dynamic.Ports() against the port's
// own currently tracked peers through a DiscoveryQueue: every peer found in
// the scan is staged as an "appeared" work item, every previously tracked
// peer missing from the scan is staged as a "gone" one, and the queue is
// drained into the port's Start/Update/FinishUpdateConnectionCycle protocol
// in one pass.

package service

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/connection"
	"github.com/momentics/zerocopy-ipc/core/memory"
	"github.com/momentics/zerocopy-ipc/core/port"
)

var portSeq atomic.Uint64

func newPortID() string {
	return fmt.Sprintf("%d_%d_%d", os.Getpid(), time.Now().UnixNano(), portSeq.Add(1))
}

// CreatePublisher attaches a new publisher port to svc, allocating its
// payload segment for bucketCount samples shaped by payloadLayout.
func (n *Node) CreatePublisher(svc *OpenService, payloadLayout memory.Layout, bucketCount uint32) (*port.Sender, error) {
	segment, err := port.NewDataSegment(payloadLayout, uintptr(bucketCount)*payloadLayout.Size)
	if err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "create data segment for publisher on service "+svc.UUID, err)
	}

	d := n.cfg.Defaults.PublishSubscribe
	portUUID := newPortID()
	sender := port.NewSender(svc.UUID, portUUID, segment, payloadLayout, d.UnableToDeliverStrategy, d.PublisherMaxLoanedSamples, nil)

	if _, ok := svc.Dynamic.RegisterPort(PortEntry{PortUUID: portUUID, NodeID: n.id, Kind: PortKindPublisher, CreatedAt: time.Now()}); !ok {
		return nil, api.NewError(api.ErrCodeCapacity, "publisher port registry full on service "+svc.UUID)
	}

	if err := n.refreshSenderConnections(svc, portUUID, sender); err != nil {
		return nil, err
	}
	return sender, nil
}

// CreateSubscriber attaches a new subscriber port to svc.
func (n *Node) CreateSubscriber(svc *OpenService) (*port.Receiver, error) {
	d := n.cfg.Defaults.PublishSubscribe
	portUUID := newPortID()
	receiver := port.NewReceiver(svc.UUID, portUUID, d.SubscriberMaxBorrowedSamples, nil)

	if _, ok := svc.Dynamic.RegisterPort(PortEntry{PortUUID: portUUID, NodeID: n.id, Kind: PortKindSubscriber, CreatedAt: time.Now()}); !ok {
		return nil, api.NewError(api.ErrCodeCapacity, "subscriber port registry full on service "+svc.UUID)
	}

	if err := n.refreshReceiverConnections(svc, portUUID, receiver); err != nil {
		return nil, err
	}
	return receiver, nil
}

// RefreshPublisherConnections re-scans svc's registered ports and drives
// sender's update-connections cycle against the currently discovered
// subscribers. Call periodically to keep a long-lived publisher port
// connected to subscribers that appear after it was created.
func (n *Node) RefreshPublisherConnections(svc *OpenService, selfPortUUID string, sender *port.Sender) error {
	return n.refreshSenderConnections(svc, selfPortUUID, sender)
}

// RefreshSubscriberConnections is RefreshPublisherConnections's counterpart
// for a subscriber port.
func (n *Node) RefreshSubscriberConnections(svc *OpenService, selfPortUUID string, receiver *port.Receiver) error {
	return n.refreshReceiverConnections(svc, selfPortUUID, receiver)
}

func (n *Node) refreshSenderConnections(svc *OpenService, selfPortUUID string, sender *port.Sender) error {
	present := make(map[string]bool)
	svc.Dynamic.Ports().ForEach(func(_ uint32, entry PortEntry) {
		if entry.Kind == PortKindSubscriber {
			present[entry.PortUUID] = true
		}
	})

	dq := NewDiscoveryQueue()
	for peerUUID := range present {
		dq.Push(ConnectionUpdateWork{PeerPortUUID: peerUUID, Appeared: true})
	}
	for _, peerUUID := range sender.PeerPortUUIDs() {
		if !present[peerUUID] {
			dq.Push(ConnectionUpdateWork{PeerPortUUID: peerUUID, Appeared: false})
		}
	}

	d := n.cfg.Defaults.PublishSubscribe
	sender.StartUpdateConnectionCycle()
	var buildErr error
	dq.DrainAll(func(w ConnectionUpdateWork) {
		if !w.Appeared {
			sender.RemoveConnection(w.PeerPortUUID)
			return
		}
		if buildErr != nil {
			return
		}
		peerUUID := w.PeerPortUUID
		if err := sender.UpdateConnection(peerUUID, func() (*connection.Sender, error) {
			return connection.NewBuilder(ConnectionPath(n.cfg, selfPortUUID, peerUUID)).
				BufferSize(d.SubscriberMaxBufferSize).
				EnableSafeOverflow(d.EnableSafeOverflow).
				MaxBorrowedSamples(d.SubscriberMaxBorrowedSamples).
				CreateSender()
		}); err != nil {
			buildErr = err
		}
	})
	sender.FinishUpdateConnectionCycle()
	return buildErr
}

func (n *Node) refreshReceiverConnections(svc *OpenService, selfPortUUID string, receiver *port.Receiver) error {
	present := make(map[string]bool)
	svc.Dynamic.Ports().ForEach(func(_ uint32, entry PortEntry) {
		if entry.Kind == PortKindPublisher {
			present[entry.PortUUID] = true
		}
	})

	dq := NewDiscoveryQueue()
	for peerUUID := range present {
		dq.Push(ConnectionUpdateWork{PeerPortUUID: peerUUID, Appeared: true})
	}
	for _, peerUUID := range receiver.PeerPortUUIDs() {
		if !present[peerUUID] {
			dq.Push(ConnectionUpdateWork{PeerPortUUID: peerUUID, Appeared: false})
		}
	}

	d := n.cfg.Defaults.PublishSubscribe
	receiver.StartUpdateConnectionCycle()
	var buildErr error
	dq.DrainAll(func(w ConnectionUpdateWork) {
		if !w.Appeared {
			receiver.RemoveConnection(w.PeerPortUUID)
			return
		}
		if buildErr != nil {
			return
		}
		peerUUID := w.PeerPortUUID
		if err := receiver.UpdateConnection(peerUUID, func() (*connection.Receiver, error) {
			return connection.NewBuilder(ConnectionPath(n.cfg, peerUUID, selfPortUUID)).
				BufferSize(d.SubscriberMaxBufferSize).
				EnableSafeOverflow(d.EnableSafeOverflow).
				MaxBorrowedSamples(d.SubscriberMaxBorrowedSamples).
				CreateReceiver()
		}); err != nil {
			buildErr = err
		}
	})
	receiver.FinishUpdateConnectionCycle()
	return buildErr
}
