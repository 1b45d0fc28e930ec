// File: facade/node.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Node is the top-level facade entry point: one call builds a
// core/service.Node (monitor token, service registry) plus the control
// plane (DynamicOptions, MetricsRegistry, DebugProbes) around it, all as
// one constructible object that can create or open services.

package facade

import (
	"fmt"
	"sync"
	"time"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/control"
	"github.com/momentics/zerocopy-ipc/core/memory"
	"github.com/momentics/zerocopy-ipc/core/port"
	"github.com/momentics/zerocopy-ipc/core/service"
)

// Config exposes the configurable parameters for building a Node.
type Config struct {
	Global        service.GlobalConfig
	EnableMetrics bool
	EnableDebug   bool
}

// DefaultConfig provides a baseline configuration for most use cases. You
// can modify returned fields before passing to New.
func DefaultConfig() *Config {
	return &Config{
		Global:        service.DefaultGlobalConfig(),
		EnableMetrics: true,
		EnableDebug:   true,
	}
}

// Node is the main facade struct, providing access to a node's open
// services alongside its control-plane surfaces (options, metrics, debug).
type Node struct {
	config  *Config
	node    *service.Node
	options *control.DynamicOptions
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
	ctl     *control.NodeControl

	mu      sync.RWMutex
	started bool
}

// New creates and initializes a new Node facade: acquires the node's
// monitor token, reaps any dead peer nodes per config, and wires the
// control-plane registries.
func New(cfg *Config) (*Node, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	svcNode, err := service.NewNode(cfg.Global)
	if err != nil {
		return nil, fmt.Errorf("node init error: %w", err)
	}

	n := &Node{
		config:  cfg,
		node:    svcNode,
		options: control.NewDynamicOptions(),
	}
	if cfg.EnableMetrics {
		n.metrics = control.NewMetricsRegistry()
	}
	if cfg.EnableDebug {
		n.debug = control.NewDebugProbes()
		n.debug.RegisterProbe("node.id", func() any { return svcNode.ID() })
		n.debug.RegisterProbe("node.open_services", func() any { return svcNode.Registry().List() })
	}

	n.options.SetOptions(map[string]any{
		"node.root_path": cfg.Global.Global.RootPath,
		"node.prefix":    cfg.Global.Global.Prefix,
	})

	n.ctl = &control.NodeControl{Options: n.options, Metrics: n.metrics, Debug: n.debug}

	return n, nil
}

// Start marks the node as running and records a start timestamp in the
// metrics registry if enabled. Calling Start twice is a no-op.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return nil
	}
	if n.metrics != nil {
		n.metrics.Set("node.started_at", time.Now())
	}
	n.started = true
	return nil
}

// Stop closes every service this node still has open and releases its
// monitor token. Calling Stop twice, or before Start, is a no-op.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return nil
	}
	if err := n.node.Close(); err != nil {
		return fmt.Errorf("node stop error: %w", err)
	}
	n.started = false
	return nil
}

// Shutdown is an alias for Stop.
func (n *Node) Shutdown() error {
	return n.Stop()
}

// CreateService creates a new service, recording its creation time in the
// metrics registry if enabled.
func (n *Node) CreateService(name string, pattern api.MessagingPattern, portCapacity uint32) (*service.OpenService, error) {
	svc, err := n.node.CreateService(name, pattern, portCapacity)
	if err != nil {
		return nil, err
	}
	if n.metrics != nil {
		n.metrics.Set("service."+svc.UUID+".created_at", time.Now())
	}
	return svc, nil
}

// OpenService opens an existing service, optionally compatibility-checked
// against requested (nil accepts whatever QoS the service already has).
func (n *Node) OpenService(name string, pattern api.MessagingPattern, requested *service.StaticConfig, portCapacity uint32) (*service.OpenService, error) {
	return n.node.OpenService(name, pattern, requested, portCapacity)
}

// CreatePublisher attaches a new publisher port to svc, allocating its
// payload segment for bucketCount samples shaped by payloadLayout, and
// connects it to whatever subscribers are already registered.
func (n *Node) CreatePublisher(svc *service.OpenService, payloadLayout memory.Layout, bucketCount uint32) (*port.Sender, error) {
	return n.node.CreatePublisher(svc, payloadLayout, bucketCount)
}

// CreateSubscriber attaches a new subscriber port to svc, connecting it to
// whatever publishers are already registered.
func (n *Node) CreateSubscriber(svc *service.OpenService) (*port.Receiver, error) {
	return n.node.CreateSubscriber(svc)
}

// RefreshPublisherConnections re-scans svc's registered ports and updates
// sender's connections to match, picking up subscribers that appeared or
// vanished since the last refresh.
func (n *Node) RefreshPublisherConnections(svc *service.OpenService, selfPortUUID string, sender *port.Sender) error {
	return n.node.RefreshPublisherConnections(svc, selfPortUUID, sender)
}

// RefreshSubscriberConnections is RefreshPublisherConnections's counterpart
// for a subscriber port.
func (n *Node) RefreshSubscriberConnections(svc *service.OpenService, selfPortUUID string, receiver *port.Receiver) error {
	return n.node.RefreshSubscriberConnections(svc, selfPortUUID, receiver)
}

// CloseService detaches from uuid, releasing it if this was the last owner.
func (n *Node) CloseService(uuid string) error {
	return n.node.CloseService(uuid)
}

// ID returns this node's identifier.
func (n *Node) ID() string { return n.node.ID() }

// Registry exposes the set of services this node currently has open.
func (n *Node) Registry() *service.Registry { return n.node.Registry() }

// Options exposes the runtime-adjustable control-plane knob store.
func (n *Node) Options() *control.DynamicOptions { return n.options }

// Metrics exposes the node's metrics registry, or nil if EnableMetrics was
// false at construction.
func (n *Node) Metrics() *control.MetricsRegistry { return n.metrics }

// Debug exposes the node's debug probe registry, or nil if EnableDebug was
// false at construction.
func (n *Node) Debug() *control.DebugProbes { return n.debug }

// GetControl exposes the node's dynamic config / metrics / debug surface as
// the api.Control interface, for external tooling that only knows that
// contract.
func (n *Node) GetControl() api.Control { return n.ctl }

// GetDebugAPI exposes the node's debug probe registry as the api.Debug
// interface, or nil if EnableDebug was false at construction.
func (n *Node) GetDebugAPI() api.Debug {
	if n.debug == nil {
		return nil
	}
	return n.debug
}
