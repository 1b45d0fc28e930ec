// File: core/service/node.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Node is the process-local owner of a set of open services: a Node
// acquires a monitor token (internal/shm.MonitorToken, a named advisory
// lock that dies with the process), then for each service either creates
// the StaticConfig/DynamicConfig pair (if it is the first to claim that
// name) or opens and compatibility-checks the existing pair. Builder shape
// follows a Config/DefaultConfig()/New() constructor pattern.

package service

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/internal/shm"
)

var nodeSeq atomic.Uint64

func newNodeID() string {
	return fmt.Sprintf("%d_%d_%d", os.Getpid(), time.Now().UnixNano(), nodeSeq.Add(1))
}

// Node owns a monitor token and a Registry of services it has opened.
type Node struct {
	id       string
	cfg      GlobalConfig
	token    *shm.MonitorToken
	registry *Registry
}

// NewNode creates a node's liveness token under cfg's node directory and,
// if cfg.Global.Node.CleanupDeadNodesOnCreation is set, reaps any nodes
// found dead first (the cross-process cleanup policy Registry implements).
func NewNode(cfg GlobalConfig) (*Node, error) {
	if cfg.Global.Node.CleanupDeadNodesOnCreation {
		if _, err := ReapDead(cfg); err != nil {
			return nil, api.Wrap(api.ErrCodeInternal, "reap dead nodes before creating node", err)
		}
	}

	if err := os.MkdirAll(cfg.Global.NodeDir(), 0o755); err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "create node directory", err)
	}
	if err := os.MkdirAll(cfg.Global.ServiceDir(), 0o755); err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "create service directory", err)
	}

	id := newNodeID()
	token, err := shm.AcquireMonitorToken(NodeMonitorPath(cfg, id))
	if err != nil {
		return nil, api.Wrap(api.ErrCodeConnection, "acquire monitor token for node "+id, err)
	}

	return &Node{id: id, cfg: cfg, token: token, registry: NewRegistry()}, nil
}

// ID returns this node's identifier.
func (n *Node) ID() string { return n.id }

// Registry returns the set of services this node currently has open.
func (n *Node) Registry() *Registry { return n.registry }

// CreateService creates a new service named name under the given messaging
// pattern, failing with ErrAlreadyExists if one already exists with that
// identity. portCapacity sizes the process-local port registry
// (DynamicConfig's mpmc.Container).
func (n *Node) CreateService(name string, pattern api.MessagingPattern, portCapacity uint32) (*OpenService, error) {
	static := NewStaticConfig(name, pattern, n.cfg)
	uuid := static.UUID

	staticPath := StaticConfigPath(n.cfg, uuid)
	locked, err := shm.NewStaticStorageBuilder(staticPath).HasOwnership(true).CreateLocked()
	if err != nil {
		return nil, api.Wrap(api.ErrCodeIdentity, "create static config for service "+name, err)
	}
	if _, err := locked.Unlock(static.Encode()); err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "finalize static config for service "+name, err)
	}

	dynamic, err := CreateDynamicConfig(DynamicConfigPath(n.cfg, uuid), portCapacity, n.cfg.Global.Service.CreationTimeout)
	if err != nil {
		_ = shm.RemoveStaticStorage(staticPath)
		return nil, api.Wrap(api.ErrCodeInternal, "create dynamic config for service "+name, err)
	}

	if err := n.tagService(uuid); err != nil {
		return nil, err
	}

	svc := &OpenService{UUID: uuid, Static: static, Dynamic: dynamic}
	n.registry.Track(svc)
	return svc, nil
}

// OpenService opens an existing service named name under the given
// messaging pattern, compatibility-checking it against requested if
// non-nil (pass nil to accept whatever QoS the service already has: a
// requested StaticConfig's fields have no zero value that safely means
// "don't care" for booleans like EnableSafeOverflow, so "no opinion" is
// expressed by the pointer being absent rather than by a zero-valued
// struct).
func (n *Node) OpenService(name string, pattern api.MessagingPattern, requested *StaticConfig, portCapacity uint32) (*OpenService, error) {
	uuid := Identity(name, pattern, n.cfg)

	storage, err := shm.NewStaticStorageBuilder(StaticConfigPath(n.cfg, uuid)).
		HasOwnership(false).
		Open(n.cfg.Global.Service.CreationTimeout)
	if err != nil {
		return nil, api.Wrap(api.ErrCodeIdentity, "open static config for service "+name, err)
	}
	raw, err := storage.Read()
	if err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "read static config for service "+name, err)
	}
	static, err := DecodeStaticConfig(raw)
	if err != nil {
		return nil, err
	}
	if requested != nil {
		r := *requested
		r.Pattern = pattern
		if err := static.CheckCompatibility(r); err != nil {
			return nil, err
		}
	}

	dynamic, err := OpenDynamicConfig(DynamicConfigPath(n.cfg, uuid), portCapacity, n.cfg.Global.Service.CreationTimeout)
	if err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "open dynamic config for service "+name, err)
	}

	if err := n.tagService(uuid); err != nil {
		return nil, err
	}

	svc := &OpenService{UUID: uuid, Static: static, Dynamic: dynamic}
	n.registry.Track(svc)
	return svc, nil
}

// tagService leaves an association marker at ServiceTagPath so a later
// ReapDead scan can find every service this node was attached to.
func (n *Node) tagService(serviceUUID string) error {
	path := ServiceTagPath(n.cfg, n.id, serviceUUID)
	f, err := os.Create(path)
	if err != nil {
		return api.Wrap(api.ErrCodeInternal, "tag service "+serviceUUID+" for node "+n.id, err)
	}
	return f.Close()
}

// CloseService detaches from uuid: closes its DynamicConfig (decrementing
// the shared reference count and, if this was the last owner, removing the
// segment and the static config file), untracks it, and removes this
// node's service tag.
func (n *Node) CloseService(uuid string) error {
	svc, ok := n.registry.Get(uuid)
	if !ok {
		return api.NewError(api.ErrCodeIdentity, "service "+uuid+" not open on this node")
	}

	result, err := svc.Dynamic.Close()
	if err != nil {
		return api.Wrap(api.ErrCodeInternal, "close dynamic config for service "+uuid, err)
	}
	if result == NoMoreOwners {
		if err := shm.RemoveStaticStorage(StaticConfigPath(n.cfg, uuid)); err != nil {
			return api.Wrap(api.ErrCodeInternal, "remove static config for service "+uuid, err)
		}
	}

	_ = os.Remove(ServiceTagPath(n.cfg, n.id, uuid))
	n.registry.Untrack(uuid)
	return nil
}

// Close releases every service this node still has open and releases its
// monitor token, matching the node's Drop-equivalent teardown.
func (n *Node) Close() error {
	for _, uuid := range n.registry.List() {
		if err := n.CloseService(uuid); err != nil {
			return err
		}
	}
	return n.token.Close()
}
