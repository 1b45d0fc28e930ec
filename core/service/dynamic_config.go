// File: core/service/dynamic_config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DynamicConfig is the mutable, runtime-discoverable half of a service: who
// is currently attached to it. The reference counter and existence/creation
// race protocol genuinely need to be visible across processes, so that part
// is backed by internal/shm.DynamicStorage. The live port registry itself
// stays process-local (see DESIGN.md's "DynamicConfig's port registry stays
// process-local" entry) and is backed by core/lockfree/mpmc.Container,
// following the same process_local.rs precedent core/connection already
// established.

package service

import (
	"sync/atomic"
	"time"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/lockfree/mpmc"
	"github.com/momentics/zerocopy-ipc/internal/shm"
)

// PortKind identifies what a PortEntry represents.
type PortKind int

const (
	PortKindPublisher PortKind = iota
	PortKindSubscriber
	PortKindNotifier
	PortKindListener
)

// PortEntry is one attached port's process-local discovery record.
type PortEntry struct {
	PortUUID  string
	NodeID    string
	Kind      PortKind
	CreatedAt time.Time
}

// dynamicHeader is the shared-memory payload of a service's .dynamic
// storage segment: just enough to let every process agree on whether the
// service is still referenced, without sharing the port list itself.
type dynamicHeader struct {
	referenceCount atomic.Uint64
}

// DecrementResult reports whether a reference-count decrement left the
// service referenced or orphaned.
type DecrementResult int

const (
	HasOwners DecrementResult = iota
	NoMoreOwners
)

// DynamicConfig tracks a service's live attachments: a cross-process
// reference count (backed by shared memory) and this process's set of
// locally attached ports (backed by an in-heap Container).
type DynamicConfig struct {
	storage *shm.DynamicStorage[dynamicHeader]
	ports   *mpmc.Container[PortEntry]
}

// CreateDynamicConfig creates a new .dynamic segment with reference count 1
// (the creator counts as the first owner) and a process-local port registry
// sized to the service's combined publisher/subscriber/notifier/listener
// capacity.
func CreateDynamicConfig(path string, portCapacity uint32, timeout time.Duration) (*DynamicConfig, error) {
	storage, err := shm.NewDynamicStorageBuilder[dynamicHeader](path).
		HasOwnership(true).
		Timeout(timeout).
		Create(dynamicHeader{})
	if err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "create dynamic config "+path, err)
	}
	storage.Get().referenceCount.Store(1)
	return &DynamicConfig{
		storage: storage,
		ports:   mpmc.NewContainer[PortEntry](portCapacity),
	}, nil
}

// OpenDynamicConfig attaches to an existing .dynamic segment, incrementing
// its cross-process reference count, and starts its own empty local port
// registry. That registry holds only ports registered through this handle;
// ports registered through any other DynamicConfig handle, in this or
// another process, never appear in it.
func OpenDynamicConfig(path string, portCapacity uint32, timeout time.Duration) (*DynamicConfig, error) {
	storage, err := shm.NewDynamicStorageBuilder[dynamicHeader](path).
		HasOwnership(false).
		Timeout(timeout).
		Open()
	if err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "open dynamic config "+path, err)
	}
	storage.Get().referenceCount.Add(1)
	return &DynamicConfig{
		storage: storage,
		ports:   mpmc.NewContainer[PortEntry](portCapacity),
	}, nil
}

// ReferenceCount returns the current number of processes attached to this
// service.
func (d *DynamicConfig) ReferenceCount() uint64 {
	return d.storage.Get().referenceCount.Load()
}

// RegisterPort records a newly attached local port in this process's
// registry, returning a handle the caller must Release on detach.
func (d *DynamicConfig) RegisterPort(entry PortEntry) (*mpmc.UniqueIndex[PortEntry], bool) {
	return d.ports.Add(entry)
}

// Ports returns a snapshot of every port this process currently has
// attached to the service.
func (d *DynamicConfig) Ports() *mpmc.ContainerState[PortEntry] {
	return d.ports.GetState()
}

// Close decrements the shared reference counter and releases this
// process's storage mapping. When the decrement reaches zero the caller is
// the last owner and is responsible for removing the underlying segment
// (mirrors the source's "last Drop removes the shared memory" rule, made
// explicit here since Go has no destructor to do it implicitly).
func (d *DynamicConfig) Close() (DecrementResult, error) {
	remaining := d.storage.Get().referenceCount.Add(^uint64(0)) // atomic decrement
	result := HasOwners
	if remaining == 0 {
		result = NoMoreOwners
		d.storage.AcquireOwnership()
	} else {
		d.storage.ReleaseOwnership()
	}
	if err := d.storage.Close(); err != nil {
		return result, api.Wrap(api.ErrCodeInternal, "close dynamic config", err)
	}
	return result, nil
}
