// File: core/service/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Registry tracks the services one Node currently has open, and implements
// a cross-process cleanup policy: a node or port discovered dead (its
// monitor lock is acquirable) may be cleaned by any peer. ReapDead is
// grounded on the mpmc.Container.RemoveRawIndex comment ("IPC cleanup after
// dead holder") generalised from one container's slot to a whole node's
// service tags.

package service

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/momentics/zerocopy-ipc/internal/shm"
)

// OpenService is one service this node currently holds a handle to.
type OpenService struct {
	UUID    string
	Static  StaticConfig
	Dynamic *DynamicConfig
}

// Registry is the set of services a single Node has open, guarded for
// concurrent access from multiple goroutines within that process.
type Registry struct {
	mu       sync.Mutex
	services map[string]*OpenService
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]*OpenService)}
}

// Track records svc as open, replacing any prior entry for the same UUID.
func (r *Registry) Track(svc *OpenService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[svc.UUID] = svc
}

// Untrack removes uuid from the registry without touching its storage;
// callers are expected to have already closed svc.Dynamic.
func (r *Registry) Untrack(uuid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, uuid)
}

// Get returns the tracked service for uuid, if any.
func (r *Registry) Get(uuid string) (*OpenService, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[uuid]
	return svc, ok
}

// List returns every service UUID this node currently has open.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	uuids := make([]string, 0, len(r.services))
	for uuid := range r.services {
		uuids = append(uuids, uuid)
	}
	return uuids
}

// ReapDead scans the node directory's monitor files for nodes whose monitor
// token is acquirable (i.e. no live process holds it) and removes their
// service-tag files plus, when cfg says to, the node's monitor/details files
// themselves. It never touches services or connections belonging to a
// live node. Returns the node IDs that were found dead and reaped.
func ReapDead(cfg GlobalConfig) ([]string, error) {
	entries, err := os.ReadDir(cfg.Global.NodeDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	deadNodes := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, cfg.Global.Node.MonitorSuffix) {
			continue
		}
		nodeID := strings.TrimSuffix(strings.TrimPrefix(name, cfg.Global.Prefix), cfg.Global.Node.MonitorSuffix)
		monitorPath := NodeMonitorPath(cfg, nodeID)

		alive, err := shm.IsNodeAlive(monitorPath)
		if err != nil {
			return nil, err
		}
		if !alive {
			deadNodes[nodeID] = true
		}
	}

	reaped := make([]string, 0, len(deadNodes))
	for nodeID := range deadNodes {
		if err := reapNode(cfg, nodeID); err != nil {
			return reaped, err
		}
		reaped = append(reaped, nodeID)
	}
	return reaped, nil
}

func reapNode(cfg GlobalConfig, nodeID string) error {
	tagSuffix := cfg.Global.Node.ServiceTagSuffix
	tagPrefix := cfg.Global.Prefix + nodeID + "_"

	entries, err := os.ReadDir(cfg.Global.NodeDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, tagPrefix) || !strings.HasSuffix(name, tagSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(cfg.Global.NodeDir(), name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	if cfg.Global.Node.CleanupDeadNodesOnDestruction {
		_ = os.Remove(NodeMonitorPath(cfg, nodeID))
		_ = os.Remove(NodeDetailsPath(cfg, nodeID))
	}
	return nil
}
