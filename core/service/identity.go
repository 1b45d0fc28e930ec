// File: core/service/identity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Service identity and the file naming scheme for everything a Service or
// Node touches on disk/shared-memory, grounded on config_scheme.rs/
// naming_scheme.rs's role of mapping a name to a UUID and a UUID to a set
// of paths. Hashing uses hash/fnv, widened to 64 bits for a lower collision
// rate across many service names.

package service

import (
	"encoding/hex"
	"hash/fnv"
	"path/filepath"

	"github.com/momentics/zerocopy-ipc/api"
)

// Identity computes the service_uuid: hash(name || messaging pattern ||
// config scheme), hex-encoded so it is a valid, fixed-length, ASCII file
// name component on every platform.
func Identity(name string, pattern api.MessagingPattern, cfg GlobalConfig) string {
	h := fnv.New64a()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(pattern.String()))
	h.Write([]byte{0})
	h.Write([]byte(cfg.Global.Prefix))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}

// StaticConfigPath returns the path of a service's immutable config file.
func StaticConfigPath(cfg GlobalConfig, uuid string) string {
	name := cfg.Global.Prefix + uuid + cfg.Global.Service.StaticConfigStorageSuffix
	return filepath.Join(cfg.Global.ServiceDir(), name)
}

// DynamicConfigPath returns the path of a service's shared-memory registry
// segment.
func DynamicConfigPath(cfg GlobalConfig, uuid string) string {
	name := cfg.Global.Prefix + uuid + cfg.Global.Service.DynamicConfigStorageSuffix
	return filepath.Join(cfg.Global.ServiceDir(), name)
}

// PublisherDataSegmentPath returns the path of one publisher's data segment
// shared-memory file.
func PublisherDataSegmentPath(cfg GlobalConfig, serviceUUID, portUUID string) string {
	name := cfg.Global.Prefix + serviceUUID + "_" + portUUID + cfg.Global.Service.PublisherDataSegmentSuffix
	return filepath.Join(cfg.Global.ServiceDir(), name)
}

// ConnectionPath returns the path of the ZeroCopyConnection shared-memory
// segment between a publisher (portUUID) and a subscriber (peerUUID).
func ConnectionPath(cfg GlobalConfig, portUUID, peerUUID string) string {
	name := cfg.Global.Prefix + portUUID + "_" + peerUUID + cfg.Global.Service.ConnectionSuffix
	return filepath.Join(cfg.Global.ServiceDir(), name)
}

// NodeMonitorPath returns the path of a node's liveness token.
func NodeMonitorPath(cfg GlobalConfig, nodeID string) string {
	name := cfg.Global.Prefix + nodeID + cfg.Global.Node.MonitorSuffix
	return filepath.Join(cfg.Global.NodeDir(), name)
}

// NodeDetailsPath returns the path of a node's metadata file.
func NodeDetailsPath(cfg GlobalConfig, nodeID string) string {
	name := cfg.Global.Prefix + nodeID + cfg.Global.Node.StaticConfigSuffix
	return filepath.Join(cfg.Global.NodeDir(), name)
}

// ServiceTagPath returns the path of the association marker a node leaves
// behind for each service it has opened, so a cleanup scan can find every
// service a dead node was using.
func ServiceTagPath(cfg GlobalConfig, nodeID, serviceUUID string) string {
	name := cfg.Global.Prefix + nodeID + "_" + serviceUUID + cfg.Global.Node.ServiceTagSuffix
	return filepath.Join(cfg.Global.NodeDir(), name)
}
