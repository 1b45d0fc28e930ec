// File: core/service/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// GlobalConfig is the concrete, literal-struct settings object every Node
// carries, grounded on iceoryx2's config.rs Global/Defaults split, with a
// Config/DefaultConfig() constructor shape. File parsing (TOML) is out of
// scope: callers construct or override GlobalConfig in code. No map
// overlay is merged into it; control.DynamicOptions is a separate store.

package service

import (
	"runtime"
	"time"

	"github.com/momentics/zerocopy-ipc/api"
)

// ServiceConfig holds the directory layout and timing knobs for service
// discovery files and shared memory segments.
type ServiceConfig struct {
	Directory                  string
	PublisherDataSegmentSuffix string
	StaticConfigStorageSuffix  string
	DynamicConfigStorageSuffix string
	ConnectionSuffix           string
	EventConnectionSuffix      string
	CreationTimeout            time.Duration
}

// NodeConfig holds the directory layout and liveness policy for node files.
type NodeConfig struct {
	Directory                     string
	MonitorSuffix                 string
	StaticConfigSuffix            string
	ServiceTagSuffix              string
	CleanupDeadNodesOnCreation    bool
	CleanupDeadNodesOnDestruction bool
}

// GlobalSettings holds the root path, file prefix, and the nested
// service/node settings.
type GlobalSettings struct {
	RootPath string
	Prefix   string
	Service  ServiceConfig
	Node     NodeConfig
}

// ServiceDir returns the absolute directory under which all service files
// are stored.
func (g GlobalSettings) ServiceDir() string {
	return g.RootPath + "/" + g.Service.Directory
}

// NodeDir returns the absolute directory under which all node files are
// stored.
func (g GlobalSettings) NodeDir() string {
	return g.RootPath + "/" + g.Node.Directory
}

// PublishSubscribeDefaults holds the default QoS applied to a
// publish-subscribe service unless the caller overrides them explicitly.
type PublishSubscribeDefaults struct {
	MaxSubscribers               int
	MaxPublishers                int
	MaxNodes                     int
	SubscriberMaxBufferSize      int
	SubscriberMaxBorrowedSamples int
	PublisherMaxLoanedSamples    int
	PublisherHistorySize         int
	EnableSafeOverflow           bool
	UnableToDeliverStrategy      api.UnableToDeliverStrategy
}

// EventDefaults holds the default QoS applied to an event service unless
// the caller overrides them explicitly.
type EventDefaults struct {
	MaxListeners    int
	MaxNotifiers    int
	MaxNodes        int
	EventIDMaxValue int
}

// Defaults groups the per-messaging-pattern default QoS settings.
type Defaults struct {
	PublishSubscribe PublishSubscribeDefaults
	Event            EventDefaults
}

// GlobalConfig is the full, overridable settings object a Node is built
// from, equivalent to iceoryx2's Config{global, defaults}.
type GlobalConfig struct {
	Global   GlobalSettings
	Defaults Defaults
}

// defaultRootPath mirrors config.rs's platform split
// (root_path_unix vs root_path_windows), selected at runtime via
// runtime.GOOS rather than a build tag since it is a single string literal,
// not a platform primitive.
func defaultRootPath() string {
	if runtime.GOOS == "windows" {
		return `C:\Temp\iceoryx2`
	}
	return "/tmp/iceoryx2"
}

// DefaultGlobalConfig returns the configuration used when a Node is built
// without an explicit override, with every numeric default copied from
// config.rs's Default impl for Config.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		Global: GlobalSettings{
			RootPath: defaultRootPath(),
			Prefix:   "iox2_",
			Service: ServiceConfig{
				Directory:                  "services",
				PublisherDataSegmentSuffix: ".publisher_data",
				StaticConfigStorageSuffix:  ".service",
				DynamicConfigStorageSuffix: ".dynamic",
				ConnectionSuffix:           ".connection",
				EventConnectionSuffix:      ".event",
				CreationTimeout:            500 * time.Millisecond,
			},
			Node: NodeConfig{
				Directory:                     "nodes",
				MonitorSuffix:                 ".node_monitor",
				StaticConfigSuffix:            ".details",
				ServiceTagSuffix:              ".service_tag",
				CleanupDeadNodesOnCreation:    true,
				CleanupDeadNodesOnDestruction: true,
			},
		},
		Defaults: Defaults{
			PublishSubscribe: PublishSubscribeDefaults{
				MaxSubscribers:               8,
				MaxPublishers:                2,
				MaxNodes:                     20,
				SubscriberMaxBufferSize:      2,
				SubscriberMaxBorrowedSamples: 2,
				PublisherMaxLoanedSamples:    2,
				PublisherHistorySize:         1,
				EnableSafeOverflow:           true,
				UnableToDeliverStrategy:      api.StrategyBlock,
			},
			Event: EventDefaults{
				MaxListeners:    1,
				MaxNotifiers:    16,
				MaxNodes:        36,
				EventIDMaxValue: 32,
			},
		},
	}
}
