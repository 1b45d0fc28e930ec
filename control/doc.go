// Package control
// Author: momentics <momentics@gmail.com>
//
// Hot-reload, runtime metrics, configuration control, and debug introspection
// layer for a running node: runtime-adjustable knobs, per-port/per-service
// metrics counters, and debug probes, separate from the fixed-at-creation
// service.GlobalConfig.
//
// Provides concurrent-safe state handling primitives including:
//   - Immutable snapshot option reads and atomic updates (DynamicOptions)
//   - Runtime observers for hot-reload
//   - Metrics telemetry contracts (MetricsRegistry)
//   - State export, debug hooks, and probe registration (DebugProbes)
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
