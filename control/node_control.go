// control/node_control.go
// Author: momentics <momentics@gmail.com>
//
// NodeControl adapts this package's DynamicOptions/MetricsRegistry/
// DebugProbes registries into the api.Control surface a facade.Node exposes
// to external tooling, bundling config/metrics/debug primitives behind one
// interface.

package control

import "github.com/momentics/zerocopy-ipc/api"

var (
	_ api.Control = (*NodeControl)(nil)
	_ api.Debug   = (*DebugProbes)(nil)
)

// NodeControl is the api.Control implementation a facade.Node builds from
// its own control-plane registries.
type NodeControl struct {
	Options *DynamicOptions
	Metrics *MetricsRegistry
	Debug   *DebugProbes
}

// GetConfig returns a snapshot of the current dynamic options.
func (c *NodeControl) GetConfig() map[string]any {
	return c.Options.GetSnapshot()
}

// SetConfig merges cfg into the dynamic options store and dispatches any
// registered reload listeners.
func (c *NodeControl) SetConfig(cfg map[string]any) error {
	c.Options.SetOptions(cfg)
	return nil
}

// Stats returns a snapshot of the metrics registry, or an empty map if no
// metrics registry was configured.
func (c *NodeControl) Stats() map[string]any {
	if c.Metrics == nil {
		return map[string]any{}
	}
	return c.Metrics.GetSnapshot()
}

// OnReload registers a listener invoked whenever SetConfig changes the
// dynamic options.
func (c *NodeControl) OnReload(fn func()) {
	c.Options.OnReload(fn)
}

// RegisterDebugProbe registers a named debug hook, a no-op if no debug
// probe registry was configured.
func (c *NodeControl) RegisterDebugProbe(name string, fn func() any) {
	if c.Debug != nil {
		c.Debug.RegisterProbe(name, fn)
	}
}
