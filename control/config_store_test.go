package control

import (
	"sync"
	"testing"
)

func TestDynamicOptionsSetAndSnapshot(t *testing.T) {
	o := NewDynamicOptions()
	o.SetOptions(map[string]any{"discovery.poll_interval_ms": 50})

	snap := o.GetSnapshot()
	if snap["discovery.poll_interval_ms"] != 50 {
		t.Fatalf("GetSnapshot()[%q] = %v, want 50", "discovery.poll_interval_ms", snap["discovery.poll_interval_ms"])
	}
}

func TestDynamicOptionsSnapshotIsACopy(t *testing.T) {
	o := NewDynamicOptions()
	o.SetOptions(map[string]any{"k": 1})

	snap := o.GetSnapshot()
	snap["k"] = 2

	if got := o.GetSnapshot()["k"]; got != 1 {
		t.Fatalf("mutating a snapshot affected the store: got %v, want 1", got)
	}
}

func TestDynamicOptionsOnReloadFiresOnSetOptions(t *testing.T) {
	o := NewDynamicOptions()

	var wg sync.WaitGroup
	wg.Add(1)
	o.OnReload(func() { wg.Done() })

	o.SetOptions(map[string]any{"k": "v"})
	wg.Wait()
}

func TestMetricsRegistrySetAndSnapshot(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.Set("service.svc-1.connections_live", 3)

	snap := mr.GetSnapshot()
	if snap["service.svc-1.connections_live"] != 3 {
		t.Fatalf("GetSnapshot() = %v, want connections_live=3", snap)
	}
}

func TestDebugProbesRegisterAndDump(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("node.id", func() any { return "node-1" })

	dump := dp.DumpState()
	if dump["node.id"] != "node-1" {
		t.Fatalf("DumpState() = %v, want node.id=node-1", dump)
	}
}
