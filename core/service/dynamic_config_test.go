package service_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/momentics/zerocopy-ipc/core/service"
)

func TestDynamicConfigCreateStartsAtOneReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topic.dynamic")

	dc, err := service.CreateDynamicConfig(path, 8, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("CreateDynamicConfig failed: %v", err)
	}
	defer dc.Close()

	if got := dc.ReferenceCount(); got != 1 {
		t.Fatalf("ReferenceCount() = %d, want 1", got)
	}
}

func TestDynamicConfigOpenIncrementsReferenceCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topic.dynamic")

	creator, err := service.CreateDynamicConfig(path, 8, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("CreateDynamicConfig failed: %v", err)
	}

	opener, err := service.OpenDynamicConfig(path, 8, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("OpenDynamicConfig failed: %v", err)
	}

	if got := creator.ReferenceCount(); got != 2 {
		t.Fatalf("ReferenceCount() after open = %d, want 2", got)
	}

	if result, err := opener.Close(); err != nil {
		t.Fatalf("opener Close failed: %v", err)
	} else if result != service.HasOwners {
		t.Fatalf("opener Close() result = %v, want HasOwners", result)
	}

	if result, err := creator.Close(); err != nil {
		t.Fatalf("creator Close failed: %v", err)
	} else if result != service.NoMoreOwners {
		t.Fatalf("creator Close() result = %v, want NoMoreOwners", result)
	}
}

func TestDynamicConfigPortRegistryIsProcessLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topic.dynamic")

	dc, err := service.CreateDynamicConfig(path, 4, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("CreateDynamicConfig failed: %v", err)
	}
	defer dc.Close()

	handle, ok := dc.RegisterPort(service.PortEntry{PortUUID: "p1", Kind: service.PortKindPublisher})
	if !ok {
		t.Fatal("RegisterPort failed, expected capacity available")
	}
	defer handle.Release()

	seen := 0
	dc.Ports().ForEach(func(_ uint32, entry service.PortEntry) {
		seen++
		if entry.PortUUID != "p1" {
			t.Fatalf("unexpected port entry %+v", entry)
		}
	})
	if seen != 1 {
		t.Fatalf("expected exactly one registered port, saw %d", seen)
	}
}
