package memory_test

import (
	"testing"
	"unsafe"

	"github.com/momentics/zerocopy-ipc/core/memory"
)

func TestRelocatablePointerResolvesAfterInit(t *testing.T) {
	var value int64 = 42
	var p memory.RelocatablePointer[int64]
	if p.IsInitialized() {
		t.Fatal("expected zero-value pointer to be uninitialized")
	}
	p.Init(unsafe.Pointer(&value))
	if !p.IsInitialized() {
		t.Fatal("expected pointer to be initialized after Init")
	}
	if got := *p.Resolve(); got != 42 {
		t.Errorf("Resolve() = %d, want 42", got)
	}
}

func TestRelocatablePointerDoubleInitPanics(t *testing.T) {
	var value int64
	var p memory.RelocatablePointer[int64]
	p.Init(unsafe.Pointer(&value))

	defer func() {
		if recover() == nil {
			t.Fatal("expected second Init to panic")
		}
	}()
	p.Init(unsafe.Pointer(&value))
}

func TestRelocatablePointerResolveBeforeInitPanics(t *testing.T) {
	var p memory.RelocatablePointer[int64]
	defer func() {
		if recover() == nil {
			t.Fatal("expected Resolve before Init to panic")
		}
	}()
	p.Resolve()
}

func TestRelocatablePointerSurvivesRelocation(t *testing.T) {
	// Simulate two processes mapping the same relative layout at different
	// base addresses: a RelocatablePointer living inside a byte buffer must
	// resolve correctly however that buffer is later moved, as long as the
	// pointer and pointee keep the same relative distance.
	type record struct {
		ptr  memory.RelocatablePointer[int32]
		data int32
	}

	r := &record{data: 7}
	r.ptr.Init(unsafe.Pointer(&r.data))
	if got := *r.ptr.Resolve(); got != 7 {
		t.Fatalf("Resolve() = %d, want 7", got)
	}

	moved := *r
	if got := *moved.ptr.Resolve(); got != 7 {
		t.Errorf("Resolve() after copy = %d, want 7", got)
	}
}
