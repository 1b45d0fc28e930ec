package memory_test

import (
	"testing"
	"unsafe"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/memory"
)

func TestNewLayoutRejectsNonPowerOfTwoAlignment(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-power-of-two alignment")
		}
	}()
	memory.NewLayout(16, 3)
}

func TestBumpAllocatorAllocatesMonotonicallyAligned(t *testing.T) {
	buf := make([]byte, 128)
	base := unsafe.Pointer(&buf[0])
	alloc := memory.NewBumpAllocator(base, uintptr(len(buf)))

	p1, err := alloc.Allocate(memory.NewLayout(3, 1))
	if err != nil {
		t.Fatal(err)
	}
	p2, err := alloc.Allocate(memory.NewLayout(8, 8))
	if err != nil {
		t.Fatal(err)
	}
	if uintptr(p2)%8 != 0 {
		t.Errorf("second allocation not 8-byte aligned: %v", p2)
	}
	if uintptr(p2) <= uintptr(p1) {
		t.Errorf("expected monotonically increasing addresses, got p1=%v p2=%v", p1, p2)
	}
}

func TestBumpAllocatorExhaustionFails(t *testing.T) {
	buf := make([]byte, 8)
	alloc := memory.NewBumpAllocator(unsafe.Pointer(&buf[0]), uintptr(len(buf)))

	if _, err := alloc.Allocate(memory.NewLayout(8, 1)); err != nil {
		t.Fatalf("first allocation should fit exactly: %v", err)
	}
	if _, err := alloc.Allocate(memory.NewLayout(1, 1)); err != api.ErrOutOfMemory {
		t.Errorf("expected ErrOutOfMemory, got %v", err)
	}
}

func TestBumpAllocatorRemaining(t *testing.T) {
	buf := make([]byte, 16)
	alloc := memory.NewBumpAllocator(unsafe.Pointer(&buf[0]), uintptr(len(buf)))
	if got := alloc.Remaining(); got != 16 {
		t.Fatalf("Remaining() = %d, want 16", got)
	}
	if _, err := alloc.Allocate(memory.NewLayout(10, 1)); err != nil {
		t.Fatal(err)
	}
	if got := alloc.Remaining(); got != 6 {
		t.Errorf("Remaining() = %d, want 6", got)
	}
}
