package port_test

import (
	"testing"

	"github.com/momentics/zerocopy-ipc/core/memory"
	"github.com/momentics/zerocopy-ipc/core/port"
)

func TestDataSegmentAllocateAndReleaseRoundTrip(t *testing.T) {
	layout := memory.NewLayout(64, 8)
	seg, err := port.NewDataSegment(layout, 64*4)
	if err != nil {
		t.Fatalf("NewDataSegment failed: %v", err)
	}
	if seg.NumberOfBuckets() != 4 {
		t.Fatalf("NumberOfBuckets() = %d, want 4", seg.NumberOfBuckets())
	}

	offset, err := seg.Allocate(40, layout)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if got := seg.PayloadSize(offset); got != 40 {
		t.Fatalf("PayloadSize() = %d, want 40", got)
	}

	ptr := seg.PointerAt(offset)
	if ptr == nil {
		t.Fatal("PointerAt returned nil")
	}

	seg.Release(offset, layout)

	// The bucket should be reusable after release.
	if _, err := seg.Allocate(40, layout); err != nil {
		t.Fatalf("Allocate after release failed: %v", err)
	}
}

func TestDataSegmentBorrowKeepsBucketAliveUntilAllReleased(t *testing.T) {
	layout := memory.NewLayout(32, 8)
	seg, err := port.NewDataSegment(layout, 32*2)
	if err != nil {
		t.Fatalf("NewDataSegment failed: %v", err)
	}

	offset, err := seg.Allocate(10, layout)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	seg.Borrow(offset)   // second borrower
	seg.Release(offset, layout) // first borrower's release must not free the bucket

	// Still held by the second borrower: the other bucket must still be
	// free to allocate, and a third allocation must not collide.
	other, err := seg.Allocate(10, layout)
	if err != nil {
		t.Fatalf("Allocate of the other bucket failed: %v", err)
	}
	if other == offset {
		t.Fatal("second allocation reused a bucket still held by an outstanding borrower")
	}

	seg.Release(offset, layout) // second borrower's release frees it
}

func TestDataSegmentAllocateFailsWhenExhausted(t *testing.T) {
	layout := memory.NewLayout(16, 8)
	seg, err := port.NewDataSegment(layout, 16*1)
	if err != nil {
		t.Fatalf("NewDataSegment failed: %v", err)
	}

	if _, err := seg.Allocate(8, layout); err != nil {
		t.Fatalf("first Allocate failed: %v", err)
	}
	if _, err := seg.Allocate(8, layout); err == nil {
		t.Fatal("expected second Allocate to fail once the single bucket is exhausted")
	}
}
