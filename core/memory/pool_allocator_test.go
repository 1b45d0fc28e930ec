package memory_test

import (
	"testing"
	"unsafe"

	"github.com/momentics/zerocopy-ipc/core/memory"
)

const poolTestMemorySize = 1024

func newPoolTestFixture(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, poolTestMemorySize)
	for i := range buf {
		buf[i] = 255
	}
	return buf
}

func newTestPoolAllocator(t *testing.T, data []byte, bucketSize, bucketAlign uintptr) *memory.PoolAllocator {
	t.Helper()
	layout := memory.NewLayout(bucketSize, bucketAlign)
	mgmtSize := memory.ManagementMemorySize(layout, uintptr(len(data)))
	mgmt := make([]byte, mgmtSize+64)
	mgmtAlloc := memory.NewBumpAllocator(unsafe.Pointer(&mgmt[0]), uintptr(len(mgmt)))

	p, err := memory.NewPoolAllocator(layout, unsafe.Pointer(&data[0]), uintptr(len(data)), mgmtAlloc)
	if err != nil {
		t.Fatalf("NewPoolAllocator failed: %v", err)
	}
	return p
}

func TestPoolAllocatorSetUpCorrectly(t *testing.T) {
	data := newPoolTestFixture(t)
	const bucketSize, bucketAlign = 128, 1
	p := newTestPoolAllocator(t, data, bucketSize, bucketAlign)

	if got := p.BucketSize(); got != bucketSize {
		t.Errorf("BucketSize() = %d, want %d", got, bucketSize)
	}
	if got := p.MaxAlignment(); got != bucketAlign {
		t.Errorf("MaxAlignment() = %d, want %d", got, bucketAlign)
	}
	if got := int(p.NumberOfBuckets()); got > len(data)/bucketSize {
		t.Errorf("NumberOfBuckets() = %d, want <= %d", got, len(data)/bucketSize)
	}
}

func TestPoolAllocatorAcquireAllMemoryWorks(t *testing.T) {
	data := newPoolTestFixture(t)
	const bucketSize, bucketAlign, chunkSize = 128, 8, 100
	p := newTestPoolAllocator(t, data, bucketSize, bucketAlign)

	for i := uint32(0); i < p.NumberOfBuckets(); i++ {
		if _, err := p.Allocate(memory.NewLayout(chunkSize, 1)); err != nil {
			t.Fatalf("allocation %d failed: %v", i, err)
		}
	}
	if _, err := p.Allocate(memory.NewLayout(chunkSize, 1)); err == nil {
		t.Fatal("expected allocation to fail once every bucket is borrowed")
	}
}

func TestPoolAllocatorAllocateMoreThanBucketSizeFails(t *testing.T) {
	data := newPoolTestFixture(t)
	p := newTestPoolAllocator(t, data, 128, 8)
	if _, err := p.Allocate(memory.NewLayout(129, 1)); err == nil {
		t.Fatal("expected allocation larger than bucket size to fail")
	}
}

func TestPoolAllocatorAllocateMoreThanBucketAlignmentFails(t *testing.T) {
	data := newPoolTestFixture(t)
	p := newTestPoolAllocator(t, data, 128, 8)
	if _, err := p.Allocate(memory.NewLayout(128, 16)); err == nil {
		t.Fatal("expected allocation with excessive alignment to fail")
	}
}

func TestPoolAllocatorDeallocateNonAllocatedChunkPanics(t *testing.T) {
	data := newPoolTestFixture(t)
	p := newTestPoolAllocator(t, data, 128, 8)
	if _, err := p.Allocate(memory.NewLayout(128, 8)); err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected deallocate of foreign pointer to panic")
		}
	}()
	var bogus byte
	p.Deallocate(unsafe.Pointer(&bogus), memory.NewLayout(128, 8))
}

func TestPoolAllocatorAcquireAndReleaseWorks(t *testing.T) {
	data := newPoolTestFixture(t)
	const bucketSize, bucketAlign, chunkSize = 8, 128, 5
	p := newTestPoolAllocator(t, data, bucketSize, bucketAlign)

	if p.NumberOfBuckets() < 7 {
		t.Fatalf("expected at least 7 buckets, got %d", p.NumberOfBuckets())
	}

	var borrowed []unsafe.Pointer
	for i := uint32(0); i < p.NumberOfBuckets(); i++ {
		ptr, err := p.Allocate(memory.NewLayout(chunkSize, 1))
		if err != nil {
			t.Fatalf("allocation %d failed: %v", i, err)
		}
		borrowed = append(borrowed, ptr)
	}
	if _, err := p.Allocate(memory.NewLayout(chunkSize, 1)); err == nil {
		t.Fatal("expected pool to be exhausted")
	}

	for _, ptr := range borrowed {
		p.Deallocate(ptr, memory.NewLayout(chunkSize, 1))
	}

	for i := uint32(0); i < p.NumberOfBuckets(); i++ {
		if _, err := p.Allocate(memory.NewLayout(chunkSize+2, 1)); err != nil {
			t.Fatalf("reallocation %d failed: %v", i, err)
		}
	}
	if _, err := p.Allocate(memory.NewLayout(chunkSize, 1)); err == nil {
		t.Fatal("expected pool to be exhausted again")
	}
}

func TestPoolAllocatorAllocateZeroedWorks(t *testing.T) {
	data := newPoolTestFixture(t)
	const bucketSize, bucketAlign = 128, 1
	p := newTestPoolAllocator(t, data, bucketSize, bucketAlign)

	ptr, err := p.AllocateZeroed(memory.NewLayout(bucketSize, bucketAlign))
	if err != nil {
		t.Fatal(err)
	}
	view := unsafe.Slice((*byte)(ptr), bucketSize)
	for i, b := range view {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestPoolAllocatorGrowWorks(t *testing.T) {
	data := newPoolTestFixture(t)
	const bucketSize, bucketAlign = 128, 1
	p := newTestPoolAllocator(t, data, bucketSize, bucketAlign)

	ptr, err := p.Allocate(memory.NewLayout(bucketSize/2, bucketAlign))
	if err != nil {
		t.Fatal(err)
	}
	grown, err := p.Grow(ptr, memory.NewLayout(bucketSize/2, bucketAlign), memory.NewLayout(bucketSize, bucketAlign))
	if err != nil {
		t.Fatalf("Grow failed: %v", err)
	}
	if grown != ptr {
		t.Error("expected Grow to return the same bucket address")
	}
}

func TestPoolAllocatorGrowWithSizeLargerThanBucketFails(t *testing.T) {
	data := newPoolTestFixture(t)
	const bucketSize, bucketAlign = 128, 1
	p := newTestPoolAllocator(t, data, bucketSize, bucketAlign)

	ptr, err := p.Allocate(memory.NewLayout(bucketSize/2, bucketAlign))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Grow(ptr, memory.NewLayout(bucketSize/2, bucketAlign), memory.NewLayout(bucketSize+1, bucketAlign)); err == nil {
		t.Fatal("expected Grow beyond bucket size to fail")
	}
}

func TestPoolAllocatorGrowWithSizeDecreaseFails(t *testing.T) {
	data := newPoolTestFixture(t)
	const bucketSize, bucketAlign = 128, 1
	p := newTestPoolAllocator(t, data, bucketSize, bucketAlign)

	ptr, err := p.Allocate(memory.NewLayout(bucketSize/2, bucketAlign))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Grow(ptr, memory.NewLayout(bucketSize/2, bucketAlign), memory.NewLayout(bucketSize/4, bucketAlign)); err == nil {
		t.Fatal("expected Grow with decreasing size to fail")
	}
}

func TestPoolAllocatorGrowZeroedWorks(t *testing.T) {
	data := newPoolTestFixture(t)
	const bucketSize, bucketAlign = 128, 1
	p := newTestPoolAllocator(t, data, bucketSize, bucketAlign)

	ptr, err := p.Allocate(memory.NewLayout(bucketSize/2, bucketAlign))
	if err != nil {
		t.Fatal(err)
	}
	view := unsafe.Slice((*byte)(ptr), bucketSize/2)
	for i := range view {
		view[i] = 255
	}

	grown, err := p.GrowZeroed(ptr, memory.NewLayout(bucketSize/2, bucketAlign), memory.NewLayout(bucketSize, bucketAlign))
	if err != nil {
		t.Fatal(err)
	}
	full := unsafe.Slice((*byte)(grown), bucketSize)
	for i := 0; i < bucketSize/2; i++ {
		if full[i] != 255 {
			t.Errorf("byte %d changed by GrowZeroed: got %d, want 255", i, full[i])
		}
	}
	for i := bucketSize / 2; i < bucketSize; i++ {
		if full[i] != 0 {
			t.Errorf("byte %d = %d, want 0", i, full[i])
		}
	}
}

func TestPoolAllocatorShrinkWorks(t *testing.T) {
	data := newPoolTestFixture(t)
	const bucketSize, bucketAlign = 128, 1
	p := newTestPoolAllocator(t, data, bucketSize, bucketAlign)

	ptr, err := p.Allocate(memory.NewLayout(bucketSize, bucketAlign))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Shrink(ptr, memory.NewLayout(bucketSize, bucketAlign), memory.NewLayout(bucketSize/2, bucketAlign)); err != nil {
		t.Errorf("Shrink failed: %v", err)
	}
}

func TestPoolAllocatorShrinkWithIncreasedSizeFails(t *testing.T) {
	data := newPoolTestFixture(t)
	const bucketSize, bucketAlign = 128, 1
	p := newTestPoolAllocator(t, data, bucketSize, bucketAlign)

	ptr, err := p.Allocate(memory.NewLayout(bucketSize/2, bucketAlign))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Shrink(ptr, memory.NewLayout(bucketSize/2, bucketAlign), memory.NewLayout(bucketSize, bucketAlign)); err == nil {
		t.Fatal("expected Shrink to a larger size to fail")
	}
}

func TestPoolAllocatorShrinkWithEqualSizeFails(t *testing.T) {
	data := newPoolTestFixture(t)
	const bucketSize, bucketAlign = 128, 1
	p := newTestPoolAllocator(t, data, bucketSize, bucketAlign)

	ptr, err := p.Allocate(memory.NewLayout(bucketSize, bucketAlign))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Shrink(ptr, memory.NewLayout(bucketSize, bucketAlign), memory.NewLayout(bucketSize, bucketAlign)); err == nil {
		t.Fatal("expected Shrink to an equal size to fail")
	}
}
