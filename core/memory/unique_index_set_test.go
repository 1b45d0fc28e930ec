package memory_test

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/momentics/zerocopy-ipc/core/memory"
)

func newBackedUniqueIndexSet(t *testing.T, capacity uint32) *memory.UniqueIndexSet {
	t.Helper()
	buf := make([]byte, (capacity+1)*4+16)
	alloc := memory.NewBumpAllocator(unsafe.Pointer(&buf[0]), uintptr(len(buf)))
	set := memory.NewUniqueIndexSetUninit(capacity)
	if err := set.Init(alloc); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return set
}

func TestUniqueIndexSetAcquireAllThenExhausted(t *testing.T) {
	const capacity = 16
	set := newBackedUniqueIndexSet(t, capacity)

	seen := make(map[uint32]bool)
	for i := 0; i < capacity; i++ {
		idx, ok := set.AcquireRawIndex()
		if !ok {
			t.Fatalf("expected to acquire index %d, set reported exhausted early", i)
		}
		if seen[idx] {
			t.Fatalf("index %d returned twice", idx)
		}
		seen[idx] = true
	}

	if _, ok := set.AcquireRawIndex(); ok {
		t.Fatal("expected acquisition to fail once capacity is exhausted")
	}
	if got := set.BorrowedIndices(); got != capacity {
		t.Errorf("BorrowedIndices() = %d, want %d", got, capacity)
	}
}

func TestUniqueIndexSetReleaseAllowsReacquire(t *testing.T) {
	set := newBackedUniqueIndexSet(t, 4)

	idx, ok := set.AcquireRawIndex()
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}
	set.ReleaseRawIndex(idx)
	if got := set.BorrowedIndices(); got != 0 {
		t.Errorf("BorrowedIndices() after release = %d, want 0", got)
	}

	for i := 0; i < 4; i++ {
		if _, ok := set.AcquireRawIndex(); !ok {
			t.Fatalf("expected to reacquire capacity slot %d after release", i)
		}
	}
}

func TestUniqueIndexSetConcurrentAcquireReleaseNeverDuplicates(t *testing.T) {
	const capacity = 64
	const workers = 16
	const rounds = 500

	set := newBackedUniqueIndexSet(t, capacity)

	var mu sync.Mutex
	outstanding := make(map[uint32]bool)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				idx, ok := set.AcquireRawIndex()
				if !ok {
					continue
				}
				mu.Lock()
				if outstanding[idx] {
					mu.Unlock()
					t.Errorf("index %d concurrently double-acquired", idx)
					return
				}
				outstanding[idx] = true
				mu.Unlock()

				mu.Lock()
				delete(outstanding, idx)
				mu.Unlock()
				set.ReleaseRawIndex(idx)
			}
		}()
	}
	wg.Wait()

	if got := set.BorrowedIndices(); got != 0 {
		t.Errorf("BorrowedIndices() after drain = %d, want 0", got)
	}
}

func TestUniqueIndexSetDoubleInitPanics(t *testing.T) {
	buf := make([]byte, 64)
	alloc := memory.NewBumpAllocator(unsafe.Pointer(&buf[0]), uintptr(len(buf)))
	set := memory.NewUniqueIndexSetUninit(4)
	if err := set.Init(alloc); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected second Init to panic")
		}
	}()
	set.Init(alloc)
}

func TestUniqueIndexSetUseBeforeInitPanics(t *testing.T) {
	set := memory.NewUniqueIndexSetUninit(4)
	defer func() {
		if recover() == nil {
			t.Fatal("expected use before Init to panic")
		}
	}()
	set.AcquireRawIndex()
}
