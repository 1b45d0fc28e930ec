package mpmc_test

import (
	"sync"
	"testing"

	"github.com/momentics/zerocopy-ipc/core/lockfree/mpmc"
)

func TestContainerAddAndFullyOccupy(t *testing.T) {
	const capacity = 16
	c := mpmc.NewContainer[int](capacity)

	var indices []*mpmc.UniqueIndex[int]
	for i := 0; i < capacity; i++ {
		idx, ok := c.Add(i * 10)
		if !ok {
			t.Fatalf("Add(%d) failed unexpectedly", i)
		}
		indices = append(indices, idx)
	}
	if _, ok := c.Add(999); ok {
		t.Fatal("expected Add on a full container to fail")
	}
	if got := c.Len(); got != capacity {
		t.Errorf("Len() = %d, want %d", got, capacity)
	}

	for _, idx := range indices {
		idx.Release()
	}
	if got := c.Len(); got != 0 {
		t.Errorf("Len() after releasing all = %d, want 0", got)
	}
}

func TestContainerGetStateReflectsActiveElements(t *testing.T) {
	c := mpmc.NewContainer[string](8)
	idxA, _ := c.Add("alpha")
	idxB, _ := c.Add("beta")

	state := c.GetState()
	seen := map[uint32]string{}
	state.ForEach(func(index uint32, value string) { seen[index] = value })

	if len(seen) != 2 {
		t.Fatalf("ForEach visited %d entries, want 2", len(seen))
	}
	if seen[idxA.Value()] != "alpha" || seen[idxB.Value()] != "beta" {
		t.Errorf("ForEach contents = %v, want alpha/beta at their respective indices", seen)
	}
}

func TestContainerStateUpdateDetectsChanges(t *testing.T) {
	c := mpmc.NewContainer[int](4)
	state := c.GetState()

	idx, _ := c.Add(42)
	if !state.Update() {
		t.Fatal("expected Update to report a change after Add")
	}

	count := 0
	state.ForEach(func(uint32, int) { count++ })
	if count != 1 {
		t.Errorf("ForEach count after Update = %d, want 1", count)
	}

	idx.Release()
	if !state.Update() {
		t.Fatal("expected Update to report a change after Release")
	}
	count = 0
	state.ForEach(func(uint32, int) { count++ })
	if count != 0 {
		t.Errorf("ForEach count after removal = %d, want 0", count)
	}
}

func TestContainerStateUpdateNoChangeReturnsFalse(t *testing.T) {
	c := mpmc.NewContainer[int](4)
	c.Add(1)
	state := c.GetState()

	if state.Update() {
		t.Fatal("expected Update with no intervening mutation to report no change")
	}
}

func TestContainerRemoveRawIndexReclaimsSlot(t *testing.T) {
	c := mpmc.NewContainer[int](2)
	idx, _ := c.Add(7)
	c.RemoveRawIndex(idx.Value())

	if got := c.Len(); got != 0 {
		t.Errorf("Len() after RemoveRawIndex = %d, want 0", got)
	}
	if _, ok := c.Add(8); !ok {
		t.Fatal("expected the reclaimed slot to be usable again")
	}
}

func TestContainerConcurrentAddRelease(t *testing.T) {
	const capacity = 64
	const workers = 8
	const rounds = 200

	c := mpmc.NewContainer[int](capacity)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				idx, ok := c.Add(base*1000 + r)
				if ok {
					idx.Release()
				}
			}
		}(w)
	}
	wg.Wait()

	if got := c.Len(); got != 0 {
		t.Errorf("Len() after concurrent drain = %d, want 0", got)
	}
}
