// File: core/memory/allocator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package memory

import "unsafe"

// Allocator is the minimal contract every L0 allocator (Bump, Pool) and the
// two-phase relocatable containers built on top of them (queues, index
// sets, containers) share: hand back layout.Size bytes aligned to
// layout.Align, or fail.
type Allocator interface {
	Allocate(layout Layout) (unsafe.Pointer, error)
}

var (
	_ Allocator = (*BumpAllocator)(nil)
	_ Allocator = (*PoolAllocator)(nil)
)
