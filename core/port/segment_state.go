// File: core/port/segment_state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SegmentState tracks, per bucket of one DataSegment, how many outstanding
// borrowers currently hold a reference to it and the payload size originally
// recorded there. A freshly allocated bucket starts with no borrowers; the
// loan that allocated it, and every connection it is later fanned out to,
// each holds one borrow until it releases or returns the sample. The bucket
// is only handed back to the pool once its count drops to zero, the same
// reference-counted approach this module already uses elsewhere
// (core/connection's sender/retrieve channel pairing).

package port

import "sync/atomic"

// SegmentState is the per-bucket bookkeeping array for one DataSegment.
type SegmentState struct {
	refCounts    []atomic.Int64
	payloadSizes []uint64
}

// NewSegmentState allocates bookkeeping for numBuckets buckets.
func NewSegmentState(numBuckets uint32) *SegmentState {
	return &SegmentState{
		refCounts:    make([]atomic.Int64, numBuckets),
		payloadSizes: make([]uint64, numBuckets),
	}
}

// Borrow increments bucket's reference count and returns the new value.
func (s *SegmentState) Borrow(bucket uint32) int64 {
	return s.refCounts[bucket].Add(1)
}

// Release decrements bucket's reference count and returns the new value;
// callers deallocate the bucket once this reaches zero or below.
func (s *SegmentState) Release(bucket uint32) int64 {
	return s.refCounts[bucket].Add(-1)
}

// SetPayloadSize records the actual payload size stored in bucket, which
// may be smaller than the bucket's fixed capacity.
func (s *SegmentState) SetPayloadSize(bucket uint32, size uint64) {
	s.payloadSizes[bucket] = size
}

// PayloadSize returns the payload size last recorded for bucket.
func (s *SegmentState) PayloadSize(bucket uint32) uint64 {
	return s.payloadSizes[bucket]
}
