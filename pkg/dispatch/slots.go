package dispatch

import (
	"github.com/muxable/avbridge/pkg/backend"
)

// SegmentStride is the fixed stream capacity of the deterministic slot
// formula. It bounds the number of streams one session may carry when
// formula addressing is in use.
const SegmentStride = 64

// segmentBase keeps formula segment slots above the reserved non-segment
// range (one stride per output kind).
const segmentBase = int64(backend.FMP4Segment+1) * SegmentStride

// FormulaSlot deterministically maps (streamIndex, segIndex, outType) to a
// slot id. Distinct (stream, segment) pairs never collide; non-segment kinds
// occupy a reserved range keyed by kind and stream index, standing in for
// sentinel segment indices.
//
// Prefer the binding's monotonic allocator for live, re-connectable streams:
// a reconnecting source restarts its segment numbering, and the formula maps
// a repeated (stream, segment) pair to the same id.
func FormulaSlot(streamIndex, segIndex int, outType backend.OutType) int64 {
	if outType.IsSegment() {
		return segmentBase + int64(segIndex-1)*SegmentStride + int64(streamIndex)
	}
	return int64(outType)*SegmentStride + int64(streamIndex)
}
