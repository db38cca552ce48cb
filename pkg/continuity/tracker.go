// Package continuity records the PTS and byte counters a session reports
// through its stat callbacks, so consecutive live transcodes can resume
// exactly where the previous invocation ended.
package continuity

import (
	"sync"

	"github.com/muxable/avbridge/pkg/backend"
)

// ReorderFudgeFrames is how many frame durations of PTS slack the skip-over
// mechanism tolerates for reordered packets around a session boundary. The
// value is empirical, carried over from live operation; it is a heuristic,
// not a proven bound.
const ReorderFudgeFrames = 5

// State is a snapshot of the counters a session reported.
type State struct {
	BytesRead        int64
	BytesWritten     int64
	DecodingStartPTS int64
	EncodingEndPTS   int64
}

// NextSkipOverPTS is the skip-over point to seed the next session with so
// its output continues gap-free after this one.
func (s State) NextSkipOverPTS() int64 {
	return s.EncodingEndPTS
}

// BoundaryGap returns the PTS distance between this session's last encoded
// frame and the next session's first decoded frame. Zero means a seamless
// boundary; positive is a gap, negative an overlap.
func (s State) BoundaryGap(nextDecodingStartPTS, frameDurationTS int64) int64 {
	return nextDecodingStartPTS - s.EncodingEndPTS - frameDurationTS
}

// Tracker accumulates stat callbacks for one session. It implements the
// dispatcher's stat sink.
type Tracker struct {
	mu    sync.Mutex
	state State
}

func NewTracker() *Tracker {
	return &Tracker{state: State{DecodingStartPTS: -1, EncodingEndPTS: -1}}
}

// RecordStat folds one reported counter into the state. Unknown kinds are
// ignored so newer engines can report more than we track.
func (t *Tracker) RecordStat(statType backend.StatType, value int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch statType {
	case backend.StatBytesRead:
		t.state.BytesRead = value
	case backend.StatBytesWritten:
		t.state.BytesWritten = value
	case backend.StatDecodingStartPTS:
		t.state.DecodingStartPTS = value
	case backend.StatEncodingEndPTS:
		t.state.EncodingEndPTS = value
	}
}

// State returns a snapshot of the recorded counters.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
