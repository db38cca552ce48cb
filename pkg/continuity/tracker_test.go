package continuity

import (
	"testing"

	"github.com/muxable/avbridge/pkg/backend"
)

func TestTracker_RecordStat(t *testing.T) {
	tr := NewTracker()

	if s := tr.State(); s.DecodingStartPTS != -1 || s.EncodingEndPTS != -1 {
		t.Errorf("got %+v, expected PTS counters at -1 before any report", s)
	}

	tr.RecordStat(backend.StatBytesRead, 1000)
	tr.RecordStat(backend.StatBytesWritten, 900)
	tr.RecordStat(backend.StatDecodingStartPTS, 90000)
	tr.RecordStat(backend.StatEncodingEndPTS, 180000)
	tr.RecordStat(backend.StatEncodingEndPTS, 270000)

	s := tr.State()
	if s.BytesRead != 1000 {
		t.Errorf("got BytesRead %d, expected 1000", s.BytesRead)
	}
	if s.BytesWritten != 900 {
		t.Errorf("got BytesWritten %d, expected 900", s.BytesWritten)
	}
	if s.DecodingStartPTS != 90000 {
		t.Errorf("got DecodingStartPTS %d, expected 90000", s.DecodingStartPTS)
	}
	if s.EncodingEndPTS != 270000 {
		t.Errorf("got EncodingEndPTS %d, expected 270000", s.EncodingEndPTS)
	}
	if s.NextSkipOverPTS() != 270000 {
		t.Errorf("got NextSkipOverPTS %d, expected 270000", s.NextSkipOverPTS())
	}
}

func TestTracker_IgnoresUnknownStat(t *testing.T) {
	tr := NewTracker()
	tr.RecordStat(backend.StatType(99), 1)
	if s := tr.State(); s != (State{DecodingStartPTS: -1, EncodingEndPTS: -1}) {
		t.Errorf("got %+v, expected unchanged state", s)
	}
}

func TestState_BoundaryGap(t *testing.T) {
	s := State{EncodingEndPTS: 180000}

	// the next session starts exactly one frame after the last encoded one.
	if gap := s.BoundaryGap(180000+3003, 3003); gap != 0 {
		t.Errorf("got gap %d, expected 0 for a seamless boundary", gap)
	}
	if gap := s.BoundaryGap(180000+2*3003, 3003); gap != 3003 {
		t.Errorf("got gap %d, expected 3003", gap)
	}
	if gap := s.BoundaryGap(180000, 3003); gap != -3003 {
		t.Errorf("got gap %d, expected -3003 for an overlap", gap)
	}
}
