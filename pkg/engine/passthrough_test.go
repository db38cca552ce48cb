package engine

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/muxable/avbridge/pkg/backend"
	"github.com/muxable/avbridge/pkg/dispatch"
	"github.com/muxable/avbridge/pkg/handle"
	"github.com/muxable/avbridge/pkg/pipeline"
	"github.com/muxable/avbridge/pkg/session"
)

type memInput struct {
	r *bytes.Reader
}

func (i *memInput) Read(buf []byte) (int, error) {
	n, err := i.r.Read(buf)
	if err == io.EOF {
		return 0, nil
	}
	return n, err
}

func (i *memInput) Seek(offset int64, whence int) (int64, error) {
	return i.r.Seek(offset, whence)
}

func (i *memInput) Close() error { return nil }

func (i *memInput) Size() int64 { return int64(i.r.Len()) }

func (i *memInput) Stat(statType backend.StatType, value int64) error { return nil }

type segment struct {
	streamIndex int
	segIndex    int
	outType     backend.OutType

	buf    bytes.Buffer
	closed bool
	stats  map[backend.StatType]int64
}

func (s *segment) Write(buf []byte) (int, error) { return s.buf.Write(buf) }

func (s *segment) Seek(offset int64, whence int) (int64, error) { return offset, nil }

func (s *segment) Close() error {
	s.closed = true
	return nil
}

func (s *segment) Stat(statType backend.StatType, value int64) error {
	s.stats[statType] = value
	return nil
}

type segmentRecorder struct {
	mu       sync.Mutex
	segments []*segment
}

func (r *segmentRecorder) Open(h, slot int64, streamIndex, segIndex int, name string, outType backend.OutType) (backend.OutputHandler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &segment{
		streamIndex: streamIndex,
		segIndex:    segIndex,
		outType:     outType,
		stats:       make(map[backend.StatType]int64),
	}
	r.segments = append(r.segments, s)
	return s, nil
}

func newJob(t *testing.T, payload []byte, params *session.Params, cancelled func() bool) (*session.Job, *segmentRecorder) {
	rec := &segmentRecorder{}
	d := dispatch.NewDispatcher(handle.NewRegistry(),
		backend.InputOpenerFunc(func(h int64, url string) (backend.InputHandler, error) {
			return &memInput{r: bytes.NewReader(payload)}, nil
		}),
		backend.OutputOpenerFunc(rec.Open))
	fb := dispatch.NewBoundary(d)
	h, _ := fb.OpenInput("mem://in")
	if h < 0 {
		t.Fatalf("open input failed")
	}
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	return &session.Job{Handle: h, Params: params, IO: fb, Cancelled: cancelled}, rec
}

func TestPassthrough_SingleSegment(t *testing.T) {
	payload := bytes.Repeat([]byte{0xab}, 1000)
	job, rec := newJob(t, payload, &session.Params{}, nil)

	e := &Passthrough{ChunkSize: 128}
	if err := e.Run(job); err != nil {
		t.Fatal(err)
	}

	if len(rec.segments) != 1 {
		t.Fatalf("got %d segments, expected 1", len(rec.segments))
	}
	s := rec.segments[0]
	if !s.closed {
		t.Errorf("segment not closed")
	}
	if s.segIndex != 1 {
		t.Errorf("got segment index %d, expected 1", s.segIndex)
	}
	if s.outType != backend.FMP4Segment {
		t.Errorf("got out type %d, expected FMP4Segment", s.outType)
	}
	if !bytes.Equal(s.buf.Bytes(), payload) {
		t.Errorf("got %d bytes, expected %d", s.buf.Len(), len(payload))
	}
	if s.stats[backend.StatBytesWritten] != 1000 {
		t.Errorf("got bytes written %d, expected 1000", s.stats[backend.StatBytesWritten])
	}
}

func TestPassthrough_SegmentRotation(t *testing.T) {
	payload := bytes.Repeat([]byte{0xcd}, 1000)
	job, rec := newJob(t, payload, &session.Params{StartSegmentStr: "3"}, nil)

	e := &Passthrough{ChunkSize: 100, SegmentBytes: 300}
	if err := e.Run(job); err != nil {
		t.Fatal(err)
	}

	if len(rec.segments) != 4 {
		t.Fatalf("got %d segments, expected 4", len(rec.segments))
	}
	var rejoined bytes.Buffer
	for i, s := range rec.segments {
		if !s.closed {
			t.Errorf("segment %d not closed", i)
		}
		if s.segIndex != 3+i {
			t.Errorf("got segment index %d, expected %d", s.segIndex, 3+i)
		}
		rejoined.Write(s.buf.Bytes())
	}
	if sizes := []int{rec.segments[0].buf.Len(), rec.segments[3].buf.Len()}; sizes[0] != 300 || sizes[1] != 100 {
		t.Errorf("got segment sizes %v, expected 300 and a 100 byte tail", sizes)
	}
	if !bytes.Equal(rejoined.Bytes(), payload) {
		t.Errorf("rejoined segments do not reproduce the input")
	}
}

func TestPassthrough_Cancellation(t *testing.T) {
	payload := bytes.Repeat([]byte{0xef}, 100000)
	reads := 0
	job, rec := newJob(t, payload, &session.Params{}, func() bool {
		reads++
		return reads > 3
	})

	e := &Passthrough{ChunkSize: 100}
	if err := e.Run(job); !errors.Is(err, session.ErrCancelled) {
		t.Fatalf("got %v, expected ErrCancelled", err)
	}

	// the flag was observed on the next chunk, not at the end of input.
	if len(rec.segments) != 1 {
		t.Fatalf("got %d segments, expected 1", len(rec.segments))
	}
	s := rec.segments[0]
	if !s.closed {
		t.Errorf("segment not closed after cancellation")
	}
	if s.buf.Len() != 300 {
		t.Errorf("got %d bytes, expected 300 before the flag was seen", s.buf.Len())
	}
}

func TestPassthrough_SkipOver(t *testing.T) {
	payload := bytes.Repeat([]byte{0x11}, 1000)
	job, rec := newJob(t, payload, &session.Params{SkipOverPts: 3}, nil)

	// one chunk is one frame of one PTS tick.
	e := &Passthrough{ChunkSize: 100}
	if err := e.Run(job); err != nil {
		t.Fatal(err)
	}

	s := rec.segments[0]
	// everything at or before the previous session's end PTS is dropped.
	if s.buf.Len() != 700 {
		t.Errorf("got %d bytes, expected 700 after skipping 3 frames", s.buf.Len())
	}
	if s.stats[backend.StatDecodingStartPTS] != 4 {
		t.Errorf("got DecodingStartPTS %d, expected 4", s.stats[backend.StatDecodingStartPTS])
	}
	if s.stats[backend.StatEncodingEndPTS] != 10 {
		t.Errorf("got EncodingEndPTS %d, expected 10", s.stats[backend.StatEncodingEndPTS])
	}
}

func TestPassthrough_ConsecutiveSessions(t *testing.T) {
	// every byte distinct within a chunk boundary so a dropped or doubled
	// frame shows up in the concatenation.
	payload := make([]byte, 700)
	for i := range payload {
		payload[i] = byte(i)
	}

	rec := &segmentRecorder{}
	d := dispatch.NewDispatcher(handle.NewRegistry(),
		backend.InputOpenerFunc(func(h int64, url string) (backend.InputHandler, error) {
			return &memInput{r: bytes.NewReader(payload)}, nil
		}),
		backend.OutputOpenerFunc(rec.Open))
	m := session.NewManager(pipeline.New(), &Passthrough{ChunkSize: 100}, d, 0)

	// first invocation stops after three frames.
	h1, err := m.Init(&session.Params{DurationTs: 3}, "mem://in", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Run(h1); err != nil {
		t.Fatal(err)
	}
	first, err := m.Continuity(h1)
	if err != nil {
		t.Fatal(err)
	}
	if first.EncodingEndPTS != 3 {
		t.Fatalf("got EncodingEndPTS %d, expected 3", first.EncodingEndPTS)
	}
	if err := m.Release(h1); err != nil {
		t.Fatal(err)
	}

	// second invocation re-reads the source, seeded with the first's end.
	h2, err := m.Init(&session.Params{SkipOverPts: first.NextSkipOverPTS()}, "mem://in", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Run(h2); err != nil {
		t.Fatal(err)
	}
	second, err := m.Continuity(h2)
	if err != nil {
		t.Fatal(err)
	}
	if gap := first.BoundaryGap(second.DecodingStartPTS, 1); gap != 0 {
		t.Errorf("got boundary gap %d, expected a seamless boundary", gap)
	}
	if err := m.Release(h2); err != nil {
		t.Fatal(err)
	}

	var combined bytes.Buffer
	for _, s := range rec.segments {
		combined.Write(s.buf.Bytes())
	}
	if !bytes.Equal(combined.Bytes(), payload) {
		t.Errorf("combined output of both invocations does not reproduce the input: got %d bytes, expected %d", combined.Len(), len(payload))
	}
}

func TestPassthrough_DurationStop(t *testing.T) {
	payload := bytes.Repeat([]byte{0x22}, 1000)
	job, rec := newJob(t, payload, &session.Params{DurationTs: 4}, nil)

	e := &Passthrough{ChunkSize: 100}
	if err := e.Run(job); err != nil {
		t.Fatal(err)
	}

	if got := rec.segments[0].buf.Len(); got != 400 {
		t.Errorf("got %d bytes, expected 400 after 4 ticks", got)
	}
}
