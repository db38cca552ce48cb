// Package engine holds engine-side adapters. The real decode/filter/encode
// engine is an external native collaborator; Passthrough is the pure-Go
// bypass path that copies the input stream to segmented outputs through the
// same boundary contract, which is what the recorder command and the test
// suite drive sessions with.
package engine

import (
	"fmt"
	"strconv"

	"github.com/muxable/avbridge/pkg/backend"
	"github.com/muxable/avbridge/pkg/session"
)

// Passthrough copies input bytes to output segments without transcoding.
// Each chunk is treated as one frame: the cancellation flag is polled and
// PTS advances once per chunk.
type Passthrough struct {
	// OutType of the produced segments. Defaults to FMP4Segment.
	OutType backend.OutType

	// ChunkSize is the per-frame read size. Defaults to 4096.
	ChunkSize int

	// SegmentBytes rotates to a new segment after this many bytes.
	// 0 writes a single segment.
	SegmentBytes int64

	// FrameDurationTS is the PTS advance per chunk. Defaults to 1.
	FrameDurationTS int64
}

func (e *Passthrough) Run(job *session.Job) error {
	outType := e.OutType
	if outType == backend.Unknown {
		outType = backend.FMP4Segment
	}
	chunk := e.ChunkSize
	if chunk == 0 {
		chunk = 4096
	}
	frameDur := e.FrameDurationTS
	if frameDur == 0 {
		frameDur = 1
	}

	h := job.Handle
	seg := 1
	if n, err := strconv.Atoi(job.Params.StartSegmentStr); err == nil && n > 0 {
		seg = n
	}

	slot := job.IO.OpenOutput(h, 0, seg, "", outType)
	if slot < 0 {
		return fmt.Errorf("open output failed: handle=%d seg=%d", h, seg)
	}

	var pts, written, segWritten int64
	started := false
	buf := make([]byte, chunk)
	for {
		if job.Cancelled() {
			job.IO.CloseOutput(h, slot)
			return session.ErrCancelled
		}
		n := job.IO.ReadInput(h, buf)
		if n < 0 {
			job.IO.CloseOutput(h, slot)
			return fmt.Errorf("input read failed: handle=%d", h)
		}
		if n == 0 {
			break
		}
		pts += frameDur
		if pts <= job.Params.SkipOverPts {
			// already encoded by the previous invocation.
			continue
		}
		if !started {
			job.IO.StatOutput(h, slot, backend.StatDecodingStartPTS, pts)
			started = true
		}
		if job.IO.WriteOutput(h, slot, buf[:n]) < 0 {
			job.IO.CloseOutput(h, slot)
			return fmt.Errorf("output write failed: handle=%d slot=%d", h, slot)
		}
		written += int64(n)
		segWritten += int64(n)
		job.IO.StatOutput(h, slot, backend.StatBytesWritten, written)
		job.IO.StatOutput(h, slot, backend.StatEncodingEndPTS, pts)

		if job.Params.DurationTs > 0 && pts-job.Params.SkipOverPts >= job.Params.DurationTs {
			break
		}
		if e.SegmentBytes > 0 && segWritten >= e.SegmentBytes {
			if job.IO.CloseOutput(h, slot) < 0 {
				return fmt.Errorf("output close failed: handle=%d slot=%d", h, slot)
			}
			seg++
			if slot = job.IO.OpenOutput(h, 0, seg, "", outType); slot < 0 {
				return fmt.Errorf("open output failed: handle=%d seg=%d", h, seg)
			}
			segWritten = 0
		}
	}

	if job.IO.CloseOutput(h, slot) < 0 {
		return fmt.Errorf("output close failed: handle=%d slot=%d", h, slot)
	}
	return nil
}
