package capture

import (
	"io"

	"github.com/muxable/avbridge/pkg/metrics"
)

// Stream is the blocking byte-stream view over a Reader's packet queue.
// Reads of any size are satisfied from variable-sized datagrams: a partially
// consumed packet is held in a carry-over cursor until exhausted, so no byte
// is ever lost or duplicated across calls.
//
// Stream is the queue's single consumer; Read must not be called
// concurrently.
type Stream struct {
	r   *Reader
	cur []byte // unread remainder of the packet being consumed
}

func newStream(r *Reader) *Stream {
	return &Stream{r: r}
}

// Read blocks until at least one byte is available or the queue is closed
// and drained, then returns (0, io.EOF).
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(s.cur) == 0 {
		pkt, ok := <-s.r.queue
		if !ok {
			return 0, io.EOF
		}
		s.cur = pkt.Payload
	}
	n := copy(p, s.cur)
	s.cur = s.cur[n:]

	// top off from packets already queued without blocking again.
	for n < len(p) && len(s.cur) == 0 {
		select {
		case pkt, ok := <-s.r.queue:
			if !ok {
				metrics.QueueDepth.Set(0)
				return n, nil
			}
			m := copy(p[n:], pkt.Payload)
			s.cur = pkt.Payload[m:]
			n += m
		default:
			metrics.QueueDepth.Set(float64(len(s.r.queue)))
			return n, nil
		}
	}
	metrics.QueueDepth.Set(float64(len(s.r.queue)))
	return n, nil
}

// Close shuts down the owning reader and waits for its receive loop to
// exit.
func (s *Stream) Close() error {
	return s.r.Close()
}
