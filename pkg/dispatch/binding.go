package dispatch

import (
	"sync"

	"github.com/muxable/avbridge/pkg/backend"
)

// StatSink observes counters reported through the stat callbacks. The
// continuity tracker implements this to follow PTS progress across sessions.
type StatSink interface {
	RecordStat(statType backend.StatType, value int64)
}

// Binding is the per-session I/O state: the exclusive input handler and the
// table of open output slots. It is created when the session's input opens
// and destroyed when the input closes.
type Binding struct {
	mu       sync.Mutex
	input    backend.InputHandler
	outputs  map[int64]backend.OutputHandler
	nextSlot int64

	// captured at open time so a per-URL override stays in force for the
	// whole session.
	opener backend.OutputOpener
	sink   StatSink
}

func newBinding(opener backend.OutputOpener, sink StatSink) *Binding {
	return &Binding{
		outputs: make(map[int64]backend.OutputHandler),
		opener:  opener,
		sink:    sink,
	}
}

func (b *Binding) setInput(in backend.InputHandler) {
	b.mu.Lock()
	b.input = in
	b.mu.Unlock()
}

func (b *Binding) getInput() backend.InputHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.input
}

// allocSlot issues the next output slot id. Monotonic allocation is used
// rather than the deterministic formula because reconnecting live streams
// reuse segment numbering, which would collide.
func (b *Binding) allocSlot() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.nextSlot
	b.nextSlot++
	return s
}

func (b *Binding) putOutput(slot int64, out backend.OutputHandler) {
	b.mu.Lock()
	b.outputs[slot] = out
	b.mu.Unlock()
}

func (b *Binding) getOutput(slot int64) backend.OutputHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outputs[slot]
}

func (b *Binding) removeOutput(slot int64) backend.OutputHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.outputs[slot]
	delete(b.outputs, slot)
	return out
}

// takeOutputs empties and returns the output table, for close-time sweeps.
func (b *Binding) takeOutputs() map[int64]backend.OutputHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	outs := b.outputs
	b.outputs = make(map[int64]backend.OutputHandler)
	return outs
}

func (b *Binding) recordStat(statType backend.StatType, value int64) {
	if b.sink != nil {
		b.sink.RecordStat(statType, value)
	}
}
