// Package dispatch translates the engine's handle-based I/O callbacks into
// calls against pluggable backends. It owns the handle registry entries for
// open sessions and the per-session output slot tables.
package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/muxable/avbridge/pkg/backend"
	"github.com/muxable/avbridge/pkg/handle"
	"github.com/muxable/avbridge/pkg/metrics"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoHandler is returned when a handle does not resolve to a live
	// session binding. Fatal for that handle; never retried.
	ErrNoHandler = errors.New("no handler for handle")
	// ErrUnknownSlot indicates a write/seek/close against a slot that was
	// never opened or is already closed. This is a registry bug on the
	// caller's side and fails loudly.
	ErrUnknownSlot = errors.New("unknown output slot")
	// ErrShortWrite indicates the backend accepted fewer bytes than
	// offered without reporting its own error.
	ErrShortWrite = errors.New("short write")
	// ErrNoOpener indicates no backend is bound for the URL.
	ErrNoOpener = errors.New("no opener bound")
)

// Dispatcher is the boundary-facing I/O layer. One dispatcher serves any
// number of concurrent sessions; the registry lock is held only for table
// lookups, never across a backend call.
type Dispatcher struct {
	registry *handle.Registry

	mu         sync.Mutex
	inputs     backend.InputOpener
	outputs    backend.OutputOpener
	urlInputs  map[string]backend.InputOpener
	urlOutputs map[string]backend.OutputOpener
}

func NewDispatcher(registry *handle.Registry, in backend.InputOpener, out backend.OutputOpener) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		inputs:     in,
		outputs:    out,
		urlInputs:  make(map[string]backend.InputOpener),
		urlOutputs: make(map[string]backend.OutputOpener),
	}
}

// BindURL sets backends that apply to one URL only, overriding the defaults.
// The override is cleared when an input for that URL is opened.
func (d *Dispatcher) BindURL(url string, in backend.InputOpener, out backend.OutputOpener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if in != nil {
		d.urlInputs[url] = in
	}
	if out != nil {
		d.urlOutputs[url] = out
	}
}

func (d *Dispatcher) openersFor(url string) (backend.InputOpener, backend.OutputOpener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	in, ok := d.urlInputs[url]
	if !ok {
		in = d.inputs
	} else {
		delete(d.urlInputs, url)
	}
	out, ok := d.urlOutputs[url]
	if !ok {
		out = d.outputs
	} else {
		delete(d.urlOutputs, url)
	}
	return in, out
}

// OpenInput opens the input for url and registers a fresh session binding.
// It returns the session handle and the input size (<= 0 if unknown). sink
// may be nil.
func (d *Dispatcher) OpenInput(url string, sink StatSink) (int64, int64, error) {
	in, out := d.openersFor(url)
	if in == nil || out == nil {
		return -1, 0, fmt.Errorf("%w: %s", ErrNoOpener, url)
	}

	b := newBinding(out, sink)
	h := d.registry.Register(b)

	input, err := in.Open(h, url)
	if err != nil {
		d.registry.Unregister(h)
		return -1, 0, err
	}
	b.setInput(input)

	size := input.Size()
	log.Debug().Int64("Handle", h).Str("URL", url).Int64("Size", size).Msg("session input bound")
	return h, size, nil
}

func (d *Dispatcher) binding(h int64) (*Binding, error) {
	v, ok := d.registry.Lookup(h)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoHandler, h)
	}
	return v.(*Binding), nil
}

// ReadInput reads into buf. (0, nil) marks end of stream. The call blocks no
// longer than the backend's own timeout contract.
func (d *Dispatcher) ReadInput(h int64, buf []byte) (int, error) {
	b, err := d.binding(h)
	if err != nil {
		return -1, err
	}
	in := b.getInput()
	if in == nil {
		return -1, fmt.Errorf("%w: %d (input not bound)", ErrNoHandler, h)
	}
	n, err := in.Read(buf)
	if n > 0 {
		metrics.BytesRead.Add(float64(n))
	}
	return n, err
}

// SeekInput seeks the input. Backend-specific flag bits in whence are masked
// before interpretation.
func (d *Dispatcher) SeekInput(h int64, offset int64, whence int) (int64, error) {
	b, err := d.binding(h)
	if err != nil {
		return -1, err
	}
	in := b.getInput()
	if in == nil {
		return -1, fmt.Errorf("%w: %d (input not bound)", ErrNoHandler, h)
	}
	return in.Seek(offset, backend.MaskWhence(whence))
}

// CloseInput closes the session's input and destroys its binding. Output
// slots still open are closed with a warning: an engine that exits cleanly
// closes its outputs first, so leftovers mean the attempt was abandoned.
func (d *Dispatcher) CloseInput(h int64) error {
	b, err := d.binding(h)
	if err != nil {
		return err
	}
	if err := d.registry.Unregister(h); err != nil {
		// another closer raced us; the binding is already torn down.
		return fmt.Errorf("%w: %d", ErrNoHandler, h)
	}
	for slot, out := range b.takeOutputs() {
		log.Warn().Int64("Handle", h).Int64("Slot", slot).Msg("output slot still open at input close")
		if err := out.Close(); err != nil {
			log.Error().Err(err).Int64("Handle", h).Int64("Slot", slot).Msg("failed to close abandoned output")
		}
	}
	in := b.getInput()
	if in == nil {
		// the input opener called back before its handler was bound;
		// nothing else to tear down.
		return nil
	}
	return in.Close()
}

// StatInput forwards an input-side counter to the backend and the session's
// stat sink.
func (d *Dispatcher) StatInput(h int64, statType backend.StatType, value int64) error {
	b, err := d.binding(h)
	if err != nil {
		return err
	}
	in := b.getInput()
	if in == nil {
		return fmt.Errorf("%w: %d (input not bound)", ErrNoHandler, h)
	}
	b.recordStat(statType, value)
	return in.Stat(statType, value)
}

// OpenOutput opens one output stream of session h and returns its slot id.
// name is the engine's requested file name for literal-name kinds.
func (d *Dispatcher) OpenOutput(h int64, streamIndex, segIndex int, name string, outType backend.OutType) (int64, error) {
	b, err := d.binding(h)
	if err != nil {
		return -1, err
	}
	slot := b.allocSlot()
	out, err := b.opener.Open(h, slot, streamIndex, segIndex, name, outType)
	if err != nil {
		log.Error().Err(err).Int64("Handle", h).Int("StreamIndex", streamIndex).Int("SegIndex", segIndex).Msg("output open failed")
		return -1, err
	}
	b.putOutput(slot, out)
	log.Debug().Int64("Handle", h).Int64("Slot", slot).Int("StreamIndex", streamIndex).Int("SegIndex", segIndex).Int("OutType", int(outType)).Msg("output opened")
	return slot, nil
}

// WriteOutput writes buf to an open slot. The backend must accept the whole
// buffer; partial writes surface as errors, never silent truncation.
func (d *Dispatcher) WriteOutput(h, slot int64, buf []byte) (int, error) {
	b, err := d.binding(h)
	if err != nil {
		return -1, err
	}
	out := b.getOutput(slot)
	if out == nil {
		return -1, fmt.Errorf("%w: handle=%d slot=%d", ErrUnknownSlot, h, slot)
	}
	n, err := out.Write(buf)
	if err != nil {
		return -1, err
	}
	if n != len(buf) {
		return -1, fmt.Errorf("%w: handle=%d slot=%d n=%d len=%d", ErrShortWrite, h, slot, n, len(buf))
	}
	metrics.BytesWritten.Add(float64(n))
	return n, nil
}

// SeekOutput seeks an open slot, masking backend flag bits from whence.
func (d *Dispatcher) SeekOutput(h, slot int64, offset int64, whence int) (int64, error) {
	b, err := d.binding(h)
	if err != nil {
		return -1, err
	}
	out := b.getOutput(slot)
	if out == nil {
		return -1, fmt.Errorf("%w: handle=%d slot=%d", ErrUnknownSlot, h, slot)
	}
	return out.Seek(offset, backend.MaskWhence(whence))
}

// CloseOutput closes a slot and removes it from the binding. The slot id is
// dead afterwards; reusing it fails loudly.
func (d *Dispatcher) CloseOutput(h, slot int64) error {
	b, err := d.binding(h)
	if err != nil {
		return err
	}
	out := b.removeOutput(slot)
	if out == nil {
		return fmt.Errorf("%w: handle=%d slot=%d", ErrUnknownSlot, h, slot)
	}
	return out.Close()
}

// StatOutput forwards an output-side counter to the backend handler and the
// session's stat sink.
func (d *Dispatcher) StatOutput(h, slot int64, statType backend.StatType, value int64) error {
	b, err := d.binding(h)
	if err != nil {
		return err
	}
	out := b.getOutput(slot)
	if out == nil {
		return fmt.Errorf("%w: handle=%d slot=%d", ErrUnknownSlot, h, slot)
	}
	b.recordStat(statType, value)
	return out.Stat(statType, value)
}
