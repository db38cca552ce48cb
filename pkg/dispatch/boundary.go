package dispatch

import (
	"github.com/muxable/avbridge/pkg/backend"
	"github.com/rs/zerolog/log"
)

// Boundary exposes the dispatcher under the foreign-function calling
// convention the native engine uses: integer handles in, integer status
// codes out, negative on error. All unsafe-copy concerns of a real FFI
// boundary stay in the engine adapter; this layer only translates the
// numeric contract to error-returning dispatcher calls.
type Boundary struct {
	d *Dispatcher
}

func NewBoundary(d *Dispatcher) *Boundary {
	return &Boundary{d: d}
}

// OpenInput returns (handle, size). handle < 0 on failure; size <= 0 if
// unknown.
func (b *Boundary) OpenInput(url string) (int64, int64) {
	h, size, err := b.d.OpenInput(url, nil)
	if err != nil {
		log.Error().Err(err).Str("URL", url).Msg("open input failed")
		return -1, 0
	}
	return h, size
}

// ReadInput returns the number of bytes read, 0 at end of stream, negative
// on error.
func (b *Boundary) ReadInput(h int64, buf []byte) int {
	n, err := b.d.ReadInput(h, buf)
	if err != nil {
		return -1
	}
	return n
}

// SeekInput returns the new offset, negative on error.
func (b *Boundary) SeekInput(h int64, offset int64, whence int) int64 {
	n, err := b.d.SeekInput(h, offset, whence)
	if err != nil {
		return -1
	}
	return n
}

// CloseInput returns 0 on success, negative on error.
func (b *Boundary) CloseInput(h int64) int {
	if err := b.d.CloseInput(h); err != nil {
		return -1
	}
	return 0
}

// StatInput returns 0 on success, negative on error.
func (b *Boundary) StatInput(h int64, statType backend.StatType, value int64) int {
	if err := b.d.StatInput(h, statType, value); err != nil {
		return -1
	}
	return 0
}

// OpenOutput returns the slot id, negative on error.
func (b *Boundary) OpenOutput(h int64, streamIndex, segIndex int, name string, outType backend.OutType) int64 {
	slot, err := b.d.OpenOutput(h, streamIndex, segIndex, name, outType)
	if err != nil {
		return -1
	}
	return slot
}

// WriteOutput returns the byte count written, which equals len(buf) on
// success, negative on error.
func (b *Boundary) WriteOutput(h, slot int64, buf []byte) int {
	n, err := b.d.WriteOutput(h, slot, buf)
	if err != nil {
		log.Error().Err(err).Int64("Handle", h).Int64("Slot", slot).Msg("output write failed")
		return -1
	}
	return n
}

// SeekOutput returns the new offset, negative on error.
func (b *Boundary) SeekOutput(h, slot int64, offset int64, whence int) int64 {
	n, err := b.d.SeekOutput(h, slot, offset, whence)
	if err != nil {
		return -1
	}
	return n
}

// CloseOutput returns 0 on success, negative on error.
func (b *Boundary) CloseOutput(h, slot int64) int {
	if err := b.d.CloseOutput(h, slot); err != nil {
		return -1
	}
	return 0
}

// StatOutput returns 0 on success, negative on error.
func (b *Boundary) StatOutput(h, slot int64, statType backend.StatType, value int64) int {
	if err := b.d.StatOutput(h, slot, statType, value); err != nil {
		return -1
	}
	return 0
}
