// Package backend defines the pluggable I/O capability interfaces a transcode
// session reads from and writes to. The engine never sees these types; it
// talks to the dispatch layer with integer handles, and the dispatcher
// translates each callback into calls against a registered backend.
package backend

// OutType identifies what kind of output stream the engine is opening.
type OutType int

const (
	// Unknown 0
	Unknown OutType = iota
	// DASHManifest 1
	DASHManifest
	// DASHVideoInit 2
	DASHVideoInit
	// DASHVideoSegment 3
	DASHVideoSegment
	// DASHAudioInit 4
	DASHAudioInit
	// DASHAudioSegment 5
	DASHAudioSegment
	// HLSMasterM3U 6
	HLSMasterM3U
	// HLSVideoM3U 7
	HLSVideoM3U
	// HLSAudioM3U 8
	HLSAudioM3U
	// AES128Key 9
	AES128Key
	// MP4Stream 10
	MP4Stream
	// FMP4Stream 11 (fragmented MP4)
	FMP4Stream
	// MP4Segment 12
	MP4Segment
	// FMP4Segment 13
	FMP4Segment
)

// IsSegment reports whether t is a per-segment media output, as opposed to a
// manifest, playlist, init or key file.
func (t OutType) IsSegment() bool {
	switch t {
	case DASHVideoSegment, DASHAudioSegment, MP4Segment, FMP4Segment:
		return true
	}
	return false
}

// StatType identifies a counter reported through the stat callback.
type StatType int

const (
	StatBytesRead StatType = iota + 1
	StatBytesWritten
	StatDecodingStartPTS
	StatEncodingEndPTS
)

// Seek whence values may carry backend-specific flag bits in the high bits
// (the engine's AVSEEK_SIZE / AVSEEK_FORCE); MaskWhence strips them so only
// the standard {from-start, from-current, from-end} set remains.
func MaskWhence(whence int) int {
	return whence & 0xFFFF
}

// InputOpener opens the input side of a session.
type InputOpener interface {
	// Open is called once per session. The handle uniquely identifies the
	// opening session for log correlation.
	Open(handle int64, url string) (InputHandler, error)
}

// InputHandler is the input a session reads from.
type InputHandler interface {
	// Read reads from the input stream into buf. Returns (0, nil) to
	// indicate end of stream.
	Read(buf []byte) (int, error)

	// Seek sets the read position. Live inputs return a negative offset.
	Seek(offset int64, whence int) (int64, error)

	// Close closes the input.
	Close() error

	// Size returns the input size, or 0/-1 if unknown.
	Size() int64

	// Stat reports a counter the engine observed on the input side.
	Stat(statType StatType, value int64) error
}

// OutputOpener opens one output stream of a session.
type OutputOpener interface {
	// Open is called once per output stream. handle is the owning session,
	// slot uniquely identifies this output within the session. name carries
	// the engine's requested file name for kinds that are written under a
	// literal name (init segments, playlists, keys) and is empty otherwise.
	Open(handle, slot int64, streamIndex, segIndex int, name string, outType OutType) (OutputHandler, error)
}

// OutputHandler is one output stream of a session.
type OutputHandler interface {
	// Write writes the encoded stream. A short write is an error.
	Write(buf []byte) (int, error)

	// Seek sets the write position.
	Seek(offset int64, whence int) (int64, error)

	// Close closes the output.
	Close() error

	// Stat reports a counter the engine observed on this output.
	Stat(statType StatType, value int64) error
}

// InputOpenerFunc adapts a function to an InputOpener.
type InputOpenerFunc func(handle int64, url string) (InputHandler, error)

func (f InputOpenerFunc) Open(handle int64, url string) (InputHandler, error) {
	return f(handle, url)
}

// OutputOpenerFunc adapts a function to an OutputOpener.
type OutputOpenerFunc func(handle, slot int64, streamIndex, segIndex int, name string, outType OutType) (OutputHandler, error)

func (f OutputOpenerFunc) Open(handle, slot int64, streamIndex, segIndex int, name string, outType OutType) (OutputHandler, error) {
	return f(handle, slot, streamIndex, segIndex, name, outType)
}
