package backend

import (
	"errors"
	"fmt"
)

var ErrNoName = errors.New("output kind requires a file name")

// FileName maps an output stream to its on-disk name. Existing packagers
// depend on these names, so they must be reproduced exactly: the manifest is
// always dash.mpd, the master playlist master.m3u8, init/key/m3u files keep
// the engine's requested name, and binary media segments are named
// <prefix><streamIndex>-<segIndex> with a five digit zero padded segment
// index.
func FileName(outType OutType, streamIndex, segIndex int, name string) (string, error) {
	switch outType {
	case DASHManifest:
		return "dash.mpd", nil
	case HLSMasterM3U:
		return "master.m3u8", nil
	case DASHVideoInit, DASHAudioInit, HLSVideoM3U, HLSAudioM3U, AES128Key, MP4Stream, FMP4Stream:
		if name == "" {
			return "", fmt.Errorf("%w: outType=%d", ErrNoName, outType)
		}
		return name, nil
	case DASHVideoSegment, DASHAudioSegment:
		return fmt.Sprintf("chunk-stream%d-%05d.m4s", streamIndex, segIndex), nil
	case MP4Segment:
		return fmt.Sprintf("segment%d-%05d.mp4", streamIndex, segIndex), nil
	case FMP4Segment:
		return fmt.Sprintf("fsegment%d-%05d.mp4", streamIndex, segIndex), nil
	default:
		return "", fmt.Errorf("invalid output type %d", outType)
	}
}
