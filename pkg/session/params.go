package session

// Type selects which elementary streams a session transcodes.
type Type int

const (
	TypeNone Type = iota
	TypeVideo
	TypeAudio
	TypeAll
)

// CryptScheme is the content encryption scheme. The library only passes
// these through to the engine; key material handling stays with the caller.
type CryptScheme int

const (
	// CryptNone - clear
	CryptNone CryptScheme = iota
	// CryptAES128 - AES-128
	CryptAES128
	// CryptCENC - CENC AES-CTR
	CryptCENC
	// CryptCBC1 - CENC AES-CBC
	CryptCBC1
	// CryptCENS - CENC AES-CTR Pattern
	CryptCENS
	// CryptCBCS - CENC AES-CBC Pattern
	CryptCBCS
)

// Params is the transcode parameter set handed to the engine untouched.
// SkipOverPts seeds live continuity: set it to the previous session's
// recorded encoding end PTS and the new output continues without gap or
// overlap.
type Params struct {
	BypassTranscoding     bool        `json:"bypass,omitempty"`
	Format                string      `json:"format,omitempty"`
	StartTimeTs           int64       `json:"start_time_ts,omitempty"`
	SkipOverPts           int64       `json:"skip_over_pts,omitempty"`
	StartPts              int64       `json:"start_pts,omitempty"`
	DurationTs            int64       `json:"duration_ts,omitempty"`
	StartSegmentStr       string      `json:"start_segment_str,omitempty"`
	VideoBitrate          int32       `json:"video_bitrate,omitempty"`
	AudioBitrate          int32       `json:"audio_bitrate,omitempty"`
	SampleRate            int32       `json:"sample_rate,omitempty"`
	RcMaxRate             int32       `json:"rc_max_rate,omitempty"`
	RcBufferSize          int32       `json:"rc_buffer_size,omitempty"`
	CrfStr                string      `json:"crf_str,omitempty"`
	SegDurationTs         int64       `json:"seg_duration_ts,omitempty"`
	SegDuration           string      `json:"seg_duration,omitempty"`
	StartFragmentIndex    int32       `json:"start_fragment_index,omitempty"`
	ForceKeyInt           int32       `json:"force_keyint,omitempty"`
	Ecodec                string      `json:"ecodec,omitempty"`
	Dcodec                string      `json:"dcodec,omitempty"`
	EncHeight             int32       `json:"enc_height,omitempty"`
	EncWidth              int32       `json:"enc_width,omitempty"`
	CryptIV               string      `json:"crypt_iv,omitempty"`
	CryptKey              string      `json:"crypt_key,omitempty"`
	CryptKID              string      `json:"crypt_kid,omitempty"`
	CryptKeyURL           string      `json:"crypt_key_url,omitempty"`
	CryptScheme           CryptScheme `json:"crypt_scheme,omitempty"`
	Type                  Type        `json:"tx_type,omitempty"`
	Seekable              bool        `json:"seekable,omitempty"`
	WatermarkText         string      `json:"watermark_text,omitempty"`
	WatermarkXLoc         string      `json:"watermark_xloc,omitempty"`
	WatermarkYLoc         string      `json:"watermark_yloc,omitempty"`
	WatermarkRelativeSize float32     `json:"watermark_relative_size,omitempty"`
	WatermarkFontColor    string      `json:"watermark_font_color,omitempty"`
	WatermarkShadow       bool        `json:"watermark_shadow,omitempty"`
	WatermarkShadowColor  string      `json:"watermark_shadow_color,omitempty"`
	AudioIndex            int32       `json:"audio_index,omitempty"`
}
