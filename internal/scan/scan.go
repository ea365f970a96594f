// Package scan walks an elementary audio stream frame by frame using the
// header parsers in internal/codec and summarises what it finds.
package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/s0up4200/go-audiohdr/internal/codec"
	"github.com/s0up4200/go-audiohdr/internal/stream"
)

// DefaultHeaderWindow bounds how many bytes of a frame are handed to a header
// parser. It covers the largest UHD FTOC payload.
const DefaultHeaderWindow = 8192

// Container names reported in Result.
const (
	ContainerDTS = "dts"
	ContainerOgg = "ogg"
)

// Options control a scan.
type Options struct {
	Logger zerolog.Logger
	// Strict aborts on the first frame that fails to decode. Otherwise the
	// scanner skips a byte and looks for the next sync word.
	Strict bool
	// MaxFrames stops the scan after this many frames or packets. Zero
	// scans everything.
	MaxFrames    int
	VerifyOggCRC bool
	HeaderWindow int
}

// DefaultOptions returns lenient options with a silent logger.
func DefaultOptions() Options {
	return Options{
		Logger:       zerolog.Nop(),
		VerifyOggCRC: true,
		HeaderWindow: DefaultHeaderWindow,
	}
}

// FrameError records a frame the scanner could not decode.
type FrameError struct {
	Offset int
	Type   string
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s frame at offset %d: %v", e.Type, e.Offset, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// OpusInfo holds the Opus specific part of an Ogg scan.
type OpusInfo struct {
	Head     codec.OpusHead
	InitData codec.OpusInitializationData `json:"-" yaml:"-"`
	// LastGranule of the final page, in 48 kHz samples including pre-skip.
	LastGranule int64
}

// Result summarises a scan.
type Result struct {
	Container string
	Stream    *stream.AudioStream
	Frames    int
	// FrameCounts and FirstHeaders are keyed by frame type name: core,
	// extension-substream, uhd-sync, uhd-non-sync or opus.
	FrameCounts  map[string]int
	FirstHeaders map[string]codec.FrameHeader
	TotalBytes   int64
	SkippedBytes int64
	Errors       []*FrameError
	Opus         *OpusInfo `json:",omitempty" yaml:",omitempty"`
	Truncated    bool
}

func newResult(container string) *Result {
	return &Result{
		Container:    container,
		Stream:       &stream.AudioStream{},
		FrameCounts:  make(map[string]int),
		FirstHeaders: make(map[string]codec.FrameHeader),
	}
}

// Scan decodes every frame in data. Ogg input is detected by its capture
// pattern; anything else is treated as a raw DTS stream. The partial result
// is returned together with any error.
func Scan(ctx context.Context, data []byte, opts Options) (*Result, error) {
	if opts.HeaderWindow <= 0 {
		opts.HeaderWindow = DefaultHeaderWindow
	}
	if codec.IsOggPage(data) {
		return scanOgg(ctx, data, opts)
	}
	return scanDTS(ctx, data, opts)
}

func (r *Result) recordError(log zerolog.Logger, fe *FrameError, strict bool) error {
	if strict {
		return fe
	}
	log.Warn().Err(fe.Err).Int("offset", fe.Offset).Str("type", fe.Type).Msg("skipping undecodable frame")
	r.Errors = append(r.Errors, fe)
	return nil
}

// IsUnsupported reports whether err stems from a stream feature the parsers
// do not implement rather than from corrupt data.
func IsUnsupported(err error) bool {
	return errors.Is(err, codec.ErrUnsupportedFeature)
}
