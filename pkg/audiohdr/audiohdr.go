// Package audiohdr exposes the DTS and Opus header parsers and a one-call
// scan over a file or an in-memory stream.
package audiohdr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/s0up4200/go-audiohdr/internal/codec"
	"github.com/s0up4200/go-audiohdr/internal/report"
	"github.com/s0up4200/go-audiohdr/internal/scan"
	internalsettings "github.com/s0up4200/go-audiohdr/internal/settings"
	"github.com/s0up4200/go-audiohdr/internal/stream"
)

type (
	FrameHeader            = codec.FrameHeader
	FrameType              = codec.FrameType
	UHDAudioChunkID        = codec.UHDAudioChunkID
	OpusHead               = codec.OpusHead
	OpusInitializationData = codec.OpusInitializationData
	ParseError             = codec.ParseError
	AudioStream            = stream.AudioStream
	MimeType               = stream.MimeType
	FrameError             = scan.FrameError
)

const (
	SampleRateUnknown   = codec.SampleRateUnknown
	ChannelCountUnknown = codec.ChannelCountUnknown
	BitrateUnknown      = codec.BitrateUnknown
	DurationUnknown     = codec.DurationUnknown
)

var (
	ErrMalformedContainer = codec.ErrMalformedContainer
	ErrUnsupportedFeature = codec.ErrUnsupportedFeature
)

// Stage represents a coarse progress stage for Run.
type Stage string

const (
	StageStarting        Stage = "starting"
	StageReading         Stage = "reading"
	StageScanning        Stage = "scanning"
	StageScanComplete    Stage = "scan_complete"
	StageRenderingReport Stage = "rendering_report"
	StageDone            Stage = "done"
)

// ProgressEvent is emitted when Run transitions between major phases.
type ProgressEvent struct {
	Stage      Stage
	Path       string
	Bytes      int
	Frames     int
	Elapsed    time.Duration
	OccurredAt time.Time
}

// Settings are library-facing scan and report controls.
type Settings struct {
	Strict           bool
	MaxFrames        int
	VerifyOggCRC     bool
	HeaderWindow     int
	OutputFormat     string
	IncludeFrames    bool
	ShowSkippedBytes bool
}

// DefaultSettings returns library defaults equivalent to CLI defaults.
func DefaultSettings() Settings {
	return fromInternalSettings(internalsettings.Default(""))
}

// Options configure one Run call. Data takes precedence over Path; Path is
// still used to label the report.
type Options struct {
	Path       string
	Data       []byte
	Logger     *zerolog.Logger
	Settings   Settings
	OnProgress func(ProgressEvent)
}

// Result contains structured scan output plus rendered report content.
type Result struct {
	Path         string
	Container    string
	Stream       *AudioStream
	Frames       int
	FrameCounts  map[string]int
	FirstHeaders map[string]FrameHeader
	SkippedBytes int64
	Truncated    bool
	OpusHead     *OpusHead
	Errors       []*FrameError
	Report       string
}

// Run scans one file or buffer and returns structured output plus report
// content. The API does not write files; callers own output persistence.
func Run(ctx context.Context, options Options) (Result, error) {
	if options.Path == "" && options.Data == nil {
		return Result{}, errors.New("path or data is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	emit(options.OnProgress, ProgressEvent{Stage: StageStarting, Path: options.Path, OccurredAt: time.Now()})

	data := options.Data
	if data == nil {
		emit(options.OnProgress, ProgressEvent{Stage: StageReading, Path: options.Path, OccurredAt: time.Now()})
		var err error
		data, err = os.ReadFile(options.Path)
		if err != nil {
			return Result{}, err
		}
	}

	emit(options.OnProgress, ProgressEvent{
		Stage:      StageScanning,
		Path:       options.Path,
		Bytes:      len(data),
		Elapsed:    time.Since(start),
		OccurredAt: time.Now(),
	})

	cfg := toInternalSettings(options.Settings)
	scanOpts := scan.DefaultOptions()
	if options.Logger != nil {
		scanOpts.Logger = *options.Logger
	}
	scanOpts.Strict = cfg.Strict
	scanOpts.MaxFrames = cfg.MaxFrames
	scanOpts.VerifyOggCRC = cfg.VerifyOggCRC
	scanOpts.HeaderWindow = cfg.HeaderWindow

	res, scanErr := scan.Scan(ctx, data, scanOpts)
	if res == nil {
		return Result{}, scanErr
	}

	emit(options.OnProgress, ProgressEvent{
		Stage:      StageScanComplete,
		Path:       options.Path,
		Bytes:      len(data),
		Frames:     res.Frames,
		Elapsed:    time.Since(start),
		OccurredAt: time.Now(),
	})

	emit(options.OnProgress, ProgressEvent{Stage: StageRenderingReport, Path: options.Path, OccurredAt: time.Now()})
	var buf bytes.Buffer
	fr := report.FileResult{Path: options.Path, Size: int64(len(data)), Result: res, Err: scanErr}
	if err := report.Render(&buf, []report.FileResult{fr}, cfg); err != nil {
		return Result{}, err
	}

	out := Result{
		Path:         options.Path,
		Container:    res.Container,
		Stream:       res.Stream,
		Frames:       res.Frames,
		FrameCounts:  res.FrameCounts,
		FirstHeaders: res.FirstHeaders,
		SkippedBytes: res.SkippedBytes,
		Truncated:    res.Truncated,
		Errors:       res.Errors,
		Report:       buf.String(),
	}
	if res.Opus != nil {
		head := res.Opus.Head
		out.OpusHead = &head
	}

	emit(options.OnProgress, ProgressEvent{
		Stage:      StageDone,
		Path:       options.Path,
		Frames:     res.Frames,
		Elapsed:    time.Since(start),
		OccurredAt: time.Now(),
	})
	return out, scanErr
}

// ParseDTSHeader classifies frame by its sync word and decodes the matching
// header. chunkID carries the UHD audio chunk ID between frames and may be
// nil.
func ParseDTSHeader(frame []byte, chunkID *UHDAudioChunkID) (FrameHeader, error) {
	switch codec.DTSFrameTypeAt(frame) {
	case codec.FrameTypeCore:
		return codec.ParseDTSCoreHeader(frame)
	case codec.FrameTypeExtensionSubstream:
		return codec.ParseDTSHDHeader(frame)
	case codec.FrameTypeUHDSync, codec.FrameTypeUHDNonSync:
		return codec.ParseDTSUHDHeader(frame, chunkID)
	default:
		return FrameHeader{}, fmt.Errorf("no DTS sync word: %w", ErrMalformedContainer)
	}
}

// DTSAudioSampleCount returns the sample count of a DTS core frame, or of a
// DTS passthrough sync frame.
func DTSAudioSampleCount(frame []byte) (int, error) {
	return codec.DTSAudioSampleCount(frame)
}

// NormalizeDTSFrame returns frame as a 16-bit big-endian bitstream.
func NormalizeDTSFrame(frame []byte) []byte {
	return codec.NormalizeDTSFrame(frame)
}

func ParseOpusHead(header []byte) (OpusHead, error) {
	return codec.ParseOpusHead(header)
}

func OpusChannelCount(header []byte) int {
	return codec.OpusChannelCount(header)
}

func BuildOpusInitializationData(header []byte) OpusInitializationData {
	return codec.BuildOpusInitializationData(header)
}

func OpusPacketDurationUs(packet []byte) int64 {
	return codec.OpusPacketDurationUs(packet)
}

func OpusPacketAudioSampleCount(packet []byte) int {
	return codec.OpusPacketAudioSampleCount(packet)
}

// OggPacketAudioSampleCount returns the sample count of the first audio
// packet in an Ogg Opus buffer.
func OggPacketAudioSampleCount(data []byte) (int, error) {
	return codec.OggPacketAudioSampleCount(data)
}

func emit(fn func(ProgressEvent), event ProgressEvent) {
	if fn != nil {
		fn(event)
	}
}

func fromInternalSettings(s internalsettings.Settings) Settings {
	return Settings{
		Strict:           s.Strict,
		MaxFrames:        s.MaxFrames,
		VerifyOggCRC:     s.VerifyOggCRC,
		HeaderWindow:     s.HeaderWindow,
		OutputFormat:     s.OutputFormat,
		IncludeFrames:    s.IncludeFrames,
		ShowSkippedBytes: s.ShowSkippedBytes,
	}
}

func toInternalSettings(s Settings) internalsettings.Settings {
	cfg := internalsettings.Default("")
	cfg.Strict = s.Strict
	cfg.MaxFrames = s.MaxFrames
	cfg.VerifyOggCRC = s.VerifyOggCRC
	cfg.HeaderWindow = s.HeaderWindow
	cfg.OutputFormat = s.OutputFormat
	cfg.IncludeFrames = s.IncludeFrames
	cfg.ShowSkippedBytes = s.ShowSkippedBytes
	return cfg
}
