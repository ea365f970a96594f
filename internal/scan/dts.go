package scan

import (
	"context"

	"github.com/s0up4200/go-audiohdr/internal/codec"
	"github.com/s0up4200/go-audiohdr/internal/stream"
	"github.com/s0up4200/go-audiohdr/internal/util"
)

// dtsTrack accumulates one frame type's contribution to the summary.
type dtsTrack struct {
	frames     int
	bytes      int64
	samples    int64
	durationUs int64
	sampleRate int
	channels   int
	bitrate    int
}

func scanDTS(ctx context.Context, data []byte, opts Options) (*Result, error) {
	log := opts.Logger.With().Str("container", ContainerDTS).Logger()
	res := newResult(ContainerDTS)

	tracks := map[codec.FrameType]*dtsTrack{}
	var chunkID codec.UHDAudioChunkID
	var uhdDurationUs int64

	offset := 0
	for offset+4 <= len(data) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if opts.MaxFrames > 0 && res.Frames >= opts.MaxFrames {
			break
		}

		frameType := codec.DTSFrameTypeAt(data[offset:])
		if frameType == codec.FrameTypeUnknown {
			offset++
			res.SkippedBytes++
			continue
		}

		end := min(len(data), offset+opts.HeaderWindow)
		header, err := decodeDTSFrame(frameType, data[offset:end], &chunkID)
		if err != nil {
			fe := &FrameError{Offset: offset, Type: frameType.String(), Err: err}
			if err := res.recordError(log, fe, opts.Strict); err != nil {
				return res, err
			}
			offset++
			res.SkippedBytes++
			continue
		}

		log.Debug().
			Int("offset", offset).
			Stringer("type", frameType).
			Int("size", header.FrameSize).
			Int("rate", header.SampleRate).
			Int("channels", header.ChannelCount).
			Msg("frame")

		name := frameType.String()
		if _, ok := res.FirstHeaders[name]; !ok {
			res.FirstHeaders[name] = header
		}
		res.FrameCounts[name]++
		res.Frames++

		// Non-sync UHD frames share the duration of the sync frame before them.
		key := frameType
		if frameType == codec.FrameTypeUHDSync || frameType == codec.FrameTypeUHDNonSync {
			key = codec.FrameTypeUHDSync
			if header.FrameDurationUs != codec.DurationUnknown {
				uhdDurationUs = header.FrameDurationUs
			} else {
				header.FrameDurationUs = uhdDurationUs
			}
		}
		track := tracks[key]
		if track == nil {
			track = &dtsTrack{sampleRate: header.SampleRate, channels: header.ChannelCount, bitrate: header.Bitrate}
			tracks[key] = track
		}
		track.add(frameType, data[offset:end], header)

		if offset+header.FrameSize > len(data) {
			res.Truncated = true
			log.Warn().Int("offset", offset).Int("size", header.FrameSize).Msg("last frame runs past end of data")
		}
		res.TotalBytes += int64(min(header.FrameSize, len(data)-offset))
		offset += header.FrameSize
	}
	if offset < len(data) && !res.Truncated && (opts.MaxFrames == 0 || res.Frames < opts.MaxFrames) {
		res.SkippedBytes += int64(len(data) - offset)
	}

	res.Stream = summarizeDTS(tracks, res.TotalBytes)
	return res, nil
}

func decodeDTSFrame(frameType codec.FrameType, frame []byte, chunkID *codec.UHDAudioChunkID) (codec.FrameHeader, error) {
	switch frameType {
	case codec.FrameTypeCore:
		return codec.ParseDTSCoreHeader(frame)
	case codec.FrameTypeExtensionSubstream:
		return codec.ParseDTSHDHeader(frame)
	default:
		return codec.ParseDTSUHDHeader(frame, chunkID)
	}
}

func (t *dtsTrack) add(frameType codec.FrameType, frame []byte, header codec.FrameHeader) {
	t.frames++
	t.bytes += int64(header.FrameSize)
	if t.sampleRate <= 0 && header.SampleRate > 0 {
		t.sampleRate = header.SampleRate
	}
	if t.channels <= 0 && header.ChannelCount > 0 {
		t.channels = header.ChannelCount
	}

	if frameType == codec.FrameTypeCore {
		samples, err := codec.DTSCoreAudioSampleCount(frame)
		if err == nil {
			t.samples += int64(samples)
			if header.SampleRate > 0 {
				t.durationUs += util.ScaleTimestamp(int64(samples), util.MicrosPerSecond, int64(header.SampleRate))
			}
		}
		return
	}
	if header.FrameDurationUs > 0 {
		t.durationUs += header.FrameDurationUs
		if t.sampleRate > 0 {
			t.samples += header.FrameDurationUs * int64(t.sampleRate) / util.MicrosPerSecond
		}
	}
}

func (t *dtsTrack) stream(mime stream.MimeType) *stream.AudioStream {
	s := &stream.AudioStream{
		MimeType:      mime,
		SampleRate:    t.sampleRate,
		ChannelCount:  t.channels,
		FrameCount:    t.frames,
		SampleCount:   t.samples,
		DurationUs:    t.durationUs,
		ChannelLayout: stream.LayoutForChannels(t.channels),
	}
	if t.bitrate > 0 {
		s.BitRate = int64(t.bitrate)
	} else if t.durationUs > 0 {
		s.BitRate = t.bytes * 8 * util.MicrosPerSecond / t.durationUs
		s.IsVBR = true
	}
	return s
}

// summarizeDTS picks the richest layer as the main stream. A core found
// alongside an extension layer is reported as its CoreStream, and the
// bitrate then covers both layers.
func summarizeDTS(tracks map[codec.FrameType]*dtsTrack, totalBytes int64) *stream.AudioStream {
	core := tracks[codec.FrameTypeCore]
	var main *stream.AudioStream
	switch {
	case tracks[codec.FrameTypeUHDSync] != nil:
		main = tracks[codec.FrameTypeUHDSync].stream(stream.MimeDTSX)
	case tracks[codec.FrameTypeExtensionSubstream] != nil:
		main = tracks[codec.FrameTypeExtensionSubstream].stream(stream.MimeDTSExpress)
	case core != nil:
		return core.stream(stream.MimeDTS)
	default:
		return &stream.AudioStream{}
	}

	if core == nil {
		return main
	}
	main.HasExtensions = true
	main.CoreStream = core.stream(stream.MimeDTS)
	if main.DurationUs <= 0 {
		main.DurationUs = core.durationUs
		main.SampleCount = core.samples
	}
	if main.DurationUs > 0 {
		main.BitRate = totalBytes * 8 * util.MicrosPerSecond / main.DurationUs
		main.IsVBR = true
	}
	return main
}
