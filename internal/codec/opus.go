package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/s0up4200/go-audiohdr/internal/util"
)

const (
	// OpusSampleRate is the rate Opus always decodes at, RFC 7845 section 4.
	OpusSampleRate = 48000
	// OpusMaxBytesPerSecond is the maximum Opus bitrate, 510 kbit/s.
	OpusMaxBytesPerSecond = 510000 / 8

	// Default seek pre-roll, RFC 7845 section 4.6.
	opusDefaultSeekPreRollSamples = 3840
	opusHeadMinSize               = 19
)

var opusHeadMagic = []byte("OpusHead")

// OpusInitializationData is the decoder setup data derived from an Opus
// identification header. The two timing buffers hold nanosecond values as
// native-order 64-bit integers.
type OpusInitializationData struct {
	Header        []byte
	PreSkipNs     []byte
	SeekPreRollNs []byte
}

// Buffers returns the three buffers in the order decoders expect them.
func (d OpusInitializationData) Buffers() [][]byte {
	return [][]byte{d.Header, d.PreSkipNs, d.SeekPreRollNs}
}

// OpusHead is an Opus identification header, RFC 7845 section 5.1.
type OpusHead struct {
	Version         uint8
	ChannelCount    int
	PreSkip         int
	InputSampleRate uint32
	// OutputGain in Q7.8 dB.
	OutputGain     int16
	MappingFamily  uint8
	StreamCount    int
	CoupledCount   int
	ChannelMapping []byte
}

// ParseOpusHead decodes an identification header.
func ParseOpusHead(header []byte) (OpusHead, error) {
	if len(header) < opusHeadMinSize {
		return OpusHead{}, truncated("Opus identification header")
	}
	if !bytes.Equal(header[:8], opusHeadMagic) {
		return OpusHead{}, malformed(nil, "missing OpusHead magic")
	}
	head := OpusHead{
		Version:         header[8],
		ChannelCount:    int(header[9]),
		PreSkip:         int(binary.LittleEndian.Uint16(header[10:12])),
		InputSampleRate: binary.LittleEndian.Uint32(header[12:16]),
		OutputGain:      int16(binary.LittleEndian.Uint16(header[16:18])),
		MappingFamily:   header[18],
		StreamCount:     1,
	}
	if head.Version>>4 != 0 {
		return OpusHead{}, unsupported("Opus identification header version %d", head.Version)
	}
	if head.ChannelCount == 0 {
		return OpusHead{}, malformed(nil, "Opus identification header has zero channels")
	}

	if head.MappingFamily == 0 {
		if head.ChannelCount > 2 {
			return OpusHead{}, malformed(nil, "mapping family 0 with %d channels", head.ChannelCount)
		}
		if head.ChannelCount == 2 {
			head.CoupledCount = 1
		}
		return head, nil
	}

	if len(header) < opusHeadMinSize+2+head.ChannelCount {
		return OpusHead{}, truncated("Opus channel mapping table")
	}
	head.StreamCount = int(header[19])
	head.CoupledCount = int(header[20])
	if head.StreamCount == 0 || head.CoupledCount > head.StreamCount {
		return OpusHead{}, malformed(nil, "invalid Opus stream counts: %d streams, %d coupled", head.StreamCount, head.CoupledCount)
	}
	head.ChannelMapping = append([]byte(nil), header[21:21+head.ChannelCount]...)
	return head, nil
}

// OpusChannelCount returns the channel count of an identification header, or
// ChannelCountUnknown when the header is too short.
func OpusChannelCount(header []byte) int {
	if len(header) < 10 {
		return ChannelCountUnknown
	}
	return int(header[9])
}

// OpusPreSkipSamples returns the pre-skip of an identification header in
// 48 kHz samples.
func OpusPreSkipSamples(header []byte) int {
	if len(header) < 12 {
		return 0
	}
	return int(binary.LittleEndian.Uint16(header[10:12]))
}

// BuildOpusInitializationData returns the decoder setup data for header. The
// header itself is not copied.
func BuildOpusInitializationData(header []byte) OpusInitializationData {
	preSkipNs := opusSamplesToNanos(int64(OpusPreSkipSamples(header)))
	seekPreRollNs := opusSamplesToNanos(opusDefaultSeekPreRollSamples)
	return OpusInitializationData{
		Header:        header,
		PreSkipNs:     nativeOrderInt64(preSkipNs),
		SeekPreRollNs: nativeOrderInt64(seekPreRollNs),
	}
}

// OpusPacketDurationUs returns the duration of an Opus packet from its TOC
// byte, RFC 6716 section 3.1. Code 3 packets take the frame count from the
// second byte.
func OpusPacketDurationUs(packet []byte) int64 {
	if len(packet) == 0 {
		return 0
	}
	var frameCountByte byte
	if len(packet) > 1 {
		frameCountByte = packet[1]
	}
	return opusPacketDurationUs(packet[0], frameCountByte)
}

// OpusPacketAudioSampleCount returns the number of 48 kHz samples in packet.
func OpusPacketAudioSampleCount(packet []byte) int {
	return int(OpusPacketDurationUs(packet) * OpusSampleRate / util.MicrosPerSecond)
}

func opusPacketDurationUs(toc, frameCountByte byte) int64 {
	var frames int64
	switch toc & 0x03 {
	case 0:
		frames = 1
	case 1, 2:
		frames = 2
	default:
		frames = int64(frameCountByte & 0x3F)
	}

	config := toc >> 3
	length := config & 0x03
	var frameDurationUs int64
	switch {
	case config >= 16: // CELT-only
		frameDurationUs = 2500 << length
	case config >= 12: // hybrid
		frameDurationUs = 10000 << (length & 0x01)
	case length == 3: // SILK-only 60 ms
		frameDurationUs = 60000
	default:
		frameDurationUs = 10000 << length
	}
	return frames * frameDurationUs
}

func opusSamplesToNanos(samples int64) int64 {
	return samples * util.NanosPerSecond / OpusSampleRate
}

func nativeOrderInt64(v int64) []byte {
	return binary.NativeEndian.AppendUint64(make([]byte, 0, 8), uint64(v))
}
