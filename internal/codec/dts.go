package codec

import (
	"encoding/binary"
	"math"

	"github.com/s0up4200/go-audiohdr/internal/buffer"
	"github.com/s0up4200/go-audiohdr/internal/stream"
)

// Sentinels for header fields that could not be determined from the bytes.
const (
	SampleRateUnknown   = -1
	ChannelCountUnknown = -1
	BitrateUnknown      = -1
	DurationUnknown     = math.MinInt64 + 1
)

const (
	// DTSMaxRateBytesPerSecond assumes the highest listed core bitrate,
	// 1536 kbit/s, since DTS also allows an open rate.
	DTSMaxRateBytesPerSecond       = 1536 * 1000 / 8
	DTSHDMaxRateBytesPerSecond     = 18000 * 1000 / 8
	DTSExpressMaxRateBitsPerSecond = 768000
)

// FrameHeader is the result of decoding one DTS frame header. Exactly one of
// the core, extension substream or UHD decoders produces each value.
type FrameHeader struct {
	MimeType stream.MimeType
	// SampleRate in Hz, or SampleRateUnknown.
	SampleRate int
	// ChannelCount, or ChannelCountUnknown.
	ChannelCount int
	// FrameSize of the compressed frame in bytes. Always positive.
	FrameSize int
	// FrameDurationUs, or DurationUnknown.
	FrameDurationUs int64
	// Bitrate in bits per second. Zero when the variant does not carry one,
	// BitrateUnknown when the core RATE index is out of range.
	Bitrate int
}

// FrameType classifies a 32-bit DTS sync word.
type FrameType uint8

const (
	FrameTypeUnknown FrameType = iota
	FrameTypeCore
	FrameTypeExtensionSubstream
	FrameTypeUHDSync
	FrameTypeUHDNonSync
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeCore:
		return "core"
	case FrameTypeExtensionSubstream:
		return "extension-substream"
	case FrameTypeUHDSync:
		return "uhd-sync"
	case FrameTypeUHDNonSync:
		return "uhd-non-sync"
	default:
		return "unknown"
	}
}

// Sync words, ETSI TS 102 114 5.3 / 7.4.1 and ETSI TS 103 491 6.4.4.1.
const (
	syncCoreBE           = 0x7FFE8001
	syncCore14BBE        = 0x1FFFE800
	syncCoreLE           = 0xFE7F0180
	syncCore14BLE        = 0xFF1F00E8
	syncExtSSBE          = 0x64582025
	syncExtSSLE          = 0x25205864
	syncUHDFtocSyncBE    = 0x40411BF2
	syncUHDFtocSyncLE    = 0xF21B4140
	syncUHDFtocNonSyncBE = 0x71C442E8
	syncUHDFtocNonSyncLE = 0xE842C471
)

const (
	firstByteBE           = byte(syncCoreBE >> 24)
	firstByte14BBE        = byte(syncCore14BBE >> 24)
	firstByteLE           = byte(syncCoreLE >> 24)
	firstByte14BLE        = byte(syncCore14BLE >> 24)
	firstByteExtSSBE      = byte(syncExtSSBE >> 24)
	firstByteExtSSLE      = byte(syncExtSSLE >> 24)
	firstByteUHDSyncBE    = byte(syncUHDFtocSyncBE >> 24)
	firstByteUHDSyncLE    = byte(syncUHDFtocSyncLE >> 24)
	firstByteUHDNonSyncBE = byte(syncUHDFtocNonSyncBE >> 24)
	firstByteUHDNonSyncLE = byte(syncUHDFtocNonSyncLE >> 24)
)

// ETSI TS 102 114 table 5-4.
var dtsChannelsByAMODE = [16]int{1, 2, 2, 2, 2, 3, 3, 4, 4, 5, 6, 6, 6, 7, 8, 8}

// ETSI TS 102 114 table 5-5. Reserved codes map to SampleRateUnknown.
var dtsSampleRateBySFREQ = [16]int{
	-1, 8000, 16000, 32000, -1, -1, 11025, 22050, 44100, -1, -1, 12000, 24000, 48000, -1, -1,
}

// Twice the bitrate in kbit/s, ETSI TS 102 114 table 5-7.
var dtsTwiceBitrateKbpsByRate = [29]int{
	64, 112, 128, 192, 224, 256, 384, 448, 512, 640, 768, 896, 1024, 1152, 1280, 1536,
	1920, 2048, 2304, 2560, 2688, 2816, 2823, 2944, 3072, 3840, 4096, 6144, 7680,
}

// DTSFrameType returns the frame type announced by word, or FrameTypeUnknown.
func DTSFrameType(word uint32) FrameType {
	switch word {
	case syncCoreBE, syncCoreLE, syncCore14BBE, syncCore14BLE:
		return FrameTypeCore
	case syncExtSSBE, syncExtSSLE:
		return FrameTypeExtensionSubstream
	case syncUHDFtocSyncBE, syncUHDFtocSyncLE:
		return FrameTypeUHDSync
	case syncUHDFtocNonSyncBE, syncUHDFtocNonSyncLE:
		return FrameTypeUHDNonSync
	}
	return FrameTypeUnknown
}

// DTSFrameTypeAt classifies the first four bytes of data.
func DTSFrameTypeAt(data []byte) FrameType {
	if len(data) < 4 {
		return FrameTypeUnknown
	}
	return DTSFrameType(binary.BigEndian.Uint32(data))
}

// NormalizeDTSFrame returns frame as big-endian 16-bit-per-word data. A frame
// already in that form is returned as is; anything else is copied first, so
// the caller's bytes are never modified. Unrecognised first bytes are treated
// as big-endian 16-bit.
func NormalizeDTSFrame(frame []byte) []byte {
	if len(frame) == 0 {
		return frame
	}
	switch frame[0] {
	case firstByteBE, firstByteExtSSBE, firstByteUHDSyncBE, firstByteUHDNonSyncBE:
		return frame
	}

	out := make([]byte, len(frame))
	copy(out, frame)
	if isLittleEndianFrameHeader(out) {
		for i := 0; i+1 < len(out); i += 2 {
			out[i], out[i+1] = out[i+1], out[i]
		}
	}
	if out[0] == firstByte14BBE {
		// Drop the top 2 bits of every 16-bit word. The writer never
		// overtakes the reader, so the repack can run in place.
		scratch := buffer.NewBitReader(out)
		packed := buffer.NewBitReader(out)
		for scratch.BitsLeft() >= 16 {
			scratch.SkipBits(2)
			word, _ := scratch.ReadBits(14)
			packed.PutBits(word, 14)
		}
	}
	return out
}

func isLittleEndianFrameHeader(frame []byte) bool {
	switch frame[0] {
	case firstByteLE, firstByte14BLE, firstByteExtSSLE, firstByteUHDSyncLE, firstByteUHDNonSyncLE:
		return true
	}
	return false
}

func newNormalizedReader(frame []byte) *buffer.BitReader {
	return buffer.NewBitReader(NormalizeDTSFrame(frame))
}

// ParseDTSCoreHeader decodes a DTS core frame header, ETSI TS 102 114
// sections 5.3 and 5.4. Reserved table indices produce the Unknown
// sentinels; only a buffer too short for the fields is an error.
func ParseDTSCoreHeader(frame []byte) (FrameHeader, error) {
	frameSize, err := DTSCoreFrameSize(frame)
	if err != nil {
		return FrameHeader{}, err
	}

	br := newNormalizedReader(frame)
	br.SkipBits(32 + 1 + 5 + 1 + 7 + 14) // SYNC, FTYPE, SHORT, CPF, NBLKS, FSIZE
	amode, _ := br.ReadBits(6)
	sfreq, _ := br.ReadBits(4)
	rate, _ := br.ReadBits(5)
	br.SkipBits(10) // MIX, DYNF, TIMEF, AUXF, HDCD, EXT_AUDIO_ID, EXT_AUDIO, ASPF
	lff, _ := br.ReadBits(2)
	if br.Overrun() {
		return FrameHeader{}, truncated("DTS core header")
	}

	channelCount := ChannelCountUnknown
	if int(amode) < len(dtsChannelsByAMODE) {
		// AMODE 16-63 are user defined.
		channelCount = dtsChannelsByAMODE[amode]
		if lff > 0 {
			channelCount++
		}
	}

	bitrate := BitrateUnknown
	if int(rate) < len(dtsTwiceBitrateKbpsByRate) {
		bitrate = dtsTwiceBitrateKbpsByRate[rate] * 1000 / 2
	}

	return FrameHeader{
		MimeType:        stream.MimeDTS,
		SampleRate:      dtsSampleRateBySFREQ[sfreq],
		ChannelCount:    channelCount,
		FrameSize:       frameSize,
		FrameDurationUs: DurationUnknown,
		Bitrate:         bitrate,
	}, nil
}

// DTSCoreFrameSize returns the size in bytes of a DTS core frame. For the
// 14-bit packed variants FSIZE counts 14-bit words' worth of data and is
// rescaled to the bytes actually occupied.
func DTSCoreFrameSize(frame []byte) (int, error) {
	if len(frame) < dtsCorePrefixLen(frame) {
		return 0, truncated("DTS core frame size")
	}

	var fsize int
	uses14BitPerWord := false
	switch frame[0] {
	case firstByte14BBE:
		fsize = (int(frame[6]&0x03)<<12 | int(frame[7])<<4 | int(frame[8]&0x3C)>>2) + 1
		uses14BitPerWord = true
	case firstByteLE:
		fsize = (int(frame[4]&0x03)<<12 | int(frame[7])<<4 | int(frame[6]&0xF0)>>4) + 1
	case firstByte14BLE:
		fsize = (int(frame[7]&0x03)<<12 | int(frame[6])<<4 | int(frame[9]&0x3C)>>2) + 1
		uses14BitPerWord = true
	default:
		// Anything else is assumed to be big-endian 16-bit.
		fsize = (int(frame[5]&0x03)<<12 | int(frame[6])<<4 | int(frame[7]&0xF0)>>4) + 1
	}

	if uses14BitPerWord {
		return fsize * 16 / 14, nil
	}
	return fsize, nil
}

// DTSCoreAudioSampleCount returns the number of audio samples in a DTS core
// frame, (NBLKS+1)*32.
func DTSCoreAudioSampleCount(frame []byte) (int, error) {
	if len(frame) < dtsCorePrefixLen(frame) {
		return 0, truncated("DTS core sample count")
	}

	var nblks int
	switch frame[0] {
	case firstByteLE:
		nblks = int(frame[5]&0x01)<<6 | int(frame[4]&0xFC)>>2
	case firstByte14BLE:
		nblks = int(frame[4]&0x07)<<4 | int(frame[7]&0x3C)>>2
	case firstByte14BBE:
		nblks = int(frame[5]&0x07)<<4 | int(frame[6]&0x3C)>>2
	default:
		nblks = int(frame[4]&0x01)<<6 | int(frame[5]&0xFC)>>2
	}
	return (nblks + 1) * 32, nil
}

// DTSAudioSampleCount returns the sample count of a passthrough buffer. The
// DTS streaming encoders only emit fixed sizes for little-endian DTS:X
// (1024) and DTS Express (4096) frames; anything else is decoded as core.
func DTSAudioSampleCount(buf []byte) (int, error) {
	if len(buf) >= 4 {
		switch binary.BigEndian.Uint32(buf) {
		case syncUHDFtocSyncLE, syncUHDFtocNonSyncLE:
			return 1024, nil
		case syncExtSSLE:
			return 4096, nil
		}
	}
	return DTSCoreAudioSampleCount(buf)
}

func dtsCorePrefixLen(frame []byte) int {
	if len(frame) > 0 && frame[0] == firstByte14BLE {
		return 10
	}
	return 9
}
