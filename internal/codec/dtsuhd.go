package codec

import (
	"encoding/binary"

	"github.com/s0up4200/go-audiohdr/internal/buffer"
	"github.com/s0up4200/go-audiohdr/internal/crc"
	"github.com/s0up4200/go-audiohdr/internal/stream"
	"github.com/s0up4200/go-audiohdr/internal/util"
)

// Field width tables for the UHD variable length integers, ETSI TS 103 491
// sections 6.4.3, 6.4.14.4 and table 6-20.
var (
	uhdFtocPayloadLengths    = [4]int{5, 8, 10, 12}
	uhdMetadataChunkLengths  = [4]int{6, 9, 12, 15}
	uhdAudioChunkIDLengths   = [4]int{2, 4, 6, 8}
	uhdAudioChunkSizeLengths = [4]int{9, 11, 13, 16}
	uhdHeaderSizeLengths     = [4]int{5, 8, 10, 12}
)

// UHDAudioChunkID carries the audio chunk ID from a UHD sync frame to the
// non-sync frames that follow it. Use one value per stream; it is not safe
// for concurrent use.
type UHDAudioChunkID struct {
	ID  uint64
	Set bool
}

// ParseDTSUHDHeader decodes a DTS:X Profile 2 FTOC header, ETSI TS 103 491
// section 6.4. Sync frames store their audio chunk ID in chunkID, non-sync
// frames read it from there.
//
// The channel count is always reported as 2. Finding the real count means
// decoding the metadata chunk payload, which is not done here.
func ParseDTSUHDHeader(header []byte, chunkID *UHDAudioChunkID) (FrameHeader, error) {
	if chunkID == nil {
		chunkID = &UHDAudioChunkID{}
	}
	normalized := NormalizeDTSFrame(header)
	br := buffer.NewBitReader(normalized)
	syncWord, _ := br.ReadBits(32)
	syncFrame := syncWord == syncUHDFtocSyncBE

	ftocPayload, _ := readUHDVarUint(br, uhdFtocPayloadLengths, true)
	ftocPayloadBytes := int(ftocPayload) + 1

	sampleRate := SampleRateUnknown
	frameDurationUs := int64(DurationUnknown)
	if syncFrame {
		fullChannelMix, ok := br.ReadFlag()
		if !ok {
			return FrameHeader{}, truncated("DTS UHD header")
		}
		if !fullChannelMix {
			return FrameHeader{}, unsupported("only full channel mask-based audio presentation is supported")
		}
		if err := checkUHDCRC(normalized, ftocPayloadBytes); err != nil {
			return FrameHeader{}, err
		}

		// ETSI TS 103 491 table 6-13.
		baseDurationIndex, _ := br.ReadBits(2)
		var baseDuration int64
		switch baseDurationIndex {
		case 0:
			baseDuration = 512
		case 1:
			baseDuration = 480
		case 2:
			baseDuration = 384
		default:
			return FrameHeader{}, malformed(nil, "unsupported base duration index in DTS UHD header: %d", baseDurationIndex)
		}
		durationMultiplier, _ := br.ReadBits(3)
		durationInClockPeriods := baseDuration * (int64(durationMultiplier) + 1)

		clockRateIndex, _ := br.ReadBits(2)
		var clockHz int64
		switch clockRateIndex {
		case 0:
			clockHz = 32000
		case 1:
			clockHz = 44100
		case 2:
			clockHz = 48000
		default:
			return FrameHeader{}, malformed(nil, "unsupported clock rate index in DTS UHD header: %d", clockRateIndex)
		}

		if timeStamp, _ := br.ReadFlag(); timeStamp {
			br.SkipBits(32 + 4)
		}
		sampleRateShift, _ := br.ReadBits(2)
		sampleRate = int(clockHz) << sampleRateShift
		frameDurationUs = util.ScaleTimestamp(durationInClockPeriods, util.MicrosPerSecond, clockHz)
	}

	var chunkBytes int
	if syncFrame {
		metadataChunkSize, _ := readUHDVarUint(br, uhdMetadataChunkLengths, true)
		chunkBytes += int(metadataChunkSize)

		id, _ := readUHDVarUint(br, uhdAudioChunkIDLengths, true)
		if br.Overrun() {
			return FrameHeader{}, truncated("DTS UHD header")
		}
		chunkID.ID, chunkID.Set = id, true
	}
	if chunkID.ID != 0 {
		audioChunkSize, _ := readUHDVarUint(br, uhdAudioChunkSizeLengths, true)
		chunkBytes += int(audioChunkSize)
	}
	if br.Overrun() {
		return FrameHeader{}, truncated("DTS UHD header")
	}

	return FrameHeader{
		MimeType:        stream.MimeDTSX,
		SampleRate:      sampleRate,
		ChannelCount:    2,
		FrameSize:       ftocPayloadBytes + chunkBytes,
		FrameDurationUs: frameDurationUs,
		Bitrate:         0,
	}, nil
}

// ParseDTSUHDHeaderSize returns the size in bytes of the FTOC header that
// starts prefix.
func ParseDTSUHDHeaderSize(prefix []byte) (int, error) {
	br := newNormalizedReader(prefix)
	br.SkipBits(32)
	size, ok := readUHDVarUint(br, uhdHeaderSizeLengths, true)
	if !ok {
		return 0, truncated("DTS UHD header size")
	}
	return int(size) + 1, nil
}

// readUHDVarUint reads the unary-prefixed integer of ETSI TS 103 491
// section 5.2.2. Up to three leading one bits select the width from lengths.
func readUHDVarUint(br *buffer.BitReader, lengths [4]int, addOffset bool) (uint64, bool) {
	index := 0
	for index < 3 {
		bit, ok := br.ReadBit()
		if !ok {
			return 0, false
		}
		if bit == 0 {
			break
		}
		index++
	}

	var value uint64
	if addOffset {
		for i := 0; i < index; i++ {
			value += 1 << uint(lengths[i])
		}
	}
	low, ok := br.ReadBits(lengths[index])
	if !ok {
		return 0, false
	}
	return value + low, true
}

// checkUHDCRC verifies the CRC-16 stored big-endian in the last two bytes of
// the FTOC payload.
func checkUHDCRC(frame []byte, size int) error {
	if size < 2 {
		return malformed(nil, "DTS UHD FTOC payload too small for CRC: %d bytes", size)
	}
	if len(frame) < size {
		return truncated("DTS UHD FTOC payload")
	}
	stored := binary.BigEndian.Uint16(frame[size-2:])
	if calculated := crc.CRC16(frame[:size-2], 0xFFFF); calculated != stored {
		return malformed(nil, "CRC check failed: stored %#04x, calculated %#04x", stored, calculated)
	}
	return nil
}
