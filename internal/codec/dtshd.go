package codec

import (
	"github.com/s0up4200/go-audiohdr/internal/stream"
	"github.com/s0up4200/go-audiohdr/internal/util"
)

// Maximum sample rate by index, ETSI TS 102 114 table 7-9.
var dtsHDSampleRates = [16]int{
	8000, 16000, 32000, 64000, 128000, 22050, 44100, 88200,
	176400, 352800, 12000, 24000, 48000, 96000, 192000, 384000,
}

// ParseDTSHDHeader decodes a DTS-HD extension substream header (DTS Express),
// ETSI TS 102 114 section 7.5.2. Streams with more than one audio
// presentation or asset are rejected as unsupported.
func ParseDTSHDHeader(header []byte) (FrameHeader, error) {
	br := newNormalizedReader(header)
	br.SkipBits(32 + 8) // SYNCEXTSSH, UserDefinedBits

	subStreamIndex, _ := br.ReadBits(2)
	headerSizeBits, frameSizeBits := 8, 16
	if blownUpHeader, _ := br.ReadFlag(); blownUpHeader {
		headerSizeBits, frameSizeBits = 12, 20
	}
	br.SkipBits(headerSizeBits) // nuExtSSHeaderSize
	rawFrameSize, _ := br.ReadBits(frameSizeBits)
	frameSize := int(rawFrameSize) + 1

	var referenceClockCode uint64
	var durationInClockPeriods int64
	staticFields, _ := br.ReadFlag()
	if staticFields {
		referenceClockCode, _ = br.ReadBits(2)
		durationCode, _ := br.ReadBits(3)
		durationInClockPeriods = 512 * (int64(durationCode) + 1)

		if timeStamp, _ := br.ReadFlag(); timeStamp {
			br.SkipBits(32 + 4) // nuTimeStamp, nLSB
		}

		numAudioPresent, _ := br.ReadBits(3)
		numAssets, _ := br.ReadBits(3)
		if br.Overrun() {
			return FrameHeader{}, truncated("DTS-HD substream header")
		}
		if numAudioPresent+1 != 1 || numAssets+1 != 1 {
			return FrameHeader{}, unsupported("multiple audio presentations or assets (%d presentations, %d assets)", numAudioPresent+1, numAssets+1)
		}

		// One presentation, so one active substream mask.
		activeMask, _ := br.ReadBits(int(subStreamIndex) + 1)
		for i := 0; i < int(subStreamIndex)+1; i++ {
			if (activeMask>>uint(i))&0x1 == 1 {
				br.SkipBits(8) // nuActiveAssetMask
			}
		}

		if mixMetadata, _ := br.ReadFlag(); mixMetadata {
			br.SkipBits(2) // nuMixMetadataAdjLevel
			bits4MixOutMask, _ := br.ReadBits(2)
			maskBits := (int(bits4MixOutMask) + 1) << 2
			numMixOutConfigs, _ := br.ReadBits(2)
			for i := 0; i < int(numMixOutConfigs)+1; i++ {
				br.SkipBits(maskBits) // nuMixOutChMask
			}
		}
	}

	// Single asset.
	br.SkipBits(frameSizeBits) // nuAssetFsize
	br.SkipBits(9 + 3)         // nuAssetDescriptFsize, nuAssetIndex

	sampleRate := SampleRateUnknown
	channelCount := ChannelCountUnknown
	if staticFields {
		if assetType, _ := br.ReadFlag(); assetType {
			br.SkipBits(4)
		}
		if language, _ := br.ReadFlag(); language {
			br.SkipBits(24)
		}
		if infoText, _ := br.ReadFlag(); infoText {
			infoTextBytes, _ := br.ReadBits(10)
			br.SkipBytes(int(infoTextBytes) + 1)
		}
		br.SkipBits(5) // nuBitResolution
		maxSampleRate, _ := br.ReadBits(4)
		totalChannels, _ := br.ReadBits(8)
		sampleRate = dtsHDSampleRates[maxSampleRate]
		channelCount = int(totalChannels) + 1
	}
	if br.Overrun() {
		return FrameHeader{}, truncated("DTS-HD substream header")
	}

	frameDurationUs := int64(DurationUnknown)
	if staticFields {
		// ETSI TS 102 114 table 7-3.
		var clockHz int64
		switch referenceClockCode {
		case 0:
			clockHz = 32000
		case 1:
			clockHz = 44100
		case 2:
			clockHz = 48000
		default:
			return FrameHeader{}, malformed(nil, "unsupported reference clock code in DTS-HD header: %d", referenceClockCode)
		}
		frameDurationUs = util.ScaleTimestamp(durationInClockPeriods, util.MicrosPerSecond, clockHz)
	}

	return FrameHeader{
		MimeType:        stream.MimeDTSExpress,
		SampleRate:      sampleRate,
		ChannelCount:    channelCount,
		FrameSize:       frameSize,
		FrameDurationUs: frameDurationUs,
		Bitrate:         0,
	}, nil
}

// ParseDTSHDHeaderSize returns the extension substream header size in bytes.
// prefix must hold at least the first 55 bits of the frame.
func ParseDTSHDHeaderSize(prefix []byte) (int, error) {
	br := newNormalizedReader(prefix)
	br.SkipBits(32 + 8 + 2) // SYNCEXTSSH, UserDefinedBits, nExtSSIndex
	headerSizeBits := 8
	if blownUpHeader, _ := br.ReadFlag(); blownUpHeader {
		headerSizeBits = 12
	}
	size, ok := br.ReadBits(headerSizeBits)
	if !ok {
		return 0, truncated("DTS-HD substream header size")
	}
	return int(size) + 1, nil
}
