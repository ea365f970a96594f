package codec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s0up4200/go-audiohdr/internal/buffer"
	"github.com/s0up4200/go-audiohdr/internal/crc"
)

// bitWriter builds synthetic frames MSB first.
type bitWriter struct {
	t  *testing.T
	w  *buffer.BitReader
	bs []byte
}

func newBitWriter(t *testing.T, size int) *bitWriter {
	t.Helper()
	bs := make([]byte, size)
	return &bitWriter{t: t, w: buffer.NewBitReader(bs), bs: bs}
}

func (b *bitWriter) put(v uint64, n int) *bitWriter {
	b.t.Helper()
	require.True(b.t, b.w.PutBits(v, n), "PutBits(%d, %d) past end", v, n)
	return b
}

func (b *bitWriter) flag(v bool) *bitWriter {
	if v {
		return b.put(1, 1)
	}
	return b.put(0, 1)
}

func (b *bitWriter) bytes() []byte { return b.bs }

type coreFields struct {
	nblks, fsize, amode, sfreq, rate, lff uint64
}

// buildCoreFrame returns a 16-byte big-endian 16-bit DTS core frame header.
func buildCoreFrame(t *testing.T, f coreFields) []byte {
	t.Helper()
	return newBitWriter(t, 16).
		put(syncCoreBE, 32).
		put(1, 1).  // FTYPE
		put(31, 5). // SHORT
		put(0, 1).  // CPF
		put(f.nblks, 7).
		put(f.fsize, 14).
		put(f.amode, 6).
		put(f.sfreq, 4).
		put(f.rate, 5).
		put(0, 10).
		put(f.lff, 2).
		bytes()
}

func swapPairs(b []byte) []byte {
	out := append([]byte(nil), b...)
	for i := 0; i+1 < len(out); i += 2 {
		out[i], out[i+1] = out[i+1], out[i]
	}
	return out
}

// pack14 spreads logical into 14-bit words stored in 16 bits with the top
// two bits sign extended, the 14-bit big-endian DTS layout.
func pack14(logical []byte) []byte {
	r := buffer.NewBitReader(logical)
	words := (len(logical)*8 + 13) / 14
	out := make([]byte, words*2)
	for i := 0; i < words; i++ {
		n := min(14, r.BitsLeft())
		v, _ := r.ReadBits(n)
		v <<= uint(14 - n)
		if v&0x2000 != 0 {
			v |= 0xC000
		}
		binary.BigEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func varUint(b *bitWriter, lengths [4]int, value uint64) *bitWriter {
	b.t.Helper()
	var offset uint64
	for index := 0; index < 4; index++ {
		span := uint64(1) << uint(lengths[index])
		if value-offset < span {
			for i := 0; i < index; i++ {
				b.put(1, 1)
			}
			if index < 3 {
				b.put(0, 1)
			}
			return b.put(value-offset, lengths[index])
		}
		offset += span
	}
	b.t.Fatalf("value %d does not fit %v", value, lengths)
	return b
}

type uhdSyncFields struct {
	ftocBytes     uint64
	partialMix    bool
	baseDuration  uint64
	multiplier    uint64
	clockRate     uint64
	timeStamp     bool
	rateShift     uint64
	metadataSize  uint64
	audioChunkID  uint64
	audioChunkLen uint64
}

// buildUHDSyncFrame returns a big-endian UHD sync frame with a valid CRC in
// the last two bytes of the FTOC payload.
func buildUHDSyncFrame(t *testing.T, f uhdSyncFields) []byte {
	t.Helper()
	b := newBitWriter(t, int(f.ftocBytes))
	b.put(syncUHDFtocSyncBE, 32)
	varUint(b, uhdFtocPayloadLengths, f.ftocBytes-1)
	b.flag(!f.partialMix)
	b.put(f.baseDuration, 2).put(f.multiplier, 3).put(f.clockRate, 2)
	b.flag(f.timeStamp)
	if f.timeStamp {
		b.put(0x12345678, 32).put(0x9, 4)
	}
	b.put(f.rateShift, 2)
	varUint(b, uhdMetadataChunkLengths, f.metadataSize)
	varUint(b, uhdAudioChunkIDLengths, f.audioChunkID)
	if f.audioChunkID != 0 {
		varUint(b, uhdAudioChunkSizeLengths, f.audioChunkLen)
	}
	frame := b.bytes()
	binary.BigEndian.PutUint16(frame[len(frame)-2:], crc.CRC16(frame[:len(frame)-2], 0xFFFF))
	return frame
}

func buildUHDNonSyncFrame(t *testing.T, ftocBytes uint64, audioChunkLen *uint64) []byte {
	t.Helper()
	b := newBitWriter(t, int(ftocBytes))
	b.put(syncUHDFtocNonSyncBE, 32)
	varUint(b, uhdFtocPayloadLengths, ftocBytes-1)
	if audioChunkLen != nil {
		varUint(b, uhdAudioChunkSizeLengths, *audioChunkLen)
	}
	return b.bytes()
}

type extSSFields struct {
	subStreamIndex uint64
	blownUpHeader  bool
	headerSize     uint64
	frameSize      uint64
	noStaticFields bool
	refClock       uint64
	durationCode   uint64
	presentations  uint64
	assets         uint64
	mixMetadata    bool
	language       bool
	infoText       []byte
	sampleRateIdx  uint64
	channels       uint64
}

func buildExtSSHeader(t *testing.T, f extSSFields) []byte {
	t.Helper()
	headerBits, frameBits := 8, 16
	if f.blownUpHeader {
		headerBits, frameBits = 12, 20
	}
	b := newBitWriter(t, 64)
	b.put(syncExtSSBE, 32).put(0, 8).put(f.subStreamIndex, 2).flag(f.blownUpHeader)
	b.put(f.headerSize-1, headerBits).put(f.frameSize-1, frameBits)
	b.flag(!f.noStaticFields)
	if !f.noStaticFields {
		b.put(f.refClock, 2).put(f.durationCode, 3)
		b.flag(false) // time stamp
		b.put(f.presentations-1, 3).put(f.assets-1, 3)
		if f.presentations != 1 || f.assets != 1 {
			return b.bytes()
		}
		activeMask := uint64(1)<<uint(f.subStreamIndex+1) - 1
		b.put(activeMask, int(f.subStreamIndex)+1)
		for i := uint64(0); i <= f.subStreamIndex; i++ {
			b.put(0x01, 8)
		}
		b.flag(f.mixMetadata)
		if f.mixMetadata {
			b.put(0, 2).put(1, 2).put(1, 2) // 8-bit masks, two configs
			b.put(0xAA, 8).put(0x55, 8)
		}
	}
	b.put(f.frameSize-1, frameBits).put(0, 9+3)
	if !f.noStaticFields {
		b.flag(false) // asset type
		b.flag(f.language)
		if f.language {
			b.put(0x656E67, 24)
		}
		b.flag(len(f.infoText) > 0)
		if len(f.infoText) > 0 {
			b.put(uint64(len(f.infoText)-1), 10)
			for _, c := range f.infoText {
				b.put(uint64(c), 8)
			}
		}
		b.put(0, 5).put(f.sampleRateIdx, 4).put(f.channels-1, 8)
	}
	return b.bytes()
}
