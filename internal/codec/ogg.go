package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/s0up4200/go-audiohdr/internal/crc"
)

// Ogg page header type flags, RFC 3533 section 6.
const (
	OggFlagContinued = 0x01
	OggFlagFirstPage = 0x02
	OggFlagLastPage  = 0x04
)

const (
	oggPageHeaderSize = 27
	oggMaxSegmentSize = 255
)

var (
	oggCapturePattern = []byte("OggS")
	opusTagsMagic     = []byte("OpusTags")
)

// OggPage is one page of an Ogg bitstream. Payload aliases the parsed buffer.
type OggPage struct {
	Version         uint8
	HeaderType      uint8
	GranulePosition int64
	SerialNumber    uint32
	SequenceNumber  uint32
	Checksum        uint32
	Lacing          []byte
	Payload         []byte
	// Size of the whole page including its header.
	Size int
}

// IsOggPage reports whether data starts with the Ogg capture pattern.
func IsOggPage(data []byte) bool {
	return bytes.HasPrefix(data, oggCapturePattern)
}

// ParseOggPage decodes the page at the start of data. With verifyCRC set a
// checksum mismatch is a malformed-container error.
func ParseOggPage(data []byte, verifyCRC bool) (OggPage, error) {
	if len(data) < oggPageHeaderSize {
		return OggPage{}, truncated("Ogg page header")
	}
	if !IsOggPage(data) {
		return OggPage{}, malformed(nil, "missing Ogg capture pattern")
	}
	page := OggPage{
		Version:         data[4],
		HeaderType:      data[5],
		GranulePosition: int64(binary.LittleEndian.Uint64(data[6:14])),
		SerialNumber:    binary.LittleEndian.Uint32(data[14:18]),
		SequenceNumber:  binary.LittleEndian.Uint32(data[18:22]),
		Checksum:        binary.LittleEndian.Uint32(data[22:26]),
	}
	if page.Version != 0 {
		return OggPage{}, unsupported("Ogg stream structure version %d", page.Version)
	}

	segments := int(data[26])
	headerSize := oggPageHeaderSize + segments
	if len(data) < headerSize {
		return OggPage{}, truncated("Ogg lacing table")
	}
	page.Lacing = data[oggPageHeaderSize:headerSize]
	payloadSize := 0
	for _, l := range page.Lacing {
		payloadSize += int(l)
	}
	page.Size = headerSize + payloadSize
	if len(data) < page.Size {
		return OggPage{}, truncated("Ogg page payload")
	}
	page.Payload = data[headerSize:page.Size]

	if verifyCRC {
		scratch := make([]byte, page.Size)
		copy(scratch, data[:page.Size])
		clear(scratch[22:26])
		if calculated := crc.OggCRC32(scratch); calculated != page.Checksum {
			return OggPage{}, malformed(nil, "Ogg page CRC check failed: stored %#08x, calculated %#08x", page.Checksum, calculated)
		}
	}
	return page, nil
}

// Packets splits the payload on the lacing values. The last packet is
// incomplete when the page ends on a 255 lacing value; it continues on the
// next page.
func (p OggPage) Packets() (packets [][]byte, lastIncomplete bool) {
	start, end := 0, 0
	for i, l := range p.Lacing {
		end += int(l)
		if l < oggMaxSegmentSize {
			packets = append(packets, p.Payload[start:end])
			start = end
			continue
		}
		if i == len(p.Lacing)-1 {
			packets = append(packets, p.Payload[start:end])
			lastIncomplete = true
		}
	}
	return packets, lastIncomplete
}

// Continued reports whether the first packet of the page continues one from
// the previous page.
func (p OggPage) Continued() bool {
	return p.HeaderType&OggFlagContinued != 0
}

// OggPacketAudioSampleCount returns the sample count of the first Opus audio
// packet found in data, a run of Ogg pages. Pages carrying the OpusHead and
// OpusTags headers are skipped.
func OggPacketAudioSampleCount(data []byte) (int, error) {
	for len(data) > 0 {
		page, err := ParseOggPage(data, false)
		if err != nil {
			return 0, err
		}
		data = data[page.Size:]

		packets, _ := page.Packets()
		if page.Continued() && len(packets) > 0 {
			packets = packets[1:]
		}
		for _, packet := range packets {
			if bytes.HasPrefix(packet, opusHeadMagic) || bytes.HasPrefix(packet, opusTagsMagic) {
				break
			}
			if len(packet) == 0 {
				continue
			}
			return OpusPacketAudioSampleCount(packet), nil
		}
	}
	return 0, malformed(nil, "no Opus audio packet in Ogg data")
}
