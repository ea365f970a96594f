package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s0up4200/go-audiohdr/internal/crc"
)

// buildOggPage lays packets out on one page. A trailing nil packet marks the
// previous one as continuing on the next page.
func buildOggPage(headerType byte, granule int64, seq uint32, packets ...[]byte) []byte {
	var lacing, payload []byte
	for i, p := range packets {
		if p == nil {
			continue
		}
		n := len(p)
		for n >= 255 {
			lacing = append(lacing, 255)
			n -= 255
		}
		continues := i+1 < len(packets) && packets[i+1] == nil
		if !continues {
			lacing = append(lacing, byte(n))
		}
		payload = append(payload, p...)
	}

	page := make([]byte, 27, 27+len(lacing)+len(payload))
	copy(page, "OggS")
	page[5] = headerType
	binary.LittleEndian.PutUint64(page[6:], uint64(granule))
	binary.LittleEndian.PutUint32(page[14:], 0x1234)
	binary.LittleEndian.PutUint32(page[18:], seq)
	page[26] = byte(len(lacing))
	page = append(page, lacing...)
	page = append(page, payload...)
	binary.LittleEndian.PutUint32(page[22:], crc.OggCRC32(page))
	return page
}

func TestParseOggPage(t *testing.T) {
	long := bytes.Repeat([]byte{0xAB}, 300)
	data := buildOggPage(OggFlagFirstPage, 960, 7, []byte{0xFC, 0x01}, long, []byte{})
	data = append(data, 0xEE) // next page starts here

	page, err := ParseOggPage(data, true)
	require.NoError(t, err)
	require.Equal(t, uint8(OggFlagFirstPage), page.HeaderType)
	require.Equal(t, int64(960), page.GranulePosition)
	require.Equal(t, uint32(0x1234), page.SerialNumber)
	require.Equal(t, uint32(7), page.SequenceNumber)
	require.Equal(t, []byte{2, 255, 45, 0}, page.Lacing)
	require.Equal(t, len(data)-1, page.Size)
	require.False(t, page.Continued())

	packets, incomplete := page.Packets()
	require.False(t, incomplete)
	require.Len(t, packets, 3)
	require.Equal(t, []byte{0xFC, 0x01}, packets[0])
	require.Equal(t, long, packets[1])
	require.Empty(t, packets[2])
}

func TestOggPage_IncompletePacket(t *testing.T) {
	data := buildOggPage(OggFlagContinued, -1, 3, []byte{0x01}, bytes.Repeat([]byte{0x02}, 510), nil)

	page, err := ParseOggPage(data, true)
	require.NoError(t, err)
	require.True(t, page.Continued())
	require.Equal(t, int64(-1), page.GranulePosition)

	packets, incomplete := page.Packets()
	require.True(t, incomplete)
	require.Len(t, packets, 2)
	require.Len(t, packets[1], 510)
}

func TestParseOggPage_Errors(t *testing.T) {
	good := buildOggPage(0, 0, 0, []byte("payload"))

	corrupt := append([]byte(nil), good...)
	corrupt[len(corrupt)-1] ^= 0xFF

	version := append([]byte(nil), good...)
	version[4] = 1

	tests := []struct {
		name   string
		data   []byte
		verify bool
		target error
	}{
		{"short header", good[:20], false, ErrMalformedContainer},
		{"no capture pattern", append([]byte("OggX"), good[4:]...), false, ErrMalformedContainer},
		{"short payload", good[:len(good)-1], false, ErrMalformedContainer},
		{"crc mismatch", corrupt, true, ErrMalformedContainer},
		{"stream version", version, false, ErrUnsupportedFeature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOggPage(tt.data, tt.verify)
			require.ErrorIs(t, err, tt.target)
		})
	}

	_, err := ParseOggPage(corrupt, false)
	require.NoError(t, err)
}

func TestOggPacketAudioSampleCount(t *testing.T) {
	var data []byte
	data = append(data, buildOggPage(OggFlagFirstPage, 0, 0, testOpusHead)...)
	data = append(data, buildOggPage(0, 0, 1, []byte("OpusTags\x00\x00\x00\x00"))...)
	data = append(data, buildOggPage(0, 1920, 2, []byte{0xFC, 0xFF}, []byte{0xFC, 0xFF})...)

	samples, err := OggPacketAudioSampleCount(data)
	require.NoError(t, err)
	require.Equal(t, 960, samples)

	// A page starting with a continued packet is measured from its next one.
	continued := buildOggPage(OggFlagContinued, 960, 3, []byte{0x00, 0x00}, []byte{0x84})
	samples, err = OggPacketAudioSampleCount(continued)
	require.NoError(t, err)
	require.Equal(t, 120, samples)

	_, err = OggPacketAudioSampleCount(buildOggPage(OggFlagFirstPage, 0, 0, testOpusHead))
	require.ErrorIs(t, err, ErrMalformedContainer)
}
