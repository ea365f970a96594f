package stream

// MimeType identifies the bitstream a parsed header belongs to. The set is
// closed; values outside it are never produced by the parsers.
type MimeType uint8

const (
	MimeUnknown MimeType = iota
	MimeDTS
	MimeDTSExpress
	MimeDTSX
	MimeOpus
)

func (m MimeType) String() string {
	switch m {
	case MimeDTS:
		return "audio/vnd.dts"
	case MimeDTSExpress:
		return "audio/vnd.dts.hd;profile=lbr"
	case MimeDTSX:
		return "audio/vnd.dts.uhd;profile=p2"
	case MimeOpus:
		return "audio/opus"
	default:
		return "unknown"
	}
}

func (m MimeType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ChannelLayout is a coarse layout label derived from a channel count.
type ChannelLayout uint8

const (
	ChannelLayoutUnknown ChannelLayout = 0
	ChannelLayoutMono    ChannelLayout = 1
	ChannelLayoutStereo  ChannelLayout = 3
	ChannelLayoutMulti   ChannelLayout = 6
)

func LayoutForChannels(n int) ChannelLayout {
	switch {
	case n == 1:
		return ChannelLayoutMono
	case n == 2:
		return ChannelLayoutStereo
	case n > 2:
		return ChannelLayoutMulti
	default:
		return ChannelLayoutUnknown
	}
}
