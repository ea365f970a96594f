package stream

import (
	"fmt"
	"strings"
)

// AudioStream summarises an elementary audio stream after a scan.
type AudioStream struct {
	MimeType      MimeType
	SampleRate    int
	ChannelCount  int
	BitRate       int64
	IsVBR         bool
	FrameCount    int
	SampleCount   int64
	DurationUs    int64
	PreSkip       int
	HasExtensions bool
	ChannelLayout ChannelLayout
	CoreStream    *AudioStream
}

func (a *AudioStream) CodecName() string {
	switch a.MimeType {
	case MimeDTS:
		return "DTS Audio"
	case MimeDTSExpress:
		return "DTS Express"
	case MimeDTSX:
		return "DTS:X Profile 2"
	case MimeOpus:
		return "Opus Audio"
	default:
		return "UNKNOWN"
	}
}

func (a *AudioStream) CodecShortName() string {
	switch a.MimeType {
	case MimeDTS:
		return "DTS"
	case MimeDTSExpress:
		return "DTS-E"
	case MimeDTSX:
		return "DTS:X"
	case MimeOpus:
		return "OPUS"
	default:
		return "UNKNOWN"
	}
}

func (a *AudioStream) ChannelDescription() string {
	if a.ChannelCount > 0 {
		return fmt.Sprintf("%d ch", a.ChannelCount)
	}
	switch a.ChannelLayout {
	case ChannelLayoutMono:
		return "1.0"
	case ChannelLayoutStereo:
		return "2.0"
	case ChannelLayoutMulti:
		return "multi"
	}
	return ""
}

func (a *AudioStream) Description() string {
	description := a.ChannelDescription()

	if a.SampleRate > 0 {
		description += fmt.Sprintf(" / %g kHz", float64(a.SampleRate)/1000)
	}
	if a.BitRate > 0 {
		description += fmt.Sprintf(" / %5d kbps", int64(float64(a.BitRate)/1000+0.5))
	} else if a.IsVBR {
		description += " / VBR"
	}
	if a.PreSkip > 0 {
		description += fmt.Sprintf(" / pre-skip %d", a.PreSkip)
	}
	description = strings.TrimPrefix(description, " / ")

	if a.CoreStream == nil {
		return description
	}
	return description + fmt.Sprintf(" (DTS Core: %s)", a.CoreStream.Description())
}

func (a *AudioStream) Clone() *AudioStream {
	clone := *a
	if a.CoreStream != nil {
		clone.CoreStream = a.CoreStream.Clone()
	}
	return &clone
}
