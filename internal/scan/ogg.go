package scan

import (
	"bytes"
	"context"
	"fmt"

	"github.com/s0up4200/go-audiohdr/internal/codec"
	"github.com/s0up4200/go-audiohdr/internal/stream"
	"github.com/s0up4200/go-audiohdr/internal/util"
)

const frameTypeOpus = "opus"

var (
	oggCapture    = []byte("OggS")
	opusHeadMagic = []byte("OpusHead")
	opusTagsMagic = []byte("OpusTags")
)

type oggState struct {
	res     *Result
	pending []byte
	head    *codec.OpusHead
	samples int64
}

func scanOgg(ctx context.Context, data []byte, opts Options) (*Result, error) {
	log := opts.Logger.With().Str("container", ContainerOgg).Logger()
	st := &oggState{res: newResult(ContainerOgg)}
	res := st.res
	lastGranule := int64(-1)

	offset := 0
pages:
	for offset < len(data) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		page, err := codec.ParseOggPage(data[offset:], opts.VerifyOggCRC)
		if err != nil {
			fe := &FrameError{Offset: offset, Type: "ogg-page", Err: err}
			if err := res.recordError(log, fe, opts.Strict); err != nil {
				return res, err
			}
			next := bytes.Index(data[offset+1:], oggCapture)
			if next < 0 {
				res.SkippedBytes += int64(len(data) - offset)
				break
			}
			res.SkippedBytes += int64(next + 1)
			offset += next + 1
			st.pending = nil
			continue
		}

		log.Debug().
			Int("offset", offset).
			Uint32("seq", page.SequenceNumber).
			Int64("granule", page.GranulePosition).
			Int("size", page.Size).
			Msg("page")

		pageOffset := offset
		offset += page.Size
		if page.GranulePosition >= 0 {
			lastGranule = page.GranulePosition
		}

		packets, incomplete := page.Packets()
		for i, packet := range packets {
			if i == 0 && page.Continued() {
				if st.pending == nil {
					// Continuation of a packet that started before the scan.
					continue
				}
				packet = append(st.pending, packet...)
				st.pending = nil
			}
			if i == len(packets)-1 && incomplete {
				st.pending = append([]byte(nil), packet...)
				continue
			}
			if err := st.packet(packet); err != nil {
				fe := &FrameError{Offset: pageOffset, Type: frameTypeOpus, Err: err}
				if err := res.recordError(log, fe, opts.Strict); err != nil {
					return res, err
				}
				continue
			}
			if opts.MaxFrames > 0 && res.Frames >= opts.MaxFrames {
				break pages
			}
		}
	}

	if st.pending != nil {
		res.Truncated = true
	}
	st.finish(lastGranule)
	return res, nil
}

func (st *oggState) packet(packet []byte) error {
	res := st.res
	switch {
	case bytes.HasPrefix(packet, opusHeadMagic):
		head, err := codec.ParseOpusHead(packet)
		if err != nil {
			return err
		}
		st.head = &head
		res.Opus = &OpusInfo{
			Head:     head,
			InitData: codec.BuildOpusInitializationData(append([]byte(nil), packet...)),
		}
		return nil
	case bytes.HasPrefix(packet, opusTagsMagic):
		return nil
	case len(packet) == 0:
		return nil
	}
	if st.head == nil {
		return fmt.Errorf("audio packet before OpusHead: %w", codec.ErrMalformedContainer)
	}

	samples := codec.OpusPacketAudioSampleCount(packet)
	if _, ok := res.FirstHeaders[frameTypeOpus]; !ok {
		res.FirstHeaders[frameTypeOpus] = codec.FrameHeader{
			MimeType:        stream.MimeOpus,
			SampleRate:      codec.OpusSampleRate,
			ChannelCount:    st.head.ChannelCount,
			FrameSize:       len(packet),
			FrameDurationUs: codec.OpusPacketDurationUs(packet),
		}
	}
	res.FrameCounts[frameTypeOpus]++
	res.Frames++
	st.samples += int64(samples)
	res.TotalBytes += int64(len(packet))
	return nil
}

func (st *oggState) finish(lastGranule int64) {
	res := st.res
	if st.head == nil {
		return
	}

	// RFC 7845 section 4: the granule position counts output samples plus
	// pre-skip. Fall back to the packet sum when no page carried one.
	playable := st.samples - int64(st.head.PreSkip)
	if lastGranule > 0 {
		playable = lastGranule - int64(st.head.PreSkip)
		res.Opus.LastGranule = lastGranule
	}
	playable = max(playable, 0)

	s := &stream.AudioStream{
		MimeType:      stream.MimeOpus,
		SampleRate:    codec.OpusSampleRate,
		ChannelCount:  st.head.ChannelCount,
		FrameCount:    res.Frames,
		SampleCount:   st.samples,
		DurationUs:    util.ScaleTimestamp(playable, util.MicrosPerSecond, codec.OpusSampleRate),
		PreSkip:       st.head.PreSkip,
		IsVBR:         true,
		ChannelLayout: stream.LayoutForChannels(st.head.ChannelCount),
	}
	if s.DurationUs > 0 {
		s.BitRate = res.TotalBytes * 8 * util.MicrosPerSecond / s.DurationUs
	}
	res.Stream = s
}
