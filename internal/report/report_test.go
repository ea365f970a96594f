package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/s0up4200/go-audiohdr/internal/codec"
	"github.com/s0up4200/go-audiohdr/internal/scan"
	"github.com/s0up4200/go-audiohdr/internal/settings"
	"github.com/s0up4200/go-audiohdr/internal/stream"
)

func sampleResults() []FileResult {
	core := &stream.AudioStream{
		MimeType:     stream.MimeDTS,
		SampleRate:   48000,
		ChannelCount: 6,
		BitRate:      768000,
		FrameCount:   2,
		SampleCount:  1024,
		DurationUs:   21332,
	}
	res := &scan.Result{
		Container: scan.ContainerDTS,
		Stream: &stream.AudioStream{
			MimeType:      stream.MimeDTSX,
			SampleRate:    48000,
			ChannelCount:  2,
			BitRate:       1_500_000,
			IsVBR:         true,
			FrameCount:    2,
			SampleCount:   1024,
			DurationUs:    42666,
			HasExtensions: true,
			CoreStream:    core,
		},
		Frames:      4,
		FrameCounts: map[string]int{"uhd-sync": 1, "uhd-non-sync": 1, "core": 2},
		FirstHeaders: map[string]codec.FrameHeader{
			"core": {
				MimeType:        stream.MimeDTS,
				SampleRate:      48000,
				ChannelCount:    6,
				FrameSize:       96,
				FrameDurationUs: codec.DurationUnknown,
				Bitrate:         768000,
			},
			"uhd-sync": {
				MimeType:        stream.MimeDTSX,
				SampleRate:      48000,
				ChannelCount:    2,
				FrameSize:       626,
				FrameDurationUs: 21333,
			},
			"uhd-non-sync": {
				MimeType:        stream.MimeDTSX,
				SampleRate:      codec.SampleRateUnknown,
				ChannelCount:    codec.ChannelCountUnknown,
				FrameSize:       108,
				FrameDurationUs: codec.DurationUnknown,
			},
		},
		TotalBytes:   926,
		SkippedBytes: 7,
		Errors: []*scan.FrameError{
			{Offset: 96, Type: "uhd-sync", Err: errors.New("bad block")},
		},
	}
	return []FileResult{
		{Path: "/media/movie.dts", Size: 1_234_567, Result: res},
		{Path: "/media/broken.dts", Size: 10, Err: errors.New("permission denied")},
	}
}

func TestRenderText(t *testing.T) {
	cfg := settings.Default(t.TempDir())
	cfg.ShowSkippedBytes = true

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResults(), cfg))
	out := buf.String()

	require.Contains(t, out, "File:           /media/movie.dts\n")
	require.Contains(t, out, "File Size:      1,234,567 bytes")
	require.Contains(t, out, "Codec:          DTS:X Profile 2\n")
	require.Contains(t, out, "Length:         0:00:00.042\n")
	require.Contains(t, out, "Bitrate:        1500 kbps\n")
	require.Contains(t, out, "Skipped:        7 bytes\n")
	require.Contains(t, out, "(DTS Core:")
	require.Contains(t, out, "uhd-sync frame at offset 96: bad block")
	require.Contains(t, out, "WARNING: Scan is incomplete because: permission denied")

	// Frame rows are sorted by type name.
	iCore := strings.Index(out, "\ncore ")
	iNonSync := strings.Index(out, "\nuhd-non-sync ")
	iSync := strings.Index(out, "\nuhd-sync ")
	require.True(t, iCore > 0 && iNonSync > iCore && iSync > iNonSync, "unexpected frame row order:\n%s", out)
	require.Contains(t, out[iNonSync:iSync], "unknown")

	cfg.IncludeFrames = false
	cfg.ShowSkippedBytes = false
	buf.Reset()
	require.NoError(t, Render(&buf, sampleResults(), cfg))
	require.NotContains(t, buf.String(), "FRAMES:")
	require.NotContains(t, buf.String(), "Skipped:")
}

func TestRenderJSON(t *testing.T) {
	cfg := settings.Default(t.TempDir())
	cfg.OutputFormat = settings.FormatJSON

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResults(), cfg))

	var doc reportDoc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Files, 2)

	f := doc.Files[0]
	require.Equal(t, "dts", f.Container)
	require.Equal(t, "audio/vnd.dts.uhd;profile=p2", f.Stream.MimeType)
	require.NotNil(t, f.Stream.Core)
	require.Equal(t, 6, f.Stream.Core.ChannelCount)
	require.Len(t, f.Frames, 3)
	require.Equal(t, "core", f.Frames[0].Type)
	require.Nil(t, f.SkippedBytes)
	require.Equal(t, []string{"uhd-sync frame at offset 96: bad block"}, f.FrameErrors)

	require.Equal(t, "permission denied", doc.Files[1].Error)
	require.Nil(t, doc.Files[1].Stream)
}

func TestRenderYAML(t *testing.T) {
	cfg := settings.Default(t.TempDir())
	cfg.OutputFormat = settings.FormatYAML
	cfg.ShowSkippedBytes = true

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResults()[:1], cfg))

	var doc reportDoc
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Files, 1)
	require.NotNil(t, doc.Files[0].SkippedBytes)
	require.Equal(t, int64(7), *doc.Files[0].SkippedBytes)
	require.Equal(t, int64(42666), doc.Files[0].Stream.DurationUs)
}

func TestRenderUnknownFormat(t *testing.T) {
	cfg := settings.Default(t.TempDir())
	cfg.OutputFormat = "xml"
	require.Error(t, Render(&bytes.Buffer{}, nil, cfg))
}

func TestWriteReport(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := settings.Default(tmpDir)
	results := sampleResults()[:1]

	name, err := WriteReport("", results, cfg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(tmpDir, "AudioHdr_movie.txt"), name)

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	require.Contains(t, string(data), "/media/movie.dts")

	// A second run moves the first report aside.
	_, err = WriteReport("", results, cfg)
	require.NoError(t, err)
	matches, err := filepath.Glob(filepath.Join(tmpDir, "AudioHdr_movie.txt.*"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	cfg.OutputFormat = settings.FormatJSON
	out := filepath.Join(tmpDir, "explicit")
	name, err = WriteReport(out, sampleResults(), cfg)
	require.NoError(t, err)
	require.Equal(t, out+".json", name)
}

func TestReportLabel(t *testing.T) {
	require.Equal(t, "movie", reportLabel([]FileResult{{Path: "/a/movie.dts"}}))
	require.Equal(t, "audiohdr", reportLabel(nil))
	require.Equal(t, "audiohdr", reportLabel(sampleResults()))
}

func TestFormatNumber(t *testing.T) {
	tests := map[int64]string{
		0:         "0",
		999:       "999",
		1000:      "1,000",
		1_234_567: "1,234,567",
		-12345:    "-12,345",
	}
	for in, want := range tests {
		require.Equal(t, want, formatNumber(in))
	}
}
