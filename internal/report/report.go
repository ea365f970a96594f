package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/s0up4200/go-audiohdr/internal/codec"
	"github.com/s0up4200/go-audiohdr/internal/scan"
	"github.com/s0up4200/go-audiohdr/internal/settings"
	"github.com/s0up4200/go-audiohdr/internal/stream"
	"github.com/s0up4200/go-audiohdr/internal/util"
)

const productVersion = "0.1.0"

// FileResult is the outcome of scanning one input file.
type FileResult struct {
	Path   string
	Size   int64
	Result *scan.Result
	Err    error
}

// WriteReport renders results to the configured report file, or to stdout
// when the name is "-". An existing file is moved aside first. It returns the
// name actually written.
func WriteReport(path string, results []FileResult, settings settings.Settings) (string, error) {
	reportName := settings.ReportFileName
	if strings.Contains(reportName, "{0}") {
		reportName = strings.ReplaceAll(reportName, "{0}", reportLabel(results))
	}
	if path != "" {
		reportName = path
	}

	if reportName != "-" {
		ext := filepath.Ext(reportName)
		if ext == "" {
			reportName += extensionFor(settings.OutputFormat)
		}
		if _, err := os.Stat(reportName); err == nil {
			backup := fmt.Sprintf("%s.%d", reportName, time.Now().Unix())
			_ = os.Rename(reportName, backup)
		}
	}

	var b strings.Builder
	if err := Render(&b, results, settings); err != nil {
		return reportName, err
	}
	if reportName == "-" {
		_, err := os.Stdout.WriteString(b.String())
		return reportName, err
	}
	return reportName, os.WriteFile(reportName, []byte(b.String()), 0o644)
}

// Render writes results in settings.OutputFormat.
func Render(w io.Writer, results []FileResult, settings settings.Settings) error {
	switch settings.OutputFormat {
	case "", "text":
		_, err := io.WriteString(w, renderText(results, settings))
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(buildDocs(results, settings))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(buildDocs(results, settings)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", settings.OutputFormat)
	}
}

func reportLabel(results []FileResult) string {
	if len(results) != 1 {
		return "audiohdr"
	}
	base := filepath.Base(results[0].Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func extensionFor(format string) string {
	switch format {
	case "json":
		return ".json"
	case "yaml":
		return ".yaml"
	default:
		return ".txt"
	}
}

func renderText(results []FileResult, settings settings.Settings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s%s\n\n", "AudioHdr:", productVersion)

	for i, fr := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%-16s%s\n", "File:", fr.Path)
		fmt.Fprintf(&b, "%-16s%s bytes (%s)\n", "File Size:", formatNumber(fr.Size), util.FormatFileSize(float64(fr.Size), true))
		if fr.Err != nil {
			fmt.Fprintf(&b, "WARNING: Scan is incomplete because: %s\n", fr.Err.Error())
		}
		res := fr.Result
		if res == nil {
			continue
		}

		st := res.Stream
		fmt.Fprintf(&b, "%-16s%s\n", "Container:", res.Container)
		fmt.Fprintf(&b, "%-16s%s\n", "Codec:", st.CodecName())
		fmt.Fprintf(&b, "%-16s%s\n", "MIME Type:", st.MimeType)
		fmt.Fprintf(&b, "%-16s%s\n", "Description:", st.Description())
		fmt.Fprintf(&b, "%-16s%s\n", "Length:", util.FormatMicros(st.DurationUs))
		fmt.Fprintf(&b, "%-16s%s\n", "Bitrate:", util.FormatBitrate(st.BitRate))
		fmt.Fprintf(&b, "%-16s%d\n", "Frames:", res.Frames)
		if settings.ShowSkippedBytes {
			fmt.Fprintf(&b, "%-16s%s bytes\n", "Skipped:", formatNumber(res.SkippedBytes))
		}
		if res.Truncated {
			fmt.Fprintf(&b, "%-16s%s\n", "Truncated:", "last frame runs past end of file")
		}
		if res.Opus != nil {
			head := res.Opus.Head
			fmt.Fprintf(&b, "%-16s%d samples\n", "Pre-skip:", head.PreSkip)
			fmt.Fprintf(&b, "%-16s%d Hz\n", "Input Rate:", head.InputSampleRate)
			fmt.Fprintf(&b, "%-16s%d\n", "Mapping:", head.MappingFamily)
		}

		if settings.IncludeFrames && len(res.FrameCounts) > 0 {
			b.WriteString("\nFRAMES:\n\n")
			fmt.Fprintf(&b, "%-24s%-10s%-14s%-10s%-12s%-14s%-12s\n", "Type", "Count", "Sample Rate", "Channels", "Frame Size", "Duration", "Bitrate")
			fmt.Fprintf(&b, "%-24s%-10s%-14s%-10s%-12s%-14s%-12s\n", "----", "-----", "-----------", "--------", "----------", "--------", "-------")
			for _, name := range sortedKeys(res.FrameCounts) {
				h := res.FirstHeaders[name]
				fmt.Fprintf(&b, "%-24s%-10d%-14s%-10s%-12d%-14s%-12s\n",
					name,
					res.FrameCounts[name],
					formatSampleRate(h.SampleRate),
					formatChannels(h.ChannelCount),
					h.FrameSize,
					formatFrameDuration(h.FrameDurationUs),
					formatHeaderBitrate(h.Bitrate),
				)
			}
		}

		if len(res.Errors) > 0 {
			b.WriteString("\nWARNING: Frame errors were encountered during scan:\n")
			for _, fe := range res.Errors {
				fmt.Fprintf(&b, "  %s\n", fe.Error())
			}
		}
	}
	return b.String()
}

type frameDoc struct {
	Type            string `json:"type" yaml:"type"`
	Count           int    `json:"count" yaml:"count"`
	SampleRate      int    `json:"sample_rate" yaml:"sample_rate"`
	ChannelCount    int    `json:"channel_count" yaml:"channel_count"`
	FrameSize       int    `json:"frame_size" yaml:"frame_size"`
	FrameDurationUs int64  `json:"frame_duration_us" yaml:"frame_duration_us"`
	Bitrate         int    `json:"bitrate" yaml:"bitrate"`
}

type streamDoc struct {
	Codec        string     `json:"codec" yaml:"codec"`
	MimeType     string     `json:"mime_type" yaml:"mime_type"`
	Description  string     `json:"description" yaml:"description"`
	SampleRate   int        `json:"sample_rate" yaml:"sample_rate"`
	ChannelCount int        `json:"channel_count" yaml:"channel_count"`
	BitRate      int64      `json:"bitrate" yaml:"bitrate"`
	VBR          bool       `json:"vbr" yaml:"vbr"`
	FrameCount   int        `json:"frame_count" yaml:"frame_count"`
	SampleCount  int64      `json:"sample_count" yaml:"sample_count"`
	DurationUs   int64      `json:"duration_us" yaml:"duration_us"`
	Core         *streamDoc `json:"core,omitempty" yaml:"core,omitempty"`
}

type opusDoc struct {
	PreSkip         int    `json:"pre_skip" yaml:"pre_skip"`
	InputSampleRate uint32 `json:"input_sample_rate" yaml:"input_sample_rate"`
	OutputGain      int16  `json:"output_gain" yaml:"output_gain"`
	MappingFamily   uint8  `json:"mapping_family" yaml:"mapping_family"`
	StreamCount     int    `json:"stream_count" yaml:"stream_count"`
	CoupledCount    int    `json:"coupled_count" yaml:"coupled_count"`
	LastGranule     int64  `json:"last_granule" yaml:"last_granule"`
}

type fileDoc struct {
	Path         string     `json:"path" yaml:"path"`
	Size         int64      `json:"size" yaml:"size"`
	Error        string     `json:"error,omitempty" yaml:"error,omitempty"`
	Container    string     `json:"container,omitempty" yaml:"container,omitempty"`
	Stream       *streamDoc `json:"stream,omitempty" yaml:"stream,omitempty"`
	Frames       []frameDoc `json:"frames,omitempty" yaml:"frames,omitempty"`
	Opus         *opusDoc   `json:"opus,omitempty" yaml:"opus,omitempty"`
	SkippedBytes *int64     `json:"skipped_bytes,omitempty" yaml:"skipped_bytes,omitempty"`
	Truncated    bool       `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	FrameErrors  []string   `json:"frame_errors,omitempty" yaml:"frame_errors,omitempty"`
}

type reportDoc struct {
	Version string    `json:"version" yaml:"version"`
	Files   []fileDoc `json:"files" yaml:"files"`
}

func buildDocs(results []FileResult, settings settings.Settings) reportDoc {
	doc := reportDoc{Version: productVersion, Files: make([]fileDoc, 0, len(results))}
	for _, fr := range results {
		fd := fileDoc{Path: fr.Path, Size: fr.Size}
		if fr.Err != nil {
			fd.Error = fr.Err.Error()
		}
		if res := fr.Result; res != nil {
			fd.Container = res.Container
			fd.Stream = newStreamDoc(res.Stream)
			fd.Truncated = res.Truncated
			if settings.ShowSkippedBytes {
				skipped := res.SkippedBytes
				fd.SkippedBytes = &skipped
			}
			if settings.IncludeFrames {
				for _, name := range sortedKeys(res.FrameCounts) {
					h := res.FirstHeaders[name]
					fd.Frames = append(fd.Frames, frameDoc{
						Type:            name,
						Count:           res.FrameCounts[name],
						SampleRate:      h.SampleRate,
						ChannelCount:    h.ChannelCount,
						FrameSize:       h.FrameSize,
						FrameDurationUs: h.FrameDurationUs,
						Bitrate:         h.Bitrate,
					})
				}
			}
			if res.Opus != nil {
				head := res.Opus.Head
				fd.Opus = &opusDoc{
					PreSkip:         head.PreSkip,
					InputSampleRate: head.InputSampleRate,
					OutputGain:      head.OutputGain,
					MappingFamily:   head.MappingFamily,
					StreamCount:     head.StreamCount,
					CoupledCount:    head.CoupledCount,
					LastGranule:     res.Opus.LastGranule,
				}
			}
			for _, fe := range res.Errors {
				fd.FrameErrors = append(fd.FrameErrors, fe.Error())
			}
		}
		doc.Files = append(doc.Files, fd)
	}
	return doc
}

func newStreamDoc(s *stream.AudioStream) *streamDoc {
	if s == nil {
		return nil
	}
	return &streamDoc{
		Codec:        s.CodecName(),
		MimeType:     s.MimeType.String(),
		Description:  s.Description(),
		SampleRate:   s.SampleRate,
		ChannelCount: s.ChannelCount,
		BitRate:      s.BitRate,
		VBR:          s.IsVBR,
		FrameCount:   s.FrameCount,
		SampleCount:  s.SampleCount,
		DurationUs:   s.DurationUs,
		Core:         newStreamDoc(s.CoreStream),
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatSampleRate(rate int) string {
	if rate == codec.SampleRateUnknown || rate <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d Hz", rate)
}

func formatChannels(n int) string {
	if n == codec.ChannelCountUnknown || n <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d", n)
}

func formatFrameDuration(us int64) string {
	if us == codec.DurationUnknown || us <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d us", us)
}

func formatHeaderBitrate(bps int) string {
	switch {
	case bps == codec.BitrateUnknown:
		return "open"
	case bps == 0:
		return "-"
	default:
		return util.FormatBitrate(int64(bps))
	}
}
