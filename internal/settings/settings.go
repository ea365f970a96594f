package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings mirrors the audiohdr command line options. Every field can also be
// set from a YAML config file.
type Settings struct {
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
	OutputFormat     string `yaml:"output_format"`
	ReportFileName   string `yaml:"report_file_name"`
	Workers          int    `yaml:"workers"`
	Strict           bool   `yaml:"strict"`
	MaxFrames        int    `yaml:"max_frames"`
	VerifyOggCRC     bool   `yaml:"verify_ogg_crc"`
	HeaderWindow     int    `yaml:"header_window"`
	IncludeFrames    bool   `yaml:"include_frames"`
	ShowSkippedBytes bool   `yaml:"show_skipped_bytes"`
}

// Output formats accepted by the report writer.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

func Default(reportBaseDir string) Settings {
	return Settings{
		LogLevel:         "info",
		LogFormat:        "",
		OutputFormat:     FormatText,
		ReportFileName:   filepath.Join(reportBaseDir, "AudioHdr_{0}.txt"),
		Workers:          4,
		Strict:           false,
		MaxFrames:        0,
		VerifyOggCRC:     true,
		HeaderWindow:     8192,
		IncludeFrames:    true,
		ShowSkippedBytes: false,
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default value.
func Load(path, reportBaseDir string) (Settings, error) {
	s := Default(reportBaseDir)
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse config %s: %w", path, err)
	}
	return s, s.Validate()
}

// Validate normalises enum fields and rejects values the scanner cannot use.
func (s *Settings) Validate() error {
	s.OutputFormat = strings.ToLower(strings.TrimSpace(s.OutputFormat))
	switch s.OutputFormat {
	case "":
		s.OutputFormat = FormatText
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("unknown output format %q", s.OutputFormat)
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	if s.MaxFrames < 0 {
		return fmt.Errorf("max frames must not be negative, got %d", s.MaxFrames)
	}
	if s.HeaderWindow < 16 {
		return fmt.Errorf("header window must be at least 16 bytes, got %d", s.HeaderWindow)
	}
	return nil
}
