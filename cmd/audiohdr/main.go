package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blang/semver"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/go-audiohdr/internal/fs"
	"github.com/s0up4200/go-audiohdr/internal/report"
	"github.com/s0up4200/go-audiohdr/internal/scan"
	"github.com/s0up4200/go-audiohdr/internal/settings"
)

var version = "dev"

type rootOptions struct {
	configFile  string
	reportFile  string
	format      string
	logLevel    string
	logFormat   string
	workers     int
	maxFrames   int
	strict      bool
	noCRC       bool
	frames      bool
	showSkipped bool
	stdout      bool
}

var opts rootOptions

var rootCmd = &cobra.Command{
	Use:           "audiohdr <file>...",
	Short:         "Inspect DTS and Ogg Opus audio headers.",
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update audiohdr",
	Long:  "Update audiohdr to latest version (release builds only).",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSelfUpdate(cmd.Context(), cmd.OutOrStdout())
	},
	DisableFlagsInUseLine: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "audiohdr version: %s\n", version)
		return nil
	},
	DisableFlagsInUseLine: true,
}

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	rootCmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "YAML config file")
	rootCmd.Flags().StringVarP(&opts.reportFile, "reportfilename", "o", "", "The report filename ({0} is replaced by the input name)")
	rootCmd.Flags().StringVarP(&opts.format, "format", "f", settings.FormatText, "Report format: text, json or yaml")
	rootCmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	rootCmd.Flags().StringVar(&opts.logFormat, "log-format", "", "Log format: empty for console, json")
	rootCmd.Flags().IntVarP(&opts.workers, "workers", "w", 4, "Number of files scanned concurrently")
	rootCmd.Flags().IntVarP(&opts.maxFrames, "max-frames", "n", 0, "Stop each scan after this many frames (0 scans everything)")
	rootCmd.Flags().BoolVarP(&opts.strict, "strict", "s", false, "Abort a file on the first undecodable frame")
	rootCmd.Flags().BoolVar(&opts.noCRC, "no-crc", false, "Skip Ogg page CRC verification")
	rootCmd.Flags().BoolVar(&opts.frames, "frames", true, "Include the per frame type table")
	rootCmd.Flags().BoolVar(&opts.showSkipped, "show-skipped", false, "Report bytes skipped while searching for sync words")
	rootCmd.Flags().BoolVar(&opts.stdout, "stdout", false, "Write report to stdout")

	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "audiohdr: %s\n", err.Error())
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	cwd, _ := os.Getwd()
	s, err := loadSettings(cmd, cwd)
	if err != nil {
		return err
	}

	log := newLogger(os.Stderr, s)
	files, err := fs.Collect(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no audio files found")
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	log.Debug().Int("files", len(paths)).Int("workers", s.Workers).Msg("starting scan")

	results, err := scanFiles(cmd.Context(), log, paths, s)
	if err != nil {
		return err
	}

	reportPath, err := report.WriteReport("", results, s)
	if err != nil {
		return err
	}
	if reportPath != "-" {
		fmt.Fprintf(cmd.OutOrStdout(), "Report written: %s\n", reportPath)
	}
	for _, fr := range results {
		if fr.Err != nil {
			return fmt.Errorf("%s: %w", fr.Path, fr.Err)
		}
	}
	return nil
}

// loadSettings layers defaults, the optional config file and any flag the
// user set explicitly.
func loadSettings(cmd *cobra.Command, reportBaseDir string) (settings.Settings, error) {
	s := settings.Default(reportBaseDir)
	if opts.configFile != "" {
		var err error
		if s, err = settings.Load(opts.configFile, reportBaseDir); err != nil {
			return s, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		s.OutputFormat = opts.format
	}
	if flags.Changed("log-level") {
		s.LogLevel = opts.logLevel
	}
	if flags.Changed("log-format") {
		s.LogFormat = opts.logFormat
	}
	if flags.Changed("workers") {
		s.Workers = opts.workers
	}
	if flags.Changed("max-frames") {
		s.MaxFrames = opts.maxFrames
	}
	if flags.Changed("strict") {
		s.Strict = opts.strict
	}
	if flags.Changed("no-crc") {
		s.VerifyOggCRC = !opts.noCRC
	}
	if flags.Changed("frames") {
		s.IncludeFrames = opts.frames
	}
	if flags.Changed("show-skipped") {
		s.ShowSkippedBytes = opts.showSkipped
	}
	if opts.reportFile != "" {
		s.ReportFileName = opts.reportFile
	}
	if opts.stdout {
		s.ReportFileName = "-"
	}
	return s, s.Validate()
}

func newLogger(w io.Writer, s settings.Settings) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil || s.LogLevel == "" {
		lvl = zerolog.InfoLevel
	}

	if s.LogFormat != "json" {
		console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
		if f, ok := w.(*os.File); ok {
			console.NoColor = !isatty.IsTerminal(f.Fd())
		} else {
			console.NoColor = true
		}
		w = console
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// scanFiles scans paths concurrently. A file that fails to read or decode is
// reported in its FileResult; only cancellation aborts the whole run.
func scanFiles(ctx context.Context, log zerolog.Logger, paths []string, s settings.Settings) ([]report.FileResult, error) {
	results := make([]report.FileResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i] = scanFile(ctx, log.With().Str("file", filepath.Base(path)).Logger(), path, s)
			if errors.Is(results[i].Err, context.Canceled) {
				return results[i].Err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func scanFile(ctx context.Context, log zerolog.Logger, path string, s settings.Settings) report.FileResult {
	fr := report.FileResult{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		fr.Err = err
		log.Error().Err(err).Msg("read failed")
		return fr
	}
	fr.Size = int64(len(data))

	scanOpts := scan.DefaultOptions()
	scanOpts.Logger = log
	scanOpts.Strict = s.Strict
	scanOpts.MaxFrames = s.MaxFrames
	scanOpts.VerifyOggCRC = s.VerifyOggCRC
	scanOpts.HeaderWindow = s.HeaderWindow

	log.Debug().Int64("size", fr.Size).Msg("scanning")
	fr.Result, fr.Err = scan.Scan(ctx, data, scanOpts)
	if fr.Err != nil {
		log.Error().Err(fr.Err).Msg("scan failed")
		return fr
	}
	log.Info().
		Str("container", fr.Result.Container).
		Str("codec", fr.Result.Stream.CodecName()).
		Int("frames", fr.Result.Frames).
		Int("errors", len(fr.Result.Errors)).
		Msg("scan complete")
	return fr
}

func runSelfUpdate(ctx context.Context, out io.Writer) error {
	if version == "" || version == "dev" {
		return errors.New("self-update is only available in release builds")
	}

	if _, err := semver.ParseTolerant(version); err != nil {
		return fmt.Errorf("could not parse version: %w", err)
	}

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug("s0up4200/go-audiohdr"))
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s/%s could not be found from github repository", "s0up4200/go-audiohdr", version)
	}

	if latest.LessOrEqual(version) {
		fmt.Fprintf(out, "Current binary is the latest version: %s\n", version)
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}

	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}

	fmt.Fprintf(out, "Successfully updated to version: %s\n", latest.Version())
	return nil
}
