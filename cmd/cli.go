// SPDX-License-Identifier: MIT

// Package cmd parses the command line into Options for main to execute.
package cmd

import (
	"fmt"
	"strings"
	"time"

	"microfeatures/internal/config"
	"microfeatures/pkg/build"
	"microfeatures/pkg/frontend"

	"github.com/spf13/cobra"
)

// Commands main knows how to run.
const (
	CommandExtract = "extract"
	CommandListen  = "listen"
	CommandList    = "list"
	CommandConfig  = "config"
	CommandVersion = "version"
)

// Options is the parsed command line. Config holds the loaded file with
// every explicitly set flag applied on top.
type Options struct {
	Command    string
	ConfigPath string
	Config     *config.Config

	// extract
	Input  string
	Output string // "-" for stdout

	// listen
	Pick     bool
	Duration time.Duration // 0 runs until interrupted

	// list
	Interactive bool
}

// flagValues collects flag targets before they are merged into the config.
type flagValues struct {
	logLevel string
	channels int
	parity   string
	pcan     bool
	logScale bool

	format  string
	raw     bool
	quality string

	device     int
	lowLatency bool
	tui        bool
	record     bool
	outputDir  string
	bitDepth   int
	gate       float64
	udp        string
	ws         string
	encoding   string
}

// ParseArgs parses args (without the program name).
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{Output: "-"}
	var fv flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(options.ConfigPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, cfg, &fv); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			options.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&options.ConfigPath, "config", "c", "", "Path to a YAML config file (default: ./config.yaml if present)")
	pf.StringVar(&fv.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	pf.IntVar(&fv.channels, "channels", frontend.DefaultNumChannels, "Number of filterbank channels")
	pf.StringVar(&fv.parity, "parity", string(frontend.ParityChannel), "Noise smoothing parity: channel or frame")
	pf.BoolVar(&fv.pcan, "pcan", true, "Enable per-channel amplitude normalization")
	pf.BoolVar(&fv.logScale, "log-scale", true, "Enable log compression of the output")

	// Extract
	extractCmd := &cobra.Command{
		Use:   "extract <input.wav>",
		Short: "Compute features for a WAV file",
		Long: "Compute features for a WAV file. Inputs that are not 16-bit mono at the\n" +
			"frontend sample rate are downmixed and resampled first.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandExtract
			options.Input = args[0]
			return nil
		},
	}
	ef := extractCmd.Flags()
	ef.StringVarP(&options.Output, "output", "o", "-", "Output file, '-' for stdout")
	ef.StringVarP(&fv.format, "format", "f", config.DefaultExportFormat, "Output format: csv, jsonl, msgpack")
	ef.BoolVar(&fv.raw, "raw", false, "Write fixed-point values instead of scaled features")
	ef.StringVarP(&fv.quality, "quality", "q", config.DefaultResampleQuality, "Resampling quality: quick, low, medium, high, veryhigh")
	rootCmd.AddCommand(extractCmd)

	// Listen
	listenCmd := &cobra.Command{
		Use:   "listen",
		Short: "Compute features from a live input device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandListen
			return nil
		},
	}
	lf := listenCmd.Flags()
	lf.IntVarP(&fv.device, "device", "d", config.DefaultInputDevice,
		"Input device ID, -1 for the system default. Use 'list' to see devices.")
	lf.BoolVarP(&options.Pick, "pick", "p", false, "Choose the input device interactively")
	lf.BoolVarP(&fv.lowLatency, "low-latency", "l", config.DefaultLowLatency, "Use the device's low input latency")
	lf.BoolVarP(&fv.tui, "tui", "t", config.DefaultTUI, "Show the live feature monitor")
	lf.BoolVarP(&fv.record, "record", "r", config.DefaultRecordingEnabled, "Record the captured audio to WAV")
	lf.StringVar(&fv.outputDir, "output-dir", config.DefaultRecordingDir, "Directory for recordings")
	lf.IntVar(&fv.bitDepth, "bit-depth", config.DefaultBitDepth, "Recording bit depth: 16 or 24")
	lf.Float64VarP(&fv.gate, "gate", "g", config.DefaultGateThreshold,
		"Enable the publishing gate at this peak level (0.0-1.0)")
	lf.StringVar(&fv.udp, "udp", "", "Publish features over UDP to host:port")
	lf.StringVar(&fv.ws, "ws", "", "Serve features to websocket clients on this address")
	lf.StringVar(&fv.encoding, "ws-encoding", config.DefaultWSEncoding, "Websocket encoding: json or msgpack")
	lf.DurationVar(&options.Duration, "duration", 0, "Stop after this long, e.g. 30s")
	rootCmd.AddCommand(listenCmd)

	// List
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandList
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&options.Interactive, "interactive", "i", false, "Browse devices in a TUI")
	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandConfig
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandVersion
			return nil
		},
	})

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// applyFlags copies explicitly set flags over the file configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config, fv *flagValues) error {
	changed := cmd.Flags().Changed

	if changed("log-level") {
		cfg.LogLevel = strings.ToLower(fv.logLevel)
	}
	if changed("channels") {
		cfg.Frontend.Filterbank.NumChannels = fv.channels
	}
	if changed("parity") {
		p, err := frontend.ParseParity(fv.parity)
		if err != nil {
			return err
		}
		cfg.Frontend.NoiseReduction.Parity = p
	}
	if changed("pcan") {
		cfg.Frontend.PCAN.Enable = fv.pcan
	}
	if changed("log-scale") {
		cfg.Frontend.LogScale.Enable = fv.logScale
	}

	if changed("format") {
		cfg.Export.Format = fv.format
	}
	if changed("raw") {
		cfg.Export.Raw = fv.raw
	}
	if changed("quality") {
		cfg.Export.ResampleQuality = fv.quality
	}

	if changed("device") {
		cfg.Capture.InputDevice = fv.device
	}
	if changed("low-latency") {
		cfg.Capture.LowLatency = fv.lowLatency
	}
	if changed("tui") {
		cfg.Capture.TUI = fv.tui
	}
	if changed("gate") {
		cfg.Capture.GateEnabled = true
		cfg.Capture.GateThreshold = fv.gate
	}
	if changed("record") {
		cfg.Recording.Enabled = fv.record
	}
	if changed("output-dir") {
		cfg.Recording.OutputDir = fv.outputDir
	}
	if changed("bit-depth") {
		cfg.Recording.BitDepth = fv.bitDepth
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = fv.udp != ""
		cfg.Transport.UDPTargetAddress = fv.udp
	}
	if changed("ws") {
		cfg.Transport.WSEnabled = fv.ws != ""
		cfg.Transport.WSAddress = fv.ws
	}
	if changed("ws-encoding") {
		cfg.Transport.WSEncoding = fv.encoding
	}
	return nil
}
