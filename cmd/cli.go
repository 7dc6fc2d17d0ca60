// SPDX-License-Identifier: MIT
//
// Package cmd parses the command line into the configuration the
// application runs with.
package cmd

import (
	"os"
	"time"

	"spectra/internal/config"
	"spectra/pkg/build"

	"github.com/spf13/cobra"
)

// Commands other than running the pipeline.
const (
	CommandList    = "list"
	CommandVersion = "version"
	// CommandNone means cobra already answered, e.g. --help.
	CommandNone = "none"
)

// MonitorConsumerID names the consumer --monitor adds.
const MonitorConsumerID = "monitor"

// Options is the parsed command line.
type Options struct {
	Command     string // empty runs the pipeline
	Interactive bool   // list: pick a device in the terminal
	ConfigPath  string // resolved file, empty when running on defaults
	OutputFile  string // recording file name inside the output directory
	Config      *config.Config

	overrides []func(*config.Config)
}

// Apply re-applies the command line flags to cfg, so a reloaded file does
// not undo them, and validates the result.
func (o *Options) Apply(cfg *config.Config) error {
	for _, fn := range o.overrides {
		fn(cfg)
	}
	return cfg.Validate()
}

// ParseArgs parses args (without the program name) and loads the
// configuration they point at.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}

	var (
		device     int
		sampleRate float64
		file       string
		fps        float64
		logLevel   string
		monitor    bool
		record     bool
		ran        bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   CommandList,
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandList
			ran = true
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&options.Interactive, "interactive", "i", false,
		"Pick an input device and sample rate in the terminal")
	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandVersion,
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandVersion
			ran = true
			return nil
		},
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&options.ConfigPath, "config", "c", "",
		"Configuration file (default ./config.yaml when present)")
	flags.IntVarP(&device, "device", "d", config.MinDeviceID,
		"Input device ID. Use the 'list' command to see available devices.")
	flags.Float64VarP(&sampleRate, "sample-rate", "s", 0,
		"Capture sample rate, measured in Hertz (Hz)")
	flags.StringVarP(&file, "file", "f", "",
		"Analyze an audio file (wav, mp3, flac, ogg) instead of capturing")
	flags.Float64Var(&fps, "fps", 0,
		"Cap the frame rate, 0 renders once per display refresh")
	flags.StringVarP(&logLevel, "log-level", "L", "",
		"Log level: debug, info, warn or error")
	flags.BoolVarP(&monitor, "monitor", "m", false,
		"Show the spectrum in the terminal")
	flags.BoolVarP(&record, "record", "r", false,
		"Record the audio input")
	flags.StringVarP(&options.OutputFile, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	if !ran {
		options.Command = CommandNone
		return options, nil
	}

	changed := func(name string) bool { return rootCmd.PersistentFlags().Changed(name) }
	if changed("device") {
		options.overrides = append(options.overrides, func(c *config.Config) { c.Audio.InputDevice = device })
	}
	if changed("sample-rate") {
		options.overrides = append(options.overrides, func(c *config.Config) { c.Audio.SampleRate = sampleRate })
	}
	if changed("file") {
		options.overrides = append(options.overrides, func(c *config.Config) { c.Audio.File = file })
	}
	if changed("fps") {
		options.overrides = append(options.overrides, func(c *config.Config) { c.Scheduler.FPS = fps })
	}
	if changed("log-level") {
		options.overrides = append(options.overrides, func(c *config.Config) { c.LogLevel = logLevel })
	}
	if monitor {
		options.overrides = append(options.overrides, addMonitorConsumer)
	}
	if record {
		options.overrides = append(options.overrides, func(c *config.Config) { c.Recording.Enabled = true })
	}

	if options.ConfigPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			options.ConfigPath = "config.yaml"
		}
	}

	// Listing devices and printing the version need no configuration.
	if options.Command != "" {
		return options, nil
	}

	// Validation waits for the flags, one may fix an invalid value.
	cfg, err := config.Read(options.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := options.Apply(cfg); err != nil {
		return nil, err
	}
	options.Config = cfg

	if options.OutputFile == "" {
		options.OutputFile = "recording-" +
			time.Now().UTC().Format("02-01-2006-150405") +
			"." + cfg.Recording.Format
	}
	return options, nil
}

func addMonitorConsumer(c *config.Config) {
	if _, ok := c.Consumer(MonitorConsumerID); ok {
		return
	}
	c.Consumers = append(c.Consumers, config.ConsumerConfig{
		ID:            MonitorConsumerID,
		Smoothing:     0.5,
		BufferLength:  4,
		Sink:          config.SinkMonitor,
		BeatDetection: true,
	})
}
