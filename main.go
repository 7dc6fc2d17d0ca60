// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"spectra/cmd"
	"spectra/internal/audio"
	"spectra/internal/config"
	"spectra/internal/frame"
	applog "spectra/internal/log"
	"spectra/internal/pipeline"
	"spectra/internal/tui"
	"spectra/pkg/build"

	tea "github.com/charmbracelet/bubbletea"
)

// logFile receives the log while the terminal monitor owns the screen.
const logFile = "spectra.log"

// main is the entry point for the spectrum pipeline.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the configuration
//   - Execute one-off commands if requested
//   - Open the audio source and build every consumer's sink
//
// 2. Concurrent Phase (Hot Path):
//   - Audio callback (or file pacing) feeding the pipeline queue
//   - Refresh driver flushing the frame scheduler
//   - Config watcher staging live reconfiguration
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals, the monitor quitting or the file ending
//   - Stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}

	switch opts.Command {
	case cmd.CommandNone:
		return
	case cmd.CommandVersion:
		fmt.Println(build.GetBuildFlags())
		return
	case cmd.CommandList:
		if err := listDevices(opts.Interactive); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	if err := run(opts); err != nil {
		applog.Fatalf("%v", err)
	}
}

// listDevices prints the host devices, or lets the user pick one.
func listDevices(interactive bool) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if !interactive {
		return audio.ListDevices(os.Stdout)
	}
	sel, err := tui.PickDevice()
	if err != nil || sel == nil {
		return err
	}
	fmt.Printf("Selected [%d] %s at %.0f Hz\n", sel.Device.ID, sel.Device.Name, sel.SampleRate)
	fmt.Printf("Run: %s --device %d --sample-rate %.0f\n",
		build.GetBuildFlags().Name, sel.Device.ID, sel.SampleRate)
	return nil
}

func setLogLevel(name string) {
	if level, ok := applog.ParseLevel(name); ok {
		applog.SetLevel(level)
	}
}

func usesMonitor(cfg *config.Config) bool {
	for _, cc := range cfg.Consumers {
		if cc.Sink == config.SinkMonitor {
			return true
		}
	}
	return false
}

// openSource returns the file source when a file is configured, the
// capture engine otherwise. PortAudio is initialized for the engine only,
// the returned cleanup terminates it.
func openSource(cfg *config.Config) (audio.Source, func(), error) {
	if cfg.Audio.File != "" {
		fs, err := audio.OpenFile(cfg.Audio)
		if err != nil {
			return nil, nil, err
		}
		applog.Infof("Audio: Playing %s", fs.Info())
		if err := fs.SetBitDepth(cfg.Recording.BitDepth); err != nil {
			fs.Close()
			return nil, nil, err
		}
		return fs, func() {}, nil
	}

	if err := audio.Initialize(); err != nil {
		return nil, nil, err
	}
	engine, err := audio.NewEngine(cfg.Audio)
	if err != nil {
		audio.Terminate()
		return nil, nil, err
	}
	if err := engine.SetBitDepth(cfg.Recording.BitDepth); err != nil {
		engine.Close()
		audio.Terminate()
		return nil, nil, err
	}
	return engine, func() { audio.Terminate() }, nil
}

func run(opts *cmd.Options) error {
	cfg := opts.Config
	setLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, terminate, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer terminate()
	defer func() {
		if cerr := src.Close(); cerr != nil {
			applog.Errorf("Error closing audio source: %v", cerr)
		}
	}()

	sched := frame.New()
	drv := frame.NewDriver(sched, cfg.RefreshInterval())
	pipe, err := pipeline.New(cfg, src, sched, drv.Now)
	if err != nil {
		return err
	}

	// The monitor owns the terminal, the log goes to a file meanwhile.
	var program *tea.Program
	if usesMonitor(cfg) {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening %s: %w", logFile, err)
		}
		defer f.Close()
		applog.SetOutput(f)
		defer applog.SetOutput(os.Stderr)

		status := func() string {
			s := pipe.Stats()
			return fmt.Sprintf("dropped %d", s.Dropped)
		}
		program = tea.NewProgram(tui.NewMonitor(build.GetBuildFlags().Name, status), tea.WithAltScreen())
	}

	var sender tui.Sender
	if program != nil {
		sender = program
	}
	out := newSinks(cfg, sender)
	defer func() {
		if cerr := out.Close(); cerr != nil {
			applog.Errorf("Error closing sinks: %v", cerr)
		}
	}()
	for _, cc := range cfg.Consumers {
		sink, err := out.forConsumer(cc)
		if err != nil {
			return err
		}
		if _, err := pipe.AddConsumer(cc, sink); err != nil {
			return err
		}
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	if err := pipe.Start(); err != nil {
		return err
	}
	defer pipe.Stop()
	drv.Start()
	defer drv.Stop()

	// CRITICAL: Start of real-time audio processing
	// Starting the source begins the callbacks that feed the pipeline.
	if err := src.Start(); err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
			return fmt.Errorf("creating recording directory: %w", err)
		}
		path := filepath.Join(cfg.Recording.OutputDir, opts.OutputFile)
		if err := src.StartRecording(path); err != nil {
			return err
		}
		defer func() {
			if err := src.StopRecording(); err != nil {
				applog.Errorf("Error stopping recording: %v", err)
				return
			}
			applog.Infof("Recording saved to: %s", path)
		}()
	}

	if opts.ConfigPath != "" {
		go func() {
			err := config.Watch(ctx, opts.ConfigPath, config.DefaultWatchDebounce, func(next *config.Config) {
				if err := opts.Apply(next); err != nil {
					applog.Warnf("Config: ignoring reload: %v", err)
					return
				}
				setLogLevel(next.LogLevel)
				pipe.Reconfigure(next)
			})
			if err != nil {
				applog.Warnf("Config: live reload disabled: %v", err)
			}
		}()
	}

	var ended <-chan struct{}
	if fs, ok := src.(*audio.FileSource); ok {
		ended = fs.Ended()
	}

	if program != nil {
		go func() {
			select {
			case <-ctx.Done():
			case <-ended:
			}
			program.Quit()
		}()
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
	} else {
		applog.Infof("Running, press Ctrl+C to stop. '%s --help' for usage information.", build.GetBuildFlags().Name)
		select {
		case <-ctx.Done():
		case <-ended:
			applog.Infof("Audio: End of file")
		}
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================
	// Deferred in reverse: recording, driver, pipeline, sinks, source.

	s := pipe.Stats()
	applog.Infof("Pipeline: ingested %d, dropped %d, processed %d, failed %d",
		s.Ingested, s.Dropped, s.Processed, s.Failed)
	return nil
}
