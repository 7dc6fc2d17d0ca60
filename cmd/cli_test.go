// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spectra/internal/config"
)

// inTempDir runs the test from an empty directory so a stray config.yaml
// is not picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestParseArgsDefaults(t *testing.T) {
	inTempDir(t)
	opts, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	if opts.Command != "" || opts.ConfigPath != "" {
		t.Errorf("options = %+v", opts)
	}
	if opts.Config.Audio.InputDevice != config.MinDeviceID {
		t.Errorf("device = %d", opts.Config.Audio.InputDevice)
	}
	if !strings.HasPrefix(opts.OutputFile, "recording-") || !strings.HasSuffix(opts.OutputFile, ".wav") {
		t.Errorf("OutputFile = %q", opts.OutputFile)
	}
}

func TestParseArgsFlags(t *testing.T) {
	inTempDir(t)
	opts, err := ParseArgs([]string{
		"--device", "3", "--sample-rate", "48000", "--fps", "30",
		"--log-level", "debug", "--monitor", "--record", "-o", "take.wav",
		"--file", "song.flac",
	})
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	c := opts.Config
	if c.Audio.InputDevice != 3 || c.Audio.SampleRate != 48000 || c.Scheduler.FPS != 30 {
		t.Errorf("audio = %+v, scheduler = %+v", c.Audio, c.Scheduler)
	}
	if c.LogLevel != "debug" || !c.Recording.Enabled || opts.OutputFile != "take.wav" {
		t.Errorf("log level %q, recording %v, output %q", c.LogLevel, c.Recording.Enabled, opts.OutputFile)
	}
	if c.Audio.File != "song.flac" {
		t.Errorf("file = %q", c.Audio.File)
	}
	mc, ok := c.Consumer(MonitorConsumerID)
	if !ok || mc.Sink != config.SinkMonitor {
		t.Errorf("monitor consumer = %+v, %v", mc, ok)
	}
}

func TestParseArgsConfigFile(t *testing.T) {
	dir := inTempDir(t)
	yaml := "scheduler:\n  fps: 24\naudio:\n  input_device: 1\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := ParseArgs([]string{"--device", "2"})
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	if opts.ConfigPath != "config.yaml" {
		t.Errorf("ConfigPath = %q, want the file in the working directory", opts.ConfigPath)
	}
	if opts.Config.Scheduler.FPS != 24 {
		t.Errorf("fps = %v, want 24 from the file", opts.Config.Scheduler.FPS)
	}
	if opts.Config.Audio.InputDevice != 2 {
		t.Errorf("device = %d, the flag must win over the file", opts.Config.Audio.InputDevice)
	}

	// A reloaded file keeps the flag.
	reloaded := config.Default()
	reloaded.Audio.InputDevice = 7
	if err := opts.Apply(reloaded); err != nil {
		t.Fatal(err)
	}
	if reloaded.Audio.InputDevice != 2 {
		t.Errorf("device after reload = %d, want 2", reloaded.Audio.InputDevice)
	}
}

func TestParseArgsInvalid(t *testing.T) {
	inTempDir(t)
	_, err := ParseArgs([]string{"--sample-rate", "100"})
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("ParseArgs() error = %v, want ErrInvalid", err)
	}
	if _, err := ParseArgs([]string{"--config", "missing.yaml"}); err == nil {
		t.Error("expected error for a missing config file")
	}
	if _, err := ParseArgs([]string{"--bogus"}); err == nil {
		t.Error("expected error for an unknown flag")
	}
}

func TestParseArgsCommands(t *testing.T) {
	inTempDir(t)
	tests := []struct {
		args        []string
		command     string
		interactive bool
	}{
		{[]string{"list"}, CommandList, false},
		{[]string{"list", "-i"}, CommandList, true},
		{[]string{"version"}, CommandVersion, false},
		{[]string{"--help"}, CommandNone, false},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			opts, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("ParseArgs() error = %v", err)
			}
			if opts.Command != tt.command || opts.Interactive != tt.interactive {
				t.Errorf("command %q interactive %v", opts.Command, opts.Interactive)
			}
			if opts.Config != nil {
				t.Error("commands do not load a configuration")
			}
		})
	}
}
