// SPDX-License-Identifier: MIT
package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spectra/internal/scale"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if len(cfg.Consumers) != 1 || cfg.Consumers[0].ID != "main" {
		t.Errorf("default consumers = %+v", cfg.Consumers)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
processing:
  gain_percent: 25
  scale:
    function: power
    exponent: 3
scheduler:
  fps: 30
consumers:
  - id: bars
    smoothing: 0.8
    buffer_length: 6
    sink: udp
  - id: wave
    smoothing: 0.1
    buffer_length: 1
    sink: log
transport:
  udp:
    enabled: true
    target_address: 10.0.0.2:7000
    send_interval: 20ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Processing.GainPercent != 25 || cfg.Scheduler.FPS != 30 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Processing.Scale.LogarithmBase != scale.DefaultLogarithmBase {
		t.Errorf("omitted scale field lost its default: %v", cfg.Processing.Scale.LogarithmBase)
	}
	if len(cfg.Consumers) != 2 || cfg.Consumers[1].ID != "wave" {
		t.Errorf("consumers = %+v, want the file's list", cfg.Consumers)
	}
	if cfg.Transport.UDP.SendInterval != 20*time.Millisecond {
		t.Errorf("send_interval = %v", cfg.Transport.UDP.SendInterval)
	}

	opts := cfg.PreprocessOptions()
	if opts.Scale.Function != scale.Power || opts.Scale.Exponent != 3 || opts.Channels != 2 {
		t.Errorf("PreprocessOptions = %+v", opts)
	}
	if c, ok := cfg.Consumer("bars"); !ok || c.BufferLength != 6 {
		t.Errorf("Consumer(bars) = %+v, %v", c, ok)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENV_FPS", "24")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "10ms")
	t.Setenv("ENV_SCALE_FUNCTION", "logarithm")
	t.Setenv("ENV_GAIN_PERCENT", "not-a-number")

	cfg, err := LoadConfig(writeTempConfig(t, "processing:\n  gain_percent: 10\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Scheduler.FPS != 24 || !cfg.Transport.UDP.Enabled || cfg.Transport.UDP.SendInterval != 10*time.Millisecond {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Scheduler, cfg.Transport.UDP)
	}
	if cfg.Processing.Scale.Function != "logarithm" {
		t.Errorf("scale function = %q", cfg.Processing.Scale.Function)
	}
	if cfg.Processing.GainPercent != 10 {
		t.Errorf("unparsable override replaced the file value: %v", cfg.Processing.GainPercent)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"buffer not power of two", func(c *Config) { c.Audio.FramesPerBuffer = 1000 }, "frames_per_buffer"},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 100 }, "sample_rate"},
		{"window", func(c *Config) { c.Audio.FFTWindow = "square" }, "fft_window"},
		{"history window", func(c *Config) { c.Processing.HistoryWindowSize = 0 }, "history_window_size"},
		{"duplicate consumer", func(c *Config) { c.Consumers = append(c.Consumers, c.Consumers[0]) }, "duplicated"},
		{"smoothing range", func(c *Config) { c.Consumers[0].Smoothing = 1.5 }, "smoothing"},
		{"buffer length", func(c *Config) { c.Consumers[0].BufferLength = 0 }, "buffer_length"},
		{"sink", func(c *Config) { c.Consumers[0].Sink = "printer" }, "unknown sink"},
		{"udp address", func(c *Config) {
			c.Transport.UDP.Enabled = true
			c.Transport.UDP.TargetAddress = "localhost"
		}, "target_address"},
		{"ws path", func(c *Config) { c.Transport.WebSocket.Path = "spectrum" }, "path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error %q does not mention %q", err, tt.substr)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestUnknownScaleFunctionFallsBack(t *testing.T) {
	cfg := Default()
	cfg.Processing.Scale.Function = "cubic-spline"
	if got := cfg.PreprocessOptions().Scale.Function; got != scale.Linear {
		t.Errorf("unknown scale = %v, want linear", got)
	}
}

func TestSpectrumConfig(t *testing.T) {
	sc, err := Default().Audio.Spectrum()
	if err != nil {
		t.Fatal(err)
	}
	if sc.FFTSize != 1024 || sc.Bins != 64 || sc.InputChannels != 2 {
		t.Errorf("Spectrum() = %+v", sc)
	}
	if d := Default().RefreshInterval(); d < 16*time.Millisecond || d > 17*time.Millisecond {
		t.Errorf("RefreshInterval = %v", d)
	}
}

func TestWatchReloads(t *testing.T) {
	path := writeTempConfig(t, "scheduler:\n  fps: 10\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, 20*time.Millisecond, func(c *Config) { got <- c }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid file is ignored.
	if err := os.WriteFile(path, []byte("scheduler:\n  fps: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("scheduler:\n  fps: 45\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// A reload may observe the file mid-write; wait for the final content.
	timeout := time.After(3 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case cfg := <-got:
			if cfg.Scheduler.FPS < 0 {
				t.Fatalf("invalid configuration was delivered: %+v", cfg.Scheduler)
			}
			reloaded = cfg.Scheduler.FPS == 45
		case <-timeout:
			t.Fatal("no reload after the file changed")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Watch did not return after cancel")
	}
}
