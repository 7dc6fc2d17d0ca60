// SPDX-License-Identifier: MIT
//
// Package config loads the runtime configuration: built-in defaults, then an
// optional YAML file, then ENV_ overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"spectra/internal/analysis"
	"spectra/internal/history"
	applog "spectra/internal/log"
	"spectra/internal/preprocess"
	"spectra/internal/scale"
	"spectra/internal/smooth"
	"spectra/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Hardware and processing limits.
const (
	MinDeviceID     = -1 // -1 represents the system default device
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
)

// Sink names a consumer can send to.
const (
	SinkWebSocket = "websocket"
	SinkUDP       = "udp"
	SinkLog       = "log"
	SinkMonitor   = "monitor"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel   string           `yaml:"log_level"` // "debug", "info", "warn", "error".
	Audio      AudioConfig      `yaml:"audio"`
	Processing ProcessingConfig `yaml:"processing"`
	History    HistoryConfig    `yaml:"history"`
	Smoothing  SmoothingConfig  `yaml:"smoothing"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Consumers  []ConsumerConfig `yaml:"consumers"`
	Transport  TransportConfig  `yaml:"transport"`
	Recording  RecordingConfig  `yaml:"recording"`
}

// AudioConfig holds settings related to audio input and spectrum analysis.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	File            string  `yaml:"file"`              // Play this file instead of capturing (wav, mp3, flac, ogg).
	Loop            bool    `yaml:"loop"`              // Restart the file at its end.
	SampleRate      float64 `yaml:"sample_rate"`       // Capture sample rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback, also the FFT size.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency from PortAudio.
	InputChannels   int     `yaml:"input_channels"`    // 1 for mono, 2 for stereo.
	FFTWindow       string  `yaml:"fft_window"`        // "Hann", "Hamming", ...
	Bins            int     `yaml:"bins"`              // Bands per channel in every tick.
	MinFrequency    float64 `yaml:"min_frequency"`
	MaxFrequency    float64 `yaml:"max_frequency"`
	GateEnabled     bool    `yaml:"gate_enabled"`
	GateThreshold   float64 `yaml:"gate_threshold"` // 0-1 of full scale.
}

// ScaleConfig selects the response curve.
type ScaleConfig struct {
	Function          string  `yaml:"function"`
	Exponent          float64 `yaml:"exponent"`
	ExponentialBase   float64 `yaml:"exponential_base"`
	LogarithmBase     float64 `yaml:"logarithm_base"`
	LogarithmWeight   float64 `yaml:"logarithm_weight"`
	GaussianMean      float64 `yaml:"gaussian_mean"`
	GaussianDeviation float64 `yaml:"gaussian_deviation"`
}

// ProcessingConfig is the live preprocessor configuration.
type ProcessingConfig struct {
	Enabled           bool        `yaml:"enabled"` // false pushes silent frames instead.
	CorrectSamples    bool        `yaml:"correct_samples"`
	GainPercent       float64     `yaml:"gain_percent"`
	ThresholdPermille float64     `yaml:"threshold_permille"`
	Scale             ScaleConfig `yaml:"scale"`
	Normalize         bool        `yaml:"normalize"`
	HistoryWindowSize int         `yaml:"history_window_size"`
	PeakWeightBase    float64     `yaml:"peak_weight_base"`
}

// HistoryConfig tunes the temporal history, all values in ms.
type HistoryConfig struct {
	Retention  float64 `yaml:"retention_ms"`
	MaxDelay   float64 `yaml:"max_delay_ms"`
	DelayDecay float64 `yaml:"delay_decay_ms"`
}

// SmoothingConfig tunes the reduction shared by every consumer.
type SmoothingConfig struct {
	WeightBase float64 `yaml:"weight_base"`
}

// SchedulerConfig controls the frame scheduler and its driver.
type SchedulerConfig struct {
	FPS         float64 `yaml:"fps"`          // Flush cap, 0 for one flush per refresh.
	RefreshRate float64 `yaml:"refresh_rate"` // Driver ticks per second.
}

// ConsumerConfig describes one independently smoothed output.
type ConsumerConfig struct {
	ID            string  `yaml:"id"`
	Smoothing     float64 `yaml:"smoothing"`     // 0-1
	BufferLength  int     `yaml:"buffer_length"` // Frames in the smoothing window.
	Sink          string  `yaml:"sink"`          // websocket, udp, log, monitor
	BeatDetection bool    `yaml:"beat_detection"`
}

// TransportConfig holds settings related to sending frames over the network.
type TransportConfig struct {
	WebSocket WebSocketConfig `yaml:"websocket"`
	UDP       UDPConfig       `yaml:"udp"`
	MDNS      MDNSConfig      `yaml:"mdns"`
}

// WebSocketConfig configures the broadcast server.
type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // listen address, e.g. ":8080"
	Path    string `yaml:"path"`
}

// UDPConfig configures the binary frame publisher.
type UDPConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TargetAddress string        `yaml:"target_address"`
	SendInterval  time.Duration `yaml:"send_interval"`
}

// MDNSConfig configures LAN advertisement of the websocket endpoint.
type MDNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
	Service  string `yaml:"service"`
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	Format    string `yaml:"format"`
	BitDepth  int    `yaml:"bit_depth"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			SampleRate:      44100,
			FramesPerBuffer: 1024,
			InputChannels:   2,
			FFTWindow:       "Hann",
			Bins:            analysis.DefaultBins,
			MinFrequency:    analysis.DefaultMinHz,
			MaxFrequency:    analysis.DefaultMaxHz,
			GateEnabled:     true,
			GateThreshold:   0.001,
		},
		Processing: ProcessingConfig{
			Enabled:        true,
			CorrectSamples: true,
			Scale: ScaleConfig{
				Function:          scale.Linear.String(),
				Exponent:          scale.DefaultExponent,
				ExponentialBase:   scale.DefaultExponentialBase,
				LogarithmBase:     scale.DefaultLogarithmBase,
				LogarithmWeight:   scale.DefaultLogarithmWeight,
				GaussianMean:      scale.DefaultGaussianMean,
				GaussianDeviation: scale.DefaultGaussianDeviation,
			},
			Normalize:         true,
			HistoryWindowSize: preprocess.DefaultHistoryWindowSize,
			PeakWeightBase:    preprocess.DefaultPeakWeightBase,
		},
		History: HistoryConfig{
			Retention:  history.DefaultRetention,
			MaxDelay:   history.DefaultMaxDelay,
			DelayDecay: history.DefaultDelayDecay,
		},
		Smoothing: SmoothingConfig{WeightBase: smooth.DefaultWeightBase},
		Scheduler: SchedulerConfig{FPS: 0, RefreshRate: 60},
		Consumers: []ConsumerConfig{
			{ID: "main", Smoothing: 0.5, BufferLength: 4, Sink: SinkWebSocket},
		},
		Transport: TransportConfig{
			WebSocket: WebSocketConfig{Enabled: true, Address: ":8080", Path: "/spectrum"},
			UDP: UDPConfig{
				Enabled:       false,
				TargetAddress: "127.0.0.1:9090",
				SendInterval:  33 * time.Millisecond,
			},
			MDNS: MDNSConfig{Enabled: false, Instance: "spectra", Service: "_spectra._tcp"},
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
			Format:    "wav",
			BitDepth:  32,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is LoadConfig without the validation, for callers that adjust the
// result first.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping the values of fields the document omits.
// An explicit consumers list replaces the default one.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate reports every problem at once, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		add("log_level %q is not a level", c.LogLevel)
	}

	a := c.Audio
	if a.InputDevice < MinDeviceID {
		add("audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		add("audio.sample_rate must be within %d-%d Hz, got %.0f", MinSampleRate, MaxSampleRate, a.SampleRate)
	}
	switch {
	case a.FramesPerBuffer < 64 || a.FramesPerBuffer > MaxBufferFrames:
		add("audio.frames_per_buffer must be a power of 2 within 64-%d, got %d", MaxBufferFrames, a.FramesPerBuffer)
	case !bitint.IsPowerOfTwo(a.FramesPerBuffer):
		add("audio.frames_per_buffer must be a power of 2, got %d (try %d)",
			a.FramesPerBuffer, bitint.NextPowerOfTwo(a.FramesPerBuffer))
	}
	if a.InputChannels < 1 || a.InputChannels > 2 {
		add("audio.input_channels must be 1 or 2, got %d", a.InputChannels)
	}
	if _, err := analysis.ParseWindowFunc(a.FFTWindow); err != nil {
		add("audio.fft_window: %v", err)
	}
	if a.Bins < 1 {
		add("audio.bins must be positive, got %d", a.Bins)
	}
	if a.MinFrequency <= 0 || a.MinFrequency >= a.MaxFrequency {
		add("audio frequency range %.0f-%.0f Hz is empty", a.MinFrequency, a.MaxFrequency)
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		add("audio.gate_threshold must be within 0-1, got %.3f", a.GateThreshold)
	}

	if c.Processing.HistoryWindowSize < 1 {
		add("processing.history_window_size must be at least 1, got %d", c.Processing.HistoryWindowSize)
	}
	if c.Processing.ThresholdPermille < 0 {
		add("processing.threshold_permille must not be negative")
	}
	if c.History.Retention <= 0 {
		add("history.retention_ms must be positive")
	}
	if c.History.MaxDelay < 0 || c.History.DelayDecay < 0 {
		add("history delays must not be negative")
	}
	if c.Scheduler.FPS < 0 {
		add("scheduler.fps must not be negative")
	}
	if c.Scheduler.RefreshRate <= 0 {
		add("scheduler.refresh_rate must be positive")
	}

	seen := make(map[string]bool, len(c.Consumers))
	for i, cc := range c.Consumers {
		if cc.ID == "" {
			add("consumers[%d].id is empty", i)
		} else if seen[cc.ID] {
			add("consumers[%d].id %q is duplicated", i, cc.ID)
		}
		seen[cc.ID] = true
		if cc.Smoothing < 0 || cc.Smoothing > 1 {
			add("consumer %q smoothing must be within 0-1, got %.2f", cc.ID, cc.Smoothing)
		}
		if cc.BufferLength < 1 {
			add("consumer %q buffer_length must be at least 1, got %d", cc.ID, cc.BufferLength)
		}
		switch cc.Sink {
		case SinkWebSocket, SinkUDP, SinkLog, SinkMonitor:
		default:
			add("consumer %q has unknown sink %q", cc.ID, cc.Sink)
		}
	}

	if u := c.Transport.UDP; u.Enabled {
		if !strings.Contains(u.TargetAddress, ":") {
			add("transport.udp.target_address %q appears invalid (missing port?)", u.TargetAddress)
		}
		if u.SendInterval < 0 {
			add("transport.udp.send_interval must not be negative")
		}
	}
	if w := c.Transport.WebSocket; w.Enabled && !strings.HasPrefix(w.Path, "/") {
		add("transport.websocket.path must start with '/', got %q", w.Path)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Curve converts the named curve. An unknown name is logged and
// replaced by linear.
func (s ScaleConfig) Curve() scale.Config {
	fn, err := scale.ParseFunction(s.Function)
	if err != nil {
		applog.Warnf("Config: %v, using %v", err, fn)
	}
	return scale.Config{
		Function:          fn,
		Exponent:          s.Exponent,
		ExponentialBase:   s.ExponentialBase,
		LogarithmBase:     s.LogarithmBase,
		LogarithmWeight:   s.LogarithmWeight,
		GaussianMean:      s.GaussianMean,
		GaussianDeviation: s.GaussianDeviation,
	}
}

// PreprocessOptions returns the preprocessor view of the processing section.
func (c *Config) PreprocessOptions() preprocess.Options {
	p := c.Processing
	return preprocess.Options{
		CorrectSamples:    p.CorrectSamples,
		GainPercent:       p.GainPercent,
		ThresholdPermille: p.ThresholdPermille,
		Scale:             p.Scale.Curve(),
		Normalize:         p.Normalize,
		HistoryWindowSize: p.HistoryWindowSize,
		PeakWeightBase:    p.PeakWeightBase,
		Channels:          analysis.OutputChannels,
	}
}

// HistoryOptions returns the history section as constructor options.
func (c *Config) HistoryOptions() []history.Option {
	return []history.Option{
		history.WithRetention(c.History.Retention),
		history.WithMaxDelay(c.History.MaxDelay),
		history.WithDelayDecay(c.History.DelayDecay),
	}
}

// RefreshInterval is the driver tick period.
func (c *Config) RefreshInterval() time.Duration {
	if c.Scheduler.RefreshRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.Scheduler.RefreshRate)
}

// Spectrum returns the analysis layout of the audio section.
func (a AudioConfig) Spectrum() (analysis.SpectrumConfig, error) {
	win, err := analysis.ParseWindowFunc(a.FFTWindow)
	if err != nil {
		return analysis.SpectrumConfig{}, err
	}
	return analysis.SpectrumConfig{
		FFTSize:       a.FramesPerBuffer,
		SampleRate:    a.SampleRate,
		Window:        win,
		InputChannels: a.InputChannels,
		Bins:          a.Bins,
		MinHz:         a.MinFrequency,
		MaxHz:         a.MaxFrequency,
	}, nil
}

// Consumer returns the consumer with the given id.
func (c *Config) Consumer(id string) (ConsumerConfig, bool) {
	for _, cc := range c.Consumers {
		if cc.ID == id {
			return cc, true
		}
	}
	return ConsumerConfig{}, false
}

// applyEnvOverrides applies ENV_ variables on top of the file. Values that do
// not parse are logged and ignored.
func (c *Config) applyEnvOverrides() {
	str := func(key string, dst *string) {
		if val, ok := os.LookupEnv(key); ok {
			*dst = val
			applog.Infof("Config: Overriding %s from env: %s", key, val)
		}
	}
	boolean := func(key string, dst *bool) {
		if val, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				applog.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
				return
			}
			*dst = b
			applog.Infof("Config: Overriding %s from env: %v", key, b)
		}
	}
	number := func(key string, dst *float64) {
		if val, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				applog.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
				return
			}
			*dst = f
			applog.Infof("Config: Overriding %s from env: %v", key, f)
		}
	}
	integer := func(key string, dst *int) {
		if val, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(val)
			if err != nil {
				applog.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
				return
			}
			*dst = n
			applog.Infof("Config: Overriding %s from env: %d", key, n)
		}
	}
	duration := func(key string, dst *time.Duration) {
		if val, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(val)
			if err != nil {
				applog.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
				return
			}
			*dst = d
			applog.Infof("Config: Overriding %s from env: %s", key, d)
		}
	}

	str("ENV_LOG_LEVEL", &c.LogLevel)
	integer("ENV_INPUT_DEVICE", &c.Audio.InputDevice)
	str("ENV_AUDIO_FILE", &c.Audio.File)
	number("ENV_FPS", &c.Scheduler.FPS)
	number("ENV_GAIN_PERCENT", &c.Processing.GainPercent)
	str("ENV_SCALE_FUNCTION", &c.Processing.Scale.Function)
	boolean("ENV_NORMALIZE", &c.Processing.Normalize)
	boolean("ENV_WS_ENABLED", &c.Transport.WebSocket.Enabled)
	str("ENV_WS_ADDRESS", &c.Transport.WebSocket.Address)
	boolean("ENV_UDP_ENABLED", &c.Transport.UDP.Enabled)
	str("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDP.TargetAddress)
	duration("ENV_UDP_SEND_INTERVAL", &c.Transport.UDP.SendInterval)
	boolean("ENV_MDNS_ENABLED", &c.Transport.MDNS.Enabled)
}
