// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"spectra/internal/config"
	"spectra/pkg/utils"
)

const (
	testSampleRate = 44100
	testFrameSize  = 1024
)

func testAudioConfig() config.AudioConfig {
	cfg := config.Default().Audio
	cfg.SampleRate = testSampleRate
	cfg.FramesPerBuffer = testFrameSize
	cfg.InputChannels = 2
	return cfg
}

func newTestProcessor(t testing.TB) *processor {
	t.Helper()
	p, err := newProcessor(testAudioConfig())
	if err != nil {
		t.Fatalf("newProcessor: %v", err)
	}
	return p
}

// stereoSine returns one interleaved block with the given peak amplitude.
func stereoSine(freq, amplitude float64) []int32 {
	out := make([]int32, testFrameSize*2)
	for i := range testFrameSize {
		v := int32(amplitude * math.MaxInt32 * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate))
		out[2*i], out[2*i+1] = v, v
	}
	return out
}

func TestListenerReplacement(t *testing.T) {
	var b broadcaster
	var first, second int
	stopFirst := b.Listen(func([]float64) { first++ })
	b.emit(nil)

	stopSecond := b.Listen(func([]float64) { second++ })
	stopFirst() // no longer current, must not unregister the second
	b.emit(nil)

	stopSecond()
	b.emit(nil)

	if first != 1 || second != 1 {
		t.Errorf("first=%d second=%d, want 1 1", first, second)
	}
}

func TestGateThresholdBoundaries(t *testing.T) {
	p := newTestProcessor(t)
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0}, // Below min
		{0.0, 0.0},  // Minimum
		{0.5, 0.5},  // Middle
		{1.0, 1.0},  // Maximum
		{1.5, 1.0},  // Above max
	}
	for _, tt := range tests {
		p.SetGateThreshold(tt.input)
		if got := p.GetGateThreshold(); math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("SetGateThreshold(%v): got %.3f, want %.3f", tt.input, got, tt.expected)
		}
	}
}

func TestGateToggle(t *testing.T) {
	p := newTestProcessor(t)
	p.SetGateThreshold(0.5)
	quiet := stereoSine(1000, 0.1)

	p.EnableGate()
	if p.gateOpen(quiet) {
		t.Error("quiet block should not open the gate")
	}
	if !p.gateOpen(utils.GenerateSineWave(testFrameSize, 2, testSampleRate, 1000)) {
		t.Error("loud block should open the gate")
	}

	p.DisableGate()
	p.DisableGate()
	if p.GateEnabled() || !p.gateOpen(quiet) {
		t.Error("disabled gate should always be open")
	}
}

func TestGateFullScaleNegative(t *testing.T) {
	p := newTestProcessor(t)
	p.SetGateThreshold(0.99)
	p.EnableGate()

	tests := []struct {
		name  string
		block []int32
		open  bool
	}{
		{"min int32", []int32{0, math.MinInt32, 0, 0}, true},
		{"max int32", []int32{0, 0, math.MaxInt32, 0}, true},
		{"near silence", []int32{-1, 1, -2, 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.gateOpen(tt.block); got != tt.open {
				t.Errorf("gateOpen(%v) = %v, want %v", tt.block, got, tt.open)
			}
		})
	}
}

func TestProcessEmitsTicks(t *testing.T) {
	p := newTestProcessor(t)
	p.SetGateThreshold(0.05)
	p.EnableGate()

	var got []float64
	p.Listen(func(tick []float64) { got = append(got[:0], tick...) })

	p.process(stereoSine(1000, 0.5))
	if len(got) != p.TickLen() {
		t.Fatalf("tick has %d values, want %d", len(got), p.TickLen())
	}
	var sum float64
	for _, v := range got {
		sum += v
	}
	if sum == 0 {
		t.Error("open gate produced a silent tick")
	}

	p.process(stereoSine(1000, 0.01))
	for i, v := range got {
		if v != 0 {
			t.Fatalf("closed gate: value %d = %v, want 0", i, v)
		}
	}
}

func TestProcessHotPath(t *testing.T) {
	p := newTestProcessor(t)
	p.Listen(func([]float64) {})
	block := stereoSine(440, 0.5)
	p.process(block)

	allocs := testing.AllocsPerRun(50, func() { p.process(block) })
	if allocs > 0 {
		t.Errorf("Expected zero allocations in process hot path, got %.1f", allocs)
	}
}

func TestRecordingStartStop(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_recording.wav")
	p := newTestProcessor(t)

	if err := p.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if !p.Recording() {
		t.Error("should be in recording state")
	}
	if err := p.StartRecording(filename); err != ErrAlreadyRecording {
		t.Errorf("second StartRecording = %v, want ErrAlreadyRecording", err)
	}
	if err := p.SetBitDepth(16); err != ErrAlreadyRecording {
		t.Errorf("SetBitDepth while recording = %v", err)
	}
	if p.sampleBuf.Format.NumChannels != 2 || p.sampleBuf.Format.SampleRate != testSampleRate {
		t.Errorf("buffer format = %+v", p.sampleBuf.Format)
	}

	block := stereoSine(440, 0.5)
	for range 4 {
		p.process(block)
	}

	outputFile := p.outputFile
	if err := p.StopRecording(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	if p.Recording() || p.outputFile != nil || p.wavEncoder != nil {
		t.Error("recording state not cleared after stopping")
	}
	if err := outputFile.Close(); err == nil {
		t.Error("File should already be closed")
	}

	decoded, err := decodeFile(filename)
	if err != nil {
		t.Fatalf("decoding recording: %v", err)
	}
	if decoded.channels != 2 || decoded.sampleRate != testSampleRate {
		t.Errorf("recorded format %d ch @ %d Hz", decoded.channels, decoded.sampleRate)
	}
	if len(decoded.samples) != 4*len(block) {
		t.Fatalf("recorded %d samples, want %d", len(decoded.samples), 4*len(block))
	}
	for i := range block {
		if decoded.samples[i] != block[i] {
			t.Fatalf("sample %d = %d, want %d", i, decoded.samples[i], block[i])
		}
	}
}

func TestRecordingErrorCases(t *testing.T) {
	p := newTestProcessor(t)

	if err := p.StopRecording(); err != nil {
		t.Errorf("StopRecording when idle: %v", err)
	}
	if err := p.StartRecording("/nonexistent/path/file.wav"); err == nil {
		t.Error("expected error for invalid path")
		_ = p.StopRecording()
	}
	if err := p.SetBitDepth(12); err == nil {
		t.Error("expected error for 12-bit recording")
	}
}

func TestRecording16Bit(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "16bit.wav")
	p := newTestProcessor(t)
	if err := p.SetBitDepth(16); err != nil {
		t.Fatal(err)
	}
	if err := p.StartRecording(filename); err != nil {
		t.Fatal(err)
	}
	block := stereoSine(440, 0.5)
	p.process(block)
	if err := p.StopRecording(); err != nil {
		t.Fatal(err)
	}

	decoded, err := decodeFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	for i := range block {
		if want := block[i] >> 16 << 16; decoded.samples[i] != want {
			t.Fatalf("sample %d = %d, want %d", i, decoded.samples[i], want)
		}
	}
}

func TestDecodeUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.aiff")
	if err := os.WriteFile(path, []byte("FORM"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := decodeFile(path); err == nil {
		t.Error("expected unsupported format error")
	}
}

func BenchmarkProcess(b *testing.B) {
	p := newTestProcessor(b)
	p.Listen(func([]float64) {})
	block := stereoSine(440, 0.5)

	b.ReportAllocs()
	for b.Loop() {
		p.process(block)
	}
}
