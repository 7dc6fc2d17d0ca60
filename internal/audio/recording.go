// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"time"

	applog "spectra/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const defaultBitDepth = 32

// ErrAlreadyRecording is returned by StartRecording while a file is open.
var ErrAlreadyRecording = errors.New("already recording")

var recordWarnings = applog.NewThrottle(time.Second)

// SetBitDepth selects the sample width of the next recording: 16, 24 or 32.
func (p *processor) SetBitDepth(bits int) error {
	switch bits {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", bits)
	}
	if p.isRecording.Load() {
		return ErrAlreadyRecording
	}
	p.bitDepth = bits
	return nil
}

// Recording reports whether captured audio is being written to disk.
func (p *processor) Recording() bool {
	return p.isRecording.Load()
}

// StartRecording writes every subsequent block of input audio to filename
// as WAV.
func (p *processor) StartRecording(filename string) error {
	p.recMu.Lock()
	defer p.recMu.Unlock()

	if p.isRecording.Load() {
		return ErrAlreadyRecording
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	p.outputFile = file

	p.wavEncoder = wav.NewEncoder(file, int(p.sampleRate), p.bitDepth, p.channels, 1)

	p.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: p.channels,
			SampleRate:  int(p.sampleRate),
		},
		Data:           make([]int, p.framesPerBuffer*p.channels),
		SourceBitDepth: p.bitDepth,
	}

	p.isRecording.Store(true)
	applog.Infof("Audio: Recording to %s (%d-bit, %d ch, %.0f Hz)", filename, p.bitDepth, p.channels, p.sampleRate)

	return nil
}

// StopRecording finalizes the WAV header and closes the file. It is a
// no-op when not recording.
func (p *processor) StopRecording() error {
	if !p.isRecording.Swap(false) {
		return nil
	}

	p.recMu.Lock()
	defer p.recMu.Unlock()

	if p.wavEncoder != nil {
		err := p.wavEncoder.Close()
		p.wavEncoder = nil
		if err != nil {
			p.outputFile.Close()
			p.outputFile = nil
			return err
		}
	}

	if p.outputFile != nil {
		if err := p.outputFile.Close(); err != nil {
			p.outputFile = nil
			return err
		}
		p.outputFile = nil
	}

	return nil
}
