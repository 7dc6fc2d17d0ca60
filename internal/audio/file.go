// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"sync"
	"time"

	"spectra/internal/config"
	applog "spectra/internal/log"
)

// FileSource plays a decoded audio file in real time, one block every
// FramesPerBuffer/SampleRate seconds, as if it were being captured.
type FileSource struct {
	*processor

	path  string
	info  TrackInfo
	audio *pcm
	loop  bool

	block []int32
	pos   int // next frame

	mu       sync.Mutex
	running  bool
	doneChan chan struct{}
	ended    chan struct{}
	wg       sync.WaitGroup
}

// OpenFile decodes cfg.File. The file's own sample rate and channel count
// replace the configured ones.
func OpenFile(cfg config.AudioConfig) (*FileSource, error) {
	if cfg.File == "" {
		return nil, errors.New("no audio file configured")
	}
	decoded, err := decodeFile(cfg.File)
	if err != nil {
		return nil, err
	}
	return newFileSource(cfg, decoded)
}

func newFileSource(cfg config.AudioConfig, decoded *pcm) (*FileSource, error) {
	cfg.SampleRate = float64(decoded.sampleRate)
	cfg.InputChannels = decoded.channels
	p, err := newProcessor(cfg)
	if err != nil {
		return nil, err
	}

	var info TrackInfo
	if cfg.File != "" {
		info = ReadTrackInfo(cfg.File)
	}
	info.Duration = decoded.duration()
	applog.Infof("Audio: Playing %q (%.1fs, %d ch @ %d Hz, loop=%v)",
		info.String(), info.Duration, decoded.channels, decoded.sampleRate, cfg.Loop)

	return &FileSource{
		processor: p,
		path:      cfg.File,
		info:      info,
		audio:     decoded,
		loop:      cfg.Loop,
		block:     make([]int32, cfg.FramesPerBuffer*decoded.channels),
		ended:     make(chan struct{}),
	}, nil
}

// Info returns the track metadata.
func (s *FileSource) Info() TrackInfo { return s.info }

// Ended is closed when a non-looping file has been played to the end.
func (s *FileSource) Ended() <-chan struct{} { return s.ended }

// BlockInterval is the wall time one block of audio covers.
func (s *FileSource) BlockInterval() time.Duration {
	return time.Duration(float64(s.framesPerBuffer) / s.sampleRate * float64(time.Second))
}

// Start begins paced playback in a background goroutine.
func (s *FileSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.doneChan = make(chan struct{})

	s.wg.Add(1)
	go s.run(s.doneChan)
	return nil
}

// Close stops playback and any recording.
func (s *FileSource) Close() error {
	s.mu.Lock()
	if s.running {
		close(s.doneChan)
		s.running = false
	}
	s.mu.Unlock()
	s.wg.Wait()
	return s.StopRecording()
}

func (s *FileSource) run(done <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.BlockInterval())
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !s.next() {
				applog.Infof("Audio: Reached end of %s", s.path)
				close(s.ended)
				return
			}
			s.process(s.block)
		}
	}
}

// next fills block with the following frames, zero padding the tail. It
// returns false once a non-looping file is exhausted.
func (s *FileSource) next() bool {
	total := s.audio.frames()
	if s.pos >= total {
		if !s.loop || total == 0 {
			return false
		}
		s.pos = 0
	}

	ch := s.audio.channels
	n := copy(s.block, s.audio.samples[s.pos*ch:])
	s.pos += n / ch

	if n < len(s.block) && s.loop {
		for n < len(s.block) {
			m := copy(s.block[n:], s.audio.samples)
			n += m
			s.pos = m / ch
		}
	}
	clear(s.block[n:])
	return true
}
