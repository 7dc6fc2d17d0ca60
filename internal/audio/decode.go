// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// pcm is a fully decoded file as interleaved full-scale int32 samples.
type pcm struct {
	samples    []int32
	sampleRate int
	channels   int
}

func (p *pcm) frames() int { return len(p.samples) / p.channels }

func (p *pcm) duration() float64 {
	return float64(p.frames()) / float64(p.sampleRate)
}

// decodeFile detects the format by file extension.
func decodeFile(path string) (*pcm, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out *pcm
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		out, err = decodeWAV(f)
	case ".mp3":
		out, err = decodeMP3(f)
	case ".flac":
		out, err = decodeFLAC(f)
	case ".ogg":
		out, err = decodeOGG(f)
	default:
		return nil, fmt.Errorf("unsupported format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	if out.channels < 1 || out.sampleRate < 1 {
		return nil, fmt.Errorf("decoding %s: invalid stream (%d ch @ %d Hz)", filepath.Base(path), out.channels, out.sampleRate)
	}
	return out, nil
}

func decodeWAV(r io.ReadSeeker) (*pcm, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	depth := int(dec.BitDepth)
	if depth < 8 || depth > 32 {
		return nil, fmt.Errorf("unsupported WAV bit depth %d", depth)
	}
	samples := make([]int32, len(buf.Data))
	for i, v := range buf.Data {
		if depth == 8 {
			// 8-bit WAV is unsigned.
			v -= 128
		}
		samples[i] = int32(v << (32 - depth))
	}
	return &pcm{samples: samples, sampleRate: int(dec.SampleRate), channels: int(dec.NumChans)}, nil
}

// go-mp3 always produces 16-bit little endian stereo.
func decodeMP3(r io.Reader) (*pcm, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	samples := make([]int32, len(raw)/2)
	for i := range samples {
		samples[i] = int32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) << 16
	}
	return &pcm{samples: samples, sampleRate: dec.SampleRate(), channels: 2}, nil
}

func decodeFLAC(r io.Reader) (*pcm, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	shift := 32 - int(stream.Info.BitsPerSample)
	samples := make([]int32, 0, int(stream.Info.NSamples)*channels)
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		n := int(frame.Subframes[0].NSamples)
		for i := range n {
			for ch := range channels {
				samples = append(samples, frame.Subframes[ch].Samples[i]<<shift)
			}
		}
	}
	return &pcm{samples: samples, sampleRate: int(stream.Info.SampleRate), channels: channels}, nil
}

func decodeOGG(r io.Reader) (*pcm, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	samples := make([]int32, len(data))
	for i, v := range data {
		s := max(-1, min(float64(v), 1))
		samples[i] = int32(s * math.MaxInt32)
	}
	return &pcm{samples: samples, sampleRate: format.SampleRate, channels: format.Channels}, nil
}
