// SPDX-License-Identifier: MIT
package pipeline

import (
	"spectra/internal/analysis"
	"spectra/internal/transport"
)

// Beat detection tuning for smoothed 0-1 frames.
const (
	DefaultBeatThreshold = 0.3
	DefaultBeatRatio     = 1.4
	DefaultBeatBands     = 4
)

// BeatSink decorates a sink, sending a transport.Kick ahead of every frame
// whose low-band energy jumps.
type BeatSink struct {
	transport.Transport
	detector *analysis.BeatDetector
}

// NewBeatSink wraps next with a detector using the default tuning.
func NewBeatSink(next transport.Transport) *BeatSink {
	return &BeatSink{
		Transport: next,
		detector:  analysis.NewBeatDetector(DefaultBeatThreshold, DefaultBeatRatio, DefaultBeatBands),
	}
}

// Send inspects frames for beats and forwards everything to the wrapped sink.
func (b *BeatSink) Send(data any) error {
	if f, ok := data.(*transport.Frame); ok {
		if beat, energy := b.detector.Process(f.Values, f.Channels); beat {
			if err := b.Transport.Send(transport.NewKick(f.Consumer, f.Timestamp, energy)); err != nil {
				return err
			}
		}
	}
	return b.Transport.Send(data)
}
