// SPDX-License-Identifier: MIT
package export

import (
	"fmt"

	"microfeatures/internal/log"
	"microfeatures/internal/transport"
	"microfeatures/pkg/frontend"
)

var logger = log.Named("export")

// Summary reports what Extract did.
type Summary struct {
	Chunks         int // chunks fed to the frontend
	Frames         int // frames written
	DroppedSamples int // trailing samples shorter than one step
}

// Extract feeds samples to fe one step at a time and writes every frame it
// produces. With raw set, frames carry the fixed-point vector instead of
// scaled features. A trailing partial chunk is not processed.
func Extract(fe *frontend.Frontend, samples []int16, w Writer, raw bool) (Summary, error) {
	var s Summary
	step := fe.StepSize()
	features := make([]float32, fe.NumChannels())
	var offset int64

	for len(samples) >= step {
		chunk := samples[:step:step]
		samples = samples[step:]
		s.Chunks++

		frame := transport.FeatureFrame{Sequence: uint64(s.Frames)}
		if raw {
			values, err := fe.ProcessRaw(chunk)
			if err != nil {
				return s, fmt.Errorf("chunk %d: %w", s.Chunks-1, err)
			}
			offset += int64(step)
			if values == nil {
				continue
			}
			frame.Raw = values
		} else {
			n, read, err := fe.ProcessInto(chunk, features)
			if err != nil {
				return s, fmt.Errorf("chunk %d: %w", s.Chunks-1, err)
			}
			offset += int64(read)
			if n == 0 {
				continue
			}
			frame.Features = features[:n]
		}

		frame.SampleOffset = offset
		if err := w.Write(frame); err != nil {
			return s, fmt.Errorf("failed to write frame %d: %w", s.Frames, err)
		}
		s.Frames++
	}

	s.DroppedSamples = len(samples)
	if s.DroppedSamples > 0 {
		logger.Debugf("ignored %d trailing samples", s.DroppedSamples)
	}
	return s, nil
}
