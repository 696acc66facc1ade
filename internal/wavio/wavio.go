// SPDX-License-Identifier: MIT

// Package wavio reads and writes the 16-bit mono PCM the frontend consumes.
// Inputs at other rates, depths or channel counts are converted on read.
package wavio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"microfeatures/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	resampling "github.com/tphakala/go-audio-resampling"
)

var logger = log.Named("wavio")

// ErrInvalidWAV is returned for files that are not PCM WAV.
var ErrInvalidWAV = errors.New("wavio: not a valid PCM WAV file")

// Clip is decoded audio ready for the frontend.
type Clip struct {
	Samples        []int16 // mono, at SampleRate
	SampleRate     int
	SourceRate     int // rate of the file before conversion
	SourceChannels int
	SourceBitDepth int
}

// Resampled reports whether the clip went through rate conversion.
func (c *Clip) Resampled() bool {
	return c.SourceRate != c.SampleRate
}

// ReadFile decodes path into mono 16-bit samples at targetRate. quality
// selects the resampler preset and only matters when the rates differ.
func ReadFile(path string, targetRate int, quality string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer f.Close()

	clip, err := Read(f, targetRate, quality)
	if err != nil {
		return nil, fmt.Errorf("'%s': %w", path, err)
	}
	return clip, nil
}

// Read is ReadFile for an open stream.
func Read(r io.ReadSeeker, targetRate int, quality string) (*Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode PCM: %w", err)
	}

	clip := &Clip{
		SampleRate:     targetRate,
		SourceRate:     int(d.SampleRate),
		SourceChannels: int(d.NumChans),
		SourceBitDepth: int(d.BitDepth),
	}
	if clip.SourceChannels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidWAV, clip.SourceChannels)
	}

	mono, err := downmix(buf.Data, clip.SourceChannels, clip.SourceBitDepth)
	if err != nil {
		return nil, err
	}

	if !clip.Resampled() {
		clip.Samples = mono
		return clip, nil
	}

	logger.Debugf("resampling %d Hz -> %d Hz (%d samples, quality %s)", clip.SourceRate, targetRate, len(mono), quality)
	clip.Samples, err = Resample(mono, clip.SourceRate, targetRate, quality)
	if err != nil {
		return nil, err
	}
	return clip, nil
}

// downmix averages interleaved channels and scales them to 16 bits.
// Mono 16-bit input is copied unchanged.
func downmix(data []int, channels, bitDepth int) ([]int16, error) {
	var shift int
	switch bitDepth {
	case 16:
	case 24:
		shift = 8
	case 32:
		shift = 16
	default:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, bitDepth)
	}

	frames := len(data) / channels
	out := make([]int16, frames)
	for i := range out {
		var sum int
		for c := 0; c < channels; c++ {
			sum += data[i*channels+c] >> shift
		}
		out[i] = clamp16(float64(sum) / float64(channels))
	}
	return out, nil
}

// qualitySpec maps a preset name to the resampler's quality setting.
func qualitySpec(name string) (resampling.QualitySpec, error) {
	spec := resampling.QualitySpec{Preset: resampling.QualityHigh}
	switch strings.ToLower(name) {
	case "quick":
		spec.Preset = resampling.QualityQuick
	case "low":
		spec.Preset = resampling.QualityLow
	case "medium":
		spec.Preset = resampling.QualityMedium
	case "", "high":
	case "veryhigh":
		spec.Preset = resampling.QualityVeryHigh
	default:
		return spec, fmt.Errorf("unknown resample quality '%s'", name)
	}
	return spec, nil
}

// Resample converts mono 16-bit samples between rates.
func Resample(samples []int16, fromRate, toRate int, quality string) ([]int16, error) {
	if fromRate == toRate {
		return append([]int16(nil), samples...), nil
	}
	spec, err := qualitySpec(quality)
	if err != nil {
		return nil, err
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(fromRate),
		OutputRate: float64(toRate),
		Channels:   1,
		Quality:    spec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s) / 32768.0
	}

	output, err := r.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("resample flush error: %w", err)
	}
	output = append(output, tail...)

	out := make([]int16, len(output))
	for i, v := range output {
		out[i] = clamp16(v * 32768.0)
	}
	return out, nil
}

// WriteFile stores mono 16-bit samples as a PCM WAV file.
func WriteFile(path string, samples []int16, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Write(f, samples, sampleRate, 1); err != nil {
		f.Close()
		return fmt.Errorf("failed to write '%s': %w", path, err)
	}
	return f.Close()
}

// Write encodes interleaved 16-bit samples with the given channel count.
func Write(w io.WriteSeeker, samples []int16, sampleRate, channels int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

func clamp16(v float64) int16 {
	r := math.Round(v)
	switch {
	case r > math.MaxInt16:
		return math.MaxInt16
	case r < math.MinInt16:
		return math.MinInt16
	default:
		return int16(r)
	}
}
