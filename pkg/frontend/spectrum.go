// SPDX-License-Identifier: MIT
package frontend

import (
	"math"

	"microfeatures/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// complexInt16 is one spectral bin at 16-bit fixed-point resolution.
type complexInt16 struct {
	re, im int16
}

// spectrumState holds the FFT and its pre-allocated workspace.
type spectrumState struct {
	inputSize int
	fftSize   int
	fft       *fourier.FFT
	input     []float64    // headroom-shifted, zero-padded frame
	coeffs    []complex128 // raw FFT output, fftSize/2+1 bins
	output    []complexInt16
}

func newSpectrumState(inputSize int) spectrumState {
	fftSize := bitint.NextPowerOfTwo(inputSize)
	bins := fftSize/2 + 1
	return spectrumState{
		inputSize: inputSize,
		fftSize:   fftSize,
		fft:       fourier.NewFFT(fftSize),
		input:     make([]float64, fftSize),
		coeffs:    make([]complex128, bins),
		output:    make([]complexInt16, bins),
	}
}

// compute transforms the tapered frame. Each sample is shifted left by
// shift bits (wrapping like a 16-bit register) and the spectrum is scaled
// by 1/fftSize, the normalization of a 16-bit fixed-point real FFT, then
// rounded to int16.
func (s *spectrumState) compute(frame []int16, shift int) {
	for i, v := range frame {
		s.input[i] = float64(int16(uint16(v) << shift))
	}
	clear(s.input[len(frame):])

	s.fft.Coefficients(s.coeffs, s.input)

	scale := 1.0 / float64(s.fftSize)
	for i, c := range s.coeffs {
		s.output[i] = complexInt16{
			re: quantize16(real(c) * scale),
			im: quantize16(imag(c) * scale),
		}
	}
}

func (s *spectrumState) reset() {
	clear(s.input)
	clear(s.coeffs)
	clear(s.output)
}

// quantize16 rounds v to the nearest int16, saturating at the range ends.
func quantize16(v float64) int16 {
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
