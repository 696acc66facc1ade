// SPDX-License-Identifier: MIT
package frontend

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// windowBits is the fixed-point precision of the taper coefficients (Q12).
const windowBits = 12

// Taper selects the window function applied before the FFT.
type Taper int

// Available tapers. Hann is the half-sample shifted periodic Hann window the
// reference fixtures use; the others come from gonum and are symmetric.
const (
	Hann Taper = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hamming
	Lanczos
	Nuttall
)

// ParseTaper converts a taper name (case-insensitive) to a Taper. The empty
// string selects Hann.
func ParseTaper(name string) (Taper, error) {
	switch strings.ToLower(name) {
	case "", "hann", "hanning":
		return Hann, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown window taper: '%s'", name)
	}
}

// taperCoefficients returns size Q12 coefficients for the given taper.
func taperCoefficients(taper Taper, size int) []int16 {
	coeffs := make([]float64, size)
	if taper == Hann {
		arg := float32(math.Pi * 2.0 / float64(size))
		for i := range coeffs {
			coeffs[i] = float64(float32(0.5 - 0.5*math.Cos(float64(arg)*(float64(i)+0.5))))
		}
	} else {
		// gonum multiplies in place, so start from a rectangular window.
		for i := range coeffs {
			coeffs[i] = 1.0
		}
		switch taper {
		case BartlettHann:
			window.BartlettHann(coeffs)
		case Blackman:
			window.Blackman(coeffs)
		case BlackmanNuttall:
			window.BlackmanNuttall(coeffs)
		case Hamming:
			window.Hamming(coeffs)
		case Lanczos:
			window.Lanczos(coeffs)
		case Nuttall:
			window.Nuttall(coeffs)
		}
	}

	q := make([]int16, size)
	for i, c := range coeffs {
		q[i] = int16(math.Floor(float64(float32(c)*(1<<windowBits)) + 0.5))
	}
	return q
}

// windowState holds the most recent size samples and the tapered frame.
type windowState struct {
	size         int
	step         int
	coefficients []int16
	input        []int16 // the Window Buffer, input[:inputUsed] is valid
	inputUsed    int
	output       []int16 // tapered frame handed to the spectrum stage
	maxAbsOutput int32
}

func newWindowState(cfg Config, taper Taper) windowState {
	size := cfg.WindowSamples()
	return windowState{
		size:         size,
		step:         cfg.StepSamples(),
		coefficients: taperCoefficients(taper, size),
		input:        make([]int16, size),
		output:       make([]int16, size),
	}
}

// willEmit reports whether pushing n more samples completes a frame.
func (w *windowState) willEmit(n int) bool {
	return w.inputUsed+n >= w.size
}

// push appends samples, evicting the oldest ones so at most size remain, and
// tapers a new frame once the buffer is full. len(samples) must not exceed
// size.
func (w *windowState) push(samples []int16) bool {
	if over := w.inputUsed + len(samples) - w.size; over > 0 {
		copy(w.input, w.input[over:w.inputUsed])
		w.inputUsed -= over
	}
	copy(w.input[w.inputUsed:], samples)
	w.inputUsed += len(samples)
	if w.inputUsed < w.size {
		return false
	}

	var maxAbs int32
	for i, sample := range w.input {
		v := (int32(sample) * int32(w.coefficients[i])) >> windowBits
		w.output[i] = int16(v)
		if v < 0 {
			v = -v
		}
		if v > maxAbs {
			maxAbs = v
		}
	}
	w.maxAbsOutput = maxAbs
	return true
}

func (w *windowState) reset() {
	clear(w.input)
	clear(w.output)
	w.inputUsed = 0
	w.maxAbsOutput = 0
}
