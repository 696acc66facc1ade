// SPDX-License-Identifier: MIT
package frontend

import (
	"fmt"
	"math"

	"microfeatures/pkg/bitint"
)

// PCAN (per-channel amplitude normalization) fixed-point layout.
const (
	pcanSNRBits    = 12
	pcanOutputBits = 6

	// The gain curve is tabulated over 32 octaves of the noise estimate;
	// each octave stores a value and two interpolation coefficients.
	wideDynamicFunctionBits    = 32
	wideDynamicFunctionLUTSize = 4*wideDynamicFunctionBits - 3
)

// gainState applies adaptive per-band gain driven by a running signal
// estimate that it refreshes from the noise tracker every frame.
type gainState struct {
	enabled  bool
	snrShift int
	lut      []int16
	estimate []uint32 // Gain State: running estimate the gains derive from
	gains    []uint32 // gains applied to the last frame
}

func newGainState(cfg PCANConfig, numChannels, smoothingBits, correctionBits int) (gainState, error) {
	if !cfg.Enable {
		return gainState{}, nil
	}
	snrShift := cfg.GainBits - correctionBits - pcanSNRBits
	if snrShift < 0 {
		return gainState{}, fmt.Errorf("pcan gain bits %d leave no headroom (snr shift %d)", cfg.GainBits, snrShift)
	}
	inputBits := smoothingBits - correctionBits
	if inputBits < 0 || inputBits > 31 {
		return gainState{}, fmt.Errorf("smoothing bits %d incompatible with correction bits %d", smoothingBits, correctionBits)
	}

	return gainState{
		enabled:  true,
		snrShift: snrShift,
		lut:      gainLUT(cfg, inputBits),
		estimate: make([]uint32, numChannels),
		gains:    make([]uint32, numChannels),
	}, nil
}

// gainLookup evaluates 2^gainBits · (x/2^inputBits + offset)^-strength,
// saturated to int16.
func gainLookup(cfg PCANConfig, inputBits int, x uint32) int16 {
	xf := float32(x) / float32(uint32(1)<<inputBits)
	g := float32(uint32(1)<<cfg.GainBits) * float32(math.Pow(float64(xf+cfg.Offset), float64(-cfg.Strength)))
	if g > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(g + 0.5)
}

// gainLUT tabulates the gain curve. Entries 0 and 1 hold the exact values for
// x = 0 and 1; octave i (x in [2^(i-1), 2^i)) starts at index 4i-6 with the
// value at the octave start followed by two quadratic coefficients.
func gainLUT(cfg PCANConfig, inputBits int) []int16 {
	lut := make([]int16, wideDynamicFunctionLUTSize)
	lut[0] = gainLookup(cfg, inputBits, 0)
	lut[1] = gainLookup(cfg, inputBits, 1)
	for interval := 2; interval <= wideDynamicFunctionBits; interval++ {
		x0 := uint32(1) << (interval - 1)
		x1 := x0 + (x0 >> 1)
		x2 := 2 * x0
		if interval == wideDynamicFunctionBits {
			x2 = x0 + (x0 - 1)
		}

		y0 := gainLookup(cfg, inputBits, x0)
		y1 := gainLookup(cfg, inputBits, x1)
		y2 := gainLookup(cfg, inputBits, x2)

		diff1 := int32(y1) - int32(y0)
		diff2 := int32(y2) - int32(y0)
		a1 := 4*diff1 - diff2
		a2 := diff2 - a1

		base := 4*interval - 6
		lut[base] = y0
		lut[base+1] = int16(a1)
		lut[base+2] = int16(a2)
	}
	return lut
}

// wideDynamicFunction interpolates the gain for x from the table.
func wideDynamicFunction(x uint32, lut []int16) int16 {
	if x <= 2 {
		return lut[x]
	}
	interval := bitint.MostSignificantBit32(x)
	l := lut[4*interval-6:]

	var shifted uint32
	if interval < 11 {
		shifted = x << (11 - interval)
	} else {
		shifted = x >> (interval - 11)
	}
	frac := int32(shifted & 0x3FF)

	result := (int32(l[2]) * frac) >> 5
	result += int32(uint32(l[1]) << 5)
	result *= frac
	result = (result + (1 << 14)) >> 15
	result += int32(l[0])
	return int16(result)
}

// pcanShrink compresses the SNR: quadratic below 2.0, linear minus one above.
func pcanShrink(x uint32) uint32 {
	if x < (2 << pcanSNRBits) {
		return (x * x) >> (2 + 2*pcanSNRBits - pcanOutputBits)
	}
	return (x >> (pcanSNRBits - pcanOutputBits)) - (1 << pcanOutputBits)
}

// apply refreshes the running estimate from the tracker's noise estimate and
// normalizes each band by the resulting gain.
func (g *gainState) apply(signal, noiseEstimate []uint32) {
	copy(g.estimate, noiseEstimate)
	for i := range signal {
		gain := uint32(wideDynamicFunction(g.estimate[i], g.lut))
		g.gains[i] = gain
		snr := uint32((uint64(signal[i]) * uint64(gain)) >> g.snrShift)
		signal[i] = pcanShrink(snr)
	}
}

func (g *gainState) reset() {
	clear(g.estimate)
	clear(g.gains)
}
