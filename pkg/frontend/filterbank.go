// SPDX-License-Identifier: MIT
package frontend

import (
	"fmt"
	"math"

	"microfeatures/pkg/bitint"
)

// filterbankBits is the fixed-point precision of the band weights (Q12).
const filterbankBits = 12

// freqToMel converts frequency in Hz to mel scale.
func freqToMel(freq float32) float32 {
	return float32(1127.0 * math.Log1p(float64(freq)/700.0))
}

// centerMelFrequencies returns n mel points evenly spaced above lower, the
// last one landing on upper.
func centerMelFrequencies(n int, lower, upper float32) []float32 {
	melLow := freqToMel(lower)
	melHigh := freqToMel(upper)
	spacing := (melHigh - melLow) / float32(n)
	centers := make([]float32, n)
	for i := range centers {
		centers[i] = melLow + spacing*float32(i+1)
	}
	return centers
}

// filterbankState projects FFT energies onto triangular mel bands.
//
// The spectrum between the lower band limit and the last center frequency is
// cut into numChannels+1 contiguous segments. A bin in segment c contributes
// weight w to accumulator c and 1-w to accumulator c+1, so every bin feeds at
// most two adjacent bands. Accumulator 0 (below the first center) and the
// spill past the last segment are discarded; accumulator c+1 is channel c.
type filterbankState struct {
	numChannels int
	startIndex  int // first bin used, DC is always excluded
	endIndex    int // one past the last bin used

	segStart  []int // first bin of each segment
	segWidth  []int // bins in each segment
	segOffset []int // index of the segment's first weight
	weights   []int16
	unweights []int16

	energy []uint32 // per-bin re²+im²
	work   []uint64 // numChannels+1 accumulators
	output []uint32 // band amplitudes, the Band Energy Vector
}

func newFilterbankState(cfg FilterbankConfig, sampleRate, spectrumSize int) (filterbankState, error) {
	n := cfg.NumChannels
	fb := filterbankState{
		numChannels: n,
		segStart:    make([]int, n+1),
		segWidth:    make([]int, n+1),
		segOffset:   make([]int, n+1),
		energy:      make([]uint32, spectrumSize),
		work:        make([]uint64, n+1),
		output:      make([]uint32, n),
	}

	centers := centerMelFrequencies(n+1, cfg.LowerBandLimit, cfg.UpperBandLimit)
	hzPerBin := float32(0.5 * float64(sampleRate) / float64(float32(spectrumSize)-1))
	fb.startIndex = int(1.5 + float64(cfg.LowerBandLimit/hzPerBin))

	// First pass: find which bins fall in each segment.
	freqIndex := fb.startIndex
	total := 0
	for c := 0; c <= n; c++ {
		start := freqIndex
		for freqIndex < spectrumSize && freqToMel(float32(freqIndex)*hzPerBin) <= centers[c] {
			freqIndex++
		}
		fb.segStart[c] = start
		fb.segWidth[c] = freqIndex - start
		fb.segOffset[c] = total
		total += fb.segWidth[c]
	}
	fb.endIndex = freqIndex
	if fb.endIndex >= spectrumSize {
		return filterbankState{}, fmt.Errorf("filterbank end bin %d is above spectrum size %d", fb.endIndex, spectrumSize)
	}

	// Second pass: linear mel-domain weights within each segment.
	fb.weights = make([]int16, total)
	fb.unweights = make([]int16, total)
	melLow := freqToMel(cfg.LowerBandLimit)
	for c := 0; c <= n; c++ {
		denom := melLow
		if c > 0 {
			denom = centers[c-1]
		}
		for j := 0; j < fb.segWidth[c]; j++ {
			freq := float32(fb.segStart[c]+j) * hzPerBin
			w := (centers[c] - freqToMel(freq)) / (centers[c] - denom)
			k := fb.segOffset[c] + j
			fb.weights[k] = int16(math.Floor(float64(w*(1<<filterbankBits)) + 0.5))
			fb.unweights[k] = int16(math.Floor((1.0-float64(w))*(1<<filterbankBits) + 0.5))
		}
	}

	return fb, nil
}

// convertToEnergy stores re²+im² for every bin the bands use.
func (fb *filterbankState) convertToEnergy(spectrum []complexInt16) {
	for i := fb.startIndex; i < fb.endIndex; i++ {
		re := int32(spectrum[i].re)
		im := int32(spectrum[i].im)
		fb.energy[i] = uint32(re*re) + uint32(im*im)
	}
}

// accumulate runs the weighted sums. The unweighted remainder of one segment
// seeds the accumulator of the next.
func (fb *filterbankState) accumulate() {
	var weightAcc, unweightAcc uint64
	for c := 0; c <= fb.numChannels; c++ {
		bins := fb.energy[fb.segStart[c] : fb.segStart[c]+fb.segWidth[c]]
		off := fb.segOffset[c]
		for j, e := range bins {
			weightAcc += uint64(fb.weights[off+j]) * uint64(e)
			unweightAcc += uint64(fb.unweights[off+j]) * uint64(e)
		}
		fb.work[c] = weightAcc
		weightAcc = unweightAcc
		unweightAcc = 0
	}
}

// sqrt converts the accumulated energies into band amplitudes and undoes the
// FFT input headroom shift. It returns the band vector.
func (fb *filterbankState) sqrt(scaleDownShift int) []uint32 {
	for i := range fb.output {
		fb.output[i] = sqrt64(fb.work[i+1]) >> scaleDownShift
	}
	return fb.output
}

func (fb *filterbankState) reset() {
	clear(fb.energy)
	clear(fb.work)
	clear(fb.output)
}

// sqrt32 is a bitwise integer square root rounded to nearest.
func sqrt32(num uint32) uint32 {
	if num == 0 {
		return 0
	}
	var res uint32
	maxBit := (32 - bitint.MostSignificantBit32(num)) | 1
	bit := uint32(1) << (31 - maxBit)
	for iterations := (31-maxBit)/2 + 1; iterations > 0; iterations-- {
		if num >= res+bit {
			num -= res + bit
			res = (res >> 1) + bit
		} else {
			res >>= 1
		}
		bit >>= 2
	}
	if num > res && res != 0xFFFF {
		res++
	}
	return res
}

// sqrt64 is the 64-bit variant of sqrt32; it falls back to 32-bit
// arithmetic when the upper word is clear.
func sqrt64(num uint64) uint32 {
	if num>>32 == 0 {
		return sqrt32(uint32(num))
	}
	var res uint64
	maxBit := (64 - bitint.MostSignificantBit64(num)) | 1
	bit := uint64(1) << (63 - maxBit)
	for iterations := (63-maxBit)/2 + 1; iterations > 0; iterations-- {
		if num >= res+bit {
			num -= res + bit
			res = (res >> 1) + bit
		} else {
			res >>= 1
		}
		bit >>= 2
	}
	if num > res && res != 0xFFFFFFFF {
		res++
	}
	return uint32(res)
}
