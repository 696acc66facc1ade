// SPDX-License-Identifier: MIT
package frontend

import (
	"math"

	"microfeatures/pkg/bitint"
)

// Fixed-point natural log. log2 is computed as integer part plus a fraction
// corrected by a 128-segment table of log2(1+f)-f, then scaled by ln(2).
const (
	logSegmentsLog2 = 7
	logScaleLog2    = 16
	logScale        = 1 << logScaleLog2
	logCoeff        = 45426 // round(ln(2) · 2^16)
)

// logLUT[i] = round((log2(1 + i/128) - i/128) · 2^16).
var logLUT = func() [1<<logSegmentsLog2 + 1]uint16 {
	var lut [1<<logSegmentsLog2 + 1]uint16
	for i := range lut {
		f := float64(i) / (1 << logSegmentsLog2)
		lut[i] = uint16(math.Round((math.Log2(1+f) - f) * logScale))
	}
	return lut
}()

type logScaleState struct {
	enabled    bool
	scaleShift uint
}

func newLogScaleState(cfg LogScaleConfig) logScaleState {
	return logScaleState{enabled: cfg.Enable, scaleShift: uint(cfg.ScaleShift)}
}

func log2FractionPart(x, log2x uint32) uint32 {
	frac := int32(x - (1 << log2x))
	if log2x < logScaleLog2 {
		frac <<= logScaleLog2 - log2x
	} else {
		frac >>= log2x - logScaleLog2
	}
	baseSeg := uint32(frac) >> (logScaleLog2 - logSegmentsLog2)
	const segUnit = logScale >> logSegmentsLog2

	c0 := int32(logLUT[baseSeg])
	c1 := int32(logLUT[baseSeg+1])
	segBase := int32(segUnit * baseSeg)
	relPos := ((c1 - c0) * (frac - segBase)) >> logScaleLog2
	return uint32(frac + c0 + relPos)
}

// fixedLog returns ln(x) · 2^scaleShift, rounded. x must be > 1.
func fixedLog(x uint32, scaleShift uint) uint32 {
	integer := uint32(bitint.MostSignificantBit32(x) - 1)
	fraction := log2FractionPart(x, integer)
	log2 := (integer << logScaleLog2) + fraction
	const round = logScale / 2
	loge := uint32((uint64(logCoeff)*uint64(log2) + round) >> logScaleLog2)
	return ((loge << scaleShift) + round) >> logScaleLog2
}

// apply compresses signal into out. correctionBits restores the scale lost
// to the filterbank weights and FFT normalization before the log.
func (l *logScaleState) apply(signal []uint32, out []uint16, correctionBits int) {
	for i, value := range signal {
		if l.enabled {
			if correctionBits < 0 {
				value >>= -correctionBits
			} else {
				value <<= correctionBits
			}
			if value > 1 {
				value = fixedLog(value, l.scaleShift)
			} else {
				value = 0
			}
		}
		if value > math.MaxUint16 {
			value = math.MaxUint16
		}
		out[i] = uint16(value)
	}
}
