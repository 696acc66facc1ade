// SPDX-License-Identifier: MIT
package frontend

// noiseReductionBits is the fixed-point precision of the smoothing
// coefficients (Q14).
const noiseReductionBits = 14

// noiseState tracks a per-band noise floor and subtracts it.
type noiseState struct {
	smoothingBits      uint
	evenSmoothing      uint32
	oddSmoothing       uint32
	minSignalRemaining uint32
	parity             Parity
	estimate           []uint32 // Noise State, scaled up by smoothingBits
}

func newNoiseState(cfg NoiseReductionConfig, numChannels int) noiseState {
	parity, _ := ParseParity(string(cfg.Parity))
	return noiseState{
		smoothingBits:      uint(cfg.SmoothingBits),
		evenSmoothing:      uint32(cfg.EvenSmoothing * (1 << noiseReductionBits)),
		oddSmoothing:       uint32(cfg.OddSmoothing * (1 << noiseReductionBits)),
		minSignalRemaining: uint32(cfg.MinSignalRemaining * (1 << noiseReductionBits)),
		parity:             parity,
		estimate:           make([]uint32, numChannels),
	}
}

// apply updates the estimate with the current frame and replaces every band
// with its noise-suppressed value. frame is the index of the frame being
// processed since the last reset.
func (n *noiseState) apply(signal []uint32, frame uint64) {
	const one = 1 << noiseReductionBits
	for i := range signal {
		even := i&1 == 0
		if n.parity == ParityFrame {
			even = frame&1 == 0
		}
		smoothing := n.oddSmoothing
		if even {
			smoothing = n.evenSmoothing
		}

		scaled := signal[i] << n.smoothingBits
		estimate := uint32((uint64(scaled)*uint64(smoothing) +
			uint64(n.estimate[i])*uint64(one-smoothing)) >> noiseReductionBits)
		n.estimate[i] = estimate

		// The estimate may overshoot a sudden drop; never go negative.
		if estimate > scaled {
			estimate = scaled
		}

		floor := uint32((uint64(signal[i]) * uint64(n.minSignalRemaining)) >> noiseReductionBits)
		subtracted := (scaled - estimate) >> n.smoothingBits
		if subtracted > floor {
			signal[i] = subtracted
		} else {
			signal[i] = floor
		}
	}
}

func (n *noiseState) reset() {
	clear(n.estimate)
}
