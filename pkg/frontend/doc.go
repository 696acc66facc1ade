// SPDX-License-Identifier: MIT

// Package frontend computes keyword-spotting audio features from 16-bit PCM.
//
// Audio is fed in fixed chunks of StepSize samples. Once a full analysis
// window has accumulated, every chunk produces one vector of NumChannels
// features by running the window through these stages:
//
//   - taper (Q12 Hann by default) and headroom normalization
//   - real FFT of the window zero-padded to a power of two
//   - triangular mel filterbank with square-root band amplitudes
//   - per-band noise floor tracking and subtraction
//   - per-channel amplitude normalization (PCAN), optional
//   - fixed-point natural log compression, optional
//
// All arithmetic after the FFT is fixed-point, so outputs match the
// microcontroller frontend keyword models are trained against. The float
// features are the compressed values multiplied by FeatureScale.
//
//	fe, err := frontend.NewDefault()
//	if err != nil {
//		return err
//	}
//	defer fe.Close()
//	out, err := fe.Process(chunk) // len(chunk) == fe.StepSize()
package frontend
