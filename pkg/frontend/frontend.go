// SPDX-License-Identifier: MIT
package frontend

import (
	"fmt"

	"microfeatures/internal/log"
	"microfeatures/pkg/bitint"
)

// FeatureScale converts the compressed fixed-point values into the float
// features keyword models consume (1/25.6).
const FeatureScale float32 = 0.0390625

var logger = log.Named("frontend")

// State is the buffering state of a Frontend.
type State int

const (
	// Empty means no audio has been supplied since creation or Reset.
	Empty State = iota
	// Buffering means audio was supplied but a full window is not yet
	// available, so no features are produced.
	Buffering
	// Ready means every further chunk produces a feature vector.
	Ready
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Buffering:
		return "buffering"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Output is the result of one Process call.
type Output struct {
	// Features holds NumChannels values once the frontend is Ready and is
	// empty otherwise. The slice belongs to the caller.
	Features []float32
	// SamplesRead is the number of input samples consumed.
	SamplesRead int
}

// Frontend turns a stream of 16-bit PCM chunks into log-mel feature vectors.
//
// A Frontend is stateful and not safe for concurrent use. Independent
// instances share nothing mutable.
type Frontend struct {
	cfg Config

	window     windowState
	spectrum   spectrumState
	filterbank filterbankState
	noise      noiseState
	gain       gainState
	logScale   logScaleState

	correctionBits int
	raw            []uint16 // compressed vector of the last frame

	state  State
	frames uint64
	closed bool
}

// New validates cfg and builds a Frontend with all working memory
// pre-allocated. Errors wrap ErrInvalidConfig.
func New(cfg Config) (*Frontend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	taper, _ := ParseTaper(cfg.Window.Taper)

	f := &Frontend{
		cfg:      cfg,
		window:   newWindowState(cfg, taper),
		spectrum: newSpectrumState(cfg.WindowSamples()),
		noise:    newNoiseState(cfg.NoiseReduction, cfg.Filterbank.NumChannels),
		logScale: newLogScaleState(cfg.LogScale),
		raw:      make([]uint16, cfg.Filterbank.NumChannels),
	}

	var err error
	spectrumSize := f.spectrum.fftSize/2 + 1
	if f.filterbank, err = newFilterbankState(cfg.Filterbank, cfg.SampleRate, spectrumSize); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// Scale lost to the Q12 weights (half of it survives the square root)
	// and to the 1/N FFT normalization.
	f.correctionBits = bitint.MostSignificantBit32(uint32(f.spectrum.fftSize)) - 1 - filterbankBits/2
	if f.gain, err = newGainState(cfg.PCAN, cfg.Filterbank.NumChannels, cfg.NoiseReduction.SmoothingBits, f.correctionBits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger.Debugf("window %d samples, step %d, fft %d, %d channels over bins %d..%d, pcan %t, log %t",
		f.window.size, f.window.step, f.spectrum.fftSize, cfg.Filterbank.NumChannels,
		f.filterbank.startIndex, f.filterbank.endIndex, cfg.PCAN.Enable, cfg.LogScale.Enable)
	return f, nil
}

// NewDefault builds a Frontend with DefaultConfig.
func NewDefault() (*Frontend, error) {
	return New(DefaultConfig())
}

func (f *Frontend) check(chunk []int16) error {
	if f == nil {
		return ErrNilFrontend
	}
	if f.closed {
		return ErrClosed
	}
	if chunk == nil {
		return ErrNilChunk
	}
	if len(chunk) != f.window.step {
		return fmt.Errorf("%w: got %d samples, want %d", ErrChunkSize, len(chunk), f.window.step)
	}
	return nil
}

// advance pushes a validated chunk and runs the pipeline when a frame is
// complete. It reports whether f.raw holds a new vector.
func (f *Frontend) advance(chunk []int16) bool {
	if !f.window.push(chunk) {
		f.state = Buffering
		return false
	}
	f.runStages()
	f.frames++
	f.state = Ready
	return true
}

func (f *Frontend) runStages() {
	shift := 15 - bitint.MostSignificantBit32(uint32(f.window.maxAbsOutput))
	if shift < 0 {
		shift = 0
	}
	f.spectrum.compute(f.window.output, shift)

	f.filterbank.convertToEnergy(f.spectrum.output)
	f.filterbank.accumulate()
	signal := f.filterbank.sqrt(shift)

	f.noise.apply(signal, f.frames)
	if f.gain.enabled {
		f.gain.apply(signal, f.noise.estimate)
	}
	f.logScale.apply(signal, f.raw, f.correctionBits)
}

// Process consumes exactly StepSize samples. Until a full window has been
// seen it returns no features; afterwards every call returns NumChannels
// features. On error the frontend is left unchanged.
func (f *Frontend) Process(chunk []int16) (Output, error) {
	if err := f.check(chunk); err != nil {
		return Output{}, err
	}
	if !f.advance(chunk) {
		return Output{SamplesRead: len(chunk)}, nil
	}
	features := make([]float32, len(f.raw))
	f.scale(features)
	return Output{Features: features, SamplesRead: len(chunk)}, nil
}

// ProcessInto is Process writing into dst instead of allocating. n is the
// number of features written, 0 or NumChannels. If this chunk would complete
// a frame and dst is shorter than NumChannels, ErrOutputBuffer is returned
// and nothing is consumed.
func (f *Frontend) ProcessInto(chunk []int16, dst []float32) (n, samplesRead int, err error) {
	if err := f.check(chunk); err != nil {
		return 0, 0, err
	}
	if f.window.willEmit(len(chunk)) && len(dst) < len(f.raw) {
		return 0, 0, fmt.Errorf("%w: need %d, have %d", ErrOutputBuffer, len(f.raw), len(dst))
	}
	if !f.advance(chunk) {
		return 0, len(chunk), nil
	}
	f.scale(dst)
	return len(f.raw), len(chunk), nil
}

// ProcessRaw is Process returning the compressed fixed-point vector before
// FeatureScale is applied. The slice belongs to the caller.
func (f *Frontend) ProcessRaw(chunk []int16) ([]uint16, error) {
	if err := f.check(chunk); err != nil {
		return nil, err
	}
	if !f.advance(chunk) {
		return nil, nil
	}
	return append([]uint16(nil), f.raw...), nil
}

func (f *Frontend) scale(dst []float32) {
	for i, v := range f.raw {
		dst[i] = float32(v) * FeatureScale
	}
}

// Reset discards all buffered audio and adaptive state. The next chunks
// produce exactly what a new Frontend with the same Config would.
func (f *Frontend) Reset() {
	if f == nil {
		return
	}
	f.window.reset()
	f.spectrum.reset()
	f.filterbank.reset()
	f.noise.reset()
	f.gain.reset()
	clear(f.raw)
	f.frames = 0
	f.state = Empty
}

// Close releases the frontend. Further Process calls return ErrClosed.
// Close is safe on a nil or already closed Frontend.
func (f *Frontend) Close() error {
	if f == nil || f.closed {
		return nil
	}
	f.Reset()
	f.closed = true
	return nil
}

// State reports the buffering state.
func (f *Frontend) State() State {
	if f == nil {
		return Empty
	}
	return f.state
}

// StepSize is the number of samples each Process call requires.
func (f *Frontend) StepSize() int { return f.window.step }

// WindowSize is the analysis window length in samples.
func (f *Frontend) WindowSize() int { return f.window.size }

// NumChannels is the length of every non-empty feature vector.
func (f *Frontend) NumChannels() int { return len(f.raw) }

// FFTSize is the transform length, the window size rounded up to a power
// of two.
func (f *Frontend) FFTSize() int { return f.spectrum.fftSize }

// FrameCount is the number of feature vectors produced since the last Reset.
func (f *Frontend) FrameCount() uint64 { return f.frames }

// Config returns a copy of the configuration the frontend was built with.
func (f *Frontend) Config() Config { return f.cfg }
