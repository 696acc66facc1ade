// SPDX-License-Identifier: MIT
package frontend

import (
	"fmt"
	"strings"
)

// Defaults reproduce the keyword-spotting frontend the reference models were
// trained with: 30 ms windows every 10 ms at 16 kHz, 40 mel channels.
const (
	DefaultSampleRate         = 16000
	DefaultWindowSizeMs       = 30
	DefaultWindowStepMs       = 10
	DefaultTaper              = "hann"
	DefaultNumChannels        = 40
	DefaultLowerBandLimit     = 125.0
	DefaultUpperBandLimit     = 7500.0
	DefaultSmoothingBits      = 10
	DefaultEvenSmoothing      = 0.025
	DefaultOddSmoothing       = 0.06
	DefaultMinSignalRemaining = 0.05
	DefaultPCANStrength       = 0.95
	DefaultPCANOffset         = 80.0
	DefaultPCANGainBits       = 21
	DefaultLogScaleShift      = 6
)

// Parity selects which quantity decides between the even and odd noise
// smoothing coefficients.
type Parity string

const (
	// ParityChannel alternates by band index: even bands use the even
	// coefficient. This is the behaviour the reference feature fixtures
	// were produced with.
	ParityChannel Parity = "channel"
	// ParityFrame alternates by frame counter: every band of an even frame
	// uses the even coefficient.
	ParityFrame Parity = "frame"
)

// WindowConfig describes the analysis window.
type WindowConfig struct {
	SizeMs int    `yaml:"size_ms"` // Window length in milliseconds.
	StepMs int    `yaml:"step_ms"` // Hop between frames in milliseconds, at most SizeMs.
	Taper  string `yaml:"taper"`   // Taper name, see ParseTaper.
}

// FilterbankConfig describes the mel filterbank.
type FilterbankConfig struct {
	NumChannels    int     `yaml:"num_channels"`     // Number of output bands.
	LowerBandLimit float32 `yaml:"lower_band_limit"` // Lowest frequency in Hz.
	UpperBandLimit float32 `yaml:"upper_band_limit"` // Highest frequency in Hz, at most Nyquist.
}

// NoiseReductionConfig describes the per-band noise floor tracker.
type NoiseReductionConfig struct {
	SmoothingBits      int     `yaml:"smoothing_bits"`       // Extra fixed-point precision of the estimate.
	EvenSmoothing      float32 `yaml:"even_smoothing"`       // Smoothing coefficient for even parity, in [0,1].
	OddSmoothing       float32 `yaml:"odd_smoothing"`        // Smoothing coefficient for odd parity, in [0,1].
	MinSignalRemaining float32 `yaml:"min_signal_remaining"` // Floor kept after subtraction, fraction in [0,1].
	Parity             Parity  `yaml:"parity"`               // "channel" (default) or "frame".
}

// PCANConfig describes per-channel amplitude normalization.
type PCANConfig struct {
	Enable   bool    `yaml:"enable"`
	Strength float32 `yaml:"strength"`  // Exponent of the gain curve.
	Offset   float32 `yaml:"offset"`    // Added to the noise estimate before the power law.
	GainBits int     `yaml:"gain_bits"` // Fixed-point precision of the gain.
}

// LogScaleConfig describes the final compression stage.
type LogScaleConfig struct {
	Enable     bool `yaml:"enable"`
	ScaleShift int  `yaml:"scale_shift"` // Output scale of the natural log, as a power of two.
}

// Config holds every tunable of a Frontend. It is copied by New and never
// mutated afterwards.
type Config struct {
	SampleRate     int                  `yaml:"sample_rate"`
	Window         WindowConfig         `yaml:"window"`
	Filterbank     FilterbankConfig     `yaml:"filterbank"`
	NoiseReduction NoiseReductionConfig `yaml:"noise_reduction"`
	PCAN           PCANConfig           `yaml:"pcan"`
	LogScale       LogScaleConfig       `yaml:"log_scale"`
}

// DefaultConfig returns the configuration used by NewDefault.
func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		Window: WindowConfig{
			SizeMs: DefaultWindowSizeMs,
			StepMs: DefaultWindowStepMs,
			Taper:  DefaultTaper,
		},
		Filterbank: FilterbankConfig{
			NumChannels:    DefaultNumChannels,
			LowerBandLimit: DefaultLowerBandLimit,
			UpperBandLimit: DefaultUpperBandLimit,
		},
		NoiseReduction: NoiseReductionConfig{
			SmoothingBits:      DefaultSmoothingBits,
			EvenSmoothing:      DefaultEvenSmoothing,
			OddSmoothing:       DefaultOddSmoothing,
			MinSignalRemaining: DefaultMinSignalRemaining,
			Parity:             ParityChannel,
		},
		PCAN: PCANConfig{
			Enable:   true,
			Strength: DefaultPCANStrength,
			Offset:   DefaultPCANOffset,
			GainBits: DefaultPCANGainBits,
		},
		LogScale: LogScaleConfig{
			Enable:     true,
			ScaleShift: DefaultLogScaleShift,
		},
	}
}

// WindowSamples is the window length in samples.
func (c Config) WindowSamples() int {
	return c.Window.SizeMs * c.SampleRate / 1000
}

// StepSamples is the number of samples every Process call must supply.
func (c Config) StepSamples() int {
	return c.Window.StepMs * c.SampleRate / 1000
}

// Validate reports the first invalid field. The returned error wraps
// ErrInvalidConfig.
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be > 0: %d", c.SampleRate)
	}

	// Window
	if c.Window.SizeMs <= 0 || c.Window.StepMs <= 0 {
		return fmt.Errorf("window size and step must be > 0: %d/%d ms", c.Window.SizeMs, c.Window.StepMs)
	}
	if c.Window.StepMs > c.Window.SizeMs {
		return fmt.Errorf("window step %d ms exceeds window size %d ms", c.Window.StepMs, c.Window.SizeMs)
	}
	if c.WindowSamples() < 2 || c.StepSamples() < 1 {
		return fmt.Errorf("window of %d samples with step %d is too short", c.WindowSamples(), c.StepSamples())
	}
	if _, err := ParseTaper(c.Window.Taper); err != nil {
		return err
	}

	// Filterbank
	fb := c.Filterbank
	if fb.NumChannels <= 0 {
		return fmt.Errorf("filterbank channels must be > 0: %d", fb.NumChannels)
	}
	if fb.LowerBandLimit < 0 || fb.UpperBandLimit <= fb.LowerBandLimit {
		return fmt.Errorf("band limits must satisfy 0 <= lower < upper: %g..%g Hz", fb.LowerBandLimit, fb.UpperBandLimit)
	}
	if fb.UpperBandLimit > float32(c.SampleRate)/2 {
		return fmt.Errorf("upper band limit %g Hz is above Nyquist (%d Hz)", fb.UpperBandLimit, c.SampleRate/2)
	}

	// Noise reduction
	nr := c.NoiseReduction
	if nr.SmoothingBits < 0 || nr.SmoothingBits > 16 {
		return fmt.Errorf("smoothing bits must be in [0,16]: %d", nr.SmoothingBits)
	}
	if !unitInterval(nr.EvenSmoothing) || !unitInterval(nr.OddSmoothing) || !unitInterval(nr.MinSignalRemaining) {
		return fmt.Errorf("noise reduction coefficients must be in [0,1]: even %g, odd %g, min %g",
			nr.EvenSmoothing, nr.OddSmoothing, nr.MinSignalRemaining)
	}
	if _, err := ParseParity(string(nr.Parity)); err != nil {
		return err
	}

	// PCAN
	if c.PCAN.Enable {
		if c.PCAN.Strength < 0 {
			return fmt.Errorf("pcan strength must be >= 0: %g", c.PCAN.Strength)
		}
		if c.PCAN.Offset <= 0 {
			return fmt.Errorf("pcan offset must be > 0: %g", c.PCAN.Offset)
		}
		if c.PCAN.GainBits < 1 || c.PCAN.GainBits > 30 {
			return fmt.Errorf("pcan gain bits must be in [1,30]: %d", c.PCAN.GainBits)
		}
	}

	// Log scale
	if c.LogScale.ScaleShift < 0 || c.LogScale.ScaleShift > 16 {
		return fmt.Errorf("log scale shift must be in [0,16]: %d", c.LogScale.ScaleShift)
	}

	return nil
}

// ParseParity converts a parity name (case-insensitive) to a Parity. The
// empty string selects ParityChannel.
func ParseParity(name string) (Parity, error) {
	switch Parity(strings.ToLower(name)) {
	case "", ParityChannel:
		return ParityChannel, nil
	case ParityFrame:
		return ParityFrame, nil
	default:
		return ParityChannel, fmt.Errorf("unknown noise smoothing parity: '%s'", name)
	}
}

func unitInterval(v float32) bool {
	return v >= 0 && v <= 1
}
