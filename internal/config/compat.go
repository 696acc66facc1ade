// SPDX-License-Identifier: MIT
package config

// Accessors the capture engine uses to size its stream.

// DeviceID returns the PortAudio input device index.
func (c *Config) DeviceID() int {
	return c.Capture.InputDevice
}

// Channels is always 1: the frontend consumes mono audio.
func (c *Config) Channels() int {
	return 1
}

// FramesPerBuffer is one frontend step, so every callback feeds exactly one
// chunk.
func (c *Config) FramesPerBuffer() int {
	return c.Frontend.StepSamples()
}

// SampleRate returns the capture rate, which is the frontend rate.
func (c *Config) SampleRate() float64 {
	return float64(c.Frontend.SampleRate)
}

// LowLatency reports whether the device's low input latency is requested.
func (c *Config) LowLatency() bool {
	return c.Capture.LowLatency
}
