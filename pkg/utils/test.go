// SPDX-License-Identifier: MIT

// Package utils holds signal generators and fakes shared by tests.
package utils

import (
	"math"
	"math/rand/v2"
	"sync"
)

// MockTransport implements the Transport interface for testing.
type MockTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool
	Err    error // returned by Send when set
}

// Send stores the data for later inspection instead of transmitting. Float
// slices are copied so callers may reuse their buffers.
func (m *MockTransport) Send(data any) error {
	if m.Err != nil {
		return m.Err
	}
	if v, ok := data.([]float32); ok {
		data = append([]float32(nil), v...)
	}
	m.mu.Lock()
	m.sent = append(m.sent, data)
	m.mu.Unlock()
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Sent returns everything passed to Send, oldest first.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.sent...)
}

// Last returns the most recent payload, or nil.
func (m *MockTransport) Last() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateComplexWave returns a 440 Hz tone with two harmonics at 90% of
// full scale.
func GenerateComplexWave(size int, sampleRate float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = int16(signal * math.MaxInt16 * 0.9)
	}
	return buffer
}

// GenerateSineWave returns a pure tone at the given amplitude (0..1 of full
// scale).
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int16(math.Sin(2*math.Pi*frequency*t) * math.MaxInt16 * amplitude)
	}
	return buffer
}

// GenerateNoise returns deterministic uniform white noise for a seed.
func GenerateNoise(size int, amplitude float64, seed uint64) []int16 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	buffer := make([]int16, size)
	for i := range buffer {
		buffer[i] = int16((rng.Float64()*2 - 1) * math.MaxInt16 * amplitude)
	}
	return buffer
}

// Chunks splits samples into consecutive chunks of size n, dropping a short
// tail.
func Chunks(samples []int16, n int) [][]int16 {
	var out [][]int16
	for len(samples) >= n {
		out = append(out, samples[:n:n])
		samples = samples[n:]
	}
	return out
}

// FindPeakBin returns the index of the largest value in
// values[startBin:endBin+1], clamping the range to the slice.
func FindPeakBin[T float32 | float64](values []T, startBin, endBin int) int {
	if len(values) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(values) {
		endBin = len(values) - 1
	}

	peakBin := startBin
	peakValue := values[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if values[bin] > peakValue {
			peakValue = values[bin]
			peakBin = bin
		}
	}

	return peakBin
}
