// SPDX-License-Identifier: MIT
package frontend

import (
	"math"
	"testing"
)

func TestSpectrumSize(t *testing.T) {
	tests := []struct {
		input, fft int
	}{
		{480, 512},
		{400, 512},
		{512, 512},
		{513, 1024},
		{240, 256},
	}

	for _, tt := range tests {
		s := newSpectrumState(tt.input)
		if s.fftSize != tt.fft {
			t.Errorf("fft size for %d samples = %d, want %d", tt.input, s.fftSize, tt.fft)
		}
		if len(s.output) != tt.fft/2+1 {
			t.Errorf("bins for %d samples = %d, want %d", tt.input, len(s.output), tt.fft/2+1)
		}
	}
}

func TestSpectrumDC(t *testing.T) {
	s := newSpectrumState(480)
	frame := make([]int16, 480)
	for i := range frame {
		frame[i] = 1000
	}
	s.compute(frame, 0)

	// 480 samples of 1000 zero-padded to 512, scaled by 1/512.
	if s.output[0].re != 938 || s.output[0].im != 0 {
		t.Errorf("DC bin = %+v, want {938 0}", s.output[0])
	}
}

func TestSpectrumTone(t *testing.T) {
	const (
		size = 512
		bin  = 32
		amp  = 16000
	)
	s := newSpectrumState(size)
	frame := make([]int16, size)
	for i := range frame {
		frame[i] = int16(math.Round(amp * math.Cos(2*math.Pi*bin*float64(i)/size)))
	}
	s.compute(frame, 0)

	for i, c := range s.output {
		want := 0
		if i == bin {
			want = amp / 2
		}
		if d := int(c.re) - want; d < -1 || d > 1 {
			t.Errorf("bin %d re = %d, want %d±1", i, c.re, want)
		}
		if c.im < -1 || c.im > 1 {
			t.Errorf("bin %d im = %d, want 0±1", i, c.im)
		}
	}
}

func TestSpectrumShiftWraps(t *testing.T) {
	s := newSpectrumState(4)
	s.compute([]int16{0x4000, 1, -1, 0}, 1)

	want := []float64{-32768, 2, -2, 0}
	for i, v := range want {
		if s.input[i] != v {
			t.Errorf("shifted input %d = %v, want %v", i, s.input[i], v)
		}
	}
}

func TestQuantize16(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{1.4, 1},
		{1.5, 2},
		{-1.5, -2},
		{40000, math.MaxInt16},
		{-40000, math.MinInt16},
	}

	for _, tt := range tests {
		if got := quantize16(tt.in); got != tt.want {
			t.Errorf("quantize16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func BenchmarkSpectrum(b *testing.B) {
	s := newSpectrumState(480)
	frame := make([]int16, 480)
	for i := range frame {
		frame[i] = int16(8000 * math.Sin(2*math.Pi*1000*float64(i)/16000))
	}

	b.ReportAllocs()
	for b.Loop() {
		s.compute(frame, 1)
	}
}
