// SPDX-License-Identifier: MIT
package utils

import (
	"errors"
	"math"
	"os"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 16000
	testFrequency  = 440.0 // A4 note
)

var testMagnitudes []float64

func TestMain(m *testing.M) {
	testMagnitudes = make([]float64, testSize)

	// Creates a "hill" with peak at position testSize/4.
	for i := range testMagnitudes {
		testMagnitudes[i] = math.Exp(-0.01 * math.Pow(float64(i-testSize/4), 2))
	}

	os.Exit(m.Run())
}

func TestMockTransport(t *testing.T) {
	tests := []struct {
		name      string
		inputData []float32
	}{
		{"Empty Data", []float32{}},
		{"Single Value", []float32{0.5}},
		{"Multiple Values", []float32{0.1, 0.2, 0.3, 0.4, 0.5}},
		{"Large Dataset", make([]float32, 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt := &MockTransport{}

			if err := mt.Send(tt.inputData); err != nil {
				t.Errorf("MockTransport.Send() error = %v", err)
			}

			got, ok := mt.Last().([]float32)
			if !ok {
				t.Fatalf("MockTransport.Last() = %T, want []float32", mt.Last())
			}
			if len(got) != len(tt.inputData) {
				t.Errorf("MockTransport.Send() stored length = %d, want %d", len(got), len(tt.inputData))
			}

			if len(tt.inputData) > 0 {
				original := tt.inputData[0]
				tt.inputData[0] = 999.999

				if got[0] == 999.999 {
					t.Errorf("MockTransport.Send() stored reference instead of copy")
				}

				tt.inputData[0] = original
			}
		})
	}
}

func TestMockTransportErrorAndClose(t *testing.T) {
	want := errors.New("boom")
	mt := &MockTransport{Err: want}

	if err := mt.Send("x"); !errors.Is(err, want) {
		t.Errorf("Send() error = %v, want %v", err, want)
	}
	if len(mt.Sent()) != 0 {
		t.Errorf("failed Send stored %d payloads", len(mt.Sent()))
	}
	if mt.Closed() {
		t.Error("Closed() true before Close")
	}
	mt.Close()
	if !mt.Closed() {
		t.Error("Closed() false after Close")
	}
}

func TestGenerateComplexWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
	}{
		{"Standard", 1024, 16000},
		{"Small", 16, 8000},
		{"Large", 8192, 48000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateComplexWave(tt.size, tt.sampleRate)

			if len(result) != tt.size {
				t.Errorf("GenerateComplexWave() buffer size = %d, want %d", len(result), tt.size)
			}

			hasNonZero := false
			for _, v := range result {
				if v != 0 {
					hasNonZero = true
					break
				}
			}

			if !hasNonZero {
				t.Errorf("GenerateComplexWave() produced all zeros")
			}
		})
	}
}

func TestGenerateSineWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
		frequency  float64
	}{
		{"A4 Note", 1024, 16000, 440.0},
		{"Middle C", 1024, 16000, 261.63},
		{"High Sample Rate", 1024, 48000, 440.0},
		{"Low Sample Rate", 1024, 8000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineWave(tt.size, tt.sampleRate, tt.frequency, 0.5)

			if len(result) != tt.size {
				t.Errorf("GenerateSineWave() buffer size = %d, want %d", len(result), tt.size)
			}

			samplesPerCycle := tt.sampleRate / tt.frequency
			crossCount := 0
			for i := 1; i < tt.size; i++ {
				if (result[i-1] < 0 && result[i] >= 0) || (result[i-1] >= 0 && result[i] < 0) {
					crossCount++
				}
			}

			// Two crossings per cycle, 20% margin for phase alignment.
			expected := float64(tt.size) / (samplesPerCycle / 2)
			tolerance := 0.2 * expected
			if math.Abs(float64(crossCount)-expected) > tolerance {
				t.Errorf("GenerateSineWave() zero crossings = %d, expected approximately %.1f±%.1f",
					crossCount, expected, tolerance)
			}

			for _, v := range result {
				if v > math.MaxInt16/2+1 || v < -math.MaxInt16/2-1 {
					t.Fatalf("sample %d exceeds half scale", v)
				}
			}
		})
	}
}

func TestGenerateNoiseDeterministic(t *testing.T) {
	a := GenerateNoise(512, 0.3, 7)
	b := GenerateNoise(512, 0.3, 7)
	c := GenerateNoise(512, 0.3, 8)

	same, differ := true, false
	for i := range a {
		if a[i] != b[i] {
			same = false
		}
		if a[i] != c[i] {
			differ = true
		}
	}
	if !same {
		t.Error("same seed produced different noise")
	}
	if !differ {
		t.Error("different seeds produced identical noise")
	}
}

func TestChunks(t *testing.T) {
	chunks := Chunks(make([]int16, 1000), 160)
	if len(chunks) != 6 {
		t.Fatalf("Chunks() = %d chunks, want 6", len(chunks))
	}
	for i, c := range chunks {
		if len(c) != 160 || cap(c) != 160 {
			t.Errorf("chunk %d len/cap = %d/%d, want 160/160", i, len(c), cap(c))
		}
	}
}

func TestFindPeakBin(t *testing.T) {
	tests := []struct {
		name     string
		mags     []float64
		start    int
		end      int
		expected int
	}{
		{"Full Range", testMagnitudes, 0, testSize - 1, testSize / 4},
		{"Partial Range Start", testMagnitudes, testSize / 8, testSize - 1, testSize / 4},
		{"Partial Range End", testMagnitudes, 0, testSize / 3, testSize / 4},
		{"Negative Start", testMagnitudes, -10, testSize - 1, testSize / 4},
		{"Out of Range End", testMagnitudes, 0, testSize * 2, testSize / 4},
		{"Empty Slice", []float64{}, 0, 10, 0},
		{"Single Value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := FindPeakBin(tt.mags, tt.start, tt.end); result != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", result, tt.expected)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		FindPeakBin(testMagnitudes, 0, len(testMagnitudes)-1)
	})

	if allocs > 0 {
		t.Errorf("FindPeakBin allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkGenerateSineWave(b *testing.B) {
	benchmarks := []struct {
		name string
		size int
	}{
		{"Small", 64},
		{"Standard", 1024},
		{"Large", 8192},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				GenerateSineWave(bm.size, testSampleRate, testFrequency, 0.9)
			}
		})
	}
}

func BenchmarkFindPeakBin(b *testing.B) {
	mags := make([]float32, 1024)
	for i := range mags {
		mags[i] = float32(math.Exp(-0.01 * math.Pow(float64(i-512), 2)))
	}

	b.ReportAllocs()
	for b.Loop() {
		FindPeakBin(mags, 0, len(mags)-1)
	}
}
