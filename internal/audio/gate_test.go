// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"
)

func TestGateEnableHotPath(t *testing.T) {
	engine := &Engine{
		gateEnabled:   false,
		gateThreshold: lowThreshold,
	}

	engine.EnableGate()
	if !engine.gateEnabled {
		t.Error("Gate should be enabled after EnableGate()")
	}

	engine.DisableGate()
	if engine.gateEnabled {
		t.Error("Gate should be disabled after DisableGate()")
	}

	engine.EnableGate()
	engine.EnableGate() // Multiple calls should be idempotent
	if !engine.gateEnabled {
		t.Error("Gate should remain enabled after multiple EnableGate()")
	}
}

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0}, // Below min
		{0.0, 0.0},
		{0.5, 0.5},
		{1.0, 1.0},
		{1.5, 1.0}, // Above max
	}

	engine := &Engine{}
	for _, tt := range tests {
		t.Run(formatFloat(tt.input), func(t *testing.T) {
			engine.SetGateThreshold(tt.input)
			got := engine.GetGateThreshold()

			if absFloat(got-tt.expected) > 0.001 {
				t.Errorf("Gate threshold conversion: got %.3f, want %.3f", got, tt.expected)
			}
		})
	}
}

func TestGateThresholdPrecision(t *testing.T) {
	engine := &Engine{}

	for _, ratio := range []float64{0.0, 0.001, 0.1, 0.25, 0.5, 0.999, 1.0} {
		t.Run(formatFloat(ratio), func(t *testing.T) {
			engine.SetGateThreshold(ratio)

			if got := engine.GetGateThreshold(); absFloat(got-ratio) > 0.0001 {
				t.Errorf("Threshold conversion error: got %.6f, want %.6f", got, ratio)
			}
			want := int32(math.Round(ratio * math.MaxInt16))
			if engine.gateThreshold != want {
				t.Errorf("int threshold = %d, want %d", engine.gateThreshold, want)
			}
		})
	}
}

func TestPeak(t *testing.T) {
	tests := []struct {
		name   string
		buffer []int16
		want   int32
	}{
		{"empty", nil, 0},
		{"positive", []int16{1, 5, 3}, 5},
		{"negative", []int16{-7, 5, 3}, 7},
		{"min int16", []int16{0, math.MinInt16, math.MaxInt16}, 32768},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := peak(tt.buffer); got != tt.want {
				t.Errorf("peak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGateDetection(t *testing.T) {
	tests := []struct {
		desc          string
		buffer        []int16
		gateEnabled   bool
		threshold     float64
		shouldTrigger bool
	}{
		{"Gate disabled/Quiet signal", quietBuffer, false, 0.1, true},
		{"Gate disabled/Loud signal", loudBuffer, false, 0.1, true},
		{"Gate enabled/Quiet signal/Low threshold", quietBuffer, true, 0.001, true},
		{"Gate enabled/Quiet signal/Mid threshold", quietBuffer, true, 0.1, false},
		{"Gate enabled/Loud signal/Mid threshold", loudBuffer, true, 0.1, true},
		{"Gate enabled/Loud signal/High threshold", loudBuffer, true, 0.999, false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			engine := &Engine{gateEnabled: tt.gateEnabled}
			engine.SetGateThreshold(tt.threshold)

			triggered := !engine.gateEnabled || peak(tt.buffer) > engine.gateThreshold
			if triggered != tt.shouldTrigger {
				t.Errorf("got triggered=%v, want %v (peak=%d, threshold=%d)",
					triggered, tt.shouldTrigger, peak(tt.buffer), engine.gateThreshold)
			}
		})
	}
}

func TestPeakNoAllocs(t *testing.T) {
	allocs := testing.AllocsPerRun(100, func() {
		_ = peak(testBuffer) > lowThreshold
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in gate peak, got %.1f", allocs)
	}
}

func BenchmarkGateProcessingHotPath(b *testing.B) {
	benchmarks := []struct {
		name      string
		buffer    []int16
		threshold int32
	}{
		{"Quiet signal/Low threshold", quietBuffer, lowThreshold},
		{"Normal signal/Low threshold", testBuffer, lowThreshold},
		{"Loud signal/High threshold", loudBuffer, highThreshold},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = peak(bm.buffer) > bm.threshold
			}
		})
	}
}
