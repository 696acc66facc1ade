// SPDX-License-Identifier: MIT
package frontend

import (
	"math"
	"testing"
)

func TestLogLUT(t *testing.T) {
	want := []uint16{0, 224, 442, 654, 861}
	for i, w := range want {
		if logLUT[i] != w {
			t.Errorf("logLUT[%d] = %d, want %d", i, logLUT[i], w)
		}
	}
	if last := logLUT[len(logLUT)-1]; last != 0 {
		t.Errorf("logLUT[128] = %d, want 0", last)
	}
}

func TestFixedLog(t *testing.T) {
	const shift = 6
	for _, x := range []uint32{2, 3, 7, 10, 100, 1000, 4097, 65535, 1 << 20, 123456789, 1 << 30} {
		want := math.Log(float64(x)) * (1 << shift)
		got := float64(fixedLog(x, shift))
		if math.Abs(got-want) > 1 {
			t.Errorf("fixedLog(%d) = %v, want %.2f±1", x, got, want)
		}
	}
}

func TestLogScaleApply(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		correction int
		in         []uint32
		want       []uint16
	}{
		{"disabled passes through", false, 3, []uint32{0, 5, 65535}, []uint16{0, 5, 65535}},
		{"disabled clamps", false, 3, []uint32{70000}, []uint16{65535}},
		{"zero stays zero", true, 3, []uint32{0}, []uint16{0}},
		{"one after shift down", true, -1, []uint32{3}, []uint16{0}},
		{"ln 8", true, 3, []uint32{1}, []uint16{133}},
		{"ln 2", true, 0, []uint32{2}, []uint16{44}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLogScaleState(LogScaleConfig{Enable: tt.enabled, ScaleShift: 6})
			out := make([]uint16, len(tt.in))
			l.apply(tt.in, out, tt.correction)
			for i := range tt.want {
				if out[i] != tt.want[i] {
					t.Errorf("out[%d] = %d, want %d", i, out[i], tt.want[i])
				}
			}
		})
	}
}
