// SPDX-License-Identifier: MIT
package wavio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"microfeatures/pkg/utils"
)

func TestRoundTripMono16k(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := utils.GenerateSineWave(1600, 16000, 440, 0.7)

	if err := WriteFile(path, samples, 16000); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	clip, err := ReadFile(path, 16000, "high")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if clip.Resampled() || clip.SourceChannels != 1 || clip.SourceBitDepth != 16 {
		t.Errorf("clip metadata = %+v", clip)
	}
	if len(clip.Samples) != len(samples) {
		t.Fatalf("read %d samples, want %d", len(clip.Samples), len(samples))
	}
	for i := range samples {
		if clip.Samples[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, clip.Samples[i], samples[i])
		}
	}
}

func TestStereoDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	interleaved := []int16{100, 200, -100, -300, 32767, 32767, 0, 0}
	if err := Write(f, interleaved, 16000, 2); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	f.Close()

	clip, err := ReadFile(path, 16000, "")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := []int16{150, -200, 32767, 0}
	if clip.SourceChannels != 2 || len(clip.Samples) != len(want) {
		t.Fatalf("channels %d, samples %v", clip.SourceChannels, clip.Samples)
	}
	for i := range want {
		if clip.Samples[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, clip.Samples[i], want[i])
		}
	}
}

func TestResampleOnRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "48k.wav")
	samples := utils.GenerateSineWave(48000, 48000, 1000, 0.5)
	if err := WriteFile(path, samples, 48000); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	clip, err := ReadFile(path, 16000, "medium")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !clip.Resampled() || clip.SourceRate != 48000 || clip.SampleRate != 16000 {
		t.Errorf("clip metadata = %+v", clip)
	}
	if n := len(clip.Samples); math.Abs(float64(n)-16000) > 1600 {
		t.Errorf("resampled length = %d, want about 16000", n)
	}

	var peak int16
	for _, s := range clip.Samples {
		if s > peak {
			peak = s
		}
	}
	if peak < 8000 {
		t.Errorf("resampled peak = %d, tone lost", peak)
	}
}

func TestResampleSameRateCopies(t *testing.T) {
	in := []int16{1, 2, 3}
	out, err := Resample(in, 16000, 16000, "bogus")
	if err != nil {
		t.Fatalf("Resample() error = %v", err)
	}
	out[0] = 9
	if in[0] != 1 {
		t.Error("Resample() at equal rates aliased its input")
	}
}

func TestResampleUnknownQuality(t *testing.T) {
	if _, err := Resample([]int16{1, 2}, 48000, 16000, "best"); err == nil {
		t.Error("expected an error for an unknown quality")
	}
}

func TestReadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("definitely not RIFF data"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path, 16000, ""); !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("ReadFile() error = %v, want ErrInvalidWAV", err)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.wav"), 16000, ""); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestClamp16(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0.4, 0},
		{-0.6, -1},
		{40000, math.MaxInt16},
		{-40000, math.MinInt16},
	}
	for _, tt := range tests {
		if got := clamp16(tt.in); got != tt.want {
			t.Errorf("clamp16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
