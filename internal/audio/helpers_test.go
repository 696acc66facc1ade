// SPDX-License-Identifier: MIT
package audio

import (
	"strconv"
	"testing"

	"microfeatures/internal/config"
	"microfeatures/internal/transport"
	"microfeatures/pkg/frontend"
	"microfeatures/pkg/utils"
)

const (
	testSampleRate = 16000
	testFrameSize  = 160

	lowThreshold  int32 = 33    // ~0.001 of full scale
	highThreshold int32 = 32734 // ~0.999 of full scale
)

var (
	testBuffer  = utils.GenerateSineWave(testFrameSize, testSampleRate, 440, 0.5)
	quietBuffer = utils.GenerateSineWave(testFrameSize, testSampleRate, 440, 0.002)
	loudBuffer  = utils.GenerateSineWave(testFrameSize, testSampleRate, 440, 0.9)
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Frontend.SampleRate = testSampleRate
	return cfg
}

// newTestEngine builds an engine around a fresh frontend without PortAudio.
func newTestEngine(t testing.TB, tr transport.Transport) *Engine {
	t.Helper()
	cfg := testConfig()
	fe, err := frontend.New(cfg.Frontend)
	if err != nil {
		t.Fatalf("frontend.New() error = %v", err)
	}
	return newEngine(cfg, fe, tr)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
