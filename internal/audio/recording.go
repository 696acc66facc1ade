// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"microfeatures/internal/config"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RecordingPath returns a timestamped file name in dir, creating dir.
func RecordingPath(dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recording directory '%s': %w", dir, err)
	}
	return filepath.Join(dir, "capture_"+now.Format("20060102_150405")+".wav"), nil
}

func (e *Engine) StartRecording(filename string) error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		return fmt.Errorf("already recording")
	}

	bitDepth := e.config.Recording.BitDepth
	switch bitDepth {
	case 0:
		bitDepth = config.DefaultBitDepth
	case 16, 24:
	default:
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	e.outputFile = file

	rate := int(e.config.SampleRate())
	channels := e.config.Channels()
	e.wavEncoder = wav.NewEncoder(file, rate, bitDepth, channels, 1)
	e.bitShift = uint(bitDepth - 16)

	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  rate,
		},
		Data:           make([]int, e.config.FramesPerBuffer()*channels),
		SourceBitDepth: bitDepth,
	}

	e.writeFailures = 0
	e.recordedSamples = 0
	e.maxSamples = int64(e.config.Recording.MaxDuration) * int64(rate)

	atomic.StoreInt32(&e.isRecording, 1)
	logger.Infof("recording %d-bit to '%s'", bitDepth, filename)
	return nil
}

// recordBuffer appends one chunk to the recording. Writing stops, without
// closing the file, once the duration limit is reached or after too many
// consecutive write failures.
func (e *Engine) recordBuffer(buffer []int16) {
	if e.wavEncoder == nil {
		return
	}
	if e.maxSamples > 0 && e.recordedSamples >= e.maxSamples {
		atomic.StoreInt32(&e.isRecording, 0)
		logger.Infof("recording reached its %ds limit", e.config.Recording.MaxDuration)
		return
	}

	n := len(buffer)
	if e.maxSamples > 0 {
		n = int(min(int64(n), e.maxSamples-e.recordedSamples))
	}
	e.sampleBuf.Data = e.sampleBuf.Data[:cap(e.sampleBuf.Data)]
	for i, sample := range buffer[:n] {
		e.sampleBuf.Data[i] = int(sample) << e.bitShift
	}
	e.sampleBuf.Data = e.sampleBuf.Data[:n]

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		e.writeFailures++
		logger.Errorf("error writing to WAV file: %v", err)
		if e.writeFailures >= config.DefaultMaxConsecutiveWriteFailures {
			atomic.StoreInt32(&e.isRecording, 0)
			logger.Errorf("recording stopped after %d consecutive write failures", e.writeFailures)
		}
		return
	}
	e.writeFailures = 0
	e.recordedSamples += int64(n)
}

func (e *Engine) StopRecording() error {
	if e.wavEncoder == nil && e.outputFile == nil {
		atomic.StoreInt32(&e.isRecording, 0)
		return nil
	}
	atomic.StoreInt32(&e.isRecording, 0)

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}

	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		logger.Infof("recording saved: %d samples", e.recordedSamples)
		e.outputFile = nil
	}

	return nil
}
