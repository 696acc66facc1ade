// SPDX-License-Identifier: MIT
/*
Package audio runs the feature frontend on live microphone input:
- PortAudio capture, mono int16, one frontend step per callback
- Feature frames fanned out to transports and an optional monitor channel
- Peak gate that suppresses publishing of quiet chunks
- WAV recording of the captured audio

Thread Safety:
- The frontend and buffers are owned by the PortAudio callback
- Counters and the recording flag are atomic
- Buffers are pre-allocated before the stream starts
*/
package audio

import (
	"errors"
	"os"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"microfeatures/internal/config"
	"microfeatures/internal/log"
	"microfeatures/internal/transport"
	"microfeatures/pkg/frontend"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

var logger = log.Named("audio")

// monitorQueue bounds the frames waiting for the monitor; extra frames are dropped.
const monitorQueue = 32

// Stats are running counters for a capture session.
type Stats struct {
	Chunks     uint64 // callbacks processed
	Frames     uint64 // feature frames produced
	Published  uint64 // frames handed to the transport
	Suppressed uint64 // frames held back by the gate
	Dropped    uint64 // frames the monitor could not keep up with
}

type Engine struct {
	// Core configuration and state.
	config    *config.Config
	frontend  *frontend.Frontend
	transport transport.Transport
	monitor   chan transport.FeatureFrame

	// Audio input handling.
	inputBuffer  []int16
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Feature output, reused every frame.
	features  []float32
	sequence  uint64
	samplesIn int64

	chunks, frames, published, suppressed, dropped atomic.Uint64

	// Peak gate on the incoming chunk.
	gateEnabled   bool
	gateThreshold int32 // absolute amplitude threshold (0-32767)

	// Recording state and buffers.
	isRecording     int32 // atomic flag for thread-safe state
	outputFile      *os.File
	wavEncoder      *wav.Encoder
	sampleBuf       *audio.IntBuffer // reusable buffer for format conversion
	bitShift        uint             // left shift from 16 bits to the file depth
	writeFailures   int
	recordedSamples int64
	maxSamples      int64 // 0 for unlimited
}

// NewEngine resolves the configured input device and prepares an engine
// feeding fe. Frames go to t, which may be nil.
func NewEngine(cfg *config.Config, fe *frontend.Frontend, t transport.Transport) (*Engine, error) {
	if fe == nil {
		return nil, frontend.ErrNilFrontend
	}
	inputDevice, err := InputDevice(cfg.DeviceID())
	if err != nil {
		return nil, err
	}

	e := newEngine(cfg, fe, t)
	e.inputDevice = inputDevice
	if cfg.LowLatency() {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}
	logger.Infof("input device '%s' (%.0f Hz default), latency %s",
		inputDevice.Name, inputDevice.DefaultSampleRate, e.inputLatency)
	return e, nil
}

// newEngine builds an engine without touching PortAudio.
func newEngine(cfg *config.Config, fe *frontend.Frontend, t transport.Transport) *Engine {
	e := &Engine{
		config:      cfg,
		frontend:    fe,
		transport:   t,
		inputBuffer: make([]int16, cfg.FramesPerBuffer()*cfg.Channels()),
		features:    make([]float32, fe.NumChannels()),
		gateEnabled: cfg.Capture.GateEnabled,
	}
	e.SetGateThreshold(cfg.Capture.GateThreshold)
	return e
}

// Monitor returns a channel receiving every produced frame, gated or not.
// It is created on first call and closed by Close. Frames are dropped while
// the receiver lags.
func (e *Engine) Monitor() <-chan transport.FeatureFrame {
	if e.monitor == nil {
		e.monitor = make(chan transport.FeatureFrame, monitorQueue)
	}
	return e.monitor
}

// Stats returns a snapshot of the running counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Chunks:     e.chunks.Load(),
		Frames:     e.frames.Load(),
		Published:  e.published.Load(),
		Suppressed: e.suppressed.Load(),
		Dropped:    e.dropped.Load(),
	}
}

func (e *Engine) StartInputStream() error {
	if e.inputDevice == nil {
		return errors.New("no input device")
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.Channels(),
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		FramesPerBuffer: e.config.FramesPerBuffer(),
		SampleRate:      e.config.SampleRate(),
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return err
	}

	logger.Infof("capturing %.0f Hz mono, %d frames per buffer", params.SampleRate, params.FramesPerBuffer)
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}
		if err := e.inputStream.Close(); err != nil {
			return err
		}
		e.inputStream = nil
	}
	return nil
}

// processInputStream is the PortAudio callback. It only touches
// pre-allocated buffers, apart from the copy handed to transports.
func (e *Engine) processInputStream(in []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	copy(e.inputBuffer, in)
	e.processBuffer(e.inputBuffer)

	if atomic.LoadInt32(&e.isRecording) == 1 {
		e.recordBuffer(e.inputBuffer)
	}
}

// peak returns the largest absolute sample, branchless.
func peak(buffer []int16) int32 {
	var maxAmplitude int32
	for _, s := range buffer {
		sample := int32(s)
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - maxAmplitude
		maxAmplitude += diff &^ (diff >> 31)
	}
	return maxAmplitude
}

// processBuffer feeds one chunk to the frontend and publishes any frame it
// produces. The gate decides publishing only; the frontend sees every
// chunk so its noise and gain estimates keep tracking.
func (e *Engine) processBuffer(buffer []int16) {
	e.chunks.Add(1)

	n, read, err := e.frontend.ProcessInto(buffer, e.features)
	if err != nil {
		logger.Errorf("frontend rejected chunk: %v", err)
		return
	}
	e.samplesIn += int64(read)
	if n == 0 {
		return
	}
	e.frames.Add(1)

	frame := transport.FeatureFrame{
		Sequence:     e.sequence,
		SampleOffset: e.samplesIn,
		Timestamp:    time.Now().UnixNano(),
		Features:     slices.Clone(e.features[:n]),
	}
	e.sequence++

	if e.monitor != nil {
		select {
		case e.monitor <- frame:
		default:
			e.dropped.Add(1)
		}
	}

	if e.gateEnabled && peak(buffer) <= e.gateThreshold {
		e.suppressed.Add(1)
		return
	}
	if e.transport == nil {
		return
	}
	if err := e.transport.Send(frame); err != nil {
		logger.Warnf("transport error on frame %d: %v", frame.Sequence, err)
		return
	}
	e.published.Add(1)
}

// Close stops recording and capture and closes the monitor channel. The
// transport is left to its owner.
func (e *Engine) Close() error {
	if err := e.StopInputStream(); err != nil {
		return err
	}
	if atomic.LoadInt32(&e.isRecording) == 1 {
		if err := e.StopRecording(); err != nil {
			return err
		}
	}
	if e.monitor != nil {
		close(e.monitor)
		e.monitor = nil
	}
	s := e.Stats()
	logger.Infof("engine closed: %d chunks, %d frames, %d published, %d suppressed",
		s.Chunks, s.Frames, s.Published, s.Suppressed)
	return nil
}
