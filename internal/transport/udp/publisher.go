// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"microfeatures/internal/transport"
)

// HeaderSize is the fixed part of every packet.
const HeaderSize = 4 + 8 + 2

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Feature Count     | uint16         | 2            | Number of floats (N)    |
| Features          | []float32      | N * 4        | Feature vector          |
+-----------------------------------------------------------------------------+
*/

// Packet is a decoded datagram.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Features  []float32
}

// Encode packs a packet into buf, replacing its contents.
func Encode(buf *bytes.Buffer, seq uint32, timestamp int64, features []float32) error {
	if len(features) > math.MaxUint16 {
		return fmt.Errorf("too many features for one packet: %d", len(features))
	}
	buf.Reset()
	buf.Grow(HeaderSize + 4*len(features))

	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], seq)
	binary.BigEndian.PutUint64(hdr[4:12], uint64(timestamp))
	binary.BigEndian.PutUint16(hdr[12:14], uint16(len(features)))
	buf.Write(hdr[:])

	var word [4]byte
	for _, f := range features {
		binary.BigEndian.PutUint32(word[:], math.Float32bits(f))
		buf.Write(word[:])
	}
	return nil
}

// Decode parses a datagram produced by Encode.
func Decode(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("short packet: %d bytes", len(b))
	}
	p := Packet{
		Sequence:  binary.BigEndian.Uint32(b[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:12])),
	}
	n := int(binary.BigEndian.Uint16(b[12:14]))
	if len(b) != HeaderSize+4*n {
		return Packet{}, fmt.Errorf("packet declares %d features but carries %d bytes", n, len(b)-HeaderSize)
	}
	p.Features = make([]float32, n)
	for i := range p.Features {
		off := HeaderSize + 4*i
		p.Features[i] = math.Float32frombits(binary.BigEndian.Uint32(b[off : off+4]))
	}
	return p, nil
}

// UDPPublisher keeps the most recent feature frame and sends it on a fixed
// interval. Frames arriving faster than the interval overwrite each other;
// ticks with no new frame send nothing.
type UDPPublisher struct {
	sender   *UDPSender
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // protects ticker and doneChan during Start/Stop

	latestMu  sync.Mutex
	latest    []float32
	timestamp int64
	fresh     bool

	sequenceNum uint32

	// Owned by the publisher goroutine.
	sendBuffer   []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates a publisher. An interval <= 0 defaults to 10ms.
func NewUDPPublisher(interval time.Duration, sender *UDPSender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, errors.New("UDP sender cannot be nil")
	}
	if interval <= 0 {
		interval = 10 * time.Millisecond
		logger.Warnf("invalid publish interval, defaulting to %s", interval)
	}
	logger.Infof("publisher interval %s", interval)

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Send records a frame for the next tick. It accepts transport.FeatureFrame,
// *transport.FeatureFrame and []float32; anything else is ignored.
func (p *UDPPublisher) Send(data any) error {
	var features []float32
	var ts int64
	switch v := data.(type) {
	case transport.FeatureFrame:
		features, ts = v.Features, v.Timestamp
	case *transport.FeatureFrame:
		features, ts = v.Features, v.Timestamp
	case []float32:
		features = v
	default:
		return nil
	}
	if ts == 0 {
		ts = time.Now().UnixNano()
	}

	p.latestMu.Lock()
	p.latest = append(p.latest[:0], features...)
	p.timestamp = ts
	p.fresh = true
	p.latestMu.Unlock()
	return nil
}

// Start launches the publishing goroutine. Calling Start while running is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("publisher already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publishing goroutine and waits for it. Safe to call more than once.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	logger.Debugf("publisher stopped after %d packets", p.sequenceNum)
	return nil
}

// publish sends the latest frame if one arrived since the previous tick.
func (p *UDPPublisher) publish() {
	p.latestMu.Lock()
	if !p.fresh {
		p.latestMu.Unlock()
		return
	}
	p.sendBuffer = append(p.sendBuffer[:0], p.latest...)
	ts := p.timestamp
	p.fresh = false
	p.latestMu.Unlock()

	p.sequenceNum++
	if err := Encode(p.packetBuffer, p.sequenceNum, ts, p.sendBuffer); err != nil {
		logger.Errorf("failed to pack frame: %v", err)
		return
	}
	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		logger.Debugf("sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	}
}

// Close stops publishing and closes the sender.
func (p *UDPPublisher) Close() error {
	p.Stop()
	return p.sender.Close()
}

var _ transport.Transport = (*UDPPublisher)(nil)
