// SPDX-License-Identifier: MIT
package transport

// Transport defines a generic interface for sending feature frames or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// FeatureFrame is one feature vector with its position in the stream. It is
// the payload every transport and exporter carries.
type FeatureFrame struct {
	Sequence     uint64    `json:"seq" msgpack:"seq"`                     // frame index since start or reset
	SampleOffset int64     `json:"sample_offset" msgpack:"sample_offset"` // samples consumed when the frame was produced
	Timestamp    int64     `json:"ts,omitempty" msgpack:"ts,omitempty"`   // unix nanoseconds, live capture only
	Features     []float32 `json:"features,omitempty" msgpack:"features,omitempty"`
	Raw          []uint16  `json:"raw,omitempty" msgpack:"raw,omitempty"` // fixed-point values when requested
}

// Len is the number of values the frame carries.
func (f FeatureFrame) Len() int {
	if f.Raw != nil {
		return len(f.Raw)
	}
	return len(f.Features)
}

// Value returns value i as float64 regardless of representation.
func (f FeatureFrame) Value(i int) float64 {
	if f.Raw != nil {
		return float64(f.Raw[i])
	}
	return float64(f.Features[i])
}

// Multi fans every Send out to several transports. Send reports the first
// error but always tries every transport.
type Multi []Transport

func (m Multi) Send(data any) error {
	var first error
	for _, t := range m {
		if err := t.Send(data); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, t := range m {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Transport = Multi(nil)
