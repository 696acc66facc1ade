// SPDX-License-Identifier: MIT

// Package export writes feature frames to files in csv, jsonl or msgpack.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"microfeatures/internal/transport"

	"github.com/vmihailenco/msgpack/v5"
)

// Formats understood by NewWriter.
const (
	CSV     = "csv"
	JSONL   = "jsonl"
	Msgpack = "msgpack"
)

// Writer serializes frames. Close flushes buffered output but does not
// close the underlying io.Writer.
type Writer interface {
	Write(frame transport.FeatureFrame) error
	Close() error
}

// NewWriter returns a Writer for format.
func NewWriter(format string, w io.Writer) (Writer, error) {
	switch format {
	case CSV:
		return &csvWriter{w: csv.NewWriter(w)}, nil
	case JSONL:
		return &jsonlWriter{enc: json.NewEncoder(w)}, nil
	case Msgpack:
		return &msgpackWriter{enc: msgpack.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("unknown export format '%s'", format)
	}
}

// csvWriter writes one row per frame: seq, sample_offset, then one column
// per channel. The header is written with the first frame.
type csvWriter struct {
	w      *csv.Writer
	record []string
}

func (c *csvWriter) Write(frame transport.FeatureFrame) error {
	n := frame.Len()
	if c.record == nil {
		header := make([]string, 0, n+2)
		header = append(header, "seq", "sample_offset")
		for i := range n {
			header = append(header, "c"+strconv.Itoa(i))
		}
		if err := c.w.Write(header); err != nil {
			return err
		}
		c.record = make([]string, n+2)
	}
	if n+2 != len(c.record) {
		return fmt.Errorf("frame %d has %d values, header has %d", frame.Sequence, n, len(c.record)-2)
	}

	c.record[0] = strconv.FormatUint(frame.Sequence, 10)
	c.record[1] = strconv.FormatInt(frame.SampleOffset, 10)
	for i := range n {
		if frame.Raw != nil {
			c.record[i+2] = strconv.FormatUint(uint64(frame.Raw[i]), 10)
		} else {
			c.record[i+2] = strconv.FormatFloat(float64(frame.Features[i]), 'g', -1, 32)
		}
	}
	return c.w.Write(c.record)
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	return c.w.Error()
}

type jsonlWriter struct {
	enc *json.Encoder
}

func (j *jsonlWriter) Write(frame transport.FeatureFrame) error {
	return j.enc.Encode(frame)
}

func (j *jsonlWriter) Close() error { return nil }

// msgpackWriter writes a stream of msgpack maps, one per frame.
type msgpackWriter struct {
	enc *msgpack.Encoder
}

func (m *msgpackWriter) Write(frame transport.FeatureFrame) error {
	return m.enc.Encode(frame)
}

func (m *msgpackWriter) Close() error { return nil }
