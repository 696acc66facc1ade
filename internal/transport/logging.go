// SPDX-License-Identifier: MIT
package transport

import (
	"microfeatures/internal/log"
)

var logger = log.Named("transport")

// LoggingTransport implements the Transport interface by logging a summary of
// each frame at debug level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	logger.Infof("using logging transport")
	return &LoggingTransport{}
}

// Send logs the received data. Logging transport never fails to send.
func (lt *LoggingTransport) Send(data any) error {
	switch v := data.(type) {
	case FeatureFrame:
		logFrame(&v)
	case *FeatureFrame:
		logFrame(v)
	default:
		logger.Debugf("received %T", data)
	}
	return nil
}

func logFrame(f *FeatureFrame) {
	n := f.Len()
	if n == 0 {
		logger.Debugf("frame %d @%d: empty", f.Sequence, f.SampleOffset)
		return
	}
	peak := 0
	for i := 1; i < n; i++ {
		if f.Value(i) > f.Value(peak) {
			peak = i
		}
	}
	logger.Debugf("frame %d @%d: %d channels, peak c%d = %.3f", f.Sequence, f.SampleOffset, n, peak, f.Value(peak))
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	logger.Debugf("logging transport closed")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
