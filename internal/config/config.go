// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for everything around the feature frontend. Frontend
// defaults live in pkg/frontend.
const (
	DefaultLogLevel = "info"

	// Capture
	MinDeviceID          = -1 // -1 represents the system default device
	DefaultInputDevice   = MinDeviceID
	DefaultLowLatency    = false
	DefaultGateEnabled   = false
	DefaultGateThreshold = 0.001 // ~ -60 dBFS peak
	DefaultTUI           = false

	// Recording
	DefaultRecordingEnabled = false
	DefaultRecordingDir     = "./recordings"
	DefaultBitDepth         = 16
	DefaultMaxDuration      = 0 // seconds, 0 for unlimited

	// Transport
	DefaultLogTransport     = false
	DefaultUDPEnabled       = false
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 10 * time.Millisecond // one packet per feature frame
	DefaultWSEnabled        = false
	DefaultWSAddress        = ":8080"
	DefaultWSPath           = "/ws"
	DefaultWSEncoding       = EncodingJSON

	// Export
	DefaultExportFormat    = FormatCSV
	DefaultResampleQuality = "high"

	// Error handling
	DefaultMaxConsecutiveWriteFailures = 5 // recording stops after this many failed writes
)

// Wire encodings for websocket frames.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// Export formats for extracted features.
const (
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
	FormatMsgpack = "msgpack"
)
