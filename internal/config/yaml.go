// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"microfeatures/internal/log"
	"microfeatures/pkg/frontend"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Frontend  frontend.Config `yaml:"frontend"`  // Feature frontend parameters.
	Capture   CaptureConfig   `yaml:"capture"`   // Live microphone capture.
	Recording RecordingConfig `yaml:"recording"` // WAV recording of captured audio.
	Transport TransportConfig `yaml:"transport"` // Feature streaming.
	Export    ExportConfig    `yaml:"export"`    // Offline extraction output.
}

// CaptureConfig holds settings for live audio input. Capture always runs
// mono at the frontend sample rate, one frontend step per buffer.
type CaptureConfig struct {
	InputDevice   int     `yaml:"input_device"`   // PortAudio device index (-1 for default).
	LowLatency    bool    `yaml:"low_latency"`    // Request the device's low input latency.
	GateEnabled   bool    `yaml:"gate_enabled"`   // Suppress publishing of chunks below the gate.
	GateThreshold float64 `yaml:"gate_threshold"` // Peak amplitude, 0.0-1.0 of full scale.
	TUI           bool    `yaml:"tui"`            // Show the live feature monitor.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`              // Record captured audio to file.
	OutputDir   string `yaml:"output_dir"`           // Directory for recordings.
	BitDepth    int    `yaml:"bit_depth"`            // 16 or 24.
	MaxDuration int    `yaml:"max_duration_seconds"` // 0 for unlimited.
}

// TransportConfig holds settings related to sending features over the network.
type TransportConfig struct {
	LogEnabled       bool          `yaml:"log_enabled"`        // Log every feature frame at DEBUG.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Publish the latest frame over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // host:port of the receiver.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	WSEnabled        bool          `yaml:"ws_enabled"`         // Serve frames to websocket clients.
	WSAddress        string        `yaml:"ws_address"`         // Listen address, e.g. ":8080".
	WSPath           string        `yaml:"ws_path"`            // Upgrade path, e.g. "/ws".
	WSEncoding       string        `yaml:"ws_encoding"`        // "json" or "msgpack".
}

// ExportConfig holds settings for offline feature extraction.
type ExportConfig struct {
	Format          string `yaml:"format"`           // "csv", "jsonl" or "msgpack".
	Raw             bool   `yaml:"raw"`              // Write fixed-point values instead of scaled floats.
	ResampleQuality string `yaml:"resample_quality"` // quick, low, medium, high, veryhigh.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Frontend: frontend.DefaultConfig(),
		Capture: CaptureConfig{
			InputDevice:   DefaultInputDevice,
			LowLatency:    DefaultLowLatency,
			GateEnabled:   DefaultGateEnabled,
			GateThreshold: DefaultGateThreshold,
			TUI:           DefaultTUI,
		},
		Recording: RecordingConfig{
			Enabled:     DefaultRecordingEnabled,
			OutputDir:   DefaultRecordingDir,
			BitDepth:    DefaultBitDepth,
			MaxDuration: DefaultMaxDuration,
		},
		Transport: TransportConfig{
			LogEnabled:       DefaultLogTransport,
			UDPEnabled:       DefaultUDPEnabled,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			WSEnabled:        DefaultWSEnabled,
			WSAddress:        DefaultWSAddress,
			WSPath:           DefaultWSPath,
			WSEncoding:       DefaultWSEncoding,
		},
		Export: ExportConfig{
			Format:          DefaultExportFormat,
			ResampleQuality: DefaultResampleQuality,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment overrides apply after the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section. Frontend errors wrap frontend.ErrInvalidConfig.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log_level '%s'", c.LogLevel)
	}

	if err := c.Frontend.Validate(); err != nil {
		return fmt.Errorf("frontend: %w", err)
	}

	// Capture
	if c.Capture.InputDevice < MinDeviceID {
		return fmt.Errorf("capture.input_device must be >= %d: %d", MinDeviceID, c.Capture.InputDevice)
	}
	if c.Capture.GateThreshold < 0 || c.Capture.GateThreshold > 1 {
		return fmt.Errorf("capture.gate_threshold must be in [0,1]: %g", c.Capture.GateThreshold)
	}

	// Recording
	if c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 {
		return fmt.Errorf("recording.bit_depth must be 16 or 24: %d", c.Recording.BitDepth)
	}
	if c.Recording.MaxDuration < 0 {
		return fmt.Errorf("recording.max_duration_seconds must be >= 0: %d", c.Recording.MaxDuration)
	}
	if c.Recording.Enabled && c.Recording.OutputDir == "" {
		return fmt.Errorf("recording.output_dir must be set when recording is enabled")
	}

	// Transport
	t := c.Transport
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return fmt.Errorf("transport.udp_target_address '%s' is invalid: %w", t.UDPTargetAddress, err)
		}
		if t.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if t.WSEnabled {
		if _, _, err := net.SplitHostPort(t.WSAddress); err != nil {
			return fmt.Errorf("transport.ws_address '%s' is invalid: %w", t.WSAddress, err)
		}
		if !strings.HasPrefix(t.WSPath, "/") {
			return fmt.Errorf("transport.ws_path must start with '/': '%s'", t.WSPath)
		}
	}
	switch t.WSEncoding {
	case EncodingJSON, EncodingMsgpack:
	default:
		return fmt.Errorf("transport.ws_encoding must be %s or %s: '%s'", EncodingJSON, EncodingMsgpack, t.WSEncoding)
	}

	// Export
	switch c.Export.Format {
	case FormatCSV, FormatJSONL, FormatMsgpack:
	default:
		return fmt.Errorf("export.format must be %s, %s or %s: '%s'", FormatCSV, FormatJSONL, FormatMsgpack, c.Export.Format)
	}
	switch strings.ToLower(c.Export.ResampleQuality) {
	case "quick", "low", "medium", "high", "veryhigh":
	default:
		return fmt.Errorf("export.resample_quality is unknown: '%s'", c.Export.ResampleQuality)
	}

	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// applyEnvOverrides replaces fields from ENV_* variables. Values that fail to
// parse are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(val)
		log.Infof("configuration: overriding log_level from env: %s", val)
	}

	// ENV_FRONTEND_CHANNELS
	if val, ok := os.LookupEnv("ENV_FRONTEND_CHANNELS"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Frontend.Filterbank.NumChannels = n
			log.Infof("configuration: overriding frontend.filterbank.num_channels from env: %d", n)
		} else {
			log.Warnf("configuration: ignoring ENV_FRONTEND_CHANNELS=%q: %v", val, err)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			log.Infof("configuration: overriding transport.udp_enabled from env: %v", bVal)
		} else {
			log.Warnf("configuration: ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		log.Infof("configuration: overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			log.Infof("configuration: overriding transport.udp_send_interval from env: %s", dur)
		} else {
			log.Warnf("configuration: ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}

	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WSAddress = val
		log.Infof("configuration: overriding transport.ws_address from env: %s", val)
	}
}
