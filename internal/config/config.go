// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// MinDeviceID represents the system default device in PortAudio's device
// index space.
const MinDeviceID = -1

// The pipeline's dataflow is fixed at 48kHz stereo capture/playback and
// 16kHz mono STFT processing (SPEC_FULL.md §2-§4); unlike the teacher's
// general-purpose recorder, sample rate and channel count are therefore
// not user-configurable.
const (
	PipelineSampleRate = 48000.0
	PipelineChannels   = 2
)

const (
	defaultFramesPerBuffer = 288 // 3*96: one STFT hop's worth of 48kHz audio, per channel set
	defaultLogLevel        = "info"
	defaultUDPAddress      = "127.0.0.1:9090"
	defaultUDPInterval     = time.Second
	defaultWSAddress     = ":8080"
	defaultRecordingBits = 16
)

// Config is the single, unified runtime configuration for the pipeline,
// its diagnostics transports and its optional debug recorder. It replaces
// the teacher's two independent (and mutually incompatible) Config types.
type Config struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
	Command  string `yaml:"command,omitempty"`

	Audio       AudioConfig       `yaml:"audio"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Recording   RecordingConfig   `yaml:"recording"`
}

// AudioConfig selects devices and latency mode. Sample rate and channel
// count are not present here; they are pipeline constants.
type AudioConfig struct {
	InputDevice     int  `yaml:"input_device"`
	OutputDevice    int  `yaml:"output_device"`
	FramesPerBuffer int  `yaml:"frames_per_buffer"`
	LowLatency      bool `yaml:"low_latency"`
}

// DiagnosticsConfig controls the periodic pipeline.Stats broadcast.
type DiagnosticsConfig struct {
	UDPEnabled      bool          `yaml:"udp_enabled"`
	UDPTargetAddr   string        `yaml:"udp_target_address"`
	UDPSendInterval time.Duration `yaml:"udp_send_interval"`

	WebSocketEnabled bool   `yaml:"websocket_enabled"`
	WebSocketAddr    string `yaml:"websocket_address"`
}

// RecordingConfig controls the optional WAV debug tap on the 48kHz
// captured stream (SPEC_FULL.md §11).
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"`
	BitDepth   int    `yaml:"bit_depth"`
}

// Defaults returns the built-in configuration before any file, flag or
// env overrides are applied, for callers (such as the CLI) that need a
// base to bind flags against.
func Defaults() Config {
	return defaults()
}

func defaults() Config {
	return Config{
		Debug:    false,
		LogLevel: defaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			OutputDevice:    MinDeviceID,
			FramesPerBuffer: defaultFramesPerBuffer,
			LowLatency:      false,
		},
		Diagnostics: DiagnosticsConfig{
			UDPEnabled:       false,
			UDPTargetAddr:    defaultUDPAddress,
			UDPSendInterval:  defaultUDPInterval,
			WebSocketEnabled: false,
			WebSocketAddr:    defaultWSAddress,
		},
		Recording: RecordingConfig{
			Enabled:    false,
			OutputFile: "",
			BitDepth:   defaultRecordingBits,
		},
	}
}

// LoadConfig builds a Config from built-in defaults, an optional YAML
// file at path (searching "config.yaml" in the working directory when
// path is empty), then ENV_* overrides, validating the result.
func LoadConfig(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		} else {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for internally inconsistent or
// out-of-range values that would otherwise surface confusingly deep in
// the pipeline or transport layers.
func (c *Config) Validate() error {
	if c.Audio.FramesPerBuffer <= 0 {
		return fmt.Errorf("audio.frames_per_buffer must be positive, got %d", c.Audio.FramesPerBuffer)
	}
	if c.Audio.FramesPerBuffer%3 != 0 {
		return fmt.Errorf("audio.frames_per_buffer must be a multiple of 3 (48kHz:16kHz ratio), got %d", c.Audio.FramesPerBuffer)
	}
	if c.Diagnostics.UDPEnabled {
		if c.Diagnostics.UDPTargetAddr == "" {
			return fmt.Errorf("diagnostics.udp_target_address must be set when UDP diagnostics are enabled")
		}
		if c.Diagnostics.UDPSendInterval <= 0 {
			return fmt.Errorf("diagnostics.udp_send_interval must be positive when UDP diagnostics are enabled")
		}
	}
	if c.Diagnostics.WebSocketEnabled && c.Diagnostics.WebSocketAddr == "" {
		return fmt.Errorf("diagnostics.websocket_address must be set when the WebSocket dashboard is enabled")
	}
	if c.Recording.Enabled && c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 && c.Recording.BitDepth != 32 {
		return fmt.Errorf("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth)
	}
	return nil
}

// ApplyEnvOverrides applies ENV_* overrides. Exported so the CLI can
// apply them after CLI flags, matching the layering order documented on
// cmd.ParseArgs (defaults -> file -> flags -> env -> validate).
func (c *Config) ApplyEnvOverrides() {
	c.applyEnvOverrides()
}

// applyEnvOverrides applies ENV_* overrides after file/default load, per
// the teacher's established precedence (file, then env, then validate).
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
		}
	}
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Diagnostics.UDPEnabled = b
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Diagnostics.UDPTargetAddr = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			c.Diagnostics.UDPSendInterval = d
		}
	}
	if val, ok := os.LookupEnv("ENV_WEBSOCKET_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Diagnostics.WebSocketEnabled = b
		}
	}
}
