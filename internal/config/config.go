// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"tempo/internal/tempo"
)

// Config is the full application configuration, loaded from YAML with
// environment variable overrides applied on top. The detector section maps
// onto tempo.Config; everything else configures the collaborators around
// the engine (source, status server, recording).
type Config struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`

	Source    SourceConfig    `yaml:"source"`
	Detector  DetectorConfig  `yaml:"detector"`
	Server    ServerConfig    `yaml:"server"`
	Recording RecordingConfig `yaml:"recording"`
}

// SourceConfig selects and tunes the audio source feeding the engine.
type SourceConfig struct {
	Kind            string  `yaml:"kind"`              // "portaudio", "malgo", "wav" or "synth".
	Device          int     `yaml:"device"`            // Capture device index, -1 for default.
	SampleRate      float64 `yaml:"sample_rate"`       // Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Capture chunk size.
	LowLatency      bool    `yaml:"low_latency"`       // Request low-latency capture settings.
	WAVPath         string  `yaml:"wav_path"`          // Input file for kind "wav".
	SynthBPM        float64 `yaml:"synth_bpm"`         // Click-track tempo for kind "synth".
	SynthFreq       float64 `yaml:"synth_freq"`        // Carrier frequency for kind "synth", Hz.
}

// DetectorConfig mirrors the engine options exposed to the operator.
type DetectorConfig struct {
	FFTSize      int     `yaml:"fft_size"`
	MinBPM       float64 `yaml:"min_bpm"`
	MaxBPM       float64 `yaml:"max_bpm"`
	Threshold    float64 `yaml:"detection_threshold"`
	Window       string  `yaml:"fft_window"` // "hamming" or "blackmanharris".
	OverlapRatio float64 `yaml:"overlap_ratio"`
	BassMin      float64 `yaml:"bass_min"`
	BassMax      float64 `yaml:"bass_max"`
}

// ServerConfig tunes the status-serving consumers.
type ServerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`          // HTTP/WebSocket listen address.
	PushInterval time.Duration `yaml:"push_interval"` // WebSocket state push cadence.
	UDPEnabled   bool          `yaml:"udp_enabled"`
	UDPTarget    string        `yaml:"udp_target"`   // host:port for binary state packets.
	UDPInterval  time.Duration `yaml:"udp_interval"` // UDP packet cadence.
}

// RecordingConfig tunes optional WAV capture of the raw input stream.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"` // Empty for a timestamped name.
}

// Default returns the built-in configuration: synth input for a zero-setup
// demo run, detector defaults matching the reference hardware tuning.
func Default() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Source: SourceConfig{
			Kind:            "portaudio",
			Device:          -1,
			SampleRate:      8000,
			FramesPerBuffer: 512,
			SynthBPM:        120,
			SynthFreq:       80,
		},
		Detector: DetectorConfig{
			FFTSize:      512,
			MinBPM:       60,
			MaxBPM:       200,
			Threshold:    1.5,
			Window:       "hamming",
			OverlapRatio: 0.5,
			BassMin:      40,
			BassMax:      200,
		},
		Server: ServerConfig{
			Enabled:      true,
			Addr:         ":8080",
			PushInterval: 100 * time.Millisecond,
			UDPEnabled:   false,
			UDPTarget:    "127.0.0.1:9090",
			UDPInterval:  100 * time.Millisecond,
		},
		Recording: RecordingConfig{
			Enabled: false,
		},
	}
}

// Load reads configuration from the YAML file at path. An empty path checks
// the default location ("config.yaml") and silently falls back to built-in
// defaults when no file exists. Environment overrides are applied after the
// file, then the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No file, run on defaults.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the collaborator settings. Detector constraints are
// enforced by the engine itself via EngineConfig + tempo.New.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "portaudio", "malgo", "wav", "synth":
	default:
		return fmt.Errorf("source.kind must be portaudio, malgo, wav or synth, got %q", c.Source.Kind)
	}
	if c.Source.Kind == "wav" && c.Source.WAVPath == "" {
		return fmt.Errorf("source.wav_path must be set for source.kind wav")
	}
	if c.Source.FramesPerBuffer <= 0 {
		return fmt.Errorf("source.frames_per_buffer must be positive, got %d", c.Source.FramesPerBuffer)
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set when the server is enabled")
	}
	if c.Server.Enabled && c.Server.PushInterval <= 0 {
		return fmt.Errorf("server.push_interval must be positive, got %s", c.Server.PushInterval)
	}
	if c.Server.UDPEnabled && c.Server.UDPTarget == "" {
		return fmt.Errorf("server.udp_target must be set when UDP publishing is enabled")
	}
	return nil
}

// EngineConfig maps the detector section onto the engine's options. The
// returned config still goes through tempo.New's own validation.
func (c *Config) EngineConfig() (tempo.Config, error) {
	window, err := tempo.ParseWindowFunc(c.Detector.Window)
	if err != nil {
		return tempo.Config{}, err
	}
	ec := tempo.DefaultConfig()
	ec.SampleRate = c.Source.SampleRate
	ec.FFTSize = c.Detector.FFTSize
	ec.MinBPM = c.Detector.MinBPM
	ec.MaxBPM = c.Detector.MaxBPM
	ec.DetectionThreshold = c.Detector.Threshold
	ec.WindowType = window
	ec.OverlapRatio = c.Detector.OverlapRatio
	ec.BassMin = c.Detector.BassMin
	ec.BassMax = c.Detector.BassMax
	return ec, nil
}

// applyEnvOverrides layers TEMPO_* environment variables over the loaded
// configuration. Only a handful of deployment-relevant knobs are exposed.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("TEMPO_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
		}
	}
	if val, ok := os.LookupEnv("TEMPO_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("TEMPO_SERVER_ADDR"); ok {
		c.Server.Addr = val
	}
	if val, ok := os.LookupEnv("TEMPO_UDP_TARGET"); ok {
		c.Server.UDPTarget = val
		c.Server.UDPEnabled = true
	}
	if val, ok := os.LookupEnv("TEMPO_UDP_INTERVAL"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			c.Server.UDPInterval = d
		}
	}
}
