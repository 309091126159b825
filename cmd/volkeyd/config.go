package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for volkeyd.
//
// Every field has a built-in default, so a config file only needs the keys it
// changes. Command-line flags and positional arguments are applied on top.
type Config struct {
	// Input device configuration
	Input InputConfig `yaml:"input"`

	// ALSA mixer configuration
	Mixer MixerConfig `yaml:"mixer"`

	// Step size
	Volume VolumeConfig `yaml:"volume"`

	// Optional websocket state feed
	StateWS StateWSConfig `yaml:"state_ws"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type InputConfig struct {
	Device string `yaml:"device"`
}

type MixerConfig struct {
	Name    string `yaml:"name"`    // ALSA card name
	Control string `yaml:"control"` // ALSA mixer control name
}

type VolumeConfig struct {
	Step int `yaml:"step"`
}

type StateWSConfig struct {
	Listen string `yaml:"listen"` // empty disables the feed
	Path   string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Device: defaultInputDevice,
		},
		Mixer: MixerConfig{
			Name:    defaultMixerName,
			Control: defaultMixerControl,
		},
		Volume: VolumeConfig{
			Step: defaultStep,
		},
		StateWS: StateWSConfig{
			Listen: "",
			Path:   defaultStateWSPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace and comments may follow the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	cfg.Input.Device = ExpandPath(cfg.Input.Device)

	return cfg, nil
}

// FlagOverrides carries values set on the command line. A nil pointer means
// "not given"; a non-nil pointer is applied even if it holds a zero value.
type FlagOverrides struct {
	InputDevice  *string
	MixerName    *string
	MixerControl *string

	Step *int

	StateWSListen *string

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.InputDevice != nil {
		cfg.Input.Device = *o.InputDevice
	}
	if o.MixerName != nil {
		cfg.Mixer.Name = *o.MixerName
	}
	if o.MixerControl != nil {
		cfg.Mixer.Control = *o.MixerControl
	}
	if o.Step != nil {
		cfg.Volume.Step = *o.Step
	}
	if o.StateWSListen != nil {
		cfg.StateWS.Listen = *o.StateWSListen
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	if c.Input.Device == "" {
		return errors.New("input.device must not be empty")
	}
	if c.Mixer.Name == "" {
		return errors.New("mixer.name must not be empty")
	}
	if c.Mixer.Control == "" {
		return errors.New("mixer.control must not be empty")
	}
	if c.Volume.Step < 1 {
		return errors.New("volume.step must be >= 1")
	}
	if c.StateWS.Listen != "" && (c.StateWS.Path == "" || c.StateWS.Path[0] != '/') {
		return errors.New("state_ws.path must start with '/' when state_ws.listen is set")
	}
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
