// Package config persists synthesizer settings and session state between
// runs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// TuningConfig names the Scala files loaded at startup. Empty paths keep
// standard tuning.
type TuningConfig struct {
	Scale  string `json:"scale,omitempty"`
	Keymap string `json:"keymap,omitempty"`
}

// MidiConfig holds MIDI input and controller settings.
type MidiConfig struct {
	InputPort  string `json:"inputPort,omitempty"`
	OutputPort string `json:"outputPort,omitempty"`
	Channel    int    `json:"channel"` // 1-16, 0 for omni
	// ControllerMap assigns controllers to parameters, keyed by parameter name.
	ControllerMap map[string]int `json:"controllerMap,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	SampleRate     int          `json:"sampleRate"`
	MaxPolyphony   int          `json:"maxPolyphony"`
	PitchBendRange int          `json:"pitchBendRange"`
	Tuning         TuningConfig `json:"tuning,omitempty"`
	Midi           MidiConfig   `json:"midi"`

	BankDirs    []string `json:"bankDirs,omitempty"`
	CurrentBank string   `json:"currentBank,omitempty"`
	// IgnoredParameters keep their values across preset changes.
	IgnoredParameters []string `json:"ignoredParameters,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{
		SampleRate:     44100,
		PitchBendRange: 2,
		Midi: MidiConfig{
			ControllerMap: map[string]int{
				"freq_mod_amount": 1,
				"master_vol":      7,
			},
		},
	}
	if dir, err := ConfigDir(); err == nil {
		cfg.BankDirs = []string{filepath.Join(dir, "banks")}
	}
	return cfg
}

// Validate reports the first setting that is out of range.
func (c *Config) Validate() error {
	switch {
	case c.SampleRate < 8000 || c.SampleRate > 192000:
		return fmt.Errorf("config: sample rate %d out of range", c.SampleRate)
	case c.MaxPolyphony < 0 || c.MaxPolyphony > 128:
		return fmt.Errorf("config: max polyphony %d out of range", c.MaxPolyphony)
	case c.PitchBendRange < 0 || c.PitchBendRange > 24:
		return fmt.Errorf("config: pitch bend range %d out of range", c.PitchBendRange)
	case c.Midi.Channel < 0 || c.Midi.Channel > 16:
		return fmt.Errorf("config: midi channel %d out of range", c.Midi.Channel)
	}
	return nil
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "amsynth-go"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file yields defaults;
// settings absent from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	defaultMap := cfg.Midi.ControllerMap
	// unmarshal merges into a non-nil map; a saved map must replace it
	cfg.Midi.ControllerMap = nil
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if cfg.Midi.ControllerMap == nil {
		cfg.Midi.ControllerMap = defaultMap
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
