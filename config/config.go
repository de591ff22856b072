// Package config implements the CLI's optional YAML configuration
// sidecar: default values for the knobs that would otherwise have to be
// repeated on every invocation (PPQ, indent width, default velocity/
// off-velocity/duration, pitch-bend range). The mtxt command applies only
// ticks_per_quarter and pitch_bend_range from a loaded file; the other
// fields are parsed but the command does not use them.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of an mtxt CLI config file.
type Config struct {
	TicksPerQuarter    int     `yaml:"ticks_per_quarter,omitempty"`
	Indent             int     `yaml:"indent,omitempty"`
	DefaultVelocity    float64 `yaml:"default_velocity,omitempty"`
	DefaultOffVelocity float64 `yaml:"default_off_velocity,omitempty"`
	DefaultDuration    string  `yaml:"default_duration,omitempty"`
	PitchBendRange     float64 `yaml:"pitch_bend_range,omitempty"`
	MergeNotes         bool    `yaml:"merge_notes,omitempty"`
	GroupChannels      bool    `yaml:"group_channels,omitempty"`
}

// Default returns the built-in configuration used when no config file is
// given and none is found at the default path.
func Default() Config {
	return Config{
		TicksPerQuarter:    480,
		Indent:             0,
		DefaultVelocity:    0.8,
		DefaultOffVelocity: 1.0,
		DefaultDuration:    "1.0",
		PitchBendRange:     2.0,
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default() and overwriting only the fields the file sets.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load, but returns Default() unmodified (with
// a nil error) if path does not exist, so callers can always pass a
// conventional path without special-casing a first run.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}
