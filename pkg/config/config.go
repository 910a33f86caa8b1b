// Package config loads the diablo configuration file.
//
// The file is YAML. Values missing from the file keep their defaults, and
// command-line flags override both.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gwillem/diablo/pkg/motion"
	"github.com/gwillem/diablo/pkg/sequencer"
	"github.com/gwillem/diablo/pkg/transport/rig"
	"github.com/gwillem/diablo/pkg/transport/rosbridge"
)

const DefaultConfigFile = "diablo.yaml"

// Transport names.
const (
	Rosbridge = "rosbridge"
	Rig       = "rig"
	Log       = "log"
)

// Config is the diablo configuration.
type Config struct {
	// Period between frame publishes. Default: 50ms
	Period time.Duration `yaml:"period"`

	// StopTimeout bounds the final safety-stop publish. Default: 1s
	StopTimeout time.Duration `yaml:"stop_timeout"`

	// RangePolicy for out-of-range axis values: "reject" or "clamp".
	RangePolicy string `yaml:"range_policy"`

	// LogLevel is one of debug, info, warn, error. Default: info
	LogLevel string `yaml:"log_level"`

	// Transport selects where frames go: rosbridge, rig or log.
	Transport string `yaml:"transport"`

	Rosbridge RosbridgeConfig `yaml:"rosbridge"`
	Rig       RigConfig       `yaml:"rig"`
	Record    RecordConfig    `yaml:"record"`
}

// RosbridgeConfig configures the rosbridge websocket transport.
type RosbridgeConfig struct {
	URL   string `yaml:"url"`
	Topic string `yaml:"topic"`
	Type  string `yaml:"type"`
}

// RigConfig configures the servo bench rig.
type RigConfig struct {
	rig.Config `yaml:",inline"`

	// CalibrationFile is a JSON calibration used when no inline
	// calibration is given. Relative paths resolve against the config file.
	CalibrationFile string `yaml:"calibration_file,omitempty"`
}

// RecordConfig configures frame recording.
type RecordConfig struct {
	// Path of the recording. Empty disables it; a .zst suffix compresses.
	Path string `yaml:"path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Period:      sequencer.DefaultPeriod,
		StopTimeout: sequencer.DefaultStopTimeout,
		RangePolicy: string(motion.Reject),
		LogLevel:    "info",
		Transport:   Rosbridge,
		Rosbridge: RosbridgeConfig{
			URL:   rosbridge.DefaultURL,
			Topic: rosbridge.DefaultTopic,
			Type:  rosbridge.DefaultType,
		},
		Rig: RigConfig{
			Config: rig.Config{BaudRate: rig.DefaultBaudRate},
		},
	}
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file, on top of the
// defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Rig.CalibrationFile != "" && !cfg.Rig.IsCalibrated() {
		calPath := cfg.Rig.CalibrationFile
		if !filepath.IsAbs(calPath) {
			calPath = filepath.Join(filepath.Dir(path), calPath)
		}
		cal, err := rig.LoadCalibration(calPath)
		if err != nil {
			return nil, err
		}
		cfg.Rig.Calibration = cal
	}
	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}

// Policy returns the parsed range policy.
func (c *Config) Policy() (motion.RangePolicy, error) {
	return motion.ParseRangePolicy(c.RangePolicy)
}

// Level returns the parsed log level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return level, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Period <= 0 {
		errs = append(errs, fmt.Errorf("period must be positive, got %s", c.Period))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stop_timeout must be positive, got %s", c.StopTimeout))
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	switch c.Transport {
	case Rosbridge:
		if c.Rosbridge.URL == "" {
			errs = append(errs, errors.New("rosbridge.url is required"))
		}
		if c.Rosbridge.Topic == "" {
			errs = append(errs, errors.New("rosbridge.topic is required"))
		}
	case Rig:
		if c.Rig.Port == "" {
			errs = append(errs, errors.New("rig.port is required"))
		}
		if !c.Rig.IsCalibrated() {
			errs = append(errs, errors.New("rig is not calibrated; run 'diablo setup' first"))
		} else if err := c.Rig.Calibration.Validate(); err != nil {
			errs = append(errs, err)
		}
	case Log:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q (want %s, %s or %s)", c.Transport, Rosbridge, Rig, Log))
	}

	return errors.Join(errs...)
}
