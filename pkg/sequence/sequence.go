// Package sequence loads motion sequences from YAML or JSONC files and
// provides the builtin sequences.
//
// A sequence file lists steps in order. Each step sets any subset of the
// axes (forward, left, up, roll, pitch) and mode flags, and holds the
// resulting frame for its duration:
//
//	name: stand-and-turn
//	steps:
//	  - name: stand up
//	    mode_mark: true
//	    stand_mode: true
//	    up: 1.0
//	    duration: 2s
//	  - name: turn left
//	    roll: 0.3
//	    duration: 1.5   # seconds
//
// Durations are either Go duration strings or plain numbers of seconds.
package sequence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/gwillem/diablo/pkg/motion"
)

// BuiltinPrefix selects a builtin sequence instead of a file.
const BuiltinPrefix = "builtin:"

// Duration is a step duration as authored: "1.5s" or 1.5.
type Duration time.Duration

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return d.parseString(s)
	}
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("duration must be a string or a number of seconds: %w", err)
	}
	*d = Duration(seconds * float64(time.Second))
	return nil
}

// UnmarshalYAML accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if tag := node.ShortTag(); tag == "!!int" || tag == "!!float" {
		seconds, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*d = Duration(seconds * float64(time.Second))
		return nil
	}
	if err := d.parseString(node.Value); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

// MarshalYAML writes the duration as a Go duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) parseString(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// File is the on-disk form of a sequence.
type File struct {
	Name  string `json:"name" yaml:"name"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Step is the on-disk form of one step. Omitted fields are left unchanged.
type Step struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	Forward *float64 `json:"forward,omitempty" yaml:"forward,omitempty"`
	Left    *float64 `json:"left,omitempty" yaml:"left,omitempty"`
	Up      *float64 `json:"up,omitempty" yaml:"up,omitempty"`
	Roll    *float64 `json:"roll,omitempty" yaml:"roll,omitempty"`
	Pitch   *float64 `json:"pitch,omitempty" yaml:"pitch,omitempty"`

	ModeMark       *bool `json:"mode_mark,omitempty" yaml:"mode_mark,omitempty"`
	StandMode      *bool `json:"stand_mode,omitempty" yaml:"stand_mode,omitempty"`
	JumpMode       *bool `json:"jump_mode,omitempty" yaml:"jump_mode,omitempty"`
	SplitMode      *bool `json:"split_mode,omitempty" yaml:"split_mode,omitempty"`
	HeightCtrlMode *bool `json:"height_ctrl_mode,omitempty" yaml:"height_ctrl_mode,omitempty"`
	PitchCtrlMode  *bool `json:"pitch_ctrl_mode,omitempty" yaml:"pitch_ctrl_mode,omitempty"`
	RollCtrlMode   *bool `json:"roll_ctrl_mode,omitempty" yaml:"roll_ctrl_mode,omitempty"`
	// DanceMode is another name for SplitMode.
	DanceMode *bool `json:"dance_mode,omitempty" yaml:"dance_mode,omitempty"`

	Duration *Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Parse decodes a sequence file. The format is chosen from the extension
// of name: .yaml/.yml for YAML, anything else for JSONC (JSON with
// comments and trailing commas). Unknown keys are errors.
func Parse(name string, data []byte) (*File, error) {
	var f File
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("parsing sequence: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("parsing sequence: %w", err)
		}
	}
	if f.Name == "" {
		f.Name = NameFromPath(name)
	}
	return &f, nil
}

// ReadFile reads and parses a sequence file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := Parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// NameFromPath strips the directory and extension from path.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Build validates f and returns the executable sequence. All problems are
// reported together; each is a *motion.ConstructionError.
func (f *File) Build(policy motion.RangePolicy) (motion.Sequence, error) {
	var errs []error
	configs := make([]motion.StepConfig, 0, len(f.Steps))
	for i, s := range f.Steps {
		cfg, err := s.config(i)
		if err != nil {
			errs = append(errs, err)
		}
		configs = append(configs, cfg)
	}

	seq, err := motion.NewSequence(f.Name, configs, policy)
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return motion.Sequence{}, errors.Join(errs...)
	}
	return seq, nil
}

func (s Step) config(index int) (motion.StepConfig, error) {
	cfg := motion.StepConfig{
		Name:           s.Name,
		Forward:        s.Forward,
		Left:           s.Left,
		Up:             s.Up,
		Roll:           s.Roll,
		Pitch:          s.Pitch,
		ModeMark:       s.ModeMark,
		StandMode:      s.StandMode,
		JumpMode:       s.JumpMode,
		SplitMode:      s.SplitMode,
		HeightCtrlMode: s.HeightCtrlMode,
		PitchCtrlMode:  s.PitchCtrlMode,
		RollCtrlMode:   s.RollCtrlMode,
	}

	var errs []error
	if s.DanceMode != nil {
		if s.SplitMode != nil && *s.SplitMode != *s.DanceMode {
			errs = append(errs, &motion.ConstructionError{
				Index: index, Name: s.Name, Field: "dance_mode",
				Reason: "conflicts with split_mode",
			})
		}
		cfg.SplitMode = s.DanceMode
	}
	if s.Duration == nil {
		errs = append(errs, &motion.ConstructionError{
			Index: index, Name: s.Name, Field: "duration",
			Reason: "is required",
		})
	} else {
		cfg.Duration = time.Duration(*s.Duration)
	}
	return cfg, errors.Join(errs...)
}

// Load resolves ref to a validated sequence. A ref starting with
// BuiltinPrefix names a builtin; anything else is a file path.
func Load(ref string, policy motion.RangePolicy) (motion.Sequence, error) {
	var f *File
	if name, ok := strings.CutPrefix(ref, BuiltinPrefix); ok {
		b, ok := Builtin(name)
		if !ok {
			return motion.Sequence{}, fmt.Errorf("unknown builtin sequence %q (have %s)", name, strings.Join(BuiltinNames(), ", "))
		}
		f = b
	} else {
		var err error
		if f, err = ReadFile(ref); err != nil {
			return motion.Sequence{}, err
		}
	}
	return f.Build(policy)
}
