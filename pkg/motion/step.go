package motion

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// Axis values are normalized to this range.
const (
	MinValue = -1.0
	MaxValue = 1.0
)

// RangePolicy decides what happens to an axis value outside [MinValue, MaxValue]
// when a step is built.
type RangePolicy string

const (
	// Reject fails construction with a ConstructionError.
	Reject RangePolicy = "reject"
	// Clamp pins the value to the nearest bound.
	Clamp RangePolicy = "clamp"
)

// ParseRangePolicy converts a configuration string to a RangePolicy. The
// empty string selects Reject.
func ParseRangePolicy(s string) (RangePolicy, error) {
	switch RangePolicy(s) {
	case "", Reject:
		return Reject, nil
	case Clamp:
		return Clamp, nil
	}
	return "", fmt.Errorf("unknown range policy %q (want %q or %q)", s, Reject, Clamp)
}

// ConstructionError reports a step that cannot be built.
type ConstructionError struct {
	Index  int // position in the sequence, -1 when unknown
	Name   string
	Field  string
	Value  float64
	Reason string
}

func (e *ConstructionError) Error() string {
	where := "step"
	if e.Index >= 0 {
		where = fmt.Sprintf("steps[%d]", e.Index)
	}
	if e.Name != "" {
		where += fmt.Sprintf(" %q", e.Name)
	}
	switch {
	case e.Field == "duration" && e.Value != 0:
		return fmt.Sprintf("%s: duration %s: %s", where, time.Duration(e.Value), e.Reason)
	case slices.Contains(AllAxes(), Axis(e.Field)):
		return fmt.Sprintf("%s: %s=%g: %s", where, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", where, e.Field, e.Reason)
}

// StepConfig is the authored form of a step. Nil fields are left unchanged
// when the step is applied.
type StepConfig struct {
	Name string

	Forward *float64
	Left    *float64
	Up      *float64
	Roll    *float64
	Pitch   *float64

	// ModeMark overrides the implicit mode mark. When nil, setting any
	// mode flag marks the frame.
	ModeMark *bool

	StandMode      *bool
	JumpMode       *bool
	SplitMode      *bool
	HeightCtrlMode *bool
	PitchCtrlMode  *bool
	RollCtrlMode   *bool

	Duration time.Duration
}

func (c *StepConfig) axes() map[Axis]*float64 {
	return map[Axis]*float64{
		Forward: c.Forward,
		Left:    c.Left,
		Up:      c.Up,
		Roll:    c.Roll,
		Pitch:   c.Pitch,
	}
}

func (c *StepConfig) flags() map[Flag]*bool {
	return map[Flag]*bool{
		StandMode:      c.StandMode,
		JumpMode:       c.JumpMode,
		SplitMode:      c.SplitMode,
		HeightCtrlMode: c.HeightCtrlMode,
		PitchCtrlMode:  c.PitchCtrlMode,
		RollCtrlMode:   c.RollCtrlMode,
	}
}

// StepSpec is an immutable, validated step. The zero value is a hold step
// of zero duration.
type StepSpec struct {
	name     string
	axes     map[Axis]float64
	flags    map[Flag]bool
	modeMark *bool
	duration time.Duration
}

// NewStep validates cfg and builds a StepSpec. Every problem is reported,
// joined with errors.Join; each is a *ConstructionError.
func NewStep(cfg StepConfig, policy RangePolicy) (StepSpec, error) {
	return newStep(-1, cfg, policy)
}

func newStep(index int, cfg StepConfig, policy RangePolicy) (StepSpec, error) {
	var errs []error
	fail := func(field string, value float64, reason string) {
		errs = append(errs, &ConstructionError{
			Index:  index,
			Name:   cfg.Name,
			Field:  field,
			Value:  value,
			Reason: reason,
		})
	}

	if cfg.Duration < 0 {
		fail("duration", float64(cfg.Duration), "must not be negative")
	}

	step := StepSpec{
		name:     cfg.Name,
		duration: cfg.Duration,
	}

	set := cfg.axes()
	for _, a := range AllAxes() {
		p := set[a]
		if p == nil {
			continue
		}
		v := *p
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			fail(string(a), v, "not a finite number")
			continue
		case v < MinValue || v > MaxValue:
			if policy != Clamp {
				fail(string(a), v, fmt.Sprintf("outside [%g, %g]", MinValue, MaxValue))
				continue
			}
			v = math.Max(MinValue, math.Min(MaxValue, v))
		}
		if step.axes == nil {
			step.axes = make(map[Axis]float64)
		}
		step.axes[a] = v
	}

	flags := cfg.flags()
	for _, m := range AllFlags() {
		if p := flags[m]; p != nil {
			if step.flags == nil {
				step.flags = make(map[Flag]bool)
			}
			step.flags[m] = *p
		}
	}

	if cfg.ModeMark != nil {
		mark := *cfg.ModeMark
		step.modeMark = &mark
	}

	if len(errs) > 0 {
		return StepSpec{}, errors.Join(errs...)
	}
	return step, nil
}

// Name returns the authored step name, possibly empty.
func (s StepSpec) Name() string { return s.name }

// Duration returns how long the merged frame is held.
func (s StepSpec) Duration() time.Duration { return s.duration }

// Axis returns the value the step sets for a, and whether it sets it.
func (s StepSpec) Axis(a Axis) (float64, bool) {
	v, ok := s.axes[a]
	return v, ok
}

// Flag returns the value the step sets for m, and whether it sets it.
func (s StepSpec) Flag(m Flag) (bool, bool) {
	v, ok := s.flags[m]
	return v, ok
}

// IsHold reports whether the step leaves the frame unchanged.
func (s StepSpec) IsHold() bool {
	return len(s.axes) == 0 && len(s.flags) == 0 && s.modeMark == nil
}

// Apply merges step into frame. Fields the step does not set keep their
// value. ModeMark becomes true when the step sets a mode flag, unless the
// step sets ModeMark explicitly.
func Apply(frame ControlFrame, step StepSpec) ControlFrame {
	for a, v := range step.axes {
		*frame.axisRef(a) = v
	}
	for m, v := range step.flags {
		*frame.flagRef(m) = v
	}
	switch {
	case step.modeMark != nil:
		frame.ModeMark = *step.modeMark
	case len(step.flags) > 0:
		frame.ModeMark = true
	}
	return frame
}

// Sequence is an ordered list of steps, read-only once built.
type Sequence struct {
	Name  string
	steps []StepSpec
}

// NewSequence validates every config and builds a Sequence. It reports all
// construction errors at once; on error no Sequence is returned.
func NewSequence(name string, configs []StepConfig, policy RangePolicy) (Sequence, error) {
	var errs []error
	steps := make([]StepSpec, 0, len(configs))
	for i, cfg := range configs {
		step, err := newStep(i, cfg, policy)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		steps = append(steps, step)
	}
	if len(errs) > 0 {
		return Sequence{}, errors.Join(errs...)
	}
	return Sequence{Name: name, steps: steps}, nil
}

// Len returns the number of steps.
func (s Sequence) Len() int { return len(s.steps) }

// Step returns the i-th step.
func (s Sequence) Step(i int) StepSpec { return s.steps[i] }

// Steps returns a copy of the steps in order.
func (s Sequence) Steps() []StepSpec {
	out := make([]StepSpec, len(s.steps))
	copy(out, s.steps)
	return out
}

// Duration returns the sum of all step durations.
func (s Sequence) Duration() time.Duration {
	var total time.Duration
	for _, step := range s.steps {
		total += step.duration
	}
	return total
}

// Float returns a pointer to v, for filling StepConfig fields.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v, for filling StepConfig fields.
func Bool(v bool) *bool { return &v }
