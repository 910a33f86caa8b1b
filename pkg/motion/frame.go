// Package motion provides the command data model for a wheel-legged robot:
// the accumulated ControlFrame and the partial-update StepSpec merged into it.
package motion

import "fmt"

// Axis identifies a continuous motion axis in a ControlFrame.
type Axis string

// Motion axes of the MotionCtrl message.
const (
	Forward Axis = "forward"
	Left    Axis = "left"
	Up      Axis = "up"
	Roll    Axis = "roll"
	Pitch   Axis = "pitch"
)

// AllAxes returns all axis names in message order.
func AllAxes() []Axis {
	return []Axis{
		Forward,
		Left,
		Up,
		Roll,
		Pitch,
	}
}

// Flag identifies a discrete mode flag in a ControlFrame.
type Flag string

// Mode flags of the MotionCtrl message.
const (
	StandMode      Flag = "stand_mode"
	JumpMode       Flag = "jump_mode"
	SplitMode      Flag = "split_mode"
	HeightCtrlMode Flag = "height_ctrl_mode"
	PitchCtrlMode  Flag = "pitch_ctrl_mode"
	RollCtrlMode   Flag = "roll_ctrl_mode"
)

// AllFlags returns all mode flag names in message order.
func AllFlags() []Flag {
	return []Flag{
		StandMode,
		JumpMode,
		SplitMode,
		HeightCtrlMode,
		PitchCtrlMode,
		RollCtrlMode,
	}
}

// Values holds the normalized axis commands, each in [-1, 1].
type Values struct {
	Forward float64 `json:"forward"`
	Left    float64 `json:"left"`
	Up      float64 `json:"up"`
	Roll    float64 `json:"roll"`
	Pitch   float64 `json:"pitch"`
}

// Mode holds the discrete mode flags.
type Mode struct {
	StandMode      bool `json:"stand_mode"`
	JumpMode       bool `json:"jump_mode"`
	SplitMode      bool `json:"split_mode"`
	HeightCtrlMode bool `json:"height_ctrl_mode"`
	PitchCtrlMode  bool `json:"pitch_ctrl_mode"`
	RollCtrlMode   bool `json:"roll_ctrl_mode"`
}

// ControlFrame is a complete snapshot of what the robot should be doing.
// The zero value is the neutral frame.
type ControlFrame struct {
	// ModeMark tells the robot to apply Mode. When false only Value matters.
	ModeMark bool   `json:"mode_mark"`
	Value    Values `json:"value"`
	Mode     Mode   `json:"mode"`
}

// Neutral returns the stop frame: zero motion, mode flags cleared and
// ModeMark false.
func Neutral() ControlFrame {
	return ControlFrame{}
}

// IsNeutral reports whether f is the stop frame.
func (f ControlFrame) IsNeutral() bool {
	return f == Neutral()
}

// Axis returns the value of axis a. Unknown axes read as zero.
func (f ControlFrame) Axis(a Axis) float64 {
	if p := f.axisRef(a); p != nil {
		return *p
	}
	return 0
}

// Flag returns the value of mode flag m. Unknown flags read as false.
func (f ControlFrame) Flag(m Flag) bool {
	if p := f.flagRef(m); p != nil {
		return *p
	}
	return false
}

func (f *ControlFrame) axisRef(a Axis) *float64 {
	switch a {
	case Forward:
		return &f.Value.Forward
	case Left:
		return &f.Value.Left
	case Up:
		return &f.Value.Up
	case Roll:
		return &f.Value.Roll
	case Pitch:
		return &f.Value.Pitch
	}
	return nil
}

func (f *ControlFrame) flagRef(m Flag) *bool {
	switch m {
	case StandMode:
		return &f.Mode.StandMode
	case JumpMode:
		return &f.Mode.JumpMode
	case SplitMode:
		return &f.Mode.SplitMode
	case HeightCtrlMode:
		return &f.Mode.HeightCtrlMode
	case PitchCtrlMode:
		return &f.Mode.PitchCtrlMode
	case RollCtrlMode:
		return &f.Mode.RollCtrlMode
	}
	return nil
}

// String renders the frame compactly for logs.
func (f ControlFrame) String() string {
	v := f.Value
	return fmt.Sprintf("mark=%t fwd=%.2f left=%.2f up=%.2f roll=%.2f pitch=%.2f stand=%t jump=%t split=%t",
		f.ModeMark, v.Forward, v.Left, v.Up, v.Roll, v.Pitch,
		f.Mode.StandMode, f.Mode.JumpMode, f.Mode.SplitMode)
}
