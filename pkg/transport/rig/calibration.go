package rig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gwillem/diablo/pkg/motion"
)

// AxisCalibration maps one normalized axis onto a servo's raw position range.
type AxisCalibration struct {
	ID int `json:"id" yaml:"id"`
	// DriveMode 1 inverts the axis.
	DriveMode int `json:"drive_mode" yaml:"drive_mode"`
	RangeMin  int `json:"range_min" yaml:"range_min"`
	RangeMax  int `json:"range_max" yaml:"range_max"`
}

// Calibration holds calibration data for every driven axis.
type Calibration map[motion.Axis]AxisCalibration

// LoadCalibration loads calibration data from a JSON file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	var raw map[string]AxisCalibration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse calibration JSON: %w", err)
	}

	cal := make(Calibration, len(raw))
	for name, ac := range raw {
		cal[motion.Axis(name)] = ac
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return cal, nil
}

// Validate checks that axes are known, servo IDs are unique and ranges are
// not empty.
func (c Calibration) Validate() error {
	known := make(map[motion.Axis]bool)
	for _, a := range motion.AllAxes() {
		known[a] = true
	}
	ids := make(map[int]motion.Axis)
	for axis, ac := range c {
		if !known[axis] {
			return fmt.Errorf("calibration: unknown axis %q", axis)
		}
		if other, dup := ids[ac.ID]; dup {
			return fmt.Errorf("calibration: servo %d used by both %s and %s", ac.ID, other, axis)
		}
		ids[ac.ID] = axis
		if ac.RangeMax <= ac.RangeMin {
			return fmt.Errorf("calibration: %s range [%d, %d] is empty", axis, ac.RangeMin, ac.RangeMax)
		}
	}
	return nil
}

// Normalize converts a raw servo position to a value in [-1, 1].
func (c AxisCalibration) Normalize(raw int) float64 {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	if rangeSize == 0 {
		return 0
	}
	v := (float64(raw-c.RangeMin)/rangeSize)*2 - 1
	if c.DriveMode == 1 {
		v = -v
	}
	return v
}

// Denormalize converts a value in [-1, 1] to a raw servo position. Values
// outside the range are pinned to the calibrated limits.
func (c AxisCalibration) Denormalize(norm float64) int {
	if c.DriveMode == 1 {
		norm = -norm
	}
	norm = max(motion.MinValue, min(motion.MaxValue, norm))
	rangeSize := float64(c.RangeMax - c.RangeMin)
	return int((norm+1)/2*rangeSize+0.5) + c.RangeMin
}

// ServoIDs returns the servo IDs for all calibrated axes in axis order.
func (c Calibration) ServoIDs() []int {
	ids := make([]int, 0, len(c))
	for _, axis := range motion.AllAxes() {
		if ac, ok := c[axis]; ok {
			ids = append(ids, ac.ID)
		}
	}
	return ids
}

// ByID returns the axis and calibration for a servo ID.
func (c Calibration) ByID(id int) (motion.Axis, AxisCalibration, bool) {
	for axis, ac := range c {
		if ac.ID == id {
			return axis, ac, true
		}
	}
	return "", AxisCalibration{}, false
}
