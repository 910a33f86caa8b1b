package rig

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gwillem/diablo/pkg/motion"
)

func TestAxisCalibration_Normalize(t *testing.T) {
	cal := AxisCalibration{
		RangeMin: 1000,
		RangeMax: 3000,
	}

	tests := []struct {
		raw      int
		expected float64
	}{
		{1000, -1.0}, // min -> -1
		{3000, 1.0},  // max -> 1
		{2000, 0.0},  // mid -> 0
		{1500, -0.5}, // quarter
		{2500, 0.5},  // three-quarter
	}

	for _, tt := range tests {
		got := cal.Normalize(tt.raw)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("Normalize(%d) = %f, want %f", tt.raw, got, tt.expected)
		}
	}
}

func TestAxisCalibration_Denormalize(t *testing.T) {
	cal := AxisCalibration{
		RangeMin: 1000,
		RangeMax: 3000,
	}

	tests := []struct {
		norm     float64
		expected int
	}{
		{-1.0, 1000},
		{1.0, 3000},
		{0.0, 2000},
		{-0.5, 1500},
		{0.5, 2500},
		{2.0, 3000},  // pinned to the limit
		{-7.0, 1000}, // pinned to the limit
	}

	for _, tt := range tests {
		got := cal.Denormalize(tt.norm)
		if got != tt.expected {
			t.Errorf("Denormalize(%f) = %d, want %d", tt.norm, got, tt.expected)
		}
	}
}

func TestAxisCalibration_Inverted(t *testing.T) {
	cal := AxisCalibration{RangeMin: 1000, RangeMax: 3000, DriveMode: 1}
	if got := cal.Denormalize(1.0); got != 1000 {
		t.Errorf("inverted Denormalize(1) = %d, want 1000", got)
	}
	if got := cal.Normalize(1000); math.Abs(got-1.0) > 0.001 {
		t.Errorf("inverted Normalize(1000) = %f, want 1", got)
	}
}

func TestAxisCalibration_RoundTrip(t *testing.T) {
	cal := AxisCalibration{
		RangeMin: 823,
		RangeMax: 3540,
	}

	for raw := cal.RangeMin; raw <= cal.RangeMax; raw += 100 {
		norm := cal.Normalize(raw)
		back := cal.Denormalize(norm)
		if math.Abs(float64(back-raw)) > 1 {
			t.Errorf("Round-trip failed: %d -> %f -> %d", raw, norm, back)
		}
	}
}

func TestCalibration_ServoIDs(t *testing.T) {
	cal := Calibration{
		motion.Pitch:   AxisCalibration{ID: 5, RangeMax: 1},
		motion.Forward: AxisCalibration{ID: 1, RangeMax: 1},
		motion.Up:      AxisCalibration{ID: 3, RangeMax: 1},
	}

	ids := cal.ServoIDs()
	expected := []int{1, 3, 5}
	if len(ids) != len(expected) {
		t.Fatalf("ServoIDs returned %d IDs, want %d", len(ids), len(expected))
	}
	for i, id := range ids {
		if id != expected[i] {
			t.Errorf("ServoIDs()[%d] = %d, want %d", i, id, expected[i])
		}
	}
}

func TestCalibration_ByID(t *testing.T) {
	cal := Calibration{
		motion.Roll: AxisCalibration{ID: 4, RangeMin: 100, RangeMax: 200},
		motion.Up:   AxisCalibration{ID: 3, RangeMin: 300, RangeMax: 400},
	}

	axis, ac, ok := cal.ByID(4)
	if !ok {
		t.Fatal("ByID(4) returned false")
	}
	if axis != motion.Roll || ac.RangeMin != 100 {
		t.Errorf("ByID(4) = %s %+v", axis, ac)
	}
	if _, _, ok := cal.ByID(99); ok {
		t.Error("ByID(99) should return false")
	}
}

func TestCalibration_Validate(t *testing.T) {
	tests := []struct {
		name string
		cal  Calibration
		ok   bool
	}{
		{"valid", Calibration{motion.Up: {ID: 1, RangeMin: 0, RangeMax: 4095}}, true},
		{"unknown axis", Calibration{"yaw": {ID: 1, RangeMax: 10}}, false},
		{"duplicate id", Calibration{motion.Up: {ID: 1, RangeMax: 10}, motion.Roll: {ID: 1, RangeMax: 10}}, false},
		{"empty range", Calibration{motion.Up: {ID: 1, RangeMin: 10, RangeMax: 10}}, false},
	}
	for _, tt := range tests {
		if err := tt.cal.Validate(); (err == nil) != tt.ok {
			t.Errorf("%s: Validate() = %v", tt.name, err)
		}
	}
}

func TestPositions_NeutralCenters(t *testing.T) {
	cal := Calibration{
		motion.Up:    {ID: 3, RangeMin: 1000, RangeMax: 3000},
		motion.Pitch: {ID: 5, RangeMin: 0, RangeMax: 4000},
	}
	raw := positions(cal, motion.Neutral())
	if raw[3] != 2000 || raw[5] != 2000 {
		t.Errorf("neutral positions = %v, want centers", raw)
	}

	raw = positions(cal, motion.ControlFrame{Value: motion.Values{Up: 1, Pitch: -1}})
	if raw[3] != 3000 || raw[5] != 0 {
		t.Errorf("extreme positions = %v", raw)
	}
}

func TestLoadCalibration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.json")
	data := `{"up": {"id": 3, "range_min": 1000, "range_max": 3000}, "roll": {"id": 4, "drive_mode": 1, "range_min": 500, "range_max": 3500}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cal, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	if cal[motion.Roll].DriveMode != 1 || cal[motion.Up].ID != 3 {
		t.Errorf("unexpected calibration: %+v", cal)
	}
}
