// Package rig drives a bench mock-up of the robot built from Feetech serial
// servos, one servo per calibrated axis. The neutral frame centers every
// servo.
package rig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/diablo/pkg/motion"
)

// DefaultBaudRate of the Feetech STS bus.
const DefaultBaudRate = 1_000_000

// Config holds configuration for a rig.
type Config struct {
	Port        string      `json:"port" yaml:"port"`
	BaudRate    int         `json:"baud_rate,omitempty" yaml:"baud_rate,omitempty"`
	Calibration Calibration `json:"calibration,omitempty" yaml:"calibration,omitempty"`
}

// IsCalibrated returns true if the rig has calibration data.
func (c *Config) IsCalibrated() bool {
	return len(c.Calibration) > 0
}

// Rig is an open servo bus.
type Rig struct {
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	calibration Calibration
}

// Open connects to the bus and enables torque on every calibrated servo.
func Open(ctx context.Context, cfg Config) (*Rig, error) {
	if !cfg.IsCalibrated() {
		return nil, errors.New("rig is not calibrated; run 'diablo setup' first")
	}
	if err := cfg.Calibration.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	r := &Rig{
		bus:         bus,
		group:       feetech.NewServoGroupByIDs(bus, cfg.Calibration.ServoIDs()...),
		calibration: cfg.Calibration,
	}
	if err := r.group.EnableAll(ctx); err != nil {
		bus.Close()
		return nil, fmt.Errorf("enable torque: %w", err)
	}
	return r, nil
}

// Positions converts frame into raw servo targets.
func (r *Rig) Positions(frame motion.ControlFrame) feetech.PositionMap {
	return positions(r.calibration, frame)
}

func positions(cal Calibration, frame motion.ControlFrame) feetech.PositionMap {
	raw := make(feetech.PositionMap, len(cal))
	for axis, ac := range cal {
		raw[ac.ID] = ac.Denormalize(frame.Axis(axis))
	}
	return raw
}

// Publish moves every calibrated servo to the frame's axis value.
func (r *Rig) Publish(ctx context.Context, frame motion.ControlFrame) error {
	if err := r.group.SetPositions(ctx, r.Positions(frame)); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}

// Close disables torque and closes the bus.
func (r *Rig) Close() error {
	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.group.DisableAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("disable torque: %w", err))
	}
	if err := r.bus.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
