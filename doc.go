// Package diablo runs scripted motion sequences on a Diablo wheel-legged
// robot and always leaves it stopped.
//
// A sequence is a list of steps. Each step changes some axes or mode flags
// of the current control frame and holds the result for a while, publishing
// it every 50ms. However the run ends, completed, interrupted or failed, one
// neutral frame is published last.
//
// # Installation
//
//	go install github.com/gwillem/diablo/cmd/diablo@latest
//
// # Usage
//
// Check a sequence, then run it against rosbridge:
//
//	diablo validate stand.yaml
//	diablo run --url ws://robot:9090 stand.yaml
//
// The builtin self-test exercises every axis:
//
//	diablo run --tui builtin:selftest
//
// A Feetech servo bench rig can stand in for the robot:
//
//	diablo setup
//	diablo run --transport rig --record run.cbor.zst builtin:selftest
//	diablo inspect run.cbor.zst
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/diablo: CLI with run, validate, inspect, setup and list commands
//   - pkg/motion: Control frames, steps and sequences
//   - pkg/sequencer: Fixed-rate step execution with the safety stop
//   - pkg/sequence: YAML/JSONC sequence files and builtin sequences
//   - pkg/transport: rosbridge, servo rig and recording publishers
//   - pkg/config: Configuration file
//   - pkg/clock: Real and fake clocks
package diablo
