package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/diablo/pkg/config"
)

type Options struct {
	Config  string `short:"c" long:"config" default:"diablo.yaml" description:"Configuration file"`
	Verbose bool   `short:"v" long:"verbose" description:"Log at debug level"`

	Run      RunCommand      `command:"run" description:"Run a motion sequence and stop the robot when it ends"`
	Validate ValidateCommand `command:"validate" alias:"check" description:"Check a sequence without sending anything"`
	Inspect  InspectCommand  `command:"inspect" description:"Print a recorded frame log"`
	Setup    SetupCommand    `command:"setup" description:"Scan for a servo bench rig and calibrate it"`
	List     ListCommand     `command:"list" alias:"ls" description:"List builtin sequences"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

// exitError ends the process with a specific status.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	parser.LongDescription = "Diablo - motion sequencer for the Diablo wheel-legged robot"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

// loadConfig reads the configuration file. A missing default file yields
// the defaults; a missing explicit file is an error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigFrom(opts.Config)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && opts.Config == config.DefaultConfigFile {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("load config: %w", err)
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
