package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gwillem/diablo/pkg/clock"
	"github.com/gwillem/diablo/pkg/config"
	"github.com/gwillem/diablo/pkg/motion"
	"github.com/gwillem/diablo/pkg/sequence"
	"github.com/gwillem/diablo/pkg/sequencer"
	"github.com/gwillem/diablo/pkg/transport"
	"github.com/gwillem/diablo/pkg/transport/record"
	"github.com/gwillem/diablo/pkg/transport/rig"
	"github.com/gwillem/diablo/pkg/transport/rosbridge"
)

type RunCommand struct {
	Transport string        `short:"t" long:"transport" choice:"rosbridge" choice:"rig" choice:"log" description:"Where to send frames (default from config)"`
	URL       string        `long:"url" description:"rosbridge websocket URL"`
	Period    time.Duration `long:"period" description:"Publish interval, e.g. 50ms"`
	Record    string        `long:"record" description:"Also record every frame to this file (.zst compresses)"`
	Clamp     bool          `long:"clamp" description:"Clamp out-of-range axis values instead of rejecting the sequence"`
	TUI       bool          `long:"tui" description:"Show a live chart of the commanded axes"`

	Args struct {
		Sequence string `positional-arg-name:"sequence" description:"Sequence file or builtin:<name>" required:"yes"`
	} `positional-args:"yes"`
}

func (c *RunCommand) apply(cfg *config.Config) {
	if c.Transport != "" {
		cfg.Transport = c.Transport
	}
	if c.URL != "" {
		cfg.Rosbridge.URL = c.URL
	}
	if c.Period > 0 {
		cfg.Period = c.Period
	}
	if c.Record != "" {
		cfg.Record.Path = c.Record
	}
	if c.Clamp {
		cfg.RangePolicy = string(motion.Clamp)
	}
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	policy, _ := cfg.Policy()
	seq, err := sequence.Load(c.Args.Sequence, policy)
	if err != nil {
		return err
	}

	var logs *logWriter
	var logOut io.Writer = os.Stderr
	if c.TUI {
		logs = newLogWriter(maxLogs * 4)
		logOut = logs
	}
	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pub, closers, err := openTransport(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		// Close in reverse order of opening.
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Error("close transport", "error", err)
			}
		}
	}()

	seqr := sequencer.New(sequencer.NewSink(pub, clock.Real()), sequencer.Config{
		Period:      cfg.Period,
		StopTimeout: cfg.StopTimeout,
		Logger:      logger,
	})

	var out sequencer.Outcome
	if c.TUI {
		out, err = runTUI(ctx, seqr, seq, logs)
		if err != nil {
			return err
		}
	} else {
		out = seqr.Run(ctx, seq)
	}

	printOutcome(out)
	if code := out.ExitCode(); code != 0 {
		msg := fmt.Sprintf("sequence %s", out.Phase)
		if out.Err != nil {
			msg += ": " + out.Err.Error()
		}
		return &exitError{code: code, msg: msg}
	}
	return nil
}

// openTransport connects the configured publisher and, when recording,
// tees it into a recorder. The closers are returned in opening order.
func openTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sequencer.Publisher, []io.Closer, error) {
	var pub sequencer.Publisher
	var closers []io.Closer

	switch cfg.Transport {
	case config.Rosbridge:
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		client, err := rosbridge.Dial(dialCtx, rosbridge.Config{
			URL:       cfg.Rosbridge.URL,
			Topic:     cfg.Rosbridge.Topic,
			Type:      cfg.Rosbridge.Type,
			QueueSize: 2,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected", "url", cfg.Rosbridge.URL, "topic", client.Topic())
		pub, closers = client, append(closers, client)
	case config.Rig:
		r, err := rig.Open(ctx, cfg.Rig.Config)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("rig opened", "port", cfg.Rig.Port, "servos", len(cfg.Rig.Calibration))
		pub, closers = r, append(closers, r)
	default:
		pub = transport.Log(logger)
	}

	if cfg.Record.Path != "" {
		rec, err := record.Create(cfg.Record.Path, clock.Real())
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return nil, nil, err
		}
		logger.Info("recording", "path", cfg.Record.Path)
		pub = transport.Tee(pub, rec)
		closers = append(closers, rec)
	}
	return pub, closers, nil
}

func printOutcome(out sequencer.Outcome) {
	style := successStyle
	if out.Phase != sequencer.Completed {
		style = errorStyle
	}
	fmt.Fprintf(os.Stderr, "%s  steps=%d frames=%d\n", style.Render(string(out.Phase)), out.Steps, out.Published)
	if out.StopErr != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("safety stop was not delivered: "+out.StopErr.Error()))
	}
}
