package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gwillem/diablo/pkg/clock"
	"github.com/gwillem/diablo/pkg/config"
	"github.com/gwillem/diablo/pkg/motion"
	"github.com/gwillem/diablo/pkg/sequence"
	"github.com/gwillem/diablo/pkg/sequencer"
	"github.com/gwillem/diablo/pkg/transport/record"
)

func TestRunCommand_Apply(t *testing.T) {
	cfg := config.Default()
	c := RunCommand{Transport: "log", URL: "ws://robot:9090", Period: 20 * time.Millisecond, Record: "x.cbor", Clamp: true}
	c.apply(cfg)

	if cfg.Transport != config.Log || cfg.Rosbridge.URL != "ws://robot:9090" || cfg.Period != 20*time.Millisecond {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.Record.Path != "x.cbor" || cfg.RangePolicy != string(motion.Clamp) {
		t.Errorf("flags not applied: %+v", cfg)
	}

	// Unset flags keep the file values.
	cfg = config.Default()
	(&RunCommand{}).apply(cfg)
	if cfg.Transport != config.Rosbridge || cfg.Period != sequencer.DefaultPeriod {
		t.Errorf("defaults overwritten: %+v", cfg)
	}
}

func TestOpenTransport_LogWithRecording(t *testing.T) {
	cfg := config.Default()
	cfg.Transport = config.Log
	cfg.Period = 10 * time.Millisecond
	cfg.Record.Path = filepath.Join(t.TempDir(), "run.cbor.zst")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, closers, err := openTransport(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("openTransport: %v", err)
	}
	if len(closers) != 1 {
		t.Fatalf("got %d closers, want the recorder only", len(closers))
	}

	// Same shape as stand-turn, a tenth of the time.
	f, _ := sequence.Builtin("stand-turn")
	for i := range f.Steps {
		d := *f.Steps[i].Duration / 10
		f.Steps[i].Duration = &d
	}
	seq, err := f.Build(motion.Reject)
	if err != nil {
		t.Fatal(err)
	}

	seqr := sequencer.New(sequencer.NewSink(pub, clock.Real()), sequencer.Config{Period: cfg.Period, Logger: logger})
	out := seqr.Run(context.Background(), seq)
	for _, c := range closers {
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	}
	if out.Phase != sequencer.Completed {
		t.Fatalf("outcome = %s (%v)", out.Phase, out.Err)
	}

	recs, err := record.ReadAll(cfg.Record.Path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(recs) != out.Published {
		t.Errorf("recorded %d frames, published %d", len(recs), out.Published)
	}
	if last := recs[len(recs)-1].Frame; !last.IsNeutral() {
		t.Errorf("last recorded frame = %s, want neutral", last)
	}
}

func TestFlatten(t *testing.T) {
	a, b, c := errors.New("a"), errors.New("b"), errors.New("c")
	got := flatten(errors.Join(a, errors.Join(b, c)))
	if len(got) != 3 || got[0] != a || got[2] != c {
		t.Errorf("flatten = %v", got)
	}
	if got := flatten(a); len(got) != 1 {
		t.Errorf("flatten(single) = %v", got)
	}
}

func TestDescribe(t *testing.T) {
	step, err := motion.NewStep(motion.StepConfig{
		Up:        motion.Float(1),
		StandMode: motion.Bool(true),
		Duration:  time.Second,
	}, motion.Reject)
	if err != nil {
		t.Fatal(err)
	}
	got := describe(step)
	for _, want := range []string{"up=1", "stand_mode=true", "mode_mark=true"} {
		if !strings.Contains(got, want) {
			t.Errorf("describe = %q, missing %q", got, want)
		}
	}
}

func TestLogWriter_DropsWhenFull(t *testing.T) {
	w := newLogWriter(2)
	n, err := w.Write([]byte("one\ntwo\nthree\n"))
	if err != nil || n != len("one\ntwo\nthree\n") {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if got := <-w.ch; got != "one" {
		t.Errorf("first line = %q", got)
	}
	if got := <-w.ch; got != "two" {
		t.Errorf("second line = %q", got)
	}
	select {
	case line := <-w.ch:
		t.Errorf("unexpected line %q", line)
	default:
	}
}
