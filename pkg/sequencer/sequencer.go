// Package sequencer executes motion sequences against a CommandSink and
// guarantees a neutral stop frame on every exit path.
package sequencer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gwillem/diablo/pkg/motion"
)

// DefaultStopTimeout bounds the safety-stop publish.
const DefaultStopTimeout = time.Second

// ErrBusy is returned when Run is called while another run is in progress.
var ErrBusy = errors.New("sequencer: already running")

// Phase is the sequencer state.
type Phase string

const (
	Idle        Phase = "idle"
	Running     Phase = "running"
	Completed   Phase = "completed"
	Interrupted Phase = "interrupted"
	Failed      Phase = "failed"
)

// Terminal reports whether p ends a run.
func (p Phase) Terminal() bool {
	return p == Completed || p == Interrupted || p == Failed
}

// Outcome is the result of a run.
type Outcome struct {
	Phase Phase
	// Err is the sink error that failed the run. Nil unless Phase is Failed.
	Err error
	// StopErr is the error from the safety-stop publish, if any. It never
	// changes Phase.
	StopErr error
	// Steps is the number of steps held for their full duration.
	Steps int
	// Published counts every frame delivered, including the stop frame.
	Published int
}

// ExitCode maps the outcome to a process exit status.
func (o Outcome) ExitCode() int {
	switch o.Phase {
	case Completed:
		return 0
	case Interrupted:
		return 130
	default:
		return 1
	}
}

// State is a progress snapshot, sent after every publish.
type State struct {
	Phase     Phase
	Step      int // zero-based, -1 for the stop frame
	StepName  string
	Frame     motion.ControlFrame
	Timestamp time.Time
}

// Config holds configuration for the sequencer.
type Config struct {
	// Period is the publish interval. Default: DefaultPeriod.
	Period time.Duration
	// StopTimeout bounds the safety-stop publish. Default: DefaultStopTimeout.
	StopTimeout time.Duration
	Logger      *slog.Logger
}

// Sequencer runs sequences one at a time. It is the only writer to its
// sink while a run is in progress.
type Sequencer struct {
	sink        CommandSink
	period      time.Duration
	stopTimeout time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	phase Phase

	// frame is only touched by the goroutine inside Run.
	frame   motion.ControlFrame
	stateCh chan State
}

// New creates a sequencer publishing to sink.
func New(sink CommandSink, cfg Config) *Sequencer {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sequencer{
		sink:        sink,
		period:      cfg.Period,
		stopTimeout: cfg.StopTimeout,
		logger:      cfg.Logger,
		phase:       Idle,
		stateCh:     make(chan State, 1),
	}
}

// Phase returns the current state.
func (s *Sequencer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Period returns the publish interval.
func (s *Sequencer) Period() time.Duration {
	return s.period
}

// States returns a channel that receives progress updates. Only the most
// recent state is kept when the reader falls behind.
func (s *Sequencer) States() <-chan State {
	return s.stateCh
}

// Run executes seq step by step and blocks until it completes, ctx is
// cancelled, or the sink fails. Whatever the reason, one neutral frame is
// published before Run returns.
func (s *Sequencer) Run(ctx context.Context, seq motion.Sequence) (out Outcome) {
	if !s.begin() {
		return Outcome{Phase: Failed, Err: ErrBusy}
	}

	s.frame = motion.Neutral()
	s.logger.Info("sequence started",
		"sequence", seq.Name,
		"steps", seq.Len(),
		"duration", seq.Duration(),
		"period", s.period,
	)

	defer func() {
		// Reached on return and while a sink panic unwinds.
		if !out.Phase.Terminal() {
			out.Phase = Failed
		}
		out.StopErr = s.safetyStop(ctx, out.Phase)
		if out.StopErr == nil {
			out.Published++
		}
		s.finish(out)
	}()

	for i, step := range seq.Steps() {
		if err := ctx.Err(); err != nil {
			out.Phase = Interrupted
			return out
		}

		s.frame = motion.Apply(s.frame, step)
		s.logger.Info("step started",
			"step", i+1,
			"name", step.Name(),
			"duration", step.Duration(),
			"frame", s.frame.String(),
		)

		n, err := Hold(ctx, &observedSink{CommandSink: s.sink, seq: s, step: i, name: step.Name()},
			s.frame, step.Duration(), s.period)
		out.Published += n
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				out.Phase = Interrupted
				return out
			}
			s.logger.Error("publish failed", "step", i+1, "name", step.Name(), "error", err)
			out.Phase = Failed
			out.Err = err
			return out
		}

		out.Steps++
		s.logger.Info("step completed", "step", i+1, "name", step.Name(), "frames", n)
	}

	out.Phase = Completed
	return out
}

func (s *Sequencer) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Running {
		return false
	}
	s.phase = Running
	return true
}

func (s *Sequencer) finish(out Outcome) {
	s.mu.Lock()
	s.phase = out.Phase
	s.mu.Unlock()

	s.logger.Info("sequence finished",
		"outcome", string(out.Phase),
		"steps", out.Steps,
		"published", out.Published,
	)
}

// safetyStop publishes the neutral frame once. The caller's cancellation
// must not prevent it, so it runs on a detached context with its own
// timeout.
func (s *Sequencer) safetyStop(ctx context.Context, phase Phase) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stopTimeout)
	defer cancel()

	s.frame = motion.Neutral()
	if err := s.sink.Publish(stopCtx, s.frame); err != nil {
		s.logger.Error("safety stop publish failed", "outcome", string(phase), "error", err)
		return err
	}
	s.sendState(State{Phase: phase, Step: -1, StepName: "stop", Frame: s.frame, Timestamp: s.sink.Now()})
	s.logger.Info("safety stop published", "outcome", string(phase))
	return nil
}

func (s *Sequencer) sendState(st State) {
	select {
	case s.stateCh <- st:
	default:
		// Drop the stale state and replace it.
		select {
		case <-s.stateCh:
		default:
		}
		select {
		case s.stateCh <- st:
		default:
		}
	}
}

// observedSink reports every successful publish as a State.
type observedSink struct {
	CommandSink
	seq  *Sequencer
	step int
	name string
}

func (o *observedSink) Publish(ctx context.Context, frame motion.ControlFrame) error {
	if err := o.CommandSink.Publish(ctx, frame); err != nil {
		return err
	}
	o.seq.sendState(State{
		Phase:     Running,
		Step:      o.step,
		StepName:  o.name,
		Frame:     frame,
		Timestamp: o.CommandSink.Now(),
	})
	return nil
}
