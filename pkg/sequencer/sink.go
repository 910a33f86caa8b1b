package sequencer

import (
	"context"
	"time"

	"github.com/gwillem/diablo/pkg/clock"
	"github.com/gwillem/diablo/pkg/motion"
)

// Publisher delivers one frame to the robot. It must report local failures
// (closed connection, bus error) synchronously.
type Publisher interface {
	Publish(ctx context.Context, frame motion.ControlFrame) error
}

// CommandSink is everything the sequencer needs from the outside world:
// somewhere to publish frames, a monotonic time source and a sleep that
// can be cancelled.
type CommandSink interface {
	Publisher

	// Now returns a monotonic timestamp.
	Now() time.Time

	// Sleep waits for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, frame motion.ControlFrame) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, frame motion.ControlFrame) error {
	return f(ctx, frame)
}

// NewSink combines a transport Publisher with a Clock.
func NewSink(pub Publisher, clk clock.Clock) CommandSink {
	return &clockSink{Publisher: pub, clock: clk}
}

type clockSink struct {
	Publisher
	clock clock.Clock
}

func (s *clockSink) Now() time.Time { return s.clock.Now() }

func (s *clockSink) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}
