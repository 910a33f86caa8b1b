package sequencer

import (
	"context"
	"time"

	"github.com/gwillem/diablo/pkg/motion"
)

// DefaultPeriod is the publish interval (20 Hz).
const DefaultPeriod = 50 * time.Millisecond

// FrameCount returns how many frames Hold publishes for a step of the
// given duration when no publish fails.
func FrameCount(duration, period time.Duration) int {
	if period <= 0 {
		period = DefaultPeriod
	}
	n := int((duration + period - 1) / period)
	return max(n, 1)
}

// Hold publishes frame every period until duration has elapsed, starting
// immediately. It always publishes at least once, so a zero-length step is
// still seen by the robot. Deadlines are measured from the first publish;
// a late wake-up shortens the following sleep instead of shifting the
// schedule.
//
// Hold returns the number of frames published. A publish error is returned
// as is; cancellation returns ctx.Err().
func Hold(ctx context.Context, sink CommandSink, frame motion.ControlFrame, duration, period time.Duration) (int, error) {
	if period <= 0 {
		period = DefaultPeriod
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	start := sink.Now()
	published := 0
	for {
		if err := sink.Publish(ctx, frame); err != nil {
			return published, err
		}
		published++

		offset := time.Duration(published) * period
		if offset >= duration {
			// Let the step run out its remaining time before the next one.
			if rest := duration - sink.Now().Sub(start); rest > 0 {
				if err := sink.Sleep(ctx, rest); err != nil {
					return published, err
				}
			}
			return published, nil
		}

		if err := sink.Sleep(ctx, offset-sink.Now().Sub(start)); err != nil {
			return published, err
		}
		if err := ctx.Err(); err != nil {
			return published, err
		}
	}
}
