// Package clock provides an injectable time source.
//
// Code that waits or measures elapsed time takes a Clock instead of calling
// the time package. Real returns the system clock, whose readings carry
// Go's monotonic component so elapsed time is immune to wall-clock
// adjustment. Fake returns a clock that only moves when a test calls
// Advance.
package clock

import "time"

// Clock abstracts the time operations used by the sequencer.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. If
	// d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
