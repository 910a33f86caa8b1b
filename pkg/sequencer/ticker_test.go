package sequencer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gwillem/diablo/pkg/clock"
	"github.com/gwillem/diablo/pkg/motion"
)

func TestHold_FrameCount(t *testing.T) {
	frame := motion.ControlFrame{Value: motion.Values{Up: 0.7}}
	tests := []struct {
		duration time.Duration
		period   time.Duration
		want     int
	}{
		{0, 50 * time.Millisecond, 1},                        // always published once
		{10 * time.Millisecond, 50 * time.Millisecond, 1},    // shorter than a period
		{50 * time.Millisecond, 50 * time.Millisecond, 1},    // exactly one period
		{75 * time.Millisecond, 50 * time.Millisecond, 2},    // ceil(1.5)
		{time.Second, 50 * time.Millisecond, 20},             // 20 Hz
		{1500 * time.Millisecond, 50 * time.Millisecond, 30}, // turn step
		{time.Second, 100 * time.Millisecond, 10},            // 10 Hz
	}

	for _, tt := range tests {
		sink := newSimSink()
		n, err := Hold(context.Background(), sink, frame, tt.duration, tt.period)
		if err != nil {
			t.Fatalf("Hold(%v, %v): %v", tt.duration, tt.period, err)
		}
		if n != tt.want {
			t.Errorf("Hold(%v, %v) published %d, want %d", tt.duration, tt.period, n, tt.want)
		}
		if got := FrameCount(tt.duration, tt.period); got != n {
			t.Errorf("FrameCount(%v, %v) = %d, Hold published %d", tt.duration, tt.period, got, n)
		}
		frames := sink.published()
		if len(frames) != n {
			t.Errorf("Hold(%v, %v) reported %d but sink saw %d", tt.duration, tt.period, n, len(frames))
		}
		for _, f := range frames {
			if f.frame != frame {
				t.Errorf("published %s, want %s", f.frame, frame)
			}
		}
		// The step occupies its full duration before returning.
		if elapsed := sink.Now().Sub(epoch); elapsed != tt.duration {
			t.Errorf("Hold(%v, %v) returned at %v", tt.duration, tt.period, elapsed)
		}
	}
}

func TestHold_Schedule(t *testing.T) {
	sink := newSimSink()
	if _, err := Hold(context.Background(), sink, motion.Neutral(), 200*time.Millisecond, 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	for i, f := range sink.published() {
		if want := time.Duration(i) * 50 * time.Millisecond; f.at != want {
			t.Errorf("frame %d published at %v, want %v", i, f.at, want)
		}
	}
}

func TestHold_DefaultPeriod(t *testing.T) {
	sink := newSimSink()
	n, err := Hold(context.Background(), sink, motion.Neutral(), time.Second, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 20 {
		t.Errorf("published %d with default period, want 20", n)
	}
}

func TestHold_PublishErrorNotRetried(t *testing.T) {
	sink := newSimSink()
	sinkErr := errors.New("closed")
	sink.failAt = 2
	sink.failErr = sinkErr

	n, err := Hold(context.Background(), sink, motion.Neutral(), time.Second, 50*time.Millisecond)
	if !errors.Is(err, sinkErr) {
		t.Fatalf("err = %v, want %v", err, sinkErr)
	}
	if n != 2 {
		t.Errorf("published %d before error, want 2", n)
	}
	if got := len(sink.published()); got != 2 {
		t.Errorf("sink saw %d frames, want 2 (no retry)", got)
	}
}

func TestHold_CancelledContext(t *testing.T) {
	sink := newSimSink()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := Hold(ctx, sink, motion.Neutral(), time.Second, 50*time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n != 0 {
		t.Errorf("published %d with cancelled context", n)
	}
}

func TestHold_CancelReturnsWithinPeriod(t *testing.T) {
	fake := clock.Fake(epoch)
	published := make(chan struct{}, 100)
	pub := PublisherFunc(func(ctx context.Context, frame motion.ControlFrame) error {
		published <- struct{}{}
		return nil
	})
	sink := NewSink(pub, fake)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Hold(ctx, sink, motion.Neutral(), time.Hour, 50*time.Millisecond)
		done <- err
	}()

	fake.WaitForTimers(1)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Hold did not return after cancel without the clock advancing")
	}
	if n := len(published); n != 1 {
		t.Errorf("published %d frames, want 1", n)
	}
}

func TestNewSink_Sleep(t *testing.T) {
	fake := clock.Fake(epoch)
	sink := NewSink(PublisherFunc(func(context.Context, motion.ControlFrame) error { return nil }), fake)

	if err := sink.Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0) = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sink.Sleep(context.Background(), time.Second) }()
	fake.WaitForTimers(1)
	fake.Advance(time.Second)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Sleep = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
	if !sink.Now().Equal(epoch.Add(time.Second)) {
		t.Errorf("Now() = %v", sink.Now())
	}
}
