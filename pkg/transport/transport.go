// Package transport holds publishers that deliver control frames to a robot
// or to a local observer. Each subpackage implements one link:
//
//   - rosbridge: JSON over websocket to a rosbridge server (ROS 2 topic)
//   - rig: a Feetech servo bench rig on a serial bus
//   - record: a CBOR frame log on disk
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gwillem/diablo/pkg/motion"
	"github.com/gwillem/diablo/pkg/sequencer"
)

// Tee publishes every frame to the primary publisher and then to each
// secondary one. A primary failure is returned immediately and the
// secondaries are skipped. Secondary failures are joined and returned
// after all were attempted, so a broken recorder still fails the run.
func Tee(primary sequencer.Publisher, secondary ...sequencer.Publisher) sequencer.Publisher {
	return &tee{primary: primary, secondary: secondary}
}

type tee struct {
	primary   sequencer.Publisher
	secondary []sequencer.Publisher
}

func (t *tee) Publish(ctx context.Context, frame motion.ControlFrame) error {
	if err := t.primary.Publish(ctx, frame); err != nil {
		return err
	}
	var errs []error
	for i, p := range t.secondary {
		if err := p.Publish(ctx, frame); err != nil {
			errs = append(errs, fmt.Errorf("secondary publisher %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Log returns a publisher that only logs frames at debug level. It backs
// dry runs.
func Log(logger *slog.Logger) sequencer.Publisher {
	return sequencer.PublisherFunc(func(ctx context.Context, frame motion.ControlFrame) error {
		logger.Debug("frame", "frame", frame.String())
		return nil
	})
}
