// Package clock abstracts wall-clock scheduling so countdowns can be driven
// by a manual clock in tests.
package clock

import (
	"context"
	"time"
)

// Timer is a scheduled callback that can be stopped.
type Timer interface {
	Stop() bool
}

// Clock provides the time operations the countdown engine depends on.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time

	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// System is the Clock backed by the runtime timers.
var System Clock = systemClock{}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
