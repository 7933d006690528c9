package model

import (
	"time"

	"timer-tracker.com/timer-tracker/internal/constants"
)

type Timer struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Category  constants.Category    `json:"category"`
	Duration  int                   `json:"duration"`
	Remaining int                   `json:"remaining"`
	Status    constants.TimerStatus `json:"status"`
	CreatedAt time.Time             `json:"createdAt"`
}

// IsHalfway reports whether at least half of the duration has elapsed
// without the countdown having finished.
func (t Timer) IsHalfway() bool {
	return t.Remaining*2 <= t.Duration && t.Remaining > 0
}

// Progress is the elapsed fraction of the duration, in [0, 1].
func (t Timer) Progress() float64 {
	if t.Duration <= 0 {
		return 0
	}
	return float64(t.Duration-t.Remaining) / float64(t.Duration)
}

// Reset returns the timer restored to its initial state.
func (t Timer) Reset() Timer {
	t.Remaining = t.Duration
	t.Status = constants.StatusIdle
	return t
}

// Clamped returns the timer with Remaining forced into [0, Duration].
func (t Timer) Clamped() Timer {
	if t.Remaining < 0 {
		t.Remaining = 0
	}
	if t.Remaining > t.Duration {
		t.Remaining = t.Duration
	}
	return t
}

// CompletedRecord snapshots the timer for the history collection.
func (t Timer) CompletedRecord(completedAt time.Time) CompletedRecord {
	return CompletedRecord{
		ID:          t.ID,
		Name:        t.Name,
		Category:    t.Category,
		Duration:    t.Duration,
		CompletedAt: completedAt,
	}
}
