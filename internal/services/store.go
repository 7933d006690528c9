package services

import (
	"context"

	model "timer-tracker.com/timer-tracker/internal/models"
)

// TimerStore is the durable store the services depend on. Loads fail soft;
// writes report an error and leave in-memory state untouched.
type TimerStore interface {
	LoadTimers(ctx context.Context) map[string]model.Timer
	FindTimer(ctx context.Context, id string) (model.Timer, bool)
	SaveTimer(ctx context.Context, timer model.Timer) error
	UpdateTimer(ctx context.Context, timer model.Timer) error
	DeleteTimer(ctx context.Context, id string) error
	GetHistory(ctx context.Context) []model.CompletedRecord
	AddToHistory(ctx context.Context, record model.CompletedRecord) error
	ClearHistory(ctx context.Context) error
}

// CompletionNotifier receives the just-completed timer, once per completion.
type CompletionNotifier func(timer model.Timer)

// ChangeNotifier signals that the timers collection should be re-fetched.
type ChangeNotifier func()
