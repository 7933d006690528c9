package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"timer-tracker.com/timer-tracker/internal/constants"
	"timer-tracker.com/timer-tracker/internal/kv"
	model "timer-tracker.com/timer-tracker/internal/models"
)

const (
	TimersKey  = "@timers"
	HistoryKey = "@timer_history"
)

// TimerRepository persists the Timers and History collections as two JSON
// blobs. Every write loads the whole collection, mutates one entry and saves
// the whole collection back; the per-collection mutex makes that sequence a
// single critical section within this process. Writers in other processes
// still race under last-write-wins.
type TimerRepository struct {
	store      kv.Store
	timersKey  string
	historyKey string
	logger     *slog.Logger

	timersMu  sync.Mutex
	historyMu sync.Mutex
}

func NewTimerRepository(store kv.Store, keyPrefix string, logger *slog.Logger) *TimerRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &TimerRepository{
		store:      store,
		timersKey:  keyPrefix + TimersKey,
		historyKey: keyPrefix + HistoryKey,
		logger:     logger.With("component", "timer_repository"),
	}
}

// LoadTimers returns every stored timer keyed by id. Any failure is logged
// and yields an empty mapping.
func (r *TimerRepository) LoadTimers(ctx context.Context) map[string]model.Timer {
	timers, err := r.readTimers(ctx)
	if err != nil {
		r.logger.Error("error loading timers", "error", err)
		return map[string]model.Timer{}
	}
	return timers
}

// FindTimer looks a timer up by id on top of LoadTimers.
func (r *TimerRepository) FindTimer(ctx context.Context, id string) (model.Timer, bool) {
	timer, ok := r.LoadTimers(ctx)[id]
	return timer, ok
}

func (r *TimerRepository) SaveTimer(ctx context.Context, timer model.Timer) error {
	if err := r.upsertTimer(ctx, timer); err != nil {
		r.logger.Error("error saving timer", "timer_id", timer.ID, "error", err)
		return err
	}
	return nil
}

// UpdateTimer has the same upsert semantics as SaveTimer: updating an id
// that is not stored creates it.
func (r *TimerRepository) UpdateTimer(ctx context.Context, timer model.Timer) error {
	if err := r.upsertTimer(ctx, timer); err != nil {
		r.logger.Error("error updating timer", "timer_id", timer.ID, "error", err)
		return err
	}
	return nil
}

func (r *TimerRepository) DeleteTimer(ctx context.Context, id string) error {
	r.timersMu.Lock()
	defer r.timersMu.Unlock()

	timers, err := r.readTimers(ctx)
	if err != nil {
		r.logger.Error("error deleting timer", "timer_id", id, "error", err)
		return err
	}

	delete(timers, id)

	if err := r.writeJSON(ctx, r.timersKey, timers); err != nil {
		r.logger.Error("error deleting timer", "timer_id", id, "error", err)
		return err
	}
	return nil
}

// GetHistory returns completed records in append order. Any failure is
// logged and yields an empty sequence.
func (r *TimerRepository) GetHistory(ctx context.Context) []model.CompletedRecord {
	history, err := r.readHistory(ctx)
	if err != nil {
		r.logger.Error("error loading timer history", "error", err)
		return []model.CompletedRecord{}
	}
	return history
}

func (r *TimerRepository) AddToHistory(ctx context.Context, record model.CompletedRecord) error {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()

	history, err := r.readHistory(ctx)
	if err != nil {
		r.logger.Error("error adding timer to history", "timer_id", record.ID, "error", err)
		return err
	}

	history = append(history, record)

	if err := r.writeJSON(ctx, r.historyKey, history); err != nil {
		r.logger.Error("error adding timer to history", "timer_id", record.ID, "error", err)
		return err
	}
	return nil
}

func (r *TimerRepository) ClearHistory(ctx context.Context) error {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()

	if err := r.store.Remove(ctx, r.historyKey); err != nil {
		r.logger.Error("error clearing timer history", "error", err)
		return err
	}
	return nil
}

func (r *TimerRepository) upsertTimer(ctx context.Context, timer model.Timer) error {
	if timer.ID == "" {
		return fmt.Errorf("upsert timer: empty id")
	}

	r.timersMu.Lock()
	defer r.timersMu.Unlock()

	// a failed read aborts the write so the collection is never replaced
	// by an empty one
	timers, err := r.readTimers(ctx)
	if err != nil {
		return err
	}

	timers[timer.ID] = timer

	return r.writeJSON(ctx, r.timersKey, timers)
}

func (r *TimerRepository) readTimers(ctx context.Context) (map[string]model.Timer, error) {
	raw, ok, err := r.store.Get(ctx, r.timersKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.timersKey, err)
	}

	timers := make(map[string]model.Timer)
	if !ok {
		return timers, nil
	}

	if err := json.Unmarshal(raw, &timers); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.timersKey, err)
	}
	if timers == nil {
		// stored literal null
		timers = make(map[string]model.Timer)
	}

	for id, timer := range timers {
		if timer.ID == "" {
			timer.ID = id
		}
		if !timer.Status.Valid() {
			r.logger.Warn("stored timer has unknown status, treating it as idle", "timer_id", id, "status", timer.Status)
			timer.Status = constants.StatusIdle
		}
		timers[id] = timer.Clamped()
	}

	return timers, nil
}

func (r *TimerRepository) readHistory(ctx context.Context) ([]model.CompletedRecord, error) {
	raw, ok, err := r.store.Get(ctx, r.historyKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.historyKey, err)
	}

	history := []model.CompletedRecord{}
	if !ok {
		return history, nil
	}

	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.historyKey, err)
	}
	if history == nil {
		history = []model.CompletedRecord{}
	}

	return history, nil
}

func (r *TimerRepository) writeJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	if err := r.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
