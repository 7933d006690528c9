package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"timer-tracker.com/timer-tracker/internal/clock"
	"timer-tracker.com/timer-tracker/internal/constants"
	"timer-tracker.com/timer-tracker/internal/kv"
	"timer-tracker.com/timer-tracker/internal/logging"
	model "timer-tracker.com/timer-tracker/internal/models"
	repository "timer-tracker.com/timer-tracker/internal/repositories"
)

var testEpoch = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// recordingStore wraps the real repository, records timer writes and can be
// told to fail writes.
type recordingStore struct {
	TimerStore

	mu             sync.Mutex
	updates        []model.Timer
	historyCalls   int
	failUpdate     func(model.Timer) error
	failAddHistory func(model.CompletedRecord) error
	afterLoad      func()
}

// LoadTimers runs afterLoad once, after the read has returned.
func (r *recordingStore) LoadTimers(ctx context.Context) map[string]model.Timer {
	timers := r.TimerStore.LoadTimers(ctx)

	r.mu.Lock()
	hook := r.afterLoad
	r.afterLoad = nil
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return timers
}

func (r *recordingStore) UpdateTimer(ctx context.Context, timer model.Timer) error {
	r.mu.Lock()
	r.updates = append(r.updates, timer)
	fail := r.failUpdate
	r.mu.Unlock()

	if fail != nil {
		if err := fail(timer); err != nil {
			return err
		}
	}
	return r.TimerStore.UpdateTimer(ctx, timer)
}

func (r *recordingStore) AddToHistory(ctx context.Context, record model.CompletedRecord) error {
	r.mu.Lock()
	r.historyCalls++
	fail := r.failAddHistory
	r.mu.Unlock()

	if fail != nil {
		if err := fail(record); err != nil {
			return err
		}
	}
	return r.TimerStore.AddToHistory(ctx, record)
}

func (r *recordingStore) remainingWrites() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]int, 0, len(r.updates))
	for _, u := range r.updates {
		out = append(out, u.Remaining)
	}
	return out
}

func (r *recordingStore) writesFor(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, u := range r.updates {
		if u.ID == id {
			n++
		}
	}
	return n
}

func (r *recordingStore) clearUpdates() {
	r.mu.Lock()
	r.updates = nil
	r.mu.Unlock()
}

// notifications counts notifier invocations.
type notifications struct {
	mu        sync.Mutex
	completed []model.Timer
	changes   int
}

func (n *notifications) onComplete(t model.Timer) {
	n.mu.Lock()
	n.completed = append(n.completed, t)
	n.mu.Unlock()
}

func (n *notifications) onChange() {
	n.mu.Lock()
	n.changes++
	n.mu.Unlock()
}

func (n *notifications) completions() []model.Timer {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.Timer(nil), n.completed...)
}

func (n *notifications) changeCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.changes
}

type harness struct {
	store     *recordingStore
	clock     *clock.Manual
	notes     *notifications
	countdown *CountdownService
	timers    *TimerService
	bulk      *BulkService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithClock(t, clock.NewManual(testEpoch), CountdownConfig{RetryBackoff: time.Millisecond})
}

func newHarnessWithClock(t *testing.T, clk *clock.Manual, cfg CountdownConfig) *harness {
	t.Helper()

	logger := logging.Discard()
	repo := repository.NewTimerRepository(kv.NewMemoryStore(), "", logger)
	store := &recordingStore{TimerStore: repo}
	notes := &notifications{}

	var c clock.Clock = clock.System
	if clk != nil {
		c = clk
	}

	countdown := NewCountdownService(store, c, cfg, logger,
		WithCompletionNotifier(notes.onComplete),
		WithChangeNotifier(notes.onChange),
	)
	t.Cleanup(func() { countdown.Shutdown(context.Background()) })

	return &harness{
		store:     store,
		clock:     clk,
		notes:     notes,
		countdown: countdown,
		timers:    NewTimerService(store, countdown, c, logger, notes.onChange),
		bulk:      NewBulkService(store, countdown, logger, notes.onChange),
	}
}

func (h *harness) create(t *testing.T, name string, category constants.Category, duration int) model.Timer {
	t.Helper()

	timer, err := h.timers.CreateTimer(context.Background(), CreateTimerInput{
		Name:     name,
		Category: category,
		Duration: duration,
	})
	require.NoError(t, err)
	return timer
}

// seed stores a timer directly, bypassing validation and notifications.
func (h *harness) seed(t *testing.T, timer model.Timer) model.Timer {
	t.Helper()
	require.NoError(t, h.store.TimerStore.SaveTimer(context.Background(), timer))
	return timer
}

func (h *harness) stored(t *testing.T, id string) model.Timer {
	t.Helper()
	timer, ok := h.store.FindTimer(context.Background(), id)
	require.True(t, ok, "timer %s not stored", id)
	return timer
}

func (h *harness) advance(seconds int) {
	h.clock.Advance(time.Duration(seconds) * time.Second)
}
