package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timer-tracker.com/timer-tracker/internal/clock"
	"timer-tracker.com/timer-tracker/internal/constants"
	apperrors "timer-tracker.com/timer-tracker/internal/errors"
	model "timer-tracker.com/timer-tracker/internal/models"
)

func TestCountdown_RemainingStaysWithinBounds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	timer := h.create(t, "Bounds", constants.CategoryWork, 4)

	check := func(step string) {
		t.Helper()
		current, err := h.timers.GetTimer(ctx, timer.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, current.Remaining, 0, step)
		assert.LessOrEqual(t, current.Remaining, current.Duration, step)
	}

	_, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)
	check("start")

	for i := 0; i < 6; i++ {
		h.advance(1)
		check("tick")
	}

	_, err = h.countdown.Reset(ctx, timer.ID)
	require.NoError(t, err)
	check("reset")

	_, err = h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)
	h.advance(2)
	_, err = h.countdown.Pause(ctx, timer.ID)
	require.NoError(t, err)
	check("pause")
}

func TestCountdown_DoubleStartArmsOneTickSource(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	timer := h.create(t, "Twice", constants.CategoryStudy, 30)

	first, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)
	second, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)

	assert.Equal(t, constants.StatusRunning, first.Status)
	assert.Equal(t, constants.StatusRunning, second.Status)
	assert.Equal(t, 1, h.countdown.ActiveCount())
	assert.Equal(t, 1, h.clock.Pending())

	h.advance(3)

	live, ok := h.countdown.Snapshot(timer.ID)
	require.True(t, ok)
	assert.Equal(t, 27, live.Remaining, "one decrement per second")
}

func TestCountdown_TickFromOneCompletesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	timer := h.seed(t, model.Timer{
		ID:        "last-second",
		Name:      "Stretch",
		Category:  constants.CategoryBreak,
		Duration:  60,
		Remaining: 1,
		Status:    constants.StatusPaused,
		CreatedAt: testEpoch,
	})

	_, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)

	h.advance(1)

	stored := h.stored(t, timer.ID)
	assert.Equal(t, 0, stored.Remaining)
	assert.Equal(t, constants.StatusCompleted, stored.Status)

	history := h.store.GetHistory(ctx)
	require.Len(t, history, 1)
	assert.Equal(t, timer.ID, history[0].ID)
	assert.Equal(t, timer.Name, history[0].Name)
	assert.Equal(t, timer.Category, history[0].Category)
	assert.Equal(t, timer.Duration, history[0].Duration)
	assert.True(t, history[0].CompletedAt.Equal(testEpoch.Add(time.Second)))

	completions := h.notes.completions()
	require.Len(t, completions, 1)
	assert.Equal(t, constants.StatusCompleted, completions[0].Status)

	assert.Equal(t, 0, h.countdown.ActiveCount())

	h.advance(10)
	assert.Len(t, h.store.GetHistory(ctx), 1, "completed timer must not tick again")
	assert.Len(t, h.notes.completions(), 1)
}

func TestCountdown_ResetFromEveryStatus(t *testing.T) {
	ctx := context.Background()

	for _, status := range []constants.TimerStatus{
		constants.StatusIdle,
		constants.StatusRunning,
		constants.StatusPaused,
		constants.StatusCompleted,
	} {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness(t)
			remaining := 7
			if status == constants.StatusCompleted {
				remaining = 0
			}
			timer := h.seed(t, model.Timer{
				ID:        "reset-" + string(status),
				Name:      "Reset me",
				Category:  constants.CategoryOther,
				Duration:  20,
				Remaining: remaining,
				Status:    status,
				CreatedAt: testEpoch,
			})
			if status == constants.StatusRunning {
				require.Equal(t, 1, h.countdown.Restore(ctx))
			}

			got, err := h.countdown.Reset(ctx, timer.ID)
			require.NoError(t, err)
			assert.Equal(t, 20, got.Remaining)
			assert.Equal(t, constants.StatusIdle, got.Status)

			stored := h.stored(t, timer.ID)
			assert.Equal(t, 20, stored.Remaining)
			assert.Equal(t, constants.StatusIdle, stored.Status)
			assert.Equal(t, 0, h.countdown.ActiveCount())
		})
	}
}

func TestCountdown_ThrottledPersistence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	timer := h.create(t, "Twelve", constants.CategoryWorkout, 12)

	_, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)
	h.store.clearUpdates()

	h.advance(12)

	assert.Equal(t, []int{10, 5, 0}, h.store.remainingWrites())
	assert.Equal(t, constants.StatusCompleted, h.stored(t, timer.ID).Status)
}

func TestCountdown_PauseHaltsTicks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	timer := h.create(t, "Halt", constants.CategoryMeditation, 100)

	_, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)
	h.advance(3)

	paused, err := h.countdown.Pause(ctx, timer.ID)
	require.NoError(t, err)
	assert.Equal(t, 97, paused.Remaining)
	assert.Equal(t, constants.StatusPaused, paused.Status)

	h.advance(10)

	stored := h.stored(t, timer.ID)
	assert.Equal(t, 97, stored.Remaining)
	assert.Equal(t, constants.StatusPaused, stored.Status)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestCountdown_StopHaltsTicksWithoutStateChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	timer := h.create(t, "Unmount", constants.CategoryWork, 50)

	_, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)
	h.advance(5)

	require.True(t, h.countdown.Stop(timer.ID))
	assert.False(t, h.countdown.Stop(timer.ID))

	h.store.clearUpdates()
	h.advance(20)

	assert.Empty(t, h.store.remainingWrites())
	stored := h.stored(t, timer.ID)
	assert.Equal(t, constants.StatusRunning, stored.Status)
	assert.Equal(t, 45, stored.Remaining)
}

func TestCountdown_StaleTickAfterRevokeDoesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	timer := h.create(t, "Race", constants.CategoryWork, 10)

	_, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)

	h.countdown.mu.Lock()
	cd := h.countdown.active[timer.ID]
	h.countdown.mu.Unlock()
	require.NotNil(t, cd)

	require.True(t, h.countdown.Stop(timer.ID))

	// a callback that was already in flight when Stop ran
	h.countdown.tick(cd)

	assert.Equal(t, 10, cd.timer.Remaining)
	assert.Equal(t, 0, h.countdown.ActiveCount())
}

func TestCountdown_InvalidTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	idle := h.create(t, "Idle", constants.CategoryWork, 10)
	_, err := h.countdown.Pause(ctx, idle.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	done := h.seed(t, model.Timer{
		ID: "done", Name: "Done", Category: constants.CategoryWork,
		Duration: 10, Remaining: 0, Status: constants.StatusCompleted, CreatedAt: testEpoch,
	})
	_, err = h.countdown.Start(ctx, done.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, constants.StatusCompleted, h.stored(t, done.ID).Status)

	_, err = h.countdown.Start(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrTimerNotFound)

	_, err = h.countdown.Start(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrTimerIDRequired)
}

func TestCountdown_ResumeFromPauseKeepsRemaining(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	timer := h.create(t, "Resume", constants.CategoryStudy, 8)

	_, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)
	h.advance(3)
	_, err = h.countdown.Pause(ctx, timer.ID)
	require.NoError(t, err)

	resumed, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, resumed.Remaining)

	h.advance(5)
	assert.Equal(t, constants.StatusCompleted, h.stored(t, timer.ID).Status)
	assert.Len(t, h.store.GetHistory(ctx), 1)
}

func TestCountdown_CompleteResetCompleteAppendsTwice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	timer := h.create(t, "Again", constants.CategoryWorkout, 2)

	for round := 0; round < 2; round++ {
		_, err := h.countdown.Start(ctx, timer.ID)
		require.NoError(t, err)
		h.advance(2)
		_, err = h.countdown.Reset(ctx, timer.ID)
		require.NoError(t, err)
	}

	history := h.store.GetHistory(ctx)
	require.Len(t, history, 2)
	assert.Equal(t, history[0].ID, history[1].ID)
}

func TestCountdown_TwoTimersCompletingTogether(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.create(t, "A", constants.CategoryWork, 3)
	b := h.create(t, "B", constants.CategoryStudy, 3)

	_, err := h.countdown.Start(ctx, a.ID)
	require.NoError(t, err)
	_, err = h.countdown.Start(ctx, b.ID)
	require.NoError(t, err)

	h.advance(3)

	history := h.store.GetHistory(ctx)
	require.Len(t, history, 2)
	ids := []string{history[0].ID, history[1].ID}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
	assert.Len(t, h.notes.completions(), 2)
}

func TestCountdown_ConcurrentCompletionsOnWallClock(t *testing.T) {
	h := newHarnessWithClock(t, nil, CountdownConfig{
		TickInterval: 10 * time.Millisecond,
		RetryBackoff: time.Millisecond,
	})
	ctx := context.Background()

	const n = 8
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, h.create(t, "Sprint", constants.CategoryWork, 2).ID)
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for _, id := range ids {
		go func(id string) {
			defer wg.Done()
			_, _ = h.countdown.Start(ctx, id)
		}(id)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return len(h.store.GetHistory(ctx)) == n
	}, 5*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, h.store.GetHistory(ctx), n)
	assert.Len(t, h.notes.completions(), n)
	for _, id := range ids {
		assert.Equal(t, constants.StatusCompleted, h.stored(t, id).Status)
	}
}

func TestCountdown_CompletionWriteFailureStillNotifies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	timer := h.create(t, "Flaky", constants.CategoryBreak, 1)

	storageDown := errors.New("storage down")
	h.store.failAddHistory = func(model.CompletedRecord) error { return storageDown }

	_, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)
	h.advance(1)

	require.Len(t, h.notes.completions(), 1)
	assert.Equal(t, DefaultCountdownConfig().CompletionAttempts, h.store.historyCalls)
	assert.Empty(t, h.store.GetHistory(ctx))
	assert.Equal(t, constants.StatusCompleted, h.stored(t, timer.ID).Status)
}

func TestCountdown_CompletionWriteRetriesUntilSuccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	timer := h.create(t, "Retry", constants.CategoryBreak, 1)

	failures := 1
	h.store.failAddHistory = func(model.CompletedRecord) error {
		if failures > 0 {
			failures--
			return errors.New("transient")
		}
		return nil
	}

	_, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)
	h.advance(1)

	assert.Equal(t, 2, h.store.historyCalls)
	assert.Len(t, h.store.GetHistory(ctx), 1)
}

func TestCountdown_ThrottledWriteFailureKeepsTicking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	timer := h.create(t, "Lossy", constants.CategoryWork, 7)

	_, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)

	h.store.failUpdate = func(timer model.Timer) error {
		if timer.Status == constants.StatusRunning {
			return errors.New("disk full")
		}
		return nil
	}

	h.advance(3)
	live, ok := h.countdown.Snapshot(timer.ID)
	require.True(t, ok)
	assert.Equal(t, 4, live.Remaining, "in-memory state stays authoritative")
	assert.Equal(t, 7, h.stored(t, timer.ID).Remaining, "failed write at 5 left the stored value stale")

	h.advance(4)
	assert.Equal(t, constants.StatusCompleted, h.stored(t, timer.ID).Status)
}

func TestCountdown_TransitionWriteFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	timer := h.create(t, "Offline", constants.CategoryWork, 9)

	h.store.failUpdate = func(model.Timer) error { return errors.New("offline") }

	started, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusRunning, started.Status)
	assert.Equal(t, 1, h.countdown.ActiveCount())
}

func TestCountdown_StartNotifiesChangeOnlyWhenChanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	timer := h.create(t, "Notify", constants.CategoryWork, 9)
	base := h.notes.changeCount()

	_, _ = h.countdown.Start(ctx, timer.ID)
	_, _ = h.countdown.Start(ctx, timer.ID)

	assert.Equal(t, base+1, h.notes.changeCount())
}

func TestCountdown_RestoreAndShutdown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.seed(t, model.Timer{
		ID: "was-running", Name: "Long", Category: constants.CategoryStudy,
		Duration: 600, Remaining: 300, Status: constants.StatusRunning, CreatedAt: testEpoch,
	})
	h.seed(t, model.Timer{
		ID: "was-paused", Name: "Held", Category: constants.CategoryStudy,
		Duration: 600, Remaining: 200, Status: constants.StatusPaused, CreatedAt: testEpoch,
	})

	require.Equal(t, 1, h.countdown.Restore(ctx))
	require.Equal(t, 0, h.countdown.Restore(ctx), "already armed timers are skipped")

	h.advance(3)

	h.countdown.Shutdown(ctx)
	assert.Equal(t, 0, h.countdown.ActiveCount())

	flushed := h.stored(t, "was-running")
	assert.Equal(t, 297, flushed.Remaining)
	assert.Equal(t, constants.StatusRunning, flushed.Status)

	h.advance(10)
	assert.Equal(t, 297, h.stored(t, "was-running").Remaining)

	_, err := h.countdown.Start(ctx, "was-paused")
	assert.ErrorIs(t, err, ErrCountdownClosed)
}

func TestCountdown_NoDriftAcrossTicks(t *testing.T) {
	clk := clock.NewManual(testEpoch)
	h := newHarnessWithClock(t, clk, CountdownConfig{RetryBackoff: time.Millisecond})
	ctx := context.Background()
	timer := h.create(t, "Steady", constants.CategoryWork, 100)

	_, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)

	clk.Advance(2500 * time.Millisecond)
	live, _ := h.countdown.Snapshot(timer.ID)
	assert.Equal(t, 98, live.Remaining)

	clk.Advance(500 * time.Millisecond)
	live, _ = h.countdown.Snapshot(timer.ID)
	assert.Equal(t, 97, live.Remaining)
}

func TestCountdown_CompletionWritesRunOutsideEngineLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	short := h.create(t, "Short", constants.CategoryWork, 1)
	other := h.create(t, "Other", constants.CategoryStudy, 60)

	type result struct {
		timer model.Timer
		err   error
	}
	otherStarted := make(chan result, 1)
	shortRestarted := make(chan result, 1)

	var liveDuringWrite model.Timer
	attempts := 0
	h.store.failAddHistory = func(model.CompletedRecord) error {
		attempts++
		if attempts > 1 {
			return nil
		}

		liveDuringWrite, _ = h.countdown.Snapshot(short.ID)

		go func() {
			timer, err := h.countdown.Start(ctx, other.ID)
			otherStarted <- result{timer, err}
		}()
		select {
		case r := <-otherStarted:
			otherStarted <- r
		case <-time.After(2 * time.Second):
			t.Error("unrelated start blocked while a completion was being recorded")
		}

		go func() {
			timer, err := h.countdown.Start(ctx, short.ID)
			shortRestarted <- result{timer, err}
		}()
		return errors.New("transient")
	}

	_, err := h.countdown.Start(ctx, short.ID)
	require.NoError(t, err)
	h.advance(1)

	assert.Equal(t, constants.StatusCompleted, liveDuringWrite.Status)

	r := <-otherStarted
	require.NoError(t, r.err)
	assert.Equal(t, constants.StatusRunning, r.timer.Status)

	// a transition on the completing timer waits for its writes, then sees it completed
	r = <-shortRestarted
	assert.ErrorIs(t, r.err, apperrors.ErrInvalidTransition)
	assert.Len(t, h.store.GetHistory(ctx), 1)
}

func TestCountdown_RetryBackoffUsesClock(t *testing.T) {
	clk := clock.NewManual(testEpoch)
	h := newHarnessWithClock(t, clk, CountdownConfig{
		CompletionAttempts: 3,
		RetryBackoff:       100 * time.Millisecond,
	})
	ctx := context.Background()

	timer := h.create(t, "Backoff", constants.CategoryBreak, 1)
	h.store.failAddHistory = func(model.CompletedRecord) error { return errors.New("down") }

	_, err := h.countdown.Start(ctx, timer.ID)
	require.NoError(t, err)
	clk.Advance(time.Second)

	assert.Equal(t, 3, h.store.historyCalls)
	assert.True(t, clk.Now().Equal(testEpoch.Add(1300*time.Millisecond)), "waited 100ms then 200ms, got %v", clk.Now().Sub(testEpoch))
	require.Len(t, h.notes.completions(), 1)
}
