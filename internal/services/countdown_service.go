package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"timer-tracker.com/timer-tracker/internal/clock"
	"timer-tracker.com/timer-tracker/internal/constants"
	apperrors "timer-tracker.com/timer-tracker/internal/errors"
	"timer-tracker.com/timer-tracker/internal/metrics"
	model "timer-tracker.com/timer-tracker/internal/models"
)

var (
	// ErrCountdownClosed is returned by transitions after Shutdown.
	ErrCountdownClosed = errors.New("countdown service is shut down")

	// ErrNotPersisted marks a transition that was applied in memory but whose
	// write to the durable store failed.
	ErrNotPersisted = errors.New("timer state not persisted")
)

type CountdownConfig struct {
	// TickInterval is the wall-clock time represented by one tick.
	TickInterval time.Duration

	// PersistEvery throttles running writes to ticks where remaining is a
	// multiple of it.
	PersistEvery int

	// CompletionAttempts bounds the tries for each completion write.
	CompletionAttempts int

	// RetryBackoff is the wait before the second completion attempt; it
	// doubles on every further attempt.
	RetryBackoff time.Duration
}

func DefaultCountdownConfig() CountdownConfig {
	return CountdownConfig{
		TickInterval:       time.Second,
		PersistEvery:       5,
		CompletionAttempts: 3,
		RetryBackoff:       100 * time.Millisecond,
	}
}

func (c CountdownConfig) withDefaults() CountdownConfig {
	def := DefaultCountdownConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.PersistEvery <= 0 {
		c.PersistEvery = def.PersistEvery
	}
	if c.CompletionAttempts <= 0 {
		c.CompletionAttempts = def.CompletionAttempts
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
	return c
}

type CountdownOption func(*CountdownService)

func WithCompletionNotifier(fn CompletionNotifier) CountdownOption {
	return func(s *CountdownService) {
		s.onComplete = fn
	}
}

func WithChangeNotifier(fn ChangeNotifier) CountdownOption {
	return func(s *CountdownService) {
		s.onChange = fn
	}
}

// CountdownService drives every running timer. Each running timer owns one
// countdown handle in the registry; all ticks and transitions run under a
// single mutex, so callbacks never overlap and a revoked handle can never
// apply another tick.
type CountdownService struct {
	mu     sync.Mutex
	repo   TimerStore
	clock  clock.Clock
	cfg    CountdownConfig
	logger *slog.Logger

	onComplete CompletionNotifier
	onChange   ChangeNotifier

	active map[string]*countdown
	// completing holds timers whose completion writes are still in flight.
	completing map[string]*completion
	closed     bool
}

type completion struct {
	timer model.Timer
	done  chan struct{}
}

type countdown struct {
	timer   model.Timer
	next    time.Time
	handle  clock.Timer
	revoked bool
}

func NewCountdownService(
	repo TimerStore,
	clk clock.Clock,
	cfg CountdownConfig,
	logger *slog.Logger,
	opts ...CountdownOption,
) *CountdownService {
	if clk == nil {
		clk = clock.System
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &CountdownService{
		repo:   repo,
		clock:  clk,
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "countdown"),
		active:     make(map[string]*countdown),
		completing: make(map[string]*completion),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start moves an idle or paused timer to running and arms its countdown.
// Starting a timer whose countdown is already armed changes nothing.
func (s *CountdownService) Start(ctx context.Context, id string) (model.Timer, error) {
	return s.transition(ctx, id, "start", s.startLocked)
}

// Pause stops the countdown of a running timer and keeps its remaining time.
func (s *CountdownService) Pause(ctx context.Context, id string) (model.Timer, error) {
	return s.transition(ctx, id, "pause", s.pauseLocked)
}

// Reset stops any countdown and restores remaining to the full duration.
func (s *CountdownService) Reset(ctx context.Context, id string) (model.Timer, error) {
	return s.transition(ctx, id, "reset", s.resetLocked)
}

// Stop halts the countdown for id without touching its stored state. Once it
// returns no further tick is applied and no completion write is in flight for
// that timer.
func (s *CountdownService) Stop(id string) bool {
	_ = s.lockSettled(context.Background(), id)
	defer s.mu.Unlock()

	cd, ok := s.active[id]
	if !ok {
		return false
	}
	s.revokeLocked(cd)
	return true
}

// Snapshot returns the live state of a timer whose countdown is armed or
// whose completion is still being recorded.
func (s *CountdownService) Snapshot(id string) (model.Timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cd, ok := s.active[id]; ok {
		return cd.timer, true
	}
	if c, ok := s.completing[id]; ok {
		return c.timer, true
	}
	return model.Timer{}, false
}

// Overlay replaces stored entries with the live state of armed countdowns.
func (s *CountdownService) Overlay(timers map[string]model.Timer) map[string]model.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, cd := range s.active {
		if _, ok := timers[id]; ok {
			timers[id] = cd.timer
		}
	}
	for id, c := range s.completing {
		if _, ok := timers[id]; ok {
			timers[id] = c.timer
		}
	}
	return timers
}

func (s *CountdownService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Restore re-arms every stored timer whose status is running, so countdowns
// resume after a restart from the last persisted remaining value.
func (s *CountdownService) Restore(ctx context.Context) int {
	timers := s.repo.LoadTimers(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	restored := 0
	for _, timer := range timers {
		if timer.Status != constants.StatusRunning {
			continue
		}
		if _, ok := s.active[timer.ID]; ok {
			continue
		}
		if _, ok := s.completing[timer.ID]; ok {
			continue
		}
		s.armLocked(timer.Clamped())
		restored++
	}

	if restored > 0 {
		s.logger.Info("restored running timers", "count", restored)
	}
	return restored
}

// Shutdown revokes every countdown and flushes each running timer's live
// remaining value. Statuses stay running so Restore picks them up again.
// Completions already in flight are waited for until ctx is done.
func (s *CountdownService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	for _, cd := range s.active {
		s.revokeLocked(cd)
		if err := s.repo.UpdateTimer(ctx, cd.timer); err != nil {
			metrics.PersistFailuresTotal.WithLabelValues(metrics.KindFlush).Inc()
			s.logger.Warn("failed to flush timer on shutdown", "timer_id", cd.timer.ID, "error", err)
		}
	}

	pending := make([]chan struct{}, 0, len(s.completing))
	for _, c := range s.completing {
		pending = append(pending, c.done)
	}
	s.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn("shutdown interrupted while completions were being recorded", "error", ctx.Err())
			return
		}
	}

	s.logger.Info("countdown service shut down")
}

type transitionFunc func(ctx context.Context, current model.Timer) (model.Timer, bool, error)

func (s *CountdownService) transition(ctx context.Context, id, op string, fn transitionFunc) (model.Timer, error) {
	if id == "" {
		return model.Timer{}, apperrors.ErrTimerIDRequired
	}

	if err := s.lockSettled(ctx, id); err != nil {
		return model.Timer{}, err
	}
	if s.closed {
		s.mu.Unlock()
		return model.Timer{}, ErrCountdownClosed
	}

	current, ok := s.currentLocked(ctx, id)
	if !ok {
		s.mu.Unlock()
		return model.Timer{}, apperrors.ErrTimerNotFound
	}

	updated, changed, err := fn(ctx, current)
	s.mu.Unlock()

	if err != nil && !errors.Is(err, ErrNotPersisted) {
		s.logger.Info("timer transition rejected", "operation", op, "timer_id", id, "status", current.Status)
		return current, fmt.Errorf("%s timer %s: %w", op, id, err)
	}

	if changed {
		s.notifyChange()
	}
	return updated, nil
}

// applySnapshot re-reads snapshot's timer under the lock and runs fn against
// it when it still passes filter. A timer that moved on or disappeared since
// the snapshot is skipped. Used by bulk operations, which do their own change
// notification.
func (s *CountdownService) applySnapshot(
	ctx context.Context,
	snapshot model.Timer,
	filter func(model.Timer) bool,
	fn transitionFunc,
) (model.Timer, bool, error) {
	if err := s.lockSettled(ctx, snapshot.ID); err != nil {
		return snapshot, false, err
	}
	defer s.mu.Unlock()

	if s.closed {
		return snapshot, false, ErrCountdownClosed
	}

	current, ok := s.currentLocked(ctx, snapshot.ID)
	if !ok || !filter(current) {
		return current, false, nil
	}
	return fn(ctx, current)
}

// lockSettled acquires s.mu once no completion write is in flight for id.
func (s *CountdownService) lockSettled(ctx context.Context, id string) error {
	for {
		s.mu.Lock()
		c, ok := s.completing[id]
		if !ok {
			return nil
		}
		s.mu.Unlock()

		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *CountdownService) currentLocked(ctx context.Context, id string) (model.Timer, bool) {
	if cd, ok := s.active[id]; ok {
		return cd.timer, true
	}
	return s.repo.FindTimer(ctx, id)
}

func (s *CountdownService) startLocked(ctx context.Context, current model.Timer) (model.Timer, bool, error) {
	if current.Status == constants.StatusCompleted {
		metrics.TransitionsTotal.WithLabelValues("start", metrics.OutcomeRejected).Inc()
		return current, false, apperrors.ErrInvalidTransition
	}

	if _, ok := s.active[current.ID]; ok {
		metrics.TransitionsTotal.WithLabelValues("start", metrics.OutcomeNoop).Inc()
		return current, false, nil
	}

	updated := current.Clamped()
	updated.Status = constants.StatusRunning
	err := s.persistTransition(ctx, "start", updated)
	s.armLocked(updated)

	metrics.TransitionsTotal.WithLabelValues("start", metrics.OutcomeApplied).Inc()
	return updated, true, err
}

func (s *CountdownService) pauseLocked(ctx context.Context, current model.Timer) (model.Timer, bool, error) {
	if current.Status != constants.StatusRunning {
		metrics.TransitionsTotal.WithLabelValues("pause", metrics.OutcomeRejected).Inc()
		return current, false, apperrors.ErrInvalidTransition
	}

	if cd, ok := s.active[current.ID]; ok {
		s.revokeLocked(cd)
	}

	updated := current
	updated.Status = constants.StatusPaused
	err := s.persistTransition(ctx, "pause", updated)

	metrics.TransitionsTotal.WithLabelValues("pause", metrics.OutcomeApplied).Inc()
	return updated, true, err
}

func (s *CountdownService) resetLocked(ctx context.Context, current model.Timer) (model.Timer, bool, error) {
	if cd, ok := s.active[current.ID]; ok {
		s.revokeLocked(cd)
	}

	updated := current.Reset()
	if updated == current {
		metrics.TransitionsTotal.WithLabelValues("reset", metrics.OutcomeNoop).Inc()
		return updated, false, nil
	}

	err := s.persistTransition(ctx, "reset", updated)

	metrics.TransitionsTotal.WithLabelValues("reset", metrics.OutcomeApplied).Inc()
	return updated, true, err
}

// persistTransition writes an explicit transition. Failures are logged and
// the in-memory state stays authoritative.
func (s *CountdownService) persistTransition(ctx context.Context, op string, timer model.Timer) error {
	if err := s.repo.UpdateTimer(ctx, timer); err != nil {
		metrics.PersistFailuresTotal.WithLabelValues(metrics.KindTransition).Inc()
		s.logger.Warn("failed to persist timer transition", "operation", op, "timer_id", timer.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	return nil
}

func (s *CountdownService) armLocked(timer model.Timer) {
	cd := &countdown{
		timer: timer,
		next:  s.clock.Now().Add(s.cfg.TickInterval),
	}
	cd.handle = s.clock.AfterFunc(s.cfg.TickInterval, func() { s.tick(cd) })
	s.active[timer.ID] = cd

	metrics.ActiveCountdowns.Inc()
	s.logger.Debug("countdown armed", "timer_id", timer.ID, "remaining", timer.Remaining)
}

func (s *CountdownService) revokeLocked(cd *countdown) {
	if cd.revoked {
		return
	}
	cd.revoked = true
	if cd.handle != nil {
		cd.handle.Stop()
	}
	if s.active[cd.timer.ID] == cd {
		delete(s.active, cd.timer.ID)
	}

	metrics.ActiveCountdowns.Dec()
	s.logger.Debug("countdown revoked", "timer_id", cd.timer.ID, "remaining", cd.timer.Remaining)
}

func (s *CountdownService) tick(cd *countdown) {
	ctx := context.Background()

	s.mu.Lock()
	if cd.revoked || s.active[cd.timer.ID] != cd {
		s.mu.Unlock()
		return
	}

	metrics.TicksTotal.Inc()

	if cd.timer.Remaining <= 1 {
		completed := cd.timer
		completed.Remaining = 0
		completed.Status = constants.StatusCompleted
		cd.timer = completed
		s.revokeLocked(cd)

		c := &completion{timer: completed, done: make(chan struct{})}
		s.completing[completed.ID] = c
		completedAt := s.clock.Now().UTC()
		s.mu.Unlock()

		s.recordCompletion(ctx, completed, completedAt)

		s.mu.Lock()
		delete(s.completing, completed.ID)
		s.mu.Unlock()
		close(c.done)

		metrics.CompletionsTotal.WithLabelValues(string(completed.Category)).Inc()
		s.logger.Info("timer completed", "timer_id", completed.ID, "name", completed.Name, "category", completed.Category)

		s.notifyComplete(completed)
		s.notifyChange()
		return
	}

	cd.timer.Remaining--

	if cd.timer.Remaining%s.cfg.PersistEvery == 0 {
		if err := s.repo.UpdateTimer(ctx, cd.timer); err != nil {
			metrics.PersistFailuresTotal.WithLabelValues(metrics.KindThrottled).Inc()
			s.logger.Warn("failed to persist running timer", "timer_id", cd.timer.ID, "remaining", cd.timer.Remaining, "error", err)
		}
	}

	cd.next = cd.next.Add(s.cfg.TickInterval)
	delay := cd.next.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	cd.handle = s.clock.AfterFunc(delay, func() { s.tick(cd) })
	s.mu.Unlock()
}

// recordCompletion writes the completed timer and appends its history
// record, outside the engine lock. Both writes are retried; exhausting the
// attempts is logged and the completion is still surfaced to the notifiers.
func (s *CountdownService) recordCompletion(ctx context.Context, completed model.Timer, completedAt time.Time) {
	record := completed.CompletedRecord(completedAt)

	if err := s.retry(ctx, func() error { return s.repo.UpdateTimer(ctx, completed) }); err != nil {
		metrics.PersistFailuresTotal.WithLabelValues(metrics.KindCompletion).Inc()
		s.logger.Warn("failed to persist completed timer", "timer_id", completed.ID, "attempts", s.cfg.CompletionAttempts, "error", err)
	}

	if err := s.retry(ctx, func() error { return s.repo.AddToHistory(ctx, record) }); err != nil {
		metrics.PersistFailuresTotal.WithLabelValues(metrics.KindHistory).Inc()
		s.logger.Warn("failed to record timer history; completion missing from history", "timer_id", completed.ID, "attempts", s.cfg.CompletionAttempts, "error", err)
	}
}

func (s *CountdownService) retry(ctx context.Context, fn func() error) error {
	backoff := s.cfg.RetryBackoff

	var err error
	for attempt := 1; attempt <= s.cfg.CompletionAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == s.cfg.CompletionAttempts {
			break
		}

		if err := s.clock.Sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
	return err
}

func (s *CountdownService) notifyComplete(timer model.Timer) {
	if s.onComplete != nil {
		s.onComplete(timer)
	}
}

func (s *CountdownService) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}
