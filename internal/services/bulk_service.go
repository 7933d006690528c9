package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"timer-tracker.com/timer-tracker/internal/constants"
	apperrors "timer-tracker.com/timer-tracker/internal/errors"
	"timer-tracker.com/timer-tracker/internal/metrics"
	model "timer-tracker.com/timer-tracker/internal/models"
)

type BulkOperation string

const (
	BulkStart BulkOperation = "start"
	BulkPause BulkOperation = "pause"
	BulkReset BulkOperation = "reset"
)

var ErrUnknownBulkOperation = errors.New("unknown bulk operation")

// BulkResult summarizes one bulk operation. Matched timers passed the
// operation's filter in the snapshot; Changed were transitioned; Failed could
// not be transitioned or persisted. A matched timer that no longer passes the
// filter when its turn comes is neither changed nor failed.
type BulkResult struct {
	Category  constants.Category `json:"category"`
	Operation BulkOperation      `json:"operation"`
	Matched   int                `json:"matched"`
	Changed   int                `json:"changed"`
	Failed    int                `json:"failed"`
	Errors    []error            `json:"-"`
}

// BulkService applies one operation to every timer of a category, as
// snapshotted when the operation starts. Timers are attempted independently;
// one failure never stops the rest.
type BulkService struct {
	repo      TimerStore
	countdown *CountdownService
	logger    *slog.Logger
	onChange  ChangeNotifier
}

func NewBulkService(repo TimerStore, countdown *CountdownService, logger *slog.Logger, onChange ChangeNotifier) *BulkService {
	if logger == nil {
		logger = slog.Default()
	}

	return &BulkService{
		repo:      repo,
		countdown: countdown,
		logger:    logger.With("component", "bulk"),
		onChange:  onChange,
	}
}

// StartAll runs every timer of the category that is not completed.
func (b *BulkService) StartAll(ctx context.Context, category constants.Category) BulkResult {
	return b.apply(ctx, category, BulkStart, func(t model.Timer) bool {
		return t.Status != constants.StatusCompleted
	}, b.countdown.startLocked)
}

// PauseAll pauses every running timer of the category.
func (b *BulkService) PauseAll(ctx context.Context, category constants.Category) BulkResult {
	return b.apply(ctx, category, BulkPause, func(t model.Timer) bool {
		return t.Status == constants.StatusRunning
	}, b.countdown.pauseLocked)
}

// ResetAll resets every timer of the category regardless of status.
func (b *BulkService) ResetAll(ctx context.Context, category constants.Category) BulkResult {
	return b.apply(ctx, category, BulkReset, func(model.Timer) bool {
		return true
	}, b.countdown.resetLocked)
}

func (b *BulkService) Apply(ctx context.Context, category constants.Category, op BulkOperation) (BulkResult, error) {
	switch op {
	case BulkStart:
		return b.StartAll(ctx, category), nil
	case BulkPause:
		return b.PauseAll(ctx, category), nil
	case BulkReset:
		return b.ResetAll(ctx, category), nil
	}
	return BulkResult{}, fmt.Errorf("%w: %q", ErrUnknownBulkOperation, op)
}

func (b *BulkService) apply(
	ctx context.Context,
	category constants.Category,
	op BulkOperation,
	filter func(model.Timer) bool,
	fn transitionFunc,
) BulkResult {
	result := BulkResult{Category: category, Operation: op}

	snapshot := filterByCategory(b.countdown.Overlay(b.repo.LoadTimers(ctx)), category)

	for _, timer := range snapshot {
		if !filter(timer) {
			continue
		}
		result.Matched++

		_, changed, err := b.countdown.applySnapshot(ctx, timer, filter, fn)
		if changed {
			result.Changed++
		}

		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrInvalidTransition):
			// the timer moved on between the snapshot and the transition
		default:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("timer %s: %w", timer.ID, err))
			b.logger.Error("bulk operation failed for timer", "operation", op, "category", category, "timer_id", timer.ID, "error", err)
		}
	}

	metrics.BulkOperationsTotal.WithLabelValues(string(op)).Inc()
	b.logger.Info("bulk operation applied",
		"operation", op,
		"category", category,
		"matched", result.Matched,
		"changed", result.Changed,
		"failed", result.Failed,
	)

	if b.onChange != nil {
		b.onChange()
	}
	return result
}
