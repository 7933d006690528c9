package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"timer-tracker.com/timer-tracker/internal/clock"
	"timer-tracker.com/timer-tracker/internal/constants"
	apperrors "timer-tracker.com/timer-tracker/internal/errors"
	model "timer-tracker.com/timer-tracker/internal/models"
)

type CreateTimerInput struct {
	Name     string
	Category constants.Category
	Duration int
}

// CategorySummary is one category group as shown on the timers screen.
type CategorySummary struct {
	Category  constants.Category `json:"category"`
	Timers    int                `json:"timers"`
	Active    int                `json:"active"`
	Completed int                `json:"completed"`
}

type TimerService struct {
	repo      TimerStore
	countdown *CountdownService
	clock     clock.Clock
	logger    *slog.Logger
	onChange  ChangeNotifier
}

func NewTimerService(
	repo TimerStore,
	countdown *CountdownService,
	clk clock.Clock,
	logger *slog.Logger,
	onChange ChangeNotifier,
) *TimerService {
	if clk == nil {
		clk = clock.System
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TimerService{
		repo:      repo,
		countdown: countdown,
		clock:     clk,
		logger:    logger.With("component", "timer_service"),
		onChange:  onChange,
	}
}

// CreateTimer validates the input and stores a new idle timer. Nothing is
// written when validation fails.
func (s *TimerService) CreateTimer(ctx context.Context, in CreateTimerInput) (model.Timer, error) {
	name, err := validateCreateTimer(in)
	if err != nil {
		return model.Timer{}, err
	}

	timer := model.Timer{
		ID:        uuid.NewString(),
		Name:      name,
		Category:  in.Category,
		Duration:  in.Duration,
		Remaining: in.Duration,
		Status:    constants.StatusIdle,
		CreatedAt: s.clock.Now().UTC(),
	}

	if err := s.repo.SaveTimer(ctx, timer); err != nil {
		return model.Timer{}, fmt.Errorf("failed to save timer: %w", err)
	}

	s.logger.Info("timer created", "timer_id", timer.ID, "category", timer.Category, "duration", timer.Duration)
	s.notifyChange()
	return timer, nil
}

func validateCreateTimer(in CreateTimerInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", apperrors.ErrTimerNameRequired
	}
	if utf8.RuneCountInString(name) > constants.MaxTimerNameLength {
		return "", apperrors.ErrTimerNameTooLong
	}
	if in.Duration <= 0 {
		return "", apperrors.ErrInvalidDuration
	}
	if in.Category == "" {
		return "", apperrors.ErrCategoryRequired
	}
	if !in.Category.Valid() {
		return "", apperrors.ErrUnknownCategory
	}
	return name, nil
}

// GetTimer returns the live state for running timers and the stored state
// otherwise.
func (s *TimerService) GetTimer(ctx context.Context, id string) (model.Timer, error) {
	if id == "" {
		return model.Timer{}, apperrors.ErrTimerIDRequired
	}
	if live, ok := s.countdown.Snapshot(id); ok {
		return live, nil
	}

	timer, ok := s.repo.FindTimer(ctx, id)
	if !ok {
		return model.Timer{}, apperrors.ErrTimerNotFound
	}
	return timer, nil
}

// ListTimers returns timers ordered by creation time, optionally restricted
// to one category.
func (s *TimerService) ListTimers(ctx context.Context, category constants.Category) []model.Timer {
	timers := s.countdown.Overlay(s.repo.LoadTimers(ctx))
	return filterByCategory(timers, category)
}

// ListCategories groups the current timers by category, in order of first
// appearance.
func (s *TimerService) ListCategories(ctx context.Context) []CategorySummary {
	timers := s.ListTimers(ctx, "")

	index := make(map[constants.Category]int)
	summaries := make([]CategorySummary, 0)

	for _, timer := range timers {
		i, ok := index[timer.Category]
		if !ok {
			i = len(summaries)
			index[timer.Category] = i
			summaries = append(summaries, CategorySummary{Category: timer.Category})
		}

		summaries[i].Timers++
		switch timer.Status {
		case constants.StatusRunning:
			summaries[i].Active++
		case constants.StatusCompleted:
			summaries[i].Completed++
		}
	}

	return summaries
}

// DeleteTimer stops the countdown and removes the timer. Its history entries
// are kept.
func (s *TimerService) DeleteTimer(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.ErrTimerIDRequired
	}

	s.countdown.Stop(id)

	if err := s.repo.DeleteTimer(ctx, id); err != nil {
		return fmt.Errorf("failed to delete timer: %w", err)
	}

	s.logger.Info("timer deleted", "timer_id", id)
	s.notifyChange()
	return nil
}

// History returns completed records, newest first.
func (s *TimerService) History(ctx context.Context) []model.CompletedRecord {
	history := s.repo.GetHistory(ctx)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CompletedAt.After(history[j].CompletedAt)
	})
	return history
}

func (s *TimerService) ClearHistory(ctx context.Context) error {
	if err := s.repo.ClearHistory(ctx); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	s.logger.Info("timer history cleared")
	return nil
}

func (s *TimerService) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

func filterByCategory(timers map[string]model.Timer, category constants.Category) []model.Timer {
	out := make([]model.Timer, 0, len(timers))
	for _, timer := range timers {
		if category != "" && timer.Category != category {
			continue
		}
		out = append(out, timer)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
