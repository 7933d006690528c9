package dto

import (
	"time"

	"timer-tracker.com/timer-tracker/internal/constants"
	model "timer-tracker.com/timer-tracker/internal/models"
)

// CreateTimerRequest accepts either a total duration in seconds or the
// hours/minutes/seconds split shown on the create screen.
type CreateTimerRequest struct {
	Name     string `json:"name" validate:"required"`
	Category string `json:"category" validate:"required"`
	Hours    int    `json:"hours" validate:"gte=0"`
	Minutes  int    `json:"minutes" validate:"gte=0"`
	Seconds  int    `json:"seconds" validate:"gte=0"`
	Duration int    `json:"duration" validate:"gte=0"`
}

// TotalSeconds prefers an explicit duration over the split fields.
func (r CreateTimerRequest) TotalSeconds() int {
	if r.Duration > 0 {
		return r.Duration
	}
	return r.Hours*3600 + r.Minutes*60 + r.Seconds
}

type TimerResponse struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Category    constants.Category    `json:"category"`
	Duration    int                   `json:"duration"`
	Remaining   int                   `json:"remaining"`
	Status      constants.TimerStatus `json:"status"`
	StatusLabel string                `json:"statusLabel"`
	IsHalfway   bool                  `json:"isHalfway"`
	Progress    float64               `json:"progress"`
	CreatedAt   time.Time             `json:"createdAt"`
}

func NewTimerResponse(t model.Timer) TimerResponse {
	return TimerResponse{
		ID:          t.ID,
		Name:        t.Name,
		Category:    t.Category,
		Duration:    t.Duration,
		Remaining:   t.Remaining,
		Status:      t.Status,
		StatusLabel: t.Status.Label(),
		IsHalfway:   t.IsHalfway(),
		Progress:    t.Progress(),
		CreatedAt:   t.CreatedAt,
	}
}

func NewTimerResponses(timers []model.Timer) []TimerResponse {
	out := make([]TimerResponse, 0, len(timers))
	for _, t := range timers {
		out = append(out, NewTimerResponse(t))
	}
	return out
}

type TimerListResponse struct {
	Count  int             `json:"count"`
	Timers []TimerResponse `json:"timers"`
}

type HistoryResponse struct {
	Count   int                     `json:"count"`
	History []model.CompletedRecord `json:"history"`
}
