package model

import (
	"time"

	"timer-tracker.com/timer-tracker/internal/constants"
)

// CompletedRecord is one history entry. ID is the timer's id and repeats when
// a timer is reset and completed again.
type CompletedRecord struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Category    constants.Category `json:"category"`
	Duration    int                `json:"duration"`
	CompletedAt time.Time          `json:"completedAt"`
}
