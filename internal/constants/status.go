package constants

type TimerStatus string

const (
	StatusIdle      TimerStatus = "idle"
	StatusRunning   TimerStatus = "running"
	StatusPaused    TimerStatus = "paused"
	StatusCompleted TimerStatus = "completed"
)

func (s TimerStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// Label is the badge text shown next to a timer.
func (s TimerStatus) Label() string {
	switch s {
	case StatusIdle:
		return "Ready"
	case StatusRunning:
		return "Running"
	case StatusPaused:
		return "Paused"
	case StatusCompleted:
		return "Completed"
	}
	return string(s)
}
