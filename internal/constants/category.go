package constants

type Category string

const (
	CategoryWork       Category = "Work"
	CategoryStudy      Category = "Study"
	CategoryWorkout    Category = "Workout"
	CategoryMeditation Category = "Meditation"
	CategoryBreak      Category = "Break"
	CategoryOther      Category = "Other"
)

// Categories lists the selectable categories in display order.
var Categories = []Category{
	CategoryWork,
	CategoryStudy,
	CategoryWorkout,
	CategoryMeditation,
	CategoryBreak,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

const (
	MaxTimerNameLength = 30
)
