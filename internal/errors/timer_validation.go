package errors

import "net/http"

var ErrTimerNameRequired = &Exception{
	Message:    "please enter a timer name",
	StatusCode: http.StatusBadRequest,
}

var ErrTimerNameTooLong = &Exception{
	Message:    "timer name must be at most 30 characters",
	StatusCode: http.StatusBadRequest,
}

var ErrInvalidDuration = &Exception{
	Message:    "please set a valid duration",
	StatusCode: http.StatusBadRequest,
}

var ErrCategoryRequired = &Exception{
	Message:    "please select a category",
	StatusCode: http.StatusBadRequest,
}

var ErrUnknownCategory = &Exception{
	Message:    "unknown category",
	StatusCode: http.StatusBadRequest,
}

var ErrTimerIDRequired = &Exception{
	Message:    "timer id is required",
	StatusCode: http.StatusBadRequest,
}
