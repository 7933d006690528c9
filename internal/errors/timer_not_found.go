package errors

import "net/http"

var ErrTimerNotFound = &Exception{
	Message:    "timer not found",
	StatusCode: http.StatusNotFound,
}
