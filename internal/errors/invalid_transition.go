package errors

import "net/http"

var ErrInvalidTransition = &Exception{
	Message:    "operation not allowed in current timer status",
	StatusCode: http.StatusConflict,
}
