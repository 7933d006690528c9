package errors

import (
	"errors"
	"net/http"
)

type Exception struct {
	Message    string
	StatusCode int
}

func (e *Exception) Error() string {
	return e.Message
}

func StatusCode(err error) int {
	var appErr *Exception
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsValidation reports whether err was raised while validating user input.
func IsValidation(err error) bool {
	return StatusCode(err) == http.StatusBadRequest
}
