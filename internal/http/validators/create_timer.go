package validators

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	dto "timer-tracker.com/timer-tracker/internal/data_models"
	apperrors "timer-tracker.com/timer-tracker/internal/errors"
)

var validate = validator.New()

// ValidateCreateTimerRequest checks the request shape. Name length and
// category membership are enforced by the timer service.
func ValidateCreateTimerRequest(r *dto.CreateTimerRequest) error {
	err := validate.Struct(r)
	if err == nil {
		if r.TotalSeconds() <= 0 {
			return apperrors.ErrInvalidDuration
		}
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	switch fieldErrs[0].Field() {
	case "Name":
		return apperrors.ErrTimerNameRequired
	case "Category":
		return apperrors.ErrCategoryRequired
	default:
		return apperrors.ErrInvalidDuration
	}
}
