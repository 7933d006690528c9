package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"timer-tracker.com/timer-tracker/internal/constants"
	dto "timer-tracker.com/timer-tracker/internal/data_models"
	apperrors "timer-tracker.com/timer-tracker/internal/errors"
	"timer-tracker.com/timer-tracker/internal/http/validators"
	"timer-tracker.com/timer-tracker/internal/services"
)

type Handler struct {
	timerService *services.TimerService
	countdown    *services.CountdownService
	bulkService  *services.BulkService
	events       *EventHub
	logger       *slog.Logger
}

func NewHandler(
	timerService *services.TimerService,
	countdown *services.CountdownService,
	bulkService *services.BulkService,
	events *EventHub,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		timerService: timerService,
		countdown:    countdown,
		bulkService:  bulkService,
		events:       events,
		logger:       logger.With("component", "http"),
	}
}

func (h *Handler) CreateTimer(c echo.Context) error {
	var req dto.CreateTimerRequest
	if err := c.Bind(&req); err != nil {
		return h.httpError(apperrors.ErrInvalidJSON)
	}
	if err := validators.ValidateCreateTimerRequest(&req); err != nil {
		return h.httpError(err)
	}

	timer, err := h.timerService.CreateTimer(c.Request().Context(), services.CreateTimerInput{
		Name:     req.Name,
		Category: constants.Category(req.Category),
		Duration: req.TotalSeconds(),
	})
	if err != nil {
		return h.httpError(err)
	}

	return c.JSON(http.StatusCreated, dto.NewTimerResponse(timer))
}

func (h *Handler) GetTimer(c echo.Context) error {
	timer, err := h.timerService.GetTimer(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewTimerResponse(timer))
}

func (h *Handler) ListTimers(c echo.Context) error {
	category := constants.Category(c.QueryParam("category"))
	if category != "" && !category.Valid() {
		return h.httpError(apperrors.ErrUnknownCategory)
	}

	timers := h.timerService.ListTimers(c.Request().Context(), category)

	return c.JSON(http.StatusOK, dto.TimerListResponse{
		Count:  len(timers),
		Timers: dto.NewTimerResponses(timers),
	})
}

func (h *Handler) DeleteTimer(c echo.Context) error {
	if err := h.timerService.DeleteTimer(c.Request().Context(), c.Param("id")); err != nil {
		return h.httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) StartTimer(c echo.Context) error {
	timer, err := h.countdown.Start(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, dto.NewTimerResponse(timer))
}

func (h *Handler) PauseTimer(c echo.Context) error {
	timer, err := h.countdown.Pause(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, dto.NewTimerResponse(timer))
}

func (h *Handler) ResetTimer(c echo.Context) error {
	timer, err := h.countdown.Reset(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, dto.NewTimerResponse(timer))
}

func (h *Handler) ListCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"categories": h.timerService.ListCategories(c.Request().Context()),
		"available":  constants.Categories,
	})
}

func (h *Handler) ApplyToCategory(c echo.Context) error {
	category := constants.Category(c.Param("category"))
	if !category.Valid() {
		return h.httpError(apperrors.ErrUnknownCategory)
	}

	result, err := h.bulkService.Apply(c.Request().Context(), category, services.BulkOperation(c.Param("operation")))
	if err != nil {
		if errors.Is(err, services.ErrUnknownBulkOperation) {
			return echo.NewHTTPError(http.StatusNotFound, "unknown operation")
		}
		return h.httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ListHistory(c echo.Context) error {
	history := h.timerService.History(c.Request().Context())

	return c.JSON(http.StatusOK, dto.HistoryResponse{
		Count:   len(history),
		History: history,
	})
}

func (h *Handler) ClearHistory(c echo.Context) error {
	if err := h.timerService.ClearHistory(c.Request().Context()); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Health(c echo.Context) error {
	subscribers := 0
	if h.events != nil {
		subscribers = h.events.Subscribers()
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":            "ok",
		"active_countdowns": h.countdown.ActiveCount(),
		"event_subscribers": subscribers,
	})
}

func (h *Handler) httpError(err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	if errors.Is(err, services.ErrCountdownClosed) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service is shutting down")
	}

	if apperrors.IsValidation(err) {
		h.logger.Debug("request rejected", "error", err)
	}

	code := apperrors.StatusCode(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		return echo.NewHTTPError(code, "internal error")
	}

	var appErr *apperrors.Exception
	if errors.As(err, &appErr) {
		return echo.NewHTTPError(code, appErr.Message)
	}
	return echo.NewHTTPError(code, err.Error())
}
