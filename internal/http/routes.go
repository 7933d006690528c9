package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	middleware "timer-tracker.com/timer-tracker/internal/http/middlewares"
)

func Register(e *echo.Echo, h *Handler, events *EventHub, rateLimitPerMinute int) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/events", events.Serve)

	api := e.Group("", middleware.RateLimiter(rateLimitPerMinute, time.Minute))

	api.POST("/timers", h.CreateTimer)
	api.GET("/timers", h.ListTimers)
	api.GET("/timers/:id", h.GetTimer)
	api.DELETE("/timers/:id", h.DeleteTimer)
	api.POST("/timers/:id/start", h.StartTimer)
	api.POST("/timers/:id/pause", h.PauseTimer)
	api.POST("/timers/:id/reset", h.ResetTimer)

	api.GET("/categories", h.ListCategories)
	api.POST("/categories/:category/:operation", h.ApplyToCategory)

	api.GET("/history", h.ListHistory)
	api.DELETE("/history", h.ClearHistory)
}
