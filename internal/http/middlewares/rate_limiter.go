package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimiter allows each client IP limit requests per window, refilled
// continuously, with bursts up to limit.
func RateLimiter(limit int, window time.Duration) echo.MiddlewareFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
		every    = rate.Every(window / time.Duration(limit))
	)

	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		l, ok := limiters[key]
		if !ok {
			l = rate.NewLimiter(every, limit)
			limiters[key] = l
		}
		return l
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiterFor(c.RealIP()).Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
