package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/securemed/mednotes/internal/platform/metrics"
)

// Metrics records request counts and latency per matched route.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			metrics.RequestStarted()
			defer metrics.RequestFinished()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordRequest(c.Request().Method, route, strconv.Itoa(status), time.Since(start))
			return err
		}
	}
}
