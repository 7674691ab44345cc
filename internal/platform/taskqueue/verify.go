package taskqueue

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// maxTaskBody caps callback payloads read for signature checks.
const maxTaskBody = 1 << 20

// VerifySignature rejects callback requests whose X-Task-Signature does not
// match the body. An empty secret disables the check.
func VerifySignature(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}
			sig := c.Request().Header.Get(HeaderSignature)
			if sig == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing task signature")
			}
			body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxTaskBody))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "unreadable task body")
			}
			if !VerifyPayload(body, secret, sig) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid task signature")
			}
			c.Request().Body = io.NopCloser(bytes.NewReader(body))
			return next(c)
		}
	}
}
