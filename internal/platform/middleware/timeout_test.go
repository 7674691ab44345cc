package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRequestTimeout_Passes(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/api/v1/notes")
	if err := RequestTimeout(time.Second)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequestTimeout_Exceeded(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/api/v1/notes")
	slow := func(c echo.Context) error {
		<-c.Request().Context().Done()
		return c.Request().Context().Err()
	}

	err := RequestTimeout(10 * time.Millisecond)(slow)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", httpErr.Code)
	}
}

func TestRequestTimeout_SkipsPrefix(t *testing.T) {
	c, _ := newTestContext(http.MethodPost, "/api/v1/ai/summarize/abc/sync")
	handler := func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("expected no deadline on skipped path")
		}
		return okHandler(c)
	}
	if err := RequestTimeout(time.Millisecond, "/api/v1/ai/")(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
