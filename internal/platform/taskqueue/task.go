// Package taskqueue runs background work either in-process on a worker
// pool or by POSTing signed callbacks to the service's own /tasks routes.
package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var (
	ErrQueueFull       = errors.New("taskqueue: queue is full")
	ErrClosed          = errors.New("taskqueue: dispatcher is closed")
	ErrUnknownEndpoint = errors.New("taskqueue: no handler registered for endpoint")
)

// Task is a unit of background work addressed to a callback endpoint such
// as "/tasks/ai/summarize".
type Task struct {
	ID         string          `json:"id"`
	Endpoint   string          `json:"endpoint"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewTask marshals payload into a Task for endpoint.
func NewTask(endpoint string, payload any) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("marshal task payload: %w", err)
	}
	return Task{Endpoint: endpoint, Payload: raw}, nil
}

func (t *Task) prepare() {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now().UTC()
	}
}

// Handler processes one task payload.
type Handler func(ctx context.Context, payload []byte) error

// Dispatcher accepts tasks for asynchronous execution and returns the
// task ID.
type Dispatcher interface {
	Enqueue(ctx context.Context, task Task) (string, error)
	Close(ctx context.Context) error
}

// EchoHandler exposes h as a callback route. The request body is the task
// payload.
func EchoHandler(h Handler) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable task body")
		}
		if err := h(c.Request().Context(), body); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"task_id": c.Request().Header.Get(HeaderTaskID),
		})
	}
}
