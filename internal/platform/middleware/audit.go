package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/securemed/mednotes/internal/platform/auth"
)

// AuditEntry describes one access to protected health information: who
// touched which resource, how, and with what result.
type AuditEntry struct {
	UserID       string
	UserRoles    []string
	ResourceType string
	ResourceID   string
	PatientID    string
	Action       string // create, read, update, delete
	IPAddress    string
	UserAgent    string
	Path         string
	Method       string
	Timestamp    time.Time
	RequestID    string
	StatusCode   int
}

// AuditRecorder persists audit entries. The audit domain package provides
// the database-backed implementation.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// Audit returns middleware that records every /api/v1 request after the
// handler runs. Entries always go to the structured log as "phi_access";
// when recorder is non-nil they are also persisted. A recorder failure is
// logged and never fails the request.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			ctx := c.Request().Context()
			entry := AuditEntry{
				Timestamp:    time.Now().UTC(),
				Path:         path,
				Method:       req.Method,
				IPAddress:    c.RealIP(),
				UserAgent:    req.UserAgent(),
				StatusCode:   status,
				UserID:       auth.UserIDFromContext(ctx),
				UserRoles:    auth.RolesFromContext(ctx),
				Action:       httpMethodToAction(req.Method),
				ResourceType: extractResourceType(path),
				ResourceID:   extractResourceID(path),
				PatientID:    extractPatientID(c),
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			if recorder != nil {
				// Persist even if the client has gone away.
				if recErr := recorder.RecordAccess(context.WithoutCancel(ctx), entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "phi_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

const apiPrefix = "/api/v1/"

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, apiPrefix)
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

func pathSegments(path string) []string {
	return strings.Split(strings.Trim(strings.TrimPrefix(path, apiPrefix), "/"), "/")
}

// extractResourceType returns the first segment after /api/v1/:
//
//	/api/v1/notes          -> notes
//	/api/v1/notes/123      -> notes
//	/api/v1/ai/risk-report -> ai
func extractResourceType(path string) string {
	segments := pathSegments(path)
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}

// extractResourceID returns the first UUID-shaped segment of the path.
func extractResourceID(path string) string {
	for _, s := range pathSegments(path) {
		if isUUIDLike(s) {
			return s
		}
	}
	return ""
}

// extractPatientID looks for /patients/<id>, an AI route keyed by patient,
// or a patient_id query parameter.
func extractPatientID(c echo.Context) string {
	segments := pathSegments(c.Request().URL.Path)
	for i := 0; i+1 < len(segments); i++ {
		switch segments[i] {
		case "patients", "risk-report", "patient-summary", "patient-timeline", "risk-assessment":
			if isUUIDLike(segments[i+1]) {
				return segments[i+1]
			}
		}
	}
	if pid := c.QueryParam("patient_id"); isUUIDLike(pid) {
		return pid
	}
	return ""
}

func isUUIDLike(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
