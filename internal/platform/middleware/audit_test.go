package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/securemed/mednotes/internal/platform/auth"
)

// mockRecorder collects audit entries for assertions.
type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(_ context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestContext(method, path string, opts ...func(*http.Request)) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withAuth(userID string, roles []string) func(*http.Request) {
	return func(req *http.Request) {
		*req = *req.WithContext(auth.WithUser(req.Context(), userID, userID, roles))
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_PatientRead(t *testing.T) {
	rec := &mockRecorder{}
	patientID := uuid.New().String()

	c, _ := newTestContext(http.MethodGet,
		fmt.Sprintf("/api/v1/patients/%s", patientID),
		withAuth("user-1", []string{"doctor"}),
	)
	c.Set("request_id", "req-abc")

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 audit entry, got %d", rec.count())
	}
	entry := rec.last()
	if entry.UserID != "user-1" {
		t.Errorf("expected user_id 'user-1', got %q", entry.UserID)
	}
	if entry.ResourceType != "patients" {
		t.Errorf("expected resource_type 'patients', got %q", entry.ResourceType)
	}
	if entry.ResourceID != patientID {
		t.Errorf("expected resource_id %q, got %q", patientID, entry.ResourceID)
	}
	if entry.PatientID != patientID {
		t.Errorf("expected patient_id %q, got %q", patientID, entry.PatientID)
	}
	if entry.Action != "read" {
		t.Errorf("expected action 'read', got %q", entry.Action)
	}
	if entry.RequestID != "req-abc" {
		t.Errorf("expected request_id 'req-abc', got %q", entry.RequestID)
	}
	if entry.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", entry.StatusCode)
	}
}

func TestAudit_NoteCreate(t *testing.T) {
	rec := &mockRecorder{}
	patientID := uuid.New().String()

	c, _ := newTestContext(http.MethodPost,
		"/api/v1/notes?patient_id="+patientID,
		withAuth("user-2", []string{"nurse"}),
	)

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := rec.last()
	if entry.Action != "create" {
		t.Errorf("expected action 'create', got %q", entry.Action)
	}
	if entry.ResourceType != "notes" {
		t.Errorf("expected resource_type 'notes', got %q", entry.ResourceType)
	}
	if entry.PatientID != patientID {
		t.Errorf("expected patient_id from query, got %q", entry.PatientID)
	}
}

func TestAudit_AIRiskReport(t *testing.T) {
	rec := &mockRecorder{}
	patientID := uuid.New().String()

	c, _ := newTestContext(http.MethodGet, "/api/v1/ai/risk-report/"+patientID,
		withAuth("user-3", []string{"doctor"}))

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := rec.last()
	if entry.ResourceType != "ai" {
		t.Errorf("expected resource_type 'ai', got %q", entry.ResourceType)
	}
	if entry.PatientID != patientID {
		t.Errorf("expected patient_id %q, got %q", patientID, entry.PatientID)
	}
}

func TestAudit_CapturesHTTPErrorStatus(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodDelete, "/api/v1/patients/"+uuid.New().String(),
		withAuth("user-4", []string{"nurse"}))

	failing := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "required role: admin")
	}
	if err := Audit(zerolog.Nop(), rec)(failing)(c); err == nil {
		t.Fatal("expected handler error to propagate")
	}
	entry := rec.last()
	if entry.Action != "delete" {
		t.Errorf("expected action 'delete', got %q", entry.Action)
	}
	if entry.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", entry.StatusCode)
	}
}

func TestAudit_SkipsNonAuditablePaths(t *testing.T) {
	rec := &mockRecorder{}
	for _, p := range []string{"/health", "/metrics", "/tasks/ai/summarize"} {
		c, _ := newTestContext(http.MethodGet, p)
		if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if rec.count() != 0 {
		t.Errorf("expected 0 audit entries, got %d", rec.count())
	}
}

func TestAudit_RecorderError_DoesNotBreakRequest(t *testing.T) {
	rec := &mockRecorder{err: errors.New("db down")}
	c, httpRec := newTestContext(http.MethodGet, "/api/v1/notes")

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if httpRec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", httpRec.Code)
	}
}

func TestAudit_NoRecorder_LogOnly(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/api/v1/appointments")
	if err := Audit(zerolog.Nop(), nil)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAudit_CapturesIPAndUserAgent(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodGet, "/api/v1/notes", func(r *http.Request) {
		r.Header.Set("User-Agent", "mednotes-web/2.1")
		r.Header.Set("X-Real-IP", "10.0.0.5")
	})

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := rec.last()
	if entry.UserAgent != "mednotes-web/2.1" {
		t.Errorf("expected user agent, got %q", entry.UserAgent)
	}
	if entry.IPAddress != "10.0.0.5" {
		t.Errorf("expected ip 10.0.0.5, got %q", entry.IPAddress)
	}
}

func TestHttpMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:     "read",
		http.MethodHead:    "read",
		http.MethodPost:    "create",
		http.MethodPut:     "update",
		http.MethodPatch:   "update",
		http.MethodDelete:  "delete",
		http.MethodOptions: "read",
	}
	for method, want := range tests {
		if got := httpMethodToAction(method); got != want {
			t.Errorf("httpMethodToAction(%s) = %s, want %s", method, got, want)
		}
	}
}

func TestExtractResourceType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/patients", "patients"},
		{"/api/v1/patients/", "patients"},
		{"/api/v1/notes/123", "notes"},
		{"/api/v1/ai/high-risk-patients", "ai"},
		{"/api/v1/", "unknown"},
	}
	for _, tt := range tests {
		if got := extractResourceType(tt.path); got != tt.want {
			t.Errorf("extractResourceType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestExtractPatientID_IgnoresNonUUID(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/api/v1/patients/not-a-uuid?patient_id=also-bad")
	if got := extractPatientID(c); got != "" {
		t.Errorf("expected empty patient id, got %q", got)
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	var called bool
	var fn AuditRecorder = AuditRecorderFunc(func(_ context.Context, e AuditEntry) error {
		called = e.UserID == "u1"
		return nil
	})
	if err := fn.RecordAccess(context.Background(), AuditEntry{UserID: "u1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected function to be invoked with the entry")
	}
}
