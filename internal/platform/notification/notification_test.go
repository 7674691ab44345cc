package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type sentMessage struct {
	To, Subject, Body string
}

type mockEmailSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[string]bool
}

func (m *mockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[to] {
		return errors.New("smtp: mailbox unavailable")
	}
	m.sent = append(m.sent, sentMessage{To: to, Subject: subject, Body: body})
	return nil
}

type mockSMSSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *mockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{To: to, Body: body})
	return nil
}

func newTestManager() (*NotificationManager, *mockEmailSender, *mockSMSSender) {
	email := &mockEmailSender{fail: map[string]bool{}}
	sms := &mockSMSSender{}
	m := NewNotificationManager(email, sms, NewTemplateEngine())
	m.now = func() time.Time { return time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC) }
	return m, email, sms
}

// ---------------------------------------------------------------------------
// Template Engine Tests
// ---------------------------------------------------------------------------

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "test-tpl",
		Subject: "Hello {{name}}",
		Body:    "Dear {{name}}, your code is {{code}}.",
		Type:    TypeEmail,
	})

	subject, body, err := eng.Render("test-tpl", map[string]string{"name": "Alice", "code": "1234"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hello Alice" {
		t.Errorf("expected subject 'Hello Alice', got %q", subject)
	}
	if body != "Dear Alice, your code is 1234." {
		t.Errorf("unexpected body %q", body)
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	if _, _, err := NewTemplateEngine().Render("nonexistent", nil); err == nil {
		t.Fatal("expected error for missing template, got nil")
	}
}

func TestTemplateEngine_RenderMissingKeyLeftAsIs(t *testing.T) {
	_, body, err := NewTemplateEngine().Render(TemplateMedicationReminder, map[string]string{"medication": "Metformin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "{{dosage}}") {
		t.Errorf("expected unresolved placeholder to remain, got %q", body)
	}
}

func TestTemplateEngine_BuiltInTemplates(t *testing.T) {
	eng := NewTemplateEngine()
	tests := []struct {
		id  string
		typ NotificationType
	}{
		{TemplateAppointmentReminder, TypeEmail},
		{TemplateAppointmentReminderSMS, TypeSMS},
		{TemplateCriticalAlert, TypeEmail},
		{TemplateLabResults, TypeEmail},
		{TemplateMedicationReminder, TypeSMS},
		{TemplateFollowUpReminder, TypeEmail},
		{TemplateDischargeInstructions, TypeEmail},
		{TemplateScheduledReport, TypeEmail},
	}
	for _, tt := range tests {
		tpl, ok := eng.Lookup(tt.id)
		if !ok {
			t.Errorf("expected built-in template %q", tt.id)
			continue
		}
		if tpl.Type != tt.typ {
			t.Errorf("%s: expected type %s, got %s", tt.id, tt.typ, tpl.Type)
		}
	}
}

// ---------------------------------------------------------------------------
// Manager Tests
// ---------------------------------------------------------------------------

func TestNotificationManager_SendEmail(t *testing.T) {
	m, email, _ := newTestManager()
	n := &Notification{Type: TypeEmail, Recipient: "a@example.com", Subject: "s", Body: "b"}

	if err := m.Send(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if n.Status != StatusSent || n.SentAt == nil {
		t.Errorf("expected sent status with timestamp, got %s", n.Status)
	}
	if n.Priority != "normal" {
		t.Errorf("expected default priority 'normal', got %q", n.Priority)
	}
	if len(email.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(email.sent))
	}
}

func TestNotificationManager_SendRequiresRecipient(t *testing.T) {
	m, _, _ := newTestManager()
	if err := m.Send(context.Background(), &Notification{Type: TypeEmail}); err == nil {
		t.Fatal("expected error for empty recipient")
	}
}

func TestNotificationManager_SendUnsupportedType(t *testing.T) {
	m, _, _ := newTestManager()
	n := &Notification{Type: "pager", Recipient: "x"}
	if err := m.Send(context.Background(), n); err == nil {
		t.Fatal("expected error for unsupported type")
	}
	if n.Status != StatusFailed {
		t.Errorf("expected failed status, got %s", n.Status)
	}
}

func TestNotificationManager_SendFailedThenRetry(t *testing.T) {
	m, _, sms := newTestManager()
	sms.err = errors.New("carrier unavailable")

	n := &Notification{Type: TypeSMS, Recipient: "+15550100", Body: "hi"}
	if err := m.Send(context.Background(), n); err == nil {
		t.Fatal("expected delivery error")
	}
	if n.Status != StatusFailed || n.Error == "" {
		t.Fatalf("expected failed status with error, got %s / %q", n.Status, n.Error)
	}

	sms.err = nil
	retried, err := m.Retry(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != StatusSent {
		t.Errorf("expected sent after retry, got %s", retried.Status)
	}
	if retried.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", retried.Attempts)
	}
	if retried.Error != "" {
		t.Errorf("expected error cleared, got %q", retried.Error)
	}
}

func TestNotificationManager_RetryNonFailed(t *testing.T) {
	m, _, _ := newTestManager()
	n := &Notification{Type: TypeEmail, Recipient: "a@example.com"}
	_ = m.Send(context.Background(), n)

	if _, err := m.Retry(context.Background(), n.ID); err == nil {
		t.Fatal("expected error retrying a sent notification")
	}
	if _, err := m.Retry(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNotificationManager_ListByRecipientNewestFirst(t *testing.T) {
	m, _, _ := newTestManager()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		m.now = func() time.Time { return at }
		_ = m.Send(context.Background(), &Notification{Type: TypeEmail, Recipient: "a@example.com", Subject: at.Format(time.RFC3339)})
	}
	_ = m.Send(context.Background(), &Notification{Type: TypeEmail, Recipient: "other@example.com"})

	list, err := m.ListByRecipient(context.Background(), "a@example.com", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 results, got %d", len(list))
	}
	if !list[0].CreatedAt.After(list[1].CreatedAt) {
		t.Error("expected newest first")
	}
}

func TestNotificationManager_Stats(t *testing.T) {
	m, email, _ := newTestManager()
	email.fail["bad@example.com"] = true
	_ = m.Send(context.Background(), &Notification{Type: TypeEmail, Recipient: "a@example.com"})
	_ = m.Send(context.Background(), &Notification{Type: TypeEmail, Recipient: "bad@example.com"})

	stats := m.NotificationStats(context.Background())
	if stats[StatusSent] != 1 || stats[StatusFailed] != 1 {
		t.Errorf("expected 1 sent and 1 failed, got %v", stats)
	}
}

// ---------------------------------------------------------------------------
// Clinical helper Tests
// ---------------------------------------------------------------------------

func TestSendCriticalAlert_AllRecipients(t *testing.T) {
	m, email, _ := newTestManager()

	sent, err := m.SendCriticalAlert(context.Background(), []string{"dr@example.com", "rn@example.com"}, "Jane Doe", "BP 210/120")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sent) != 2 || len(email.sent) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(email.sent))
	}
	msg := email.sent[0]
	if msg.Subject != "🚨 CRITICAL ALERT - Jane Doe" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "Time: 2026-03-04 14:30:00") {
		t.Errorf("expected formatted time in body, got %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "BP 210/120") {
		t.Error("expected alert details in body")
	}
	if sent[0].Priority != "urgent" {
		t.Errorf("expected urgent priority, got %q", sent[0].Priority)
	}
}

func TestSendCriticalAlert_PartialFailure(t *testing.T) {
	m, email, _ := newTestManager()
	email.fail["rn@example.com"] = true

	sent, err := m.SendCriticalAlert(context.Background(), []string{"dr@example.com", "rn@example.com"}, "Jane Doe", "x")
	if err == nil {
		t.Fatal("expected error when one recipient fails")
	}
	if len(sent) != 2 {
		t.Errorf("expected both attempts recorded, got %d", len(sent))
	}
	if len(email.sent) != 1 {
		t.Errorf("expected 1 delivered email, got %d", len(email.sent))
	}
}

func TestSendCriticalAlert_NoRecipients(t *testing.T) {
	m, _, _ := newTestManager()
	if _, err := m.SendCriticalAlert(context.Background(), nil, "Jane", "x"); err == nil {
		t.Fatal("expected error with no recipients")
	}
}

func TestSendAppointmentReminder_Channels(t *testing.T) {
	tests := []struct {
		name             string
		email, phone     string
		wantEmail, wantS int
		wantErr          bool
	}{
		{"both", "p@example.com", "+15550100", 1, 1, false},
		{"email only", "p@example.com", "", 1, 0, false},
		{"sms only", "", "+15550100", 0, 1, false},
		{"neither", "", "", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, email, sms := newTestManager()
			_, err := m.SendAppointmentReminder(context.Background(), tt.email, tt.phone, "2026-03-05 09:00", "Smith")
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if len(email.sent) != tt.wantEmail {
				t.Errorf("expected %d emails, got %d", tt.wantEmail, len(email.sent))
			}
			if len(sms.sent) != tt.wantS {
				t.Errorf("expected %d sms, got %d", tt.wantS, len(sms.sent))
			}
		})
	}
}

func TestSendAppointmentReminder_SMSText(t *testing.T) {
	m, _, sms := newTestManager()
	if _, err := m.SendAppointmentReminder(context.Background(), "", "+15550100", "2026-03-05 09:00", "Smith"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Appointment Reminder: 2026-03-05 09:00 with Dr. Smith. Please arrive 15 min early."
	if sms.sent[0].Body != want {
		t.Errorf("expected %q, got %q", want, sms.sent[0].Body)
	}
}

func TestSendMedicationReminder(t *testing.T) {
	m, _, sms := newTestManager()
	if _, err := m.SendMedicationReminder(context.Background(), "+15550100", "Metformin", "500mg", "08:00"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Medication Reminder: Take Metformin (500mg) at 08:00."
	if sms.sent[0].Body != want {
		t.Errorf("expected %q, got %q", want, sms.sent[0].Body)
	}
}

func TestSendFollowUpAndDischarge(t *testing.T) {
	m, email, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.SendFollowUpReminder(ctx, "p@example.com", "Jane", "2026-04-01", "BP check"); err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	if _, err := m.SendDischargeInstructions(ctx, "p@example.com", "Jane", "Rest for 3 days"); err != nil {
		t.Fatalf("discharge: %v", err)
	}
	if _, err := m.SendLabResults(ctx, "p@example.com", "Jane"); err != nil {
		t.Fatalf("lab results: %v", err)
	}

	if !strings.Contains(email.sent[0].Body, "Recommended Follow-up Date: 2026-04-01\nReason: BP check") {
		t.Errorf("unexpected follow-up body %q", email.sent[0].Body)
	}
	if !strings.Contains(email.sent[1].Body, "DISCHARGE INSTRUCTIONS:\nRest for 3 days") {
		t.Errorf("unexpected discharge body %q", email.sent[1].Body)
	}
	if !strings.Contains(email.sent[1].Body, "call 911") {
		t.Error("expected emergency line in discharge instructions")
	}
	if email.sent[2].Subject != "Lab Results Available" {
		t.Errorf("unexpected lab subject %q", email.sent[2].Subject)
	}
}

// ---------------------------------------------------------------------------
// Handler Tests
// ---------------------------------------------------------------------------

func newTestHandler(recipients []string) (*NotificationHandler, *NotificationManager, *mockEmailSender) {
	m, email, _ := newTestManager()
	return NewNotificationHandler(m, recipients), m, email
}

func postJSON(path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_CriticalAlertDefaultsRecipients(t *testing.T) {
	h, _, email := newTestHandler([]string{"oncall@example.com"})
	c, rec := postJSON("/notifications/critical-alert", `{"patient_name":"Jane Doe","message":"SpO2 82%"}`)

	if err := h.HandleCriticalAlert(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var result deliveryResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, got error %q", result.Error)
	}
	if len(email.sent) != 1 || email.sent[0].To != "oncall@example.com" {
		t.Errorf("expected alert to configured recipient, got %+v", email.sent)
	}
}

func TestHandler_CriticalAlertNoRecipients(t *testing.T) {
	h, _, _ := newTestHandler(nil)
	c, _ := postJSON("/notifications/critical-alert", `{"patient_name":"Jane","message":"x"}`)

	err := h.HandleCriticalAlert(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestHandler_CriticalAlertValidation(t *testing.T) {
	h, _, _ := newTestHandler([]string{"oncall@example.com"})
	c, _ := postJSON("/notifications/critical-alert", `{"patient_name":"","message":"x"}`)

	err := h.HandleCriticalAlert(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_SendTemplateUnknown(t *testing.T) {
	h, _, _ := newTestHandler(nil)
	c, _ := postJSON("/notifications/send-template", `{"template_id":"nope","recipient":"a@example.com"}`)

	err := h.HandleSendTemplate(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_MedicationReminderRequiresPhone(t *testing.T) {
	h, _, _ := newTestHandler(nil)
	c, _ := postJSON("/notifications/medication-reminder", `{"medication":"Metformin"}`)

	err := h.HandleMedicationReminder(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_GetAndRetry(t *testing.T) {
	h, m, email := newTestHandler(nil)
	email.fail["a@example.com"] = true
	n := &Notification{Type: TypeEmail, Recipient: "a@example.com"}
	_ = m.Send(context.Background(), n)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(n.ID)
	if err := h.HandleGet(c); err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	delete(email.fail, "a@example.com")
	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(n.ID)
	if err := h.HandleRetry(c); err != nil {
		t.Fatalf("retry: %v", err)
	}
	var got Notification
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusSent {
		t.Errorf("expected sent after retry, got %s", got.Status)
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	h, _, _ := newTestHandler(nil)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("missing")

	err := h.HandleGet(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_ListRequiresRecipient(t *testing.T) {
	h, _, _ := newTestHandler(nil)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/notifications", nil), httptest.NewRecorder())

	err := h.HandleList(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
