package note

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func withCtx(req *http.Request, ctx context.Context) *http.Request {
	return req.WithContext(ctx)
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestHandler_CreateNote(t *testing.T) {
	h, e := newTestHandler()
	body := `{"patient_id":"` + uuid.New().String() + `","note_type":"nurse_note","title":"Vitals","content":"BP 120/80"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(withCtx(req, doctorCtx("u1")), rec)

	if err := h.CreateNote(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var n Note
	_ = json.Unmarshal(rec.Body.Bytes(), &n)
	if n.AuthorID != "u1" {
		t.Errorf("expected author u1, got %q", n.AuthorID)
	}
}

func TestHandler_CreateNote_Invalid(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"note_type":"doctor_note"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(withCtx(req, doctorCtx("u1")), httptest.NewRecorder())
	expectHTTPError(t, h.CreateNote(c), http.StatusBadRequest)
}

func TestHandler_UpdateNote_Forbidden(t *testing.T) {
	h, e := newTestHandler()
	n := validNote(uuid.New())
	_ = h.svc.CreateNote(doctorCtx("author"), n)

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"title":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(withCtx(req, doctorCtx("intruder")), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(n.ID.String())
	expectHTTPError(t, h.UpdateNote(c), http.StatusForbidden)
}

func TestHandler_GetNote_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	expectHTTPError(t, h.GetNote(c), http.StatusNotFound)
}

func TestHandler_ListNotes_Filters(t *testing.T) {
	h, e := newTestHandler()
	pid := uuid.New()
	_ = h.svc.CreateNote(doctorCtx("u1"), validNote(pid))
	other := validNote(uuid.New())
	other.NoteType = TypeNurse
	_ = h.svc.CreateNote(doctorCtx("u1"), other)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/notes?note_type=doctor_note&patient_id="+pid.String(), nil), rec)
	if err := h.ListNotes(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Note `json:"data"`
		Total int    `json:"total"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Data[0].PatientID != pid {
		t.Errorf("expected the single matching note, got %+v", resp)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/notes?patient_id=bad", nil), httptest.NewRecorder())
	expectHTTPError(t, h.ListNotes(c), http.StatusBadRequest)
}
