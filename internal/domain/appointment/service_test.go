package appointment

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/securemed/mednotes/internal/platform/auth"
	"github.com/securemed/mednotes/internal/platform/notification"
)

// -- Mock Repository --

type mockApptRepo struct {
	store map[uuid.UUID]*Appointment
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{store: make(map[uuid.UUID]*Appointment)}
}

func (m *mockApptRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockApptRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.store[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockApptRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	var r []*Appointment
	for _, a := range m.store {
		if !f.Start.IsZero() && a.StartTime.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && a.StartTime.After(f.End) {
			continue
		}
		cp := *a
		r = append(r, &cp)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].StartTime.Before(r[j].StartTime) })
	total := len(r)
	if offset >= len(r) {
		return nil, total, nil
	}
	r = r[offset:]
	if len(r) > limit {
		r = r[:limit]
	}
	return r, total, nil
}

type mockReminder struct {
	calls []string
	err   error
}

func (m *mockReminder) SendAppointmentReminder(_ context.Context, email, phone, date, doctor string) ([]*notification.Notification, error) {
	m.calls = append(m.calls, email+"|"+phone+"|"+date+"|"+doctor)
	if m.err != nil {
		return nil, m.err
	}
	return []*notification.Notification{{ID: "n1", Recipient: email, Status: notification.StatusSent}}, nil
}

func newTestService() (*Service, *mockApptRepo, *mockReminder) {
	repo := newMockApptRepo()
	rem := &mockReminder{}
	return NewService(repo, rem), repo, rem
}

func userCtx(id string, roles ...string) context.Context {
	return auth.WithUser(context.Background(), id, "Dr. "+id, roles)
}

var baseTime = time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)

func validAppt(start time.Time) *Appointment {
	return &Appointment{
		Title:       "Follow-up",
		PatientName: "Jane Roe",
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
	}
}

func TestService_CreateAppointment(t *testing.T) {
	svc, _, _ := newTestService()
	a := validAppt(baseTime)
	if err := svc.CreateAppointment(userCtx("d1", auth.RoleDoctor), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusConfirmed {
		t.Errorf("expected status confirmed, got %q", a.Status)
	}
	if a.CreatedBy != "d1" || a.CreatedByName != "Dr. d1" {
		t.Errorf("expected creator d1, got %q/%q", a.CreatedBy, a.CreatedByName)
	}
}

func TestService_CreateAppointment_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Appointment)
	}{
		{"end equals start", func(a *Appointment) { a.EndTime = a.StartTime }},
		{"end before start", func(a *Appointment) { a.EndTime = a.StartTime.Add(-time.Hour) }},
		{"missing title", func(a *Appointment) { a.Title = "" }},
		{"missing patient", func(a *Appointment) { a.PatientName = " " }},
		{"missing end", func(a *Appointment) { a.EndTime = time.Time{} }},
		{"bad status", func(a *Appointment) { a.Status = "rescheduled" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			a := validAppt(baseTime)
			tt.mutate(a)
			if err := svc.CreateAppointment(userCtx("d1", auth.RoleDoctor), a); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestService_UpdateAppointment(t *testing.T) {
	svc, _, _ := newTestService()
	a := validAppt(baseTime)
	_ = svc.CreateAppointment(userCtx("d1", auth.RoleDoctor), a)

	loc := "Room 4"
	if _, err := svc.UpdateAppointment(userCtx("d2", auth.RoleDoctor), a.ID, Update{Location: &loc}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for other doctor, got %v", err)
	}

	updated, err := svc.UpdateAppointment(userCtx("admin", auth.RoleAdmin), a.ID, Update{Location: &loc})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Location != "Room 4" {
		t.Errorf("expected location Room 4, got %q", updated.Location)
	}

	early := baseTime.Add(-time.Hour)
	if _, err := svc.UpdateAppointment(userCtx("d1", auth.RoleDoctor), a.ID, Update{EndTime: &early}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid when end moves before start, got %v", err)
	}
}

func TestService_DeleteAppointment(t *testing.T) {
	svc, repo, _ := newTestService()
	a := validAppt(baseTime)
	_ = svc.CreateAppointment(userCtx("d1", auth.RoleDoctor), a)

	if err := svc.DeleteAppointment(userCtx("n1", auth.RoleNurse), a.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := svc.DeleteAppointment(userCtx("d1", auth.RoleDoctor), a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.store) != 0 {
		t.Errorf("expected store empty, got %d", len(repo.store))
	}
}

func TestService_ListAppointments_OrderAndWindow(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := userCtx("d1", auth.RoleDoctor)
	for _, h := range []int{48, 0, 24} {
		_ = svc.CreateAppointment(ctx, validAppt(baseTime.Add(time.Duration(h)*time.Hour)))
	}

	items, total, err := svc.ListAppointments(ctx, Filter{}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || !items[0].StartTime.Equal(baseTime) || !items[2].StartTime.Equal(baseTime.Add(48*time.Hour)) {
		t.Errorf("expected ascending start order, got %v", items)
	}

	items, _, _ = svc.ListAppointments(ctx, Filter{Start: baseTime.Add(time.Hour)}, 10, 0)
	if len(items) != 2 {
		t.Errorf("expected 2 appointments after start bound, got %d", len(items))
	}

	if _, _, err := svc.ListAppointments(ctx, Filter{Start: baseTime, End: baseTime.Add(-time.Hour)}, 10, 0); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for inverted window, got %v", err)
	}
}

func TestService_SendReminder(t *testing.T) {
	svc, _, rem := newTestService()
	a := validAppt(baseTime)
	_ = svc.CreateAppointment(userCtx("d1", auth.RoleDoctor), a)

	if _, err := svc.SendReminder(context.Background(), a.ID, "", ""); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid without contact, got %v", err)
	}

	sent, err := svc.SendReminder(context.Background(), a.ID, "jane@example.com", "+15550100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sent) != 1 {
		t.Errorf("expected 1 notification, got %d", len(sent))
	}
	want := "jane@example.com|+15550100|2026-04-06 09:00|Dr. d1"
	if len(rem.calls) != 1 || rem.calls[0] != want {
		t.Errorf("expected reminder call %q, got %v", want, rem.calls)
	}
}

func TestService_SendReminder_Cancelled(t *testing.T) {
	svc, _, rem := newTestService()
	a := validAppt(baseTime)
	a.Status = StatusCancelled
	_ = svc.CreateAppointment(userCtx("d1", auth.RoleDoctor), a)

	if _, err := svc.SendReminder(context.Background(), a.ID, "jane@example.com", ""); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for cancelled appointment, got %v", err)
	}
	if len(rem.calls) != 0 {
		t.Errorf("expected no reminder sent, got %d", len(rem.calls))
	}
}
