package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/securemed/mednotes/internal/domain/appointment"
	"github.com/securemed/mednotes/internal/domain/note"
	"github.com/securemed/mednotes/internal/domain/patient"
	"github.com/securemed/mednotes/internal/platform/auth"
	"github.com/securemed/mednotes/internal/platform/sandbox"
)

type fakePatients struct{ err error }

func (f *fakePatients) CreatePatient(_ context.Context, p *patient.Patient) error {
	if f.err != nil {
		return f.err
	}
	p.ID = uuid.New()
	return nil
}

type fakeNotes struct {
	author string
	at     time.Time
	got    *note.Note
}

func (f *fakeNotes) CreateNoteAt(ctx context.Context, n *note.Note, at time.Time) error {
	f.author = auth.UserIDFromContext(ctx)
	f.at = at
	f.got = n
	return nil
}

type fakeAppointments struct {
	owner string
	got   *appointment.Appointment
}

func (f *fakeAppointments) CreateAppointment(ctx context.Context, a *appointment.Appointment) error {
	f.owner = auth.UserIDFromContext(ctx)
	f.got = a
	return nil
}

func TestServiceSink_CreatePatient(t *testing.T) {
	sink := &serviceSink{patients: &fakePatients{}}
	id, err := sink.CreatePatient(context.Background(), sandbox.PatientRecord{PatientID: "DEMO-0001", Allergies: "Penicillin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == uuid.Nil {
		t.Error("expected generated patient id")
	}
}

func TestServiceSink_CreatePatient_Duplicate(t *testing.T) {
	sink := &serviceSink{patients: &fakePatients{err: patient.ErrDuplicate}}
	_, err := sink.CreatePatient(context.Background(), sandbox.PatientRecord{PatientID: "DEMO-0001"})
	if !errors.Is(err, sandbox.ErrPatientExists) {
		t.Errorf("expected ErrPatientExists, got %v", err)
	}
}

func TestServiceSink_CreateNote_AuthoredAndBackdated(t *testing.T) {
	notes := &fakeNotes{}
	sink := &serviceSink{notes: notes}
	at := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	pid := uuid.New()

	err := sink.CreateNote(context.Background(), pid, sandbox.NoteRecord{
		Author:    sandbox.Staff{ID: "seed-rn-lee", Name: "Nurse Jennifer Lee", Role: auth.RoleNurse},
		NoteType:  note.TypeNurse,
		Title:     "Vital Signs Check",
		Content:   "Stable.",
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notes.author != "seed-rn-lee" {
		t.Errorf("expected author seed-rn-lee, got %q", notes.author)
	}
	if !notes.at.Equal(at) {
		t.Errorf("expected created at %v, got %v", at, notes.at)
	}
	if notes.got.PatientID != pid || notes.got.Status != note.StatusFinalized {
		t.Errorf("unexpected note: %+v", notes.got)
	}
}

func TestServiceSink_CreateAppointment(t *testing.T) {
	appts := &fakeAppointments{}
	sink := &serviceSink{appointments: appts}
	pid := uuid.New()
	start := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	err := sink.CreateAppointment(context.Background(), pid, "Emily Rodriguez", sandbox.AppointmentRecord{
		Owner: sandbox.Staff{ID: "seed-dr-chen", Name: "Dr. Michael Chen", Role: auth.RoleDoctor},
		Title: "Scheduled follow-up",
		Start: start,
		End:   start.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appts.owner != "seed-dr-chen" {
		t.Errorf("expected owner seed-dr-chen, got %q", appts.owner)
	}
	if appts.got.PatientID == nil || *appts.got.PatientID != pid {
		t.Errorf("expected patient id %s, got %v", pid, appts.got.PatientID)
	}
	if appts.got.PatientName != "Emily Rodriguez" {
		t.Errorf("expected patient name, got %q", appts.got.PatientName)
	}
}
