package ai

import (
	"context"

	"github.com/google/uuid"

	"github.com/securemed/mednotes/internal/domain/appointment"
	"github.com/securemed/mednotes/internal/domain/note"
	"github.com/securemed/mednotes/internal/domain/patient"
	"github.com/securemed/mednotes/internal/platform/notification"
)

// NoteStore is the subset of the note service used here.
type NoteStore interface {
	GetNote(ctx context.Context, id uuid.UUID) (*note.Note, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*note.Note, error)
	ListHighRisk(ctx context.Context, limit int) ([]*note.Note, error)
	SaveAnalysis(ctx context.Context, id uuid.UUID, a note.Analysis) error
}

type PatientStore interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type AppointmentStore interface {
	ListAppointments(ctx context.Context, f appointment.Filter, limit, offset int) ([]*appointment.Appointment, int, error)
}

// Alerter raises critical alerts for high-risk notes.
type Alerter interface {
	SendCriticalAlert(ctx context.Context, recipients []string, patientName, message string) ([]*notification.Notification, error)
}
