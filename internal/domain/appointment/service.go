package appointment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/securemed/mednotes/internal/platform/auth"
	"github.com/securemed/mednotes/internal/platform/notification"
)

// Reminder delivers appointment reminders by email and/or SMS.
type Reminder interface {
	SendAppointmentReminder(ctx context.Context, email, phone, date, doctor string) ([]*notification.Notification, error)
}

type Service struct {
	appts    Repository
	reminder Reminder
}

func NewService(appts Repository, reminder Reminder) *Service {
	return &Service{appts: appts, reminder: reminder}
}

func validate(a *Appointment) error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if strings.TrimSpace(a.PatientName) == "" {
		return fmt.Errorf("%w: patient_name is required", ErrInvalid)
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return fmt.Errorf("%w: start_time and end_time are required", ErrInvalid)
	}
	if !a.EndTime.After(a.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalid)
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("%w: invalid status %q", ErrInvalid, a.Status)
	}
	return nil
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.Status == "" {
		a.Status = StatusConfirmed
	}
	if err := validate(a); err != nil {
		return err
	}
	a.CreatedBy = auth.UserIDFromContext(ctx)
	if a.CreatedBy == "" {
		return ErrForbidden
	}
	a.CreatedByName = auth.UserNameFromContext(ctx)
	return s.appts.Create(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appts.GetByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return nil, 0, fmt.Errorf("%w: end must not be before start", ErrInvalid)
	}
	return s.appts.List(ctx, f, limit, offset)
}

// UpdateAppointment applies u when the caller created the appointment or
// is an admin.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, u Update) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanModify(ctx, a.CreatedBy) {
		return nil, ErrForbidden
	}
	u.apply(a)
	if err := validate(a); err != nil {
		return nil, err
	}
	if err := s.appts.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CanModify(ctx, a.CreatedBy) {
		return ErrForbidden
	}
	return s.appts.Delete(ctx, id)
}

// SendReminder notifies the patient about appointment id. At least one of
// email or phone is required.
func (s *Service) SendReminder(ctx context.Context, id uuid.UUID, email, phone string) ([]*notification.Notification, error) {
	if email == "" && phone == "" {
		return nil, fmt.Errorf("%w: email or phone is required", ErrInvalid)
	}
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCancelled {
		return nil, fmt.Errorf("%w: appointment is cancelled", ErrInvalid)
	}
	doctor := a.CreatedByName
	if doctor == "" {
		doctor = a.CreatedBy
	}
	return s.reminder.SendAppointmentReminder(ctx, email, phone, a.StartTime.Format("2006-01-02 15:04"), doctor)
}
