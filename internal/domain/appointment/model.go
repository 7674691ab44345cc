package appointment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("appointment not found")
	ErrForbidden = errors.New("not enough permissions")
	ErrInvalid   = errors.New("invalid appointment")
)

const (
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

var validStatuses = map[string]bool{
	StatusConfirmed: true,
	StatusPending:   true,
	StatusCancelled: true,
	StatusCompleted: true,
}

type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	PatientName     string     `json:"patient_name"`
	PatientID       *uuid.UUID `json:"patient_id,omitempty"`
	AppointmentType string     `json:"appointment_type"`
	Status          string     `json:"status"`
	Location        string     `json:"location"`
	Notes           string     `json:"notes"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	CreatedBy       string     `json:"created_by"`
	CreatedByName   string     `json:"created_by_name,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type Update struct {
	Title           *string    `json:"title"`
	PatientName     *string    `json:"patient_name"`
	AppointmentType *string    `json:"appointment_type"`
	Status          *string    `json:"status"`
	Location        *string    `json:"location"`
	Notes           *string    `json:"notes"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
}

func (u Update) apply(a *Appointment) {
	if u.Title != nil {
		a.Title = *u.Title
	}
	if u.PatientName != nil {
		a.PatientName = *u.PatientName
	}
	if u.AppointmentType != nil {
		a.AppointmentType = *u.AppointmentType
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.Location != nil {
		a.Location = *u.Location
	}
	if u.Notes != nil {
		a.Notes = *u.Notes
	}
	if u.StartTime != nil {
		a.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		a.EndTime = *u.EndTime
	}
}

// Filter bounds List by start time. A zero bound is open.
type Filter struct {
	Start     time.Time
	End       time.Time
	PatientID uuid.UUID
}
