package note

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("note not found")
	ErrForbidden = errors.New("not enough permissions to edit this note")
	ErrInvalid   = errors.New("invalid note")
)

const (
	TypeDoctor = "doctor_note"
	TypeNurse  = "nurse_note"

	StatusDraft     = "draft"
	StatusFinalized = "finalized"
	StatusArchived  = "archived"
)

var validNoteTypes = map[string]bool{
	TypeDoctor: true,
	TypeNurse:  true,
}

var validNoteStatuses = map[string]bool{
	StatusDraft:     true,
	StatusFinalized: true,
	StatusArchived:  true,
}

// Note maps to the notes table. PatientName is read from the joined
// patient row.
type Note struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"patient_id"`
	PatientName     string    `json:"patient_name,omitempty"`
	AuthorID        string    `json:"author_id"`
	AuthorName      string    `json:"author_name"`
	NoteType        string    `json:"note_type"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Status          string    `json:"status"`
	Summary         string    `json:"summary"`
	RiskLevel       string    `json:"risk_level"`
	Recommendations string    `json:"recommendations"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Update carries the author-editable fields. Nil fields are left untouched.
type Update struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Status  *string `json:"status"`
}

// Analysis is the AI output stored back onto a note.
type Analysis struct {
	Summary         string
	RiskLevel       string
	Recommendations string
	Tags            []string
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	NoteType  string
	PatientID uuid.UUID
}
