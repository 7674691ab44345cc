package note

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/securemed/mednotes/internal/platform/auth"
)

type Service struct {
	notes Repository
}

func NewService(notes Repository) *Service {
	return &Service{notes: notes}
}

// CreateNote stores n authored by the caller in ctx.
func (s *Service) CreateNote(ctx context.Context, n *Note) error {
	return s.CreateNoteAt(ctx, n, time.Time{})
}

// CreateNoteAt is CreateNote with an explicit creation time, used when
// importing historical notes. A zero at means now.
func (s *Service) CreateNoteAt(ctx context.Context, n *Note, at time.Time) error {
	if n.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrInvalid)
	}
	if !validNoteTypes[n.NoteType] {
		return fmt.Errorf("%w: note_type must be doctor_note or nurse_note", ErrInvalid)
	}
	if strings.TrimSpace(n.Title) == "" || strings.TrimSpace(n.Content) == "" {
		return fmt.Errorf("%w: title and content are required", ErrInvalid)
	}
	if n.Status == "" {
		n.Status = StatusDraft
	}
	if !validNoteStatuses[n.Status] {
		return fmt.Errorf("%w: invalid status %q", ErrInvalid, n.Status)
	}

	n.AuthorID = auth.UserIDFromContext(ctx)
	if n.AuthorID == "" {
		return fmt.Errorf("%w: author is required", ErrForbidden)
	}
	n.AuthorName = auth.UserNameFromContext(ctx)
	n.Summary, n.RiskLevel, n.Recommendations, n.Tags = "", "", "", nil
	n.CreatedAt = at
	return s.notes.Create(ctx, n)
}

func (s *Service) GetNote(ctx context.Context, id uuid.UUID) (*Note, error) {
	return s.notes.GetByID(ctx, id)
}

// UpdateNote applies u when the caller wrote the note or is an admin.
func (s *Service) UpdateNote(ctx context.Context, id uuid.UUID, u Update) (*Note, error) {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanModify(ctx, n.AuthorID) {
		return nil, ErrForbidden
	}
	if u.Title != nil {
		n.Title = *u.Title
	}
	if u.Content != nil {
		n.Content = *u.Content
	}
	if u.Status != nil {
		if !validNoteStatuses[*u.Status] {
			return nil, fmt.Errorf("%w: invalid status %q", ErrInvalid, *u.Status)
		}
		n.Status = *u.Status
	}
	if strings.TrimSpace(n.Title) == "" || strings.TrimSpace(n.Content) == "" {
		return nil, fmt.Errorf("%w: title and content cannot be empty", ErrInvalid)
	}
	if err := s.notes.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) ListNotes(ctx context.Context, f Filter, limit, offset int) ([]*Note, int, error) {
	if f.NoteType != "" && !validNoteTypes[f.NoteType] {
		return nil, 0, fmt.Errorf("%w: unknown note_type %q", ErrInvalid, f.NoteType)
	}
	return s.notes.List(ctx, f, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Note, error) {
	return s.notes.ListByPatient(ctx, patientID)
}

func (s *Service) ListHighRisk(ctx context.Context, limit int) ([]*Note, error) {
	return s.notes.ListHighRisk(ctx, limit)
}

func (s *Service) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*Note, error) {
	return s.notes.ListCreatedBetween(ctx, from, to)
}

// SaveAnalysis stores AI output on the note.
func (s *Service) SaveAnalysis(ctx context.Context, id uuid.UUID, a Analysis) error {
	return s.notes.UpdateAnalysis(ctx, id, a)
}
