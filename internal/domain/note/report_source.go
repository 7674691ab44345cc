package note

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/securemed/mednotes/internal/platform/reporting"
)

// ReportSource exposes notes to the reporting package.
type ReportSource struct {
	notes Repository
}

func NewReportSource(notes Repository) *ReportSource {
	return &ReportSource{notes: notes}
}

func toRecord(n *Note) reporting.NoteRecord {
	return reporting.NoteRecord{
		ID:              n.ID.String(),
		PatientID:       n.PatientID.String(),
		PatientName:     n.PatientName,
		AuthorID:        n.AuthorID,
		AuthorName:      n.AuthorName,
		NoteType:        n.NoteType,
		Title:           n.Title,
		Summary:         n.Summary,
		RiskLevel:       n.RiskLevel,
		Recommendations: n.Recommendations,
		CreatedAt:       n.CreatedAt,
	}
}

func toRecords(notes []*Note) []reporting.NoteRecord {
	out := make([]reporting.NoteRecord, 0, len(notes))
	for _, n := range notes {
		out = append(out, toRecord(n))
	}
	return out
}

func (s *ReportSource) NotesBetween(ctx context.Context, from, to time.Time) ([]reporting.NoteRecord, error) {
	notes, err := s.notes.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return toRecords(notes), nil
}

func (s *ReportSource) NotesForPatient(ctx context.Context, patientID string) ([]reporting.NoteRecord, error) {
	id, err := uuid.Parse(patientID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid patient id %q", ErrInvalid, patientID)
	}
	notes, err := s.notes.ListByPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	return toRecords(notes), nil
}
