package note

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id uuid.UUID) (*Note, error)
	Update(ctx context.Context, n *Note) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Note, int, error)
	// ListByPatient returns every note for a patient, newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Note, error)
	// ListHighRisk returns up to limit HIGH or CRITICAL notes, newest first.
	ListHighRisk(ctx context.Context, limit int) ([]*Note, error)
	// ListCreatedBetween returns notes created in [from, to), oldest first.
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*Note, error)
	UpdateAnalysis(ctx context.Context, id uuid.UUID, a Analysis) error
}
