package patient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	patients Repository
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

func validate(p *Patient) error {
	var missing []string
	for name, v := range map[string]string{
		"patient_id":            p.PatientID,
		"first_name":            p.FirstName,
		"last_name":             p.LastName,
		"date_of_birth":         p.DateOfBirth,
		"medical_record_number": p.MedicalRecordNumber,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	if _, err := time.Parse(dateLayout, p.DateOfBirth); err != nil {
		return fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", ErrInvalid)
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := validate(p); err != nil {
		return err
	}
	_, err := s.patients.GetByPatientID(ctx, p.PatientID)
	if err == nil {
		return ErrDuplicate
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("check existing patient: %w", err)
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// UpdatePatient applies u to the stored record. Identifiers and date of
// birth are immutable.
func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, u Update) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.apply(p)
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return nil, fmt.Errorf("%w: first_name and last_name cannot be empty", ErrInvalid)
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}
