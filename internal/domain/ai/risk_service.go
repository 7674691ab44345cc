package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/securemed/mednotes/internal/domain/note"
	"github.com/securemed/mednotes/internal/platform/metrics"
	"github.com/securemed/mednotes/internal/risk"
)

// reportHistoryDepth bounds the history sent with a patient-level
// assessment.
const reportHistoryDepth = 10

type RiskService struct {
	notes    NoteStore
	patients PatientStore
	analyzer *Analyzer
	now      func() time.Time
}

func NewRiskService(notes NoteStore, patients PatientStore, analyzer *Analyzer) *RiskService {
	return &RiskService{notes: notes, patients: patients, analyzer: analyzer, now: time.Now}
}

func toRiskNotes(notes []*note.Note) []risk.Note {
	out := make([]risk.Note, 0, len(notes))
	for _, n := range notes {
		out = append(out, risk.Note{
			ID:        n.ID.String(),
			Title:     n.Title,
			Content:   n.Content,
			RiskLevel: risk.ParseLevel(n.RiskLevel),
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

// GenerateReport assesses every note the patient has and assembles the
// risk report.
func (s *RiskService) GenerateReport(ctx context.Context, patientID uuid.UUID) (*risk.Report, error) {
	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	notes, err := s.notes.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list notes for patient %s: %w", patientID, err)
	}
	if len(notes) == 0 {
		return risk.EmptyReport(p.PatientID, p.FullName()), nil
	}

	sections := make([]string, 0, len(notes))
	history := make([]string, 0, reportHistoryDepth)
	for i, n := range notes {
		sections = append(sections, n.Title+": "+n.Content)
		if i < reportHistoryDepth {
			history = append(history, n.Content)
		}
	}
	assessment := s.analyzer.AssessRisk(ctx, strings.Join(sections, "\n\n"), history)

	report, err := risk.BuildReport(risk.ReportInput{
		PatientID:      p.PatientID,
		PatientName:    p.FullName(),
		Patient:        risk.PatientAttributes{Allergies: p.AllergyText()},
		Notes:          toRiskNotes(notes),
		Classification: assessment.Classification(),
		AssessedAt:     s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("build risk report: %w", err)
	}
	metrics.RecordRiskReport(string(report.RiskLevel))
	return report, nil
}

// HighRiskPatient is one row of the high-risk list.
type HighRiskPatient struct {
	PatientID       uuid.UUID `json:"patient_id"`
	PatientName     string    `json:"patient_name"`
	RiskLevel       string    `json:"risk_level"`
	LastNoteDate    time.Time `json:"last_note_date"`
	LastNoteTitle   string    `json:"last_note_title"`
	Recommendations string    `json:"recommendations"`
}

// HighRiskPatients lists patients owning the newest HIGH or CRITICAL notes,
// one row per patient taken from that patient's newest such note. limit
// bounds the notes scanned, so fewer than limit patients may be returned.
func (s *RiskService) HighRiskPatients(ctx context.Context, limit int) ([]HighRiskPatient, error) {
	if limit <= 0 {
		limit = 10
	}
	notes, err := s.notes.ListHighRisk(ctx, limit)
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool)
	out := make([]HighRiskPatient, 0, len(notes))
	for _, n := range notes {
		if seen[n.PatientID] {
			continue
		}
		seen[n.PatientID] = true
		out = append(out, HighRiskPatient{
			PatientID:       n.PatientID,
			PatientName:     n.PatientName,
			RiskLevel:       n.RiskLevel,
			LastNoteDate:    n.CreatedAt,
			LastNoteTitle:   n.Title,
			Recommendations: n.Recommendations,
		})
	}
	return out, nil
}
