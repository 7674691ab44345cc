package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/securemed/mednotes/internal/domain/note"
	"github.com/securemed/mednotes/internal/domain/patient"
	"github.com/securemed/mednotes/internal/platform/metrics"
	"github.com/securemed/mednotes/internal/risk"
)

// historyDepth is how many earlier notes accompany a per-note risk check.
const historyDepth = 5

var tagKeywords = []string{"hypertension", "diabetes", "infection", "pain", "fever", "cough", "shortness of breath"}

// ProcessResult is what ProcessNote stored on the note.
type ProcessResult struct {
	NoteID          uuid.UUID    `json:"note_id"`
	Success         bool         `json:"success"`
	Summary         string       `json:"summary"`
	RiskLevel       risk.Level   `json:"risk_level"`
	Recommendations string       `json:"recommendations"`
	Tags            []string     `json:"tags"`
	NurseAdvice     *NurseAdvice `json:"nurse_recommendations,omitempty"`
	Fallback        bool         `json:"fallback"`
	AlertSent       bool         `json:"alert_sent"`
	Error           string       `json:"error,omitempty"`
}

type Summarizer struct {
	notes           NoteStore
	patients        PatientStore
	analyzer        *Analyzer
	alerter         Alerter
	alertRecipients []string
	logger          zerolog.Logger
}

func NewSummarizer(notes NoteStore, patients PatientStore, analyzer *Analyzer, alerter Alerter, alertRecipients []string, logger zerolog.Logger) *Summarizer {
	return &Summarizer{
		notes:           notes,
		patients:        patients,
		analyzer:        analyzer,
		alerter:         alerter,
		alertRecipients: alertRecipients,
		logger:          logger.With().Str("component", "summarizer").Logger(),
	}
}

func patientContext(p *patient.Patient) string {
	parts := []string{
		"Patient: " + p.FullName(),
		"DOB: " + p.DateOfBirth,
		"MRN: " + p.MedicalRecordNumber,
	}
	if a := p.AllergyText(); a != "" {
		parts = append(parts, "Allergies: "+a)
	}
	if p.MedicalHistory != nil && *p.MedicalHistory != "" {
		parts = append(parts, "Medical History: "+*p.MedicalHistory)
	}
	return strings.Join(parts, "\n")
}

// noteHistory lists up to historyDepth notes other than skip, newest first.
func noteHistory(notes []*note.Note, skip uuid.UUID) []string {
	var out []string
	for _, n := range notes {
		if n.ID == skip {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s...", n.Title, truncate(n.Content, 200)))
		if len(out) == historyDepth {
			break
		}
	}
	return out
}

// CombineRecommendations joins the non-empty sections with a blank line.
func CombineRecommendations(clinical string, riskRecs []string, nursing string) string {
	var parts []string
	if clinical != "" {
		parts = append(parts, "Clinical: "+clinical)
	}
	if len(riskRecs) > 0 {
		parts = append(parts, "Risk Management: "+strings.Join(riskRecs, "; "))
	}
	if nursing != "" {
		parts = append(parts, "Nursing: "+nursing)
	}
	return strings.Join(parts, "\n\n")
}

// ExtractTags returns the keywords found in keyFindings plus a
// "Risk-<level>" tag.
func ExtractTags(keyFindings string, level risk.Level) []string {
	tags := risk.MatchTerms(keyFindings, tagKeywords)
	if level != "" {
		tags = append(tags, "Risk-"+string(level))
	}
	return tags
}

// ProcessNote summarises and risk-scores a note and stores the result.
// Elevated results raise a critical alert; alert failures are logged only.
func (s *Summarizer) ProcessNote(ctx context.Context, noteID uuid.UUID) (*ProcessResult, error) {
	n, err := s.notes.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	p, err := s.patients.GetPatient(ctx, n.PatientID)
	if err != nil {
		return nil, fmt.Errorf("load patient for note %s: %w", noteID, err)
	}
	all, err := s.notes.ListByPatient(ctx, n.PatientID)
	if err != nil {
		return nil, fmt.Errorf("load history for note %s: %w", noteID, err)
	}
	pc := patientContext(p)

	summary := s.analyzer.SummarizeNote(ctx, n.Content, n.NoteType, pc)
	assessment := s.analyzer.AssessRisk(ctx, n.Content, noteHistory(all, n.ID))

	res := &ProcessResult{
		NoteID:    n.ID,
		Summary:   summary.Summary,
		RiskLevel: assessment.Level,
		Fallback:  summary.Fallback || assessment.Fallback,
	}
	nursing := ""
	if n.NoteType == note.TypeNurse {
		advice := s.analyzer.NurseRecommendations(ctx, n.Content, pc)
		res.NurseAdvice = &advice
		res.Fallback = res.Fallback || advice.Fallback
		nursing = advice.NursingActions
	}
	res.Recommendations = CombineRecommendations(summary.Recommendations, assessment.Recommendations, nursing)
	res.Tags = ExtractTags(summary.KeyFindings, assessment.Level)

	err = s.notes.SaveAnalysis(ctx, n.ID, note.Analysis{
		Summary:         res.Summary,
		RiskLevel:       string(res.RiskLevel),
		Recommendations: res.Recommendations,
		Tags:            res.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("save analysis for note %s: %w", noteID, err)
	}
	res.Success = true
	metrics.RecordNoteAnalyzed(string(res.RiskLevel))

	if res.RiskLevel.Elevated() {
		res.AlertSent = s.alert(ctx, p, n, res)
	}
	s.logger.Info().
		Str("note_id", n.ID.String()).
		Str("risk_level", string(res.RiskLevel)).
		Bool("fallback", res.Fallback).
		Msg("note analyzed")
	return res, nil
}

func (s *Summarizer) alert(ctx context.Context, p *patient.Patient, n *note.Note, res *ProcessResult) bool {
	if s.alerter == nil || len(s.alertRecipients) == 0 {
		return false
	}
	msg := fmt.Sprintf("%s risk identified in %q: %s", res.RiskLevel, n.Title, truncate(res.Summary, 300))
	if _, err := s.alerter.SendCriticalAlert(ctx, s.alertRecipients, p.FullName(), msg); err != nil {
		s.logger.Error().Err(err).Str("note_id", n.ID.String()).Msg("critical alert failed")
		return false
	}
	return true
}
