package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/securemed/mednotes/internal/domain/note"
	"github.com/securemed/mednotes/internal/domain/patient"
	"github.com/securemed/mednotes/internal/platform/taskqueue"
)

const (
	EndpointSummarize      = "/tasks/ai/summarize"
	EndpointRiskAssessment = "/tasks/ai/risk-assessment"
)

type summarizePayload struct {
	NoteID uuid.UUID `json:"note_id"`
}

type riskAssessmentPayload struct {
	PatientID uuid.UUID `json:"patient_id"`
}

// Tasks executes queued AI work. The same handlers back the in-process
// dispatcher and the signed HTTP callback routes.
type Tasks struct {
	summarizer *Summarizer
	risk       *RiskService
	logger     zerolog.Logger
}

func NewTasks(summarizer *Summarizer, riskSvc *RiskService, logger zerolog.Logger) *Tasks {
	return &Tasks{summarizer: summarizer, risk: riskSvc, logger: logger.With().Str("component", "ai_tasks").Logger()}
}

// Handlers maps callback endpoints to their handlers.
func (t *Tasks) Handlers() map[string]taskqueue.Handler {
	return map[string]taskqueue.Handler{
		EndpointSummarize:      t.Summarize,
		EndpointRiskAssessment: t.RiskAssessment,
	}
}

// RegisterRoutes mounts the callbacks on g (normally /tasks/ai) behind
// signature verification.
func (t *Tasks) RegisterRoutes(g *echo.Group, secret string) {
	g.Use(taskqueue.VerifySignature(secret))
	g.POST("/summarize", taskqueue.EchoHandler(t.Summarize))
	g.POST("/risk-assessment", taskqueue.EchoHandler(t.RiskAssessment))
}

// gone reports errors that retrying cannot fix.
func gone(err error) bool {
	return errors.Is(err, note.ErrNotFound) || errors.Is(err, patient.ErrNotFound)
}

func (t *Tasks) Summarize(ctx context.Context, payload []byte) error {
	var p summarizePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.NoteID == uuid.Nil {
		return fmt.Errorf("invalid summarize payload")
	}
	res, err := t.summarizer.ProcessNote(ctx, p.NoteID)
	if gone(err) {
		t.logger.Warn().Err(err).Str("note_id", p.NoteID.String()).Msg("dropping summarize task")
		return nil
	}
	if err != nil {
		return err
	}
	t.logger.Info().Str("note_id", p.NoteID.String()).Str("risk_level", string(res.RiskLevel)).Msg("summarize task done")
	return nil
}

func (t *Tasks) RiskAssessment(ctx context.Context, payload []byte) error {
	var p riskAssessmentPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.PatientID == uuid.Nil {
		return fmt.Errorf("invalid risk assessment payload")
	}
	report, err := t.risk.GenerateReport(ctx, p.PatientID)
	if gone(err) {
		t.logger.Warn().Err(err).Str("patient_id", p.PatientID.String()).Msg("dropping risk assessment task")
		return nil
	}
	if err != nil {
		return err
	}
	t.logger.Info().
		Str("patient_id", p.PatientID.String()).
		Str("risk_level", string(report.RiskLevel)).
		Strs("risks", report.Risks).
		Msg("risk assessment task done")
	return nil
}
