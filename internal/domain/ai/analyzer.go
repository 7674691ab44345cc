// Package ai runs clinical notes through the language model: per-note
// summaries and risk labels, patient risk reports, overviews and visit
// timelines. Every model call has a keyword fallback so the service keeps
// answering without an API key.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/securemed/mednotes/internal/platform/llm"
	"github.com/securemed/mednotes/internal/platform/metrics"
	"github.com/securemed/mednotes/internal/risk"
)

const (
	NoEncountersOverview = "No documented encounters yet. Please add clinical notes to enable AI summaries."
	NotConfiguredMessage = "AI service not configured"
	fallbackKeyFindings  = "AI analysis not available - API key needed"
	fallbackRiskSummary  = "Risk assessment based on keyword analysis"
)

var (
	highRiskWords = []string{"critical", "urgent", "emergency", "severe"}
	lowRiskWords  = []string{"stable", "normal", "routine"}
)

const clinicalSystemPrompt = `You are an expert medical AI assistant specializing in clinical documentation.
Be precise and medically accurate, use standard terminology, highlight critical
information and never repeat identifying details. Answer with JSON only.`

// textList decodes either a JSON string or an array of strings.
type textList []string

func (t *textList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one == "" {
			*t = nil
		} else {
			*t = textList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*t = many
	return nil
}

func (t textList) String() string { return strings.Join(t, "; ") }

// NoteSummary is the structured summary of one note.
type NoteSummary struct {
	Summary         string `json:"summary"`
	KeyFindings     string `json:"key_findings"`
	Assessment      string `json:"assessment,omitempty"`
	Recommendations string `json:"recommendations,omitempty"`
	UrgentFlags     string `json:"urgent_flags,omitempty"`
	AIGenerated     bool   `json:"ai_generated"`
	Fallback        bool   `json:"fallback"`
	Error           string `json:"error,omitempty"`
}

// RiskAssessment is the risk label for a note or a set of notes.
type RiskAssessment struct {
	Level              risk.Level `json:"risk_level"`
	Summary            string     `json:"summary"`
	RiskFactors        []string   `json:"risk_factors"`
	Recommendations    []string   `json:"recommendations"`
	MonitoringPlan     string     `json:"monitoring_plan,omitempty"`
	EscalationCriteria string     `json:"escalation_criteria,omitempty"`
	AIGenerated        bool       `json:"ai_generated"`
	Fallback           bool       `json:"fallback"`
	Error              string     `json:"error,omitempty"`
}

// Classification converts the assessment for risk.BuildReport.
func (r RiskAssessment) Classification() risk.Classification {
	return risk.Classification{
		Level:                 r.Level,
		Rationale:             r.Summary,
		MonitoringSuggestions: r.MonitoringPlan,
		EscalationCriteria:    r.EscalationCriteria,
	}
}

// NurseAdvice holds nursing follow-up for nurse notes.
type NurseAdvice struct {
	NursingActions  string `json:"nursing_actions"`
	PatientTeaching string `json:"patient_teaching,omitempty"`
	AIGenerated     bool   `json:"ai_generated"`
	Fallback        bool   `json:"fallback"`
	Error           string `json:"error,omitempty"`
}

// Analyzer calls the model when one is configured and otherwise answers
// from keyword rules. A nil caller disables the model.
type Analyzer struct {
	caller llm.Caller
	logger zerolog.Logger
}

func NewAnalyzer(caller llm.Caller, logger zerolog.Logger) *Analyzer {
	return &Analyzer{caller: caller, logger: logger.With().Str("component", "ai").Logger()}
}

func (a *Analyzer) Enabled() bool { return a.caller != nil }

// Model returns the configured model name, or "" when disabled.
func (a *Analyzer) Model() string {
	if a.caller == nil {
		return ""
	}
	return a.caller.Model()
}

func (a *Analyzer) completeJSON(ctx context.Context, op, prompt string, out any) error {
	if a.caller == nil {
		return llm.ErrDisabled
	}
	text, err := a.caller.Complete(ctx, llm.Request{
		Operation:   op,
		System:      clinicalSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.1,
	})
	if err != nil {
		return err
	}
	if err := llm.ExtractJSON(text, out); err != nil {
		return fmt.Errorf("parse %s response: %w", op, err)
	}
	return nil
}

// fallbackReason is empty when the model is simply disabled.
func (a *Analyzer) fallbackReason(op string, err error) string {
	metrics.RecordLLMFallback(op)
	if errors.Is(err, llm.ErrDisabled) {
		return ""
	}
	a.logger.Warn().Err(err).Str("operation", op).Msg("falling back to keyword analysis")
	return err.Error()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// SummarizeNote returns a structured summary of content.
func (a *Analyzer) SummarizeNote(ctx context.Context, content, noteType, patientContext string) NoteSummary {
	var raw struct {
		Summary         string   `json:"summary"`
		KeyFindings     textList `json:"key_findings"`
		Assessment      string   `json:"assessment"`
		Recommendations textList `json:"recommendations"`
		TreatmentPlan   string   `json:"treatment_plan"`
		UrgentFlags     textList `json:"urgent_flags"`
	}
	prompt := fmt.Sprintf(`Analyze this %s and provide a structured summary.

PATIENT CONTEXT:
%s

MEDICAL NOTE:
%s

Respond with a JSON object with the keys summary (2-3 sentences), key_findings,
assessment, recommendations, treatment_plan and urgent_flags.`, noteType, patientContext, content)

	err := a.completeJSON(ctx, "summarize", prompt, &raw)
	if err == nil && strings.TrimSpace(raw.Summary) != "" {
		recs := raw.Recommendations.String()
		if recs == "" {
			recs = raw.TreatmentPlan
		}
		return NoteSummary{
			Summary:         raw.Summary,
			KeyFindings:     raw.KeyFindings.String(),
			Assessment:      raw.Assessment,
			Recommendations: recs,
			UrgentFlags:     raw.UrgentFlags.String(),
			AIGenerated:     true,
		}
	}
	if err == nil {
		err = errors.New("empty summary in model response")
	}
	return NoteSummary{
		Summary:     fmt.Sprintf("Summary of %s: %s...", noteType, truncate(content, 200)),
		KeyFindings: fallbackKeyFindings,
		Assessment:  "Manual review required",
		Fallback:    true,
		Error:       a.fallbackReason("summarize", err),
	}
}

// KeywordRiskLevel classifies text without the model: any high-risk word
// gives HIGH, otherwise any low-risk word gives LOW, otherwise MEDIUM.
func KeywordRiskLevel(text string) risk.Level {
	lower := strings.ToLower(text)
	for _, w := range highRiskWords {
		if strings.Contains(lower, w) {
			return risk.LevelHigh
		}
	}
	for _, w := range lowRiskWords {
		if strings.Contains(lower, w) {
			return risk.LevelLow
		}
	}
	return risk.LevelMedium
}

// AssessRisk labels content, optionally in the light of earlier notes.
func (a *Analyzer) AssessRisk(ctx context.Context, content string, history []string) RiskAssessment {
	var raw struct {
		RiskLevel          string   `json:"risk_level"`
		Summary            string   `json:"summary"`
		RiskFactors        textList `json:"risk_factors"`
		Recommendations    textList `json:"recommendations"`
		MonitoringPlan     string   `json:"monitoring_plan"`
		EscalationCriteria string   `json:"escalation_criteria"`
	}
	var sb strings.Builder
	sb.WriteString("Perform a clinical risk assessment.\n\nCURRENT NOTE:\n")
	sb.WriteString(content)
	if len(history) > 0 {
		sb.WriteString("\n\nPATIENT HISTORY:\n")
		sb.WriteString(strings.Join(history, "\n"))
	}
	sb.WriteString(`

Respond with a JSON object with the keys risk_level (LOW, MEDIUM, HIGH or
CRITICAL), summary, risk_factors (array), recommendations (array),
monitoring_plan and escalation_criteria.`)

	err := a.completeJSON(ctx, "assess_risk", sb.String(), &raw)
	if err == nil {
		level := risk.ParseLevel(raw.RiskLevel)
		if level.Known() {
			return RiskAssessment{
				Level:              level,
				Summary:            raw.Summary,
				RiskFactors:        raw.RiskFactors,
				Recommendations:    raw.Recommendations,
				MonitoringPlan:     raw.MonitoringPlan,
				EscalationCriteria: raw.EscalationCriteria,
				AIGenerated:        true,
			}
		}
		err = fmt.Errorf("unrecognised risk level %q", raw.RiskLevel)
	}
	return RiskAssessment{
		Level:           KeywordRiskLevel(content),
		Summary:         fallbackRiskSummary,
		RiskFactors:     []string{"Automated assessment - AI not available"},
		Recommendations: []string{"Manual clinical review recommended"},
		Fallback:        true,
		Error:           a.fallbackReason("assess_risk", err),
	}
}

// NurseRecommendations suggests nursing actions for a nurse note.
func (a *Analyzer) NurseRecommendations(ctx context.Context, content, patientContext string) NurseAdvice {
	var raw struct {
		NursingActions  textList `json:"nursing_actions"`
		PatientTeaching textList `json:"patient_teaching"`
	}
	prompt := fmt.Sprintf(`Suggest nursing follow-up for this nurse note.

PATIENT CONTEXT:
%s

NURSE NOTE:
%s

Respond with a JSON object with the keys nursing_actions and patient_teaching.`, patientContext, content)

	err := a.completeJSON(ctx, "nurse_recommendations", prompt, &raw)
	if err == nil && len(raw.NursingActions) > 0 {
		return NurseAdvice{
			NursingActions:  raw.NursingActions.String(),
			PatientTeaching: raw.PatientTeaching.String(),
			AIGenerated:     true,
		}
	}
	if err == nil {
		err = errors.New("no nursing actions in model response")
	}
	return NurseAdvice{
		NursingActions: "Continue routine nursing assessment and document vital signs",
		Fallback:       true,
		Error:          a.fallbackReason("nurse_recommendations", err),
	}
}

// PatientOverview writes a 3-4 line overview from the patient's most recent
// note texts.
func (a *Analyzer) PatientOverview(ctx context.Context, patientName string, notes []string) string {
	if len(notes) == 0 {
		return NoEncountersOverview
	}
	if len(notes) > 8 {
		notes = notes[:8]
	}
	joined := strings.Join(notes, "\n\n")
	fallback := fmt.Sprintf("Patient overview for %s: %s...", patientName, strings.ReplaceAll(truncate(joined, 400), "\n", " "))

	if a.caller == nil {
		metrics.RecordLLMFallback("patient_overview")
		return fallback
	}
	text, err := a.caller.Complete(ctx, llm.Request{
		Operation: "patient_overview",
		System: "You are an expert clinical documentation assistant. Write a brief, 3-4 line overview " +
			"that captures the patient's current status, key diagnoses or complaints, notable findings " +
			"and the plan. Be concise and objective.",
		Prompt:      fmt.Sprintf("Patient: %s\nRecent notes:\n%s", patientName, joined),
		Temperature: 0.1,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		if err == nil {
			err = errors.New("empty overview")
		}
		a.fallbackReason("patient_overview", err)
		return fallback
	}
	return strings.TrimSpace(text)
}

// TimelineNarrative summarises a patient's journey. It returns
// NotConfiguredMessage when the model is disabled.
func (a *Analyzer) TimelineNarrative(ctx context.Context, patientInfo, recentVisits string) string {
	if a.caller == nil {
		return NotConfiguredMessage
	}
	text, err := a.caller.Complete(ctx, llm.Request{
		Operation: "timeline",
		Prompt: `As a medical AI assistant, analyze this patient's timeline and provide:
1. Patient journey summary
2. Key medical events
3. Risk trends over time
4. Current status
5. Recommended follow-ups

` + patientInfo + "\n\nRecent visit summaries:\n" + recentVisits,
		MaxTokens:   800,
		Temperature: 0.1,
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("operation", "timeline").Msg("timeline narrative failed")
		return "AI summary unavailable: " + err.Error()
	}
	return strings.TrimSpace(text)
}
