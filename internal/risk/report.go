package risk

import (
	"time"
)

const noNotesSummary = "No notes available for risk assessment"

// Classification is the risk label and rationale produced by the language
// model (or its keyword fallback) for a patient.
type Classification struct {
	Level                 Level  `json:"risk_level"`
	Rationale             string `json:"summary"`
	MonitoringSuggestions string `json:"monitoring_suggestions,omitempty"`
	EscalationCriteria    string `json:"escalation_criteria,omitempty"`
}

// Report is the assembled patient risk report.
type Report struct {
	PatientID             string       `json:"patient_id,omitempty"`
	PatientName           string       `json:"patient_name"`
	RiskLevel             Level        `json:"risk_level"`
	Summary               string       `json:"summary"`
	Risks                 []string     `json:"risks"`
	Recommendations       []string     `json:"recommendations"`
	Escalation            string       `json:"escalation"`
	Trends                []WeekBucket `json:"trends"`
	LastAssessment        *time.Time   `json:"last_assessment"`
	MonitoringSuggestions string       `json:"monitoring_suggestions,omitempty"`
	EscalationCriteria    string       `json:"escalation_criteria,omitempty"`
}

// ReportInput bundles everything BuildReport needs.
type ReportInput struct {
	PatientID      string
	PatientName    string
	Patient        PatientAttributes
	Notes          []Note
	Classification Classification
	AssessedAt     time.Time
}

// EmptyReport is returned for a patient without notes.
func EmptyReport(patientID, patientName string) *Report {
	return &Report{
		PatientID:       patientID,
		PatientName:     patientName,
		RiskLevel:       LevelUnknown,
		Summary:         noNotesSummary,
		Risks:           []string{},
		Recommendations: []string{},
		Escalation:      EscalationNoData,
		Trends:          []WeekBucket{},
	}
}

// BuildReport aggregates the notes into weekly trends and derives the
// escalation, recommendations and risk factors from the classification.
func BuildReport(in ReportInput) (*Report, error) {
	if len(in.Notes) == 0 {
		return EmptyReport(in.PatientID, in.PatientName), nil
	}

	trends, err := Aggregate(in.Notes)
	if err != nil {
		return nil, err
	}

	level := ParseLevel(string(in.Classification.Level))
	if level == "" {
		level = LevelUnknown
	}
	assessed := in.AssessedAt
	if assessed.IsZero() {
		assessed = time.Now().UTC()
	}

	return &Report{
		PatientID:             in.PatientID,
		PatientName:           in.PatientName,
		RiskLevel:             level,
		Summary:               in.Classification.Rationale,
		Risks:                 ExtractRiskFactors(in.Classification.Rationale),
		Recommendations:       Recommend(level, trends, in.Patient),
		Escalation:            Escalate(level, trends),
		Trends:                trends,
		LastAssessment:        &assessed,
		MonitoringSuggestions: in.Classification.MonitoringSuggestions,
		EscalationCriteria:    in.Classification.EscalationCriteria,
	}, nil
}
