package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/securemed/mednotes/internal/platform/llm"
	"github.com/securemed/mednotes/internal/risk"
)

// fakeCaller answers by operation name.
type fakeCaller struct {
	replies map[string]string
	err     error
	calls   []llm.Request
}

func (f *fakeCaller) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return f.replies[req.Operation], nil
}

func (f *fakeCaller) Model() string { return "test-model" }

func disabledAnalyzer() *Analyzer {
	return NewAnalyzer(nil, zerolog.Nop())
}

func TestKeywordRiskLevel(t *testing.T) {
	tests := []struct {
		text string
		want risk.Level
	}{
		{"Patient in severe distress", risk.LevelHigh},
		{"URGENT review requested, otherwise stable", risk.LevelHigh},
		{"Routine check, vitals normal", risk.LevelLow},
		{"Mild cough for three days", risk.LevelMedium},
		{"", risk.LevelMedium},
	}
	for _, tt := range tests {
		if got := KeywordRiskLevel(tt.text); got != tt.want {
			t.Errorf("KeywordRiskLevel(%q): expected %s, got %s", tt.text, tt.want, got)
		}
	}
}

func TestSummarizeNote_Disabled(t *testing.T) {
	a := disabledAnalyzer()
	content := strings.Repeat("x", 250)
	got := a.SummarizeNote(context.Background(), content, "doctor_note", "")

	want := "Summary of doctor_note: " + strings.Repeat("x", 200) + "..."
	if got.Summary != want {
		t.Errorf("expected truncated fallback summary, got %q", got.Summary)
	}
	if got.KeyFindings != "AI analysis not available - API key needed" {
		t.Errorf("unexpected key findings %q", got.KeyFindings)
	}
	if !got.Fallback || got.AIGenerated {
		t.Errorf("expected fallback result, got %+v", got)
	}
	if got.Error != "" {
		t.Errorf("expected no error when simply disabled, got %q", got.Error)
	}
}

func TestSummarizeNote_Model(t *testing.T) {
	caller := &fakeCaller{replies: map[string]string{
		"summarize": "```json\n{\"summary\":\"Stable angina.\",\"key_findings\":[\"chest pain\",\"hypertension\"],\"recommendations\":\"Stress test\"}\n```",
	}}
	a := NewAnalyzer(caller, zerolog.Nop())
	got := a.SummarizeNote(context.Background(), "note", "doctor_note", "ctx")

	if got.Summary != "Stable angina." || !got.AIGenerated {
		t.Errorf("expected model summary, got %+v", got)
	}
	if got.KeyFindings != "chest pain; hypertension" {
		t.Errorf("expected list findings joined, got %q", got.KeyFindings)
	}
	if got.Recommendations != "Stress test" {
		t.Errorf("expected string recommendations, got %q", got.Recommendations)
	}
}

func TestSummarizeNote_ModelFailureFallsBack(t *testing.T) {
	a := NewAnalyzer(&fakeCaller{err: errors.New("boom")}, zerolog.Nop())
	got := a.SummarizeNote(context.Background(), "short", "nurse_note", "")
	if !got.Fallback || got.Error == "" {
		t.Errorf("expected fallback with error, got %+v", got)
	}
	if got.Summary != "Summary of nurse_note: short..." {
		t.Errorf("unexpected summary %q", got.Summary)
	}
}

func TestAssessRisk_Model(t *testing.T) {
	caller := &fakeCaller{replies: map[string]string{
		"assess_risk": `Here you go: {"risk_level":"critical","summary":"Sepsis risk with fever","risk_factors":["fever"],"recommendations":["ICU consult"],"monitoring_plan":"q1h vitals"}`,
	}}
	a := NewAnalyzer(caller, zerolog.Nop())
	got := a.AssessRisk(context.Background(), "note", []string{"older"})

	if got.Level != risk.LevelCritical {
		t.Errorf("expected CRITICAL, got %s", got.Level)
	}
	if got.Classification().MonitoringSuggestions != "q1h vitals" {
		t.Errorf("expected monitoring plan carried into classification")
	}
	if !strings.Contains(caller.calls[0].Prompt, "PATIENT HISTORY:\nolder") {
		t.Errorf("expected history in prompt, got %q", caller.calls[0].Prompt)
	}
}

func TestAssessRisk_UnknownLevelFallsBack(t *testing.T) {
	caller := &fakeCaller{replies: map[string]string{
		"assess_risk": `{"risk_level":"SEVERE-ISH","summary":"?"}`,
	}}
	a := NewAnalyzer(caller, zerolog.Nop())
	got := a.AssessRisk(context.Background(), "Emergency admission", nil)
	if !got.Fallback || got.Level != risk.LevelHigh {
		t.Errorf("expected keyword fallback HIGH, got %+v", got)
	}
}

func TestPatientOverview(t *testing.T) {
	a := disabledAnalyzer()
	if got := a.PatientOverview(context.Background(), "Jane Roe", nil); got != NoEncountersOverview {
		t.Errorf("expected no-encounters message, got %q", got)
	}
	got := a.PatientOverview(context.Background(), "Jane Roe", []string{"line one\nline two", "second"})
	want := "Patient overview for Jane Roe: line one line two  second..."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	model := NewAnalyzer(&fakeCaller{replies: map[string]string{"patient_overview": "  Doing well.  "}}, zerolog.Nop())
	if got := model.PatientOverview(context.Background(), "Jane Roe", []string{"x"}); got != "Doing well." {
		t.Errorf("expected trimmed model overview, got %q", got)
	}
}

func TestTimelineNarrative_Disabled(t *testing.T) {
	if got := disabledAnalyzer().TimelineNarrative(context.Background(), "info", "visits"); got != NotConfiguredMessage {
		t.Errorf("expected %q, got %q", NotConfiguredMessage, got)
	}
}
