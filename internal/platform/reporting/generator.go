package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/securemed/mednotes/internal/platform/metrics"
)

// Generator fetches notes from a NoteSource and builds reports.
type Generator struct {
	source NoteSource
	now    func() time.Time
}

func NewGenerator(source NoteSource) *Generator {
	return &Generator{source: source, now: time.Now}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func periodLabel(from, to time.Time) string {
	// to is exclusive
	return fmt.Sprintf("%s to %s", from.Format(dateLayout), to.Add(-time.Nanosecond).Format(dateLayout))
}

func (g *Generator) between(ctx context.Context, from, to time.Time) ([]NoteRecord, error) {
	notes, err := g.source.NotesBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load notes %s: %w", periodLabel(from, to), err)
	}
	return notes, nil
}

func (g *Generator) done(r *Report) *Report {
	metrics.RecordReportGenerated(r.Kind)
	return r
}

// Daily reports the calendar day containing day.
func (g *Generator) Daily(ctx context.Context, day time.Time) (*Report, error) {
	from := startOfDay(day)
	notes, err := g.between(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return g.done(BuildDaily(from, notes, g.now())), nil
}

// Weekly reports the seven days beginning on start's calendar day.
func (g *Generator) Weekly(ctx context.Context, start time.Time) (*Report, error) {
	from := startOfDay(start)
	notes, err := g.between(ctx, from, from.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}
	return g.done(BuildWeekly(from, notes, g.now())), nil
}

func (g *Generator) Patient(ctx context.Context, patientID string) (*Report, error) {
	notes, err := g.source.NotesForPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load notes for patient %s: %w", patientID, err)
	}
	return g.done(BuildPatient(patientID, notes, g.now())), nil
}

// RiskAssessment reports elevated assessments in [from, to).
func (g *Generator) RiskAssessment(ctx context.Context, from, to time.Time) (*Report, error) {
	notes, err := g.between(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return g.done(BuildRiskAssessment(periodLabel(from, to), notes, g.now())), nil
}

// Department reports staff coverage in [from, to).
func (g *Generator) Department(ctx context.Context, department string, from, to time.Time) (*Report, error) {
	notes, err := g.between(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return g.done(BuildDepartment(department, periodLabel(from, to), notes, g.now())), nil
}

// ForSchedule builds the report a schedule of kind delivers at now. Daily
// schedules cover the previous day; the others cover the preceding week.
func (g *Generator) ForSchedule(ctx context.Context, kind string, now time.Time) (*Report, error) {
	today := startOfDay(now)
	switch kind {
	case KindDaily:
		return g.Daily(ctx, today.AddDate(0, 0, -1))
	case KindWeekly:
		return g.Weekly(ctx, today.AddDate(0, 0, -7))
	case KindRiskAssessment:
		return g.RiskAssessment(ctx, today.AddDate(0, 0, -7), today)
	default:
		return nil, fmt.Errorf("report kind %q cannot be scheduled", kind)
	}
}
