// Package reporting builds operational reports over clinical notes,
// renders them as markdown, HTML or PDF, and delivers them on a schedule.
package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/securemed/mednotes/internal/risk"
)

// Report kinds accepted by the API and by schedules.
const (
	KindDaily          = "daily"
	KindWeekly         = "weekly"
	KindPatient        = "patient"
	KindRiskAssessment = "risk_assessment"
	KindDepartment     = "department"
)

const (
	noteTypeDoctor = "doctor_note"
	noteTypeNurse  = "nurse_note"
	dateLayout     = "2006-01-02"
)

// Definition describes a report kind.
type Definition struct {
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Schedulable bool   `json:"schedulable"`
}

// Definitions is the list of available reports.
var Definitions = []Definition{
	{Kind: KindDaily, Name: "Daily Summary", Description: "Notes written on one calendar day with AI processing and risk counts", Schedulable: true},
	{Kind: KindWeekly, Name: "Weekly Summary", Description: "Seven-day documentation volume with daily average", Schedulable: true},
	{Kind: KindPatient, Name: "Patient Report", Description: "Visit history, current risk level and per-note AI output for one patient"},
	{Kind: KindRiskAssessment, Name: "Risk Assessment Report", Description: "HIGH and CRITICAL assessments in a period with follow-up lists", Schedulable: true},
	{Kind: KindDepartment, Name: "Department Report", Description: "Staff and patient coverage with AI utilization"},
}

// FindDefinition looks up a report definition by kind.
func FindDefinition(kind string) *Definition {
	for i := range Definitions {
		if Definitions[i].Kind == kind {
			return &Definitions[i]
		}
	}
	return nil
}

// NoteRecord is the view of a clinical note that reports are built from.
type NoteRecord struct {
	ID              string
	PatientID       string
	PatientName     string
	AuthorID        string
	AuthorName      string
	NoteType        string
	Title           string
	Summary         string
	RiskLevel       string
	Recommendations string
	CreatedAt       time.Time
}

// NoteSource supplies notes to the report generators.
type NoteSource interface {
	// NotesBetween returns notes created in [from, to).
	NotesBetween(ctx context.Context, from, to time.Time) ([]NoteRecord, error)
	// NotesForPatient returns a patient's notes, newest first.
	NotesForPatient(ctx context.Context, patientID string) ([]NoteRecord, error)
}

// Metric is a single named figure in a report.
type Metric struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value any    `json:"value"`
}

// Table is a titled grid of string cells.
type Table struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Report is the rendered-format-independent result of a generator.
type Report struct {
	Kind        string    `json:"kind"`
	Type        string    `json:"report_type"`
	GeneratedAt time.Time `json:"generated_at"`
	Date        string    `json:"date,omitempty"`
	Period      string    `json:"period,omitempty"`
	PatientID   string    `json:"patient_id,omitempty"`
	Department  string    `json:"department,omitempty"`
	Metrics     []Metric  `json:"metrics"`
	Tables      []Table   `json:"tables,omitempty"`
	// Lists holds named patient lists such as follow-up groups.
	Lists []NamedList `json:"lists,omitempty"`
}

type NamedList struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
}

// Metric returns the value of the metric with key, or nil.
func (r *Report) Metric(key string) any {
	for _, m := range r.Metrics {
		if m.Key == key {
			return m.Value
		}
	}
	return nil
}

func newReport(kind string, generatedAt time.Time) *Report {
	name := kind
	if d := FindDefinition(kind); d != nil {
		name = d.Name
	}
	return &Report{Kind: kind, Type: name, GeneratedAt: generatedAt, Metrics: []Metric{}}
}

func (r *Report) add(key, label string, value any) {
	r.Metrics = append(r.Metrics, Metric{Key: key, Label: label, Value: value})
}

type volume struct {
	total, doctor, nurse, aiProcessed, highRisk int
}

func countVolume(notes []NoteRecord) volume {
	var v volume
	v.total = len(notes)
	for _, n := range notes {
		switch n.NoteType {
		case noteTypeDoctor:
			v.doctor++
		case noteTypeNurse:
			v.nurse++
		}
		if n.Summary != "" {
			v.aiProcessed++
		}
		if risk.ParseLevel(n.RiskLevel) == risk.LevelHigh {
			v.highRisk++
		}
	}
	return v
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

// BuildDaily summarizes the notes written on day.
func BuildDaily(day time.Time, notes []NoteRecord, generatedAt time.Time) *Report {
	r := newReport(KindDaily, generatedAt)
	r.Date = day.Format(dateLayout)

	v := countVolume(notes)
	r.add("total_notes", "Total notes", v.total)
	r.add("doctor_notes", "Doctor notes", v.doctor)
	r.add("nurse_notes", "Nurse notes", v.nurse)
	r.add("ai_processed", "AI processed", v.aiProcessed)
	r.add("high_risk_patients", "High risk", v.highRisk)

	t := Table{Title: "Notes", Columns: []string{"Time", "Title", "Patient", "Author", "Type"}, Rows: [][]string{}}
	for _, n := range notes {
		t.Rows = append(t.Rows, []string{formatTime(n.CreatedAt), n.Title, orUnknown(n.PatientName), orUnknown(n.AuthorName), n.NoteType})
	}
	r.Tables = append(r.Tables, t)
	return r
}

// BuildWeekly summarizes the seven days starting at start.
func BuildWeekly(start time.Time, notes []NoteRecord, generatedAt time.Time) *Report {
	r := newReport(KindWeekly, generatedAt)
	end := start.AddDate(0, 0, 6)
	r.Period = fmt.Sprintf("%s to %s", start.Format(dateLayout), end.Format(dateLayout))

	v := countVolume(notes)
	r.add("total_notes", "Total notes", v.total)
	r.add("daily_average", "Daily average", float64(v.total)/7)
	r.add("doctor_notes", "Doctor notes", v.doctor)
	r.add("nurse_notes", "Nurse notes", v.nurse)
	r.add("ai_processed", "AI processed", v.aiProcessed)
	r.add("high_risk_patients", "High risk", v.highRisk)

	perDay := Table{Title: "Notes per day", Columns: []string{"Date", "Notes"}, Rows: [][]string{}}
	counts := make(map[string]int)
	for _, n := range notes {
		counts[n.CreatedAt.Format(dateLayout)]++
	}
	for i := 0; i < 7; i++ {
		d := start.AddDate(0, 0, i).Format(dateLayout)
		perDay.Rows = append(perDay.Rows, []string{d, fmt.Sprint(counts[d])})
	}
	r.Tables = append(r.Tables, perDay)
	return r
}

// BuildPatient reports one patient's history. notes must be newest first.
func BuildPatient(patientID string, notes []NoteRecord, generatedAt time.Time) *Report {
	r := newReport(KindPatient, generatedAt)
	r.PatientID = patientID

	r.add("total_visits", "Total visits", len(notes))
	if len(notes) == 0 {
		r.add("first_visit", "First visit", nil)
		r.add("last_visit", "Last visit", nil)
		r.add("current_risk_level", "Current risk level", nil)
		return r
	}

	first, last := notes[0].CreatedAt, notes[0].CreatedAt
	for _, n := range notes[1:] {
		if n.CreatedAt.Before(first) {
			first = n.CreatedAt
		}
		if n.CreatedAt.After(last) {
			last = n.CreatedAt
		}
	}
	current := notes[0].RiskLevel
	if current == "" {
		current = "UNKNOWN"
	}
	r.add("first_visit", "First visit", first)
	r.add("last_visit", "Last visit", last)
	r.add("current_risk_level", "Current risk level", current)

	t := Table{Title: "Encounters", Columns: []string{"Date", "Title", "Type", "Summary", "Recommendations"}, Rows: [][]string{}}
	for _, n := range notes {
		summary := n.Summary
		if summary == "" {
			summary = "No summary available"
		}
		recs := n.Recommendations
		if recs == "" {
			recs = "No recommendations"
		}
		t.Rows = append(t.Rows, []string{formatTime(n.CreatedAt), n.Title, n.NoteType, summary, recs})
	}
	r.Tables = append(r.Tables, t)
	return r
}

// BuildRiskAssessment lists every HIGH or CRITICAL assessment in notes.
func BuildRiskAssessment(period string, notes []NoteRecord, generatedAt time.Time) *Report {
	r := newReport(KindRiskAssessment, generatedAt)
	r.Period = period

	var elevated []NoteRecord
	for _, n := range notes {
		if risk.ParseLevel(n.RiskLevel).Elevated() {
			elevated = append(elevated, n)
		}
	}
	sort.SliceStable(elevated, func(i, j int) bool {
		return elevated[i].CreatedAt.After(elevated[j].CreatedAt)
	})

	pct := 0.0
	if len(notes) > 0 {
		pct = float64(len(elevated)) / float64(len(notes)) * 100
	}
	r.add("total_patients_assessed", "Assessments", len(notes))
	r.add("high_risk_patients", "High or critical", len(elevated))
	r.add("risk_percentage", "Risk percentage", pct)

	t := Table{Title: "High risk patients", Columns: []string{"Patient", "Risk level", "Last assessment", "Key risks", "Recommendations"}, Rows: [][]string{}}
	immediate := NamedList{Title: "Immediate attention", Items: []string{}}
	monitoring := NamedList{Title: "Increased monitoring", Items: []string{}}
	for _, n := range elevated {
		factors := risk.ExtractRiskFactors(n.Summary)
		t.Rows = append(t.Rows, []string{
			orUnknown(n.PatientName), n.RiskLevel, formatTime(n.CreatedAt), joinOrDash(factors), n.Recommendations,
		})
		switch risk.ParseLevel(n.RiskLevel) {
		case risk.LevelCritical:
			immediate.Items = append(immediate.Items, orUnknown(n.PatientName))
		case risk.LevelHigh:
			monitoring.Items = append(monitoring.Items, orUnknown(n.PatientName))
		}
	}
	r.Tables = append(r.Tables, t)
	r.Lists = append(r.Lists, immediate, monitoring)
	return r
}

// BuildDepartment reports staffing coverage for a department.
func BuildDepartment(department, period string, notes []NoteRecord, generatedAt time.Time) *Report {
	r := newReport(KindDepartment, generatedAt)
	r.Department = department
	r.Period = period

	staff := make(map[string]int)
	patients := make(map[string]struct{})
	ai := 0
	for _, n := range notes {
		staff[orUnknown(n.AuthorName)]++
		patients[n.PatientID] = struct{}{}
		if n.Summary != "" {
			ai++
		}
	}

	avg := 0.0
	utilization := "0%"
	if len(notes) > 0 {
		avg = float64(len(notes)) / float64(len(staff))
		utilization = fmt.Sprintf("%.1f%%", float64(ai)/float64(len(notes))*100)
	}
	r.add("total_notes", "Total notes", len(notes))
	r.add("staff_count", "Staff", len(staff))
	r.add("patient_count", "Patients", len(patients))
	r.add("average_notes_per_staff", "Notes per staff member", avg)
	r.add("ai_utilization", "AI utilization", utilization)

	names := make([]string, 0, len(staff))
	for name := range staff {
		names = append(names, name)
	}
	sort.Strings(names)
	t := Table{Title: "Notes by author", Columns: []string{"Author", "Notes"}, Rows: [][]string{}}
	for _, name := range names {
		t.Rows = append(t.Rows, []string{name, fmt.Sprint(staff[name])})
	}
	r.Tables = append(r.Tables, t)
	return r
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
