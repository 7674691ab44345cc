package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/securemed/mednotes/internal/domain/appointment"
	"github.com/securemed/mednotes/internal/domain/note"
	"github.com/securemed/mednotes/internal/domain/patient"
)

const (
	timelineNarrativeNotes = 10
	maxTimelineAppts       = 500
)

type TimelineItem struct {
	Type      string    `json:"type"`
	ID        uuid.UUID `json:"id"`
	Date      time.Time `json:"date"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	RiskLevel string    `json:"risk_level,omitempty"`
	Author    string    `json:"author,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Status    string    `json:"status,omitempty"`
}

type TimelineStats struct {
	TotalVisits       int            `json:"total_visits"`
	TotalAppointments int            `json:"total_appointments"`
	RiskDistribution  map[string]int `json:"risk_distribution"`
	LastVisit         *time.Time     `json:"last_visit"`
}

type TimelineView struct {
	Patient    *patient.Patient `json:"patient"`
	Timeline   []TimelineItem   `json:"timeline"`
	AISummary  string           `json:"ai_summary"`
	Statistics TimelineStats    `json:"statistics"`
}

type TimelineService struct {
	notes    NoteStore
	patients PatientStore
	appts    AppointmentStore
	analyzer *Analyzer
}

func NewTimelineService(notes NoteStore, patients PatientStore, appts AppointmentStore, analyzer *Analyzer) *TimelineService {
	return &TimelineService{notes: notes, patients: patients, appts: appts, analyzer: analyzer}
}

// Timeline merges the patient's notes and appointments newest first and
// adds a narrative and visit statistics.
func (s *TimelineService) Timeline(ctx context.Context, patientID uuid.UUID) (*TimelineView, error) {
	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	notes, err := s.notes.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	appts, apptTotal, err := s.appts.ListAppointments(ctx, appointment.Filter{PatientID: patientID}, maxTimelineAppts, 0)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	items := make([]TimelineItem, 0, len(notes)+len(appts))
	stats := TimelineStats{
		TotalVisits:       len(notes),
		TotalAppointments: apptTotal,
		RiskDistribution:  map[string]int{},
	}
	for _, n := range notes {
		items = append(items, TimelineItem{
			Type: "note", ID: n.ID, Date: n.CreatedAt, Title: n.Title, Content: n.Content,
			Summary: n.Summary, RiskLevel: n.RiskLevel, Author: n.AuthorName,
		})
		if n.RiskLevel != "" {
			stats.RiskDistribution[n.RiskLevel]++
		}
	}
	if len(notes) > 0 {
		last := notes[0].CreatedAt
		stats.LastVisit = &last
	}
	for _, a := range appts {
		items = append(items, TimelineItem{
			Type: "appointment", ID: a.ID, Date: a.StartTime, Title: a.Title,
			Reason: a.Notes, Status: a.Status,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.After(items[j].Date) })

	return &TimelineView{
		Patient:    p,
		Timeline:   items,
		AISummary:  s.narrative(ctx, p, notes, apptTotal),
		Statistics: stats,
	}, nil
}

func (s *TimelineService) narrative(ctx context.Context, p *patient.Patient, notes []*note.Note, appts int) string {
	if !s.analyzer.Enabled() {
		return NotConfiguredMessage
	}
	history := "None"
	if p.MedicalHistory != nil && *p.MedicalHistory != "" {
		history = *p.MedicalHistory
	}
	allergies := p.AllergyText()
	if allergies == "" {
		allergies = "None"
	}
	info := fmt.Sprintf("Patient: %s\nDOB: %s\nMRN: %s\nAllergies: %s\nMedical History: %s\n\nTotal Visits: %d\nTotal Appointments: %d",
		p.FullName(), p.DateOfBirth, p.MedicalRecordNumber, allergies, history, len(notes), appts)

	recent := notes
	if len(recent) > timelineNarrativeNotes {
		recent = recent[:timelineNarrativeNotes]
	}
	visits := make([]string, 0, len(recent))
	for _, n := range recent {
		visits = append(visits, fmt.Sprintf("%s: %s\n%s...", n.CreatedAt.Format("2006-01-02"), n.Title, truncate(n.Content, 300)))
	}
	return s.analyzer.TimelineNarrative(ctx, info, strings.Join(visits, "\n\n"))
}
