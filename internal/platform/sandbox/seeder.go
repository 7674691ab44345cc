// Package sandbox generates reproducible demo data (patients, clinical
// notes, upcoming appointments) for development and UI demos. Generation
// is pure; persistence goes through a Sink supplied by the caller.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	PatientCount           int   `json:"patientCount"`
	MinNotesPerPatient     int   `json:"minNotesPerPatient"`
	MaxNotesPerPatient     int   `json:"maxNotesPerPatient"`
	HistoryDays            int   `json:"historyDays"`
	AppointmentsPerPatient int   `json:"appointmentsPerPatient"`
	Seed                   int64 `json:"seed"`
}

// DefaultSeedConfig returns a small, demo-sized configuration.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount:           8,
		MinNotesPerPatient:     5,
		MaxNotesPerPatient:     10,
		HistoryDays:            180,
		AppointmentsPerPatient: 1,
		Seed:                   1,
	}
}

func (c SeedConfig) validate() error {
	if c.PatientCount < 1 {
		return fmt.Errorf("patient count must be at least 1, got %d", c.PatientCount)
	}
	if c.MinNotesPerPatient < 0 || c.MaxNotesPerPatient < c.MinNotesPerPatient {
		return fmt.Errorf("invalid notes range %d..%d", c.MinNotesPerPatient, c.MaxNotesPerPatient)
	}
	if c.HistoryDays < 1 {
		return fmt.Errorf("history days must be at least 1, got %d", c.HistoryDays)
	}
	if c.AppointmentsPerPatient < 0 {
		return fmt.Errorf("appointments per patient must not be negative, got %d", c.AppointmentsPerPatient)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Generated records
// ---------------------------------------------------------------------------

// Staff is a synthetic clinician used as note author or appointment owner.
type Staff struct {
	ID   string
	Name string
	Role string
}

type PatientRecord struct {
	PatientID           string
	FirstName           string
	LastName            string
	DateOfBirth         string
	MedicalRecordNumber string
	EmergencyContact    string
	Allergies           string
	MedicalHistory      string
}

func (p PatientRecord) FullName() string { return p.FirstName + " " + p.LastName }

type NoteRecord struct {
	Author    Staff
	NoteType  string
	Title     string
	Content   string
	CreatedAt time.Time
}

type AppointmentRecord struct {
	Owner           Staff
	Title           string
	AppointmentType string
	Location        string
	Start           time.Time
	End             time.Time
}

// ErrPatientExists is returned by a Sink when the patient is already
// stored. The seeder skips that patient's notes and appointments.
var ErrPatientExists = errors.New("patient already exists")

// Sink persists generated records.
type Sink interface {
	CreatePatient(ctx context.Context, p PatientRecord) (uuid.UUID, error)
	CreateNote(ctx context.Context, patientID uuid.UUID, n NoteRecord) error
	CreateAppointment(ctx context.Context, patientID uuid.UUID, patientName string, a AppointmentRecord) error
}

// SeedResult summarises a seeding run.
type SeedResult struct {
	Patients        int           `json:"patients"`
	SkippedPatients int           `json:"skippedPatients"`
	Notes           int           `json:"notes"`
	Appointments    int           `json:"appointments"`
	Duration        time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// Reference data
// ---------------------------------------------------------------------------

var staff = []Staff{
	{ID: "seed-dr-williams", Name: "Dr. Emily Williams", Role: "doctor"},
	{ID: "seed-dr-chen", Name: "Dr. Michael Chen", Role: "doctor"},
	{ID: "seed-dr-patel", Name: "Dr. Priya Patel", Role: "doctor"},
	{ID: "seed-rn-davis", Name: "Nurse Robert Davis", Role: "nurse"},
	{ID: "seed-rn-martinez", Name: "Nurse Maria Martinez", Role: "nurse"},
	{ID: "seed-rn-lee", Name: "Nurse Jennifer Lee", Role: "nurse"},
}

var (
	firstNames = []string{
		"Emily", "Robert", "Lisa", "David", "Jennifer", "James", "Maria", "Ahmed",
		"Grace", "Thomas", "Aisha", "Daniel", "Sofia", "Kenji", "Olivia", "Samuel",
	}
	lastNames = []string{
		"Rodriguez", "Anderson", "Taylor", "Wilson", "Martinez", "Nguyen", "Okafor",
		"Schmidt", "Kowalski", "Haddad", "Brown", "Tanaka", "Moreau", "Singh",
	}
	allergyOptions = []string{
		"Latex, Shellfish", "Sulfa drugs, Aspirin", "None known", "Penicillin",
		"Peanuts", "Iodine contrast", "None known",
	}
	historyOptions = []string{
		"Asthma since childhood, Seasonal allergies",
		"COPD, Former smoker, Arthritis",
		"Anxiety disorder, Migraines",
		"Type 2 Diabetes, Hypertension, High cholesterol",
		"Depression, well controlled with medication",
		"Atrial fibrillation on anticoagulation",
		"No significant past history",
	}
	appointmentTypes = []string{"follow-up", "consultation", "check-up", "procedure"}
	locations        = []string{"Clinic A - Room 101", "Clinic A - Room 104", "Clinic B - Room 210", "Telehealth"}
)

type noteTemplate struct {
	noteType string
	title    string
	content  string
}

var noteTemplates = []noteTemplate{
	{"doctor_note", "Routine Physical Examination",
		"Annual wellness visit. Patient reports feeling well. Vital signs stable, BP 120/80, HR 72. " +
			"Exam unremarkable. Labs ordered: CBC, CMP, lipid panel. Continue current medications."},
	{"doctor_note", "Follow-up Visit - Hypertension",
		"BP check. Home readings average 130/85 on lisinopril 10mg daily. BP today 128/82, well controlled. " +
			"Continue regimen, follow-up in 3 months."},
	{"doctor_note", "Diabetes Management",
		"HbA1c 7.2% (from 8.5%). Fasting glucose 145 mg/dL. Following diet plan, metformin 1000mg twice daily. " +
			"Good progress, routine review in 3 months."},
	{"doctor_note", "Urgent Care - Chest Pain",
		"Chest pain for 2 hours radiating to left arm. ECG normal sinus rhythm, troponin negative. " +
			"Likely musculoskeletal. NSAIDs prescribed. Return to ER if symptoms worsen."},
	{"doctor_note", "Emergency Review - Shortness of Breath",
		"Severe shortness of breath and fever of 39.4C. SpO2 88% on room air. Suspected pneumonia with sepsis risk. " +
			"Urgent chest x-ray, blood cultures, IV antibiotics started. Escalated to attending."},
	{"doctor_note", "Mental Health Screening",
		"PHQ-9 score 12 (moderate depression). Low mood and sleep disturbance on sertraline 50mg. " +
			"Dose increased to 100mg, referred to counseling. Follow-up in 2 weeks."},
	{"nurse_note", "Vital Signs Check",
		"Routine monitoring. BP 118/76, HR 68, RR 16, SpO2 99%. Patient resting comfortably, no complaints."},
	{"nurse_note", "Medication Administration",
		"Morning medications administered as prescribed. Tolerated well, no adverse reactions. " +
			"Patient verbalized understanding of schedule."},
	{"nurse_note", "Wound Care Assessment",
		"Post-surgical incision clean, dry and intact. No signs of infection. Dressing changed, " +
			"patient educated on wound care."},
	{"nurse_note", "Fall Risk Assessment",
		"Morse Fall Scale moderate risk. Bed alarm on, non-slip socks provided, call bell within reach. " +
			"Family educated on fall prevention."},
	{"nurse_note", "Post-operative Pain Check",
		"Patient reports pain 7/10 at incision site despite scheduled analgesia. Mild fever noted. " +
			"Physician notified, monitoring every 2 hours."},
}

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic demo records.
type DataGenerator struct {
	rng     *rand.Rand
	counter int
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) randomDate(minYear, maxYear int) string {
	y := minYear + g.rng.Intn(maxYear-minYear+1)
	m := 1 + g.rng.Intn(12)
	d := 1 + g.rng.Intn(28)
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("(%03d) %03d-%04d", 200+g.rng.Intn(800), 200+g.rng.Intn(800), g.rng.Intn(10000))
}

// GeneratePatient returns the next patient. External and record numbers
// are sequential so reruns with the same seed collide instead of
// duplicating.
func (g *DataGenerator) GeneratePatient() PatientRecord {
	g.counter++
	return PatientRecord{
		PatientID:           fmt.Sprintf("DEMO-%04d", g.counter),
		FirstName:           g.pick(firstNames),
		LastName:            g.pick(lastNames),
		DateOfBirth:         g.randomDate(1940, 2005),
		MedicalRecordNumber: fmt.Sprintf("MRN-DEMO-%04d", g.counter),
		EmergencyContact:    g.randomPhone(),
		Allergies:           g.pick(allergyOptions),
		MedicalHistory:      g.pick(historyOptions),
	}
}

// GenerateNote returns a note created within historyDays before now, on
// the hour, authored by staff matching the template's note type.
func (g *DataGenerator) GenerateNote(now time.Time, historyDays int) NoteRecord {
	tpl := noteTemplates[g.rng.Intn(len(noteTemplates))]
	role := "doctor"
	if tpl.noteType == "nurse_note" {
		role = "nurse"
	}
	var authors []Staff
	for _, s := range staff {
		if s.Role == role {
			authors = append(authors, s)
		}
	}
	daysAgo := 1 + g.rng.Intn(historyDays)
	created := now.AddDate(0, 0, -daysAgo).Truncate(time.Hour).Add(time.Duration(g.rng.Intn(8)) * time.Hour)
	return NoteRecord{
		Author:    authors[g.rng.Intn(len(authors))],
		NoteType:  tpl.noteType,
		Title:     tpl.title,
		Content:   tpl.content,
		CreatedAt: created,
	}
}

// GenerateAppointment returns a 30 minute slot within the next 30 days,
// between 09:00 and 16:30 in now's location.
func (g *DataGenerator) GenerateAppointment(now time.Time) AppointmentRecord {
	day := now.AddDate(0, 0, 1+g.rng.Intn(30))
	start := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, now.Location()).
		Add(time.Duration(g.rng.Intn(16)) * 30 * time.Minute)
	kind := g.pick(appointmentTypes)
	return AppointmentRecord{
		Owner:           staff[g.rng.Intn(3)],
		Title:           "Scheduled " + kind,
		AppointmentType: kind,
		Location:        g.pick(locations),
		Start:           start,
		End:             start.Add(30 * time.Minute),
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Seeder drives a DataGenerator into a Sink.
type Seeder struct {
	generator *DataGenerator
	config    SeedConfig
	now       func() time.Time
}

func NewSeeder(config SeedConfig) *Seeder {
	return &Seeder{
		generator: NewDataGenerator(config.Seed),
		config:    config,
		now:       time.Now,
	}
}

// Run generates every record and writes it to sink. It stops at the first
// sink error other than ErrPatientExists.
func (s *Seeder) Run(ctx context.Context, sink Sink) (*SeedResult, error) {
	if sink == nil {
		return nil, errors.New("sandbox: nil sink")
	}
	if err := s.config.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	now := s.now()
	result := &SeedResult{}

	for i := 0; i < s.config.PatientCount; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		p := s.generator.GeneratePatient()
		noteCount := s.config.MinNotesPerPatient
		if spread := s.config.MaxNotesPerPatient - s.config.MinNotesPerPatient; spread > 0 {
			noteCount += s.generator.rng.Intn(spread + 1)
		}
		notes := make([]NoteRecord, noteCount)
		for j := range notes {
			notes[j] = s.generator.GenerateNote(now, s.config.HistoryDays)
		}
		appts := make([]AppointmentRecord, s.config.AppointmentsPerPatient)
		for j := range appts {
			appts[j] = s.generator.GenerateAppointment(now)
		}

		id, err := sink.CreatePatient(ctx, p)
		if errors.Is(err, ErrPatientExists) {
			result.SkippedPatients++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("create patient %s: %w", p.PatientID, err)
		}
		result.Patients++

		for _, n := range notes {
			if err := sink.CreateNote(ctx, id, n); err != nil {
				return result, fmt.Errorf("create note for %s: %w", p.PatientID, err)
			}
			result.Notes++
		}
		for _, a := range appts {
			if err := sink.CreateAppointment(ctx, id, p.FullName(), a); err != nil {
				return result, fmt.Errorf("create appointment for %s: %w", p.PatientID, err)
			}
			result.Appointments++
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}
