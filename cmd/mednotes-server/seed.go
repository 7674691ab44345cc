package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/securemed/mednotes/internal/config"
	"github.com/securemed/mednotes/internal/domain/appointment"
	"github.com/securemed/mednotes/internal/domain/note"
	"github.com/securemed/mednotes/internal/domain/patient"
	"github.com/securemed/mednotes/internal/platform/auth"
	"github.com/securemed/mednotes/internal/platform/db"
	"github.com/securemed/mednotes/internal/platform/sandbox"
)

type patientCreator interface {
	CreatePatient(ctx context.Context, p *patient.Patient) error
}

type noteCreator interface {
	CreateNoteAt(ctx context.Context, n *note.Note, at time.Time) error
}

type appointmentCreator interface {
	CreateAppointment(ctx context.Context, a *appointment.Appointment) error
}

// serviceSink writes seed data through the domain services so it passes
// the same validation as API traffic.
type serviceSink struct {
	patients     patientCreator
	notes        noteCreator
	appointments appointmentCreator
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func asStaff(ctx context.Context, s sandbox.Staff) context.Context {
	return auth.WithUser(ctx, s.ID, s.Name, []string{s.Role})
}

func (s *serviceSink) CreatePatient(ctx context.Context, r sandbox.PatientRecord) (uuid.UUID, error) {
	p := &patient.Patient{
		PatientID:           r.PatientID,
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		DateOfBirth:         r.DateOfBirth,
		MedicalRecordNumber: r.MedicalRecordNumber,
		EmergencyContact:    strPtr(r.EmergencyContact),
		Allergies:           strPtr(r.Allergies),
		MedicalHistory:      strPtr(r.MedicalHistory),
	}
	if err := s.patients.CreatePatient(ctx, p); err != nil {
		if errors.Is(err, patient.ErrDuplicate) {
			return uuid.Nil, sandbox.ErrPatientExists
		}
		return uuid.Nil, err
	}
	return p.ID, nil
}

func (s *serviceSink) CreateNote(ctx context.Context, patientID uuid.UUID, r sandbox.NoteRecord) error {
	n := &note.Note{
		PatientID: patientID,
		NoteType:  r.NoteType,
		Title:     r.Title,
		Content:   r.Content,
		Status:    note.StatusFinalized,
	}
	return s.notes.CreateNoteAt(asStaff(ctx, r.Author), n, r.CreatedAt)
}

func (s *serviceSink) CreateAppointment(ctx context.Context, patientID uuid.UUID, patientName string, r sandbox.AppointmentRecord) error {
	a := &appointment.Appointment{
		Title:           r.Title,
		PatientName:     patientName,
		PatientID:       &patientID,
		AppointmentType: r.AppointmentType,
		Location:        r.Location,
		StartTime:       r.Start,
		EndTime:         r.End,
	}
	return s.appointments.CreateAppointment(asStaff(ctx, r.Owner), a)
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo patients, notes and appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to seed demo data when ENV=%q", cfg.Env)
			}

			seedCfg := sandbox.DefaultSeedConfig()
			seedCfg.PatientCount, _ = cmd.Flags().GetInt("patients")
			seedCfg.MinNotesPerPatient, _ = cmd.Flags().GetInt("min-notes")
			seedCfg.MaxNotesPerPatient, _ = cmd.Flags().GetInt("max-notes")
			seedCfg.HistoryDays, _ = cmd.Flags().GetInt("days")
			seedCfg.Seed, _ = cmd.Flags().GetInt64("seed")

			ctx := context.Background()
			pool, err := db.NewPool(ctx, db.PoolConfig{
				URL:      cfg.DatabaseURL,
				MaxConns: cfg.DBMaxConns,
				MinConns: cfg.DBMinConns,
			})
			if err != nil {
				return err
			}
			defer pool.Close()

			sink := &serviceSink{
				patients:     patient.NewService(patient.NewRepoPG(pool)),
				notes:        note.NewService(note.NewRepoPG(pool)),
				appointments: appointment.NewService(appointment.NewRepoPG(pool), nil),
			}
			res, err := sandbox.NewSeeder(seedCfg).Run(ctx, sink)
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Patients: %d created, %d already present\n", res.Patients, res.SkippedPatients)
				fmt.Fprintf(cmd.OutOrStdout(), "Notes: %d\nAppointments: %d\n", res.Notes, res.Appointments)
			}
			return err
		},
	}
	def := sandbox.DefaultSeedConfig()
	cmd.Flags().Int("patients", def.PatientCount, "Number of demo patients")
	cmd.Flags().Int("min-notes", def.MinNotesPerPatient, "Minimum notes per patient")
	cmd.Flags().Int("max-notes", def.MaxNotesPerPatient, "Maximum notes per patient")
	cmd.Flags().Int("days", def.HistoryDays, "Spread notes over this many past days")
	cmd.Flags().Int64("seed", def.Seed, "Random seed (0 picks one from the clock)")
	return cmd
}
