package patient

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("patient not found")
	ErrDuplicate = errors.New("patient with this ID already exists")
	ErrInvalid   = errors.New("invalid patient")
)

const dateLayout = "2006-01-02"

// Patient maps to the patients table.
type Patient struct {
	ID                  uuid.UUID `json:"id"`
	PatientID           string    `json:"patient_id"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	DateOfBirth         string    `json:"date_of_birth"`
	MedicalRecordNumber string    `json:"medical_record_number"`
	EmergencyContact    *string   `json:"emergency_contact,omitempty"`
	Allergies           *string   `json:"allergies,omitempty"`
	MedicalHistory      *string   `json:"medical_history,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// AllergyText returns the recorded allergies or "".
func (p *Patient) AllergyText() string {
	if p.Allergies == nil {
		return ""
	}
	return *p.Allergies
}

// Update carries the fields a patient record may change after creation.
// Nil fields are left untouched.
type Update struct {
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	EmergencyContact *string `json:"emergency_contact"`
	Allergies        *string `json:"allergies"`
	MedicalHistory   *string `json:"medical_history"`
}

func (u Update) apply(p *Patient) {
	if u.FirstName != nil {
		p.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		p.LastName = *u.LastName
	}
	if u.EmergencyContact != nil {
		p.EmergencyContact = u.EmergencyContact
	}
	if u.Allergies != nil {
		p.Allergies = u.Allergies
	}
	if u.MedicalHistory != nil {
		p.MedicalHistory = u.MedicalHistory
	}
}
