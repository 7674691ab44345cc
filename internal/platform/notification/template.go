package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Built-in template IDs.
const (
	TemplateAppointmentReminder    = "appointment-reminder"
	TemplateAppointmentReminderSMS = "appointment-reminder-sms"
	TemplateCriticalAlert          = "critical-alert"
	TemplateLabResults             = "lab-results"
	TemplateMedicationReminder     = "medication-reminder"
	TemplateFollowUpReminder       = "follow-up-reminder"
	TemplateDischargeInstructions  = "discharge-instructions"
	TemplateScheduledReport        = "scheduled-report"
)

const signature = "Thank you,\nMedNotes Care Team"

// Template defines a reusable notification template. Placeholders are
// written {{key}}.
type Template struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Subject string           `json:"subject"`
	Body    string           `json:"body"`
	Type    NotificationType `json:"type"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewTemplateEngine creates a TemplateEngine with the clinical templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range builtInTemplates {
		e.templates[t.ID] = t
	}
	return e
}

var builtInTemplates = []Template{
	{
		ID:      TemplateAppointmentReminder,
		Name:    "Appointment Reminder",
		Subject: "Appointment Reminder",
		Body: "Dear Patient,\n\nThis is a reminder about your upcoming appointment:\n\n" +
			"Date & Time: {{date}}\nDoctor: {{doctor}}\n\n" +
			"Please arrive 15 minutes early for check-in.\n\n" +
			"If you need to reschedule, please contact us at least 24 hours in advance.\n\n" + signature,
		Type: TypeEmail,
	},
	{
		ID:   TemplateAppointmentReminderSMS,
		Name: "Appointment Reminder (SMS)",
		Body: "Appointment Reminder: {{date}} with Dr. {{doctor}}. Please arrive 15 min early.",
		Type: TypeSMS,
	},
	{
		ID:      TemplateCriticalAlert,
		Name:    "Critical Patient Alert",
		Subject: "🚨 CRITICAL ALERT - {{patient_name}}",
		Body: "CRITICAL PATIENT ALERT\n\nPatient: {{patient_name}}\nTime: {{time}}\n\n" +
			"Alert Details:\n{{alert}}\n\nImmediate attention required.\n\n" +
			"This is an automated alert from the MedNotes clinical assistant.",
		Type: TypeEmail,
	},
	{
		ID:      TemplateLabResults,
		Name:    "Lab Results Available",
		Subject: "Lab Results Available",
		Body: "Dear {{patient_name}},\n\nYour recent lab results are now available for review.\n\n" +
			"Please log in to your patient portal to view your results, or contact your healthcare provider for more information.\n\n" + signature,
		Type: TypeEmail,
	},
	{
		ID:   TemplateMedicationReminder,
		Name: "Medication Reminder",
		Body: "Medication Reminder: Take {{medication}} ({{dosage}}) at {{time}}.",
		Type: TypeSMS,
	},
	{
		ID:      TemplateFollowUpReminder,
		Name:    "Follow-up Appointment Needed",
		Subject: "Follow-up Appointment Needed",
		Body: "Dear {{patient_name}},\n\nAccording to your treatment plan, you are due for a follow-up appointment.\n\n" +
			"Recommended Follow-up Date: {{date}}\nReason: {{reason}}\n\n" +
			"Please contact our office to schedule your appointment.\n\n" + signature,
		Type: TypeEmail,
	},
	{
		ID:      TemplateDischargeInstructions,
		Name:    "Discharge Instructions",
		Subject: "Discharge Instructions",
		Body: "Dear {{patient_name}},\n\nThank you for choosing our facility for your care.\n\n" +
			"DISCHARGE INSTRUCTIONS:\n{{instructions}}\n\n" +
			"If you have any questions or concerns, please contact your healthcare provider.\n\n" +
			"Emergency: If you experience any emergency symptoms, call 911 or go to the nearest emergency room.\n\n" + signature,
		Type: TypeEmail,
	},
	{
		ID:      TemplateScheduledReport,
		Name:    "Scheduled Report",
		Subject: "{{report_type}} - {{period}}",
		Body:    "{{content}}\n\nThis report is confidential and contains protected health information.",
		Type:    TypeEmail,
	},
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Lookup returns the template registered under id.
func (e *TemplateEngine) Lookup(id string) (Template, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.templates[id]
	return t, ok
}

// Render performs {{key}} replacement on the template's subject and body.
// Keys present in the template but absent from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	t, ok := e.Lookup(templateID)
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}
