package notification

import (
	"context"
	"errors"
)

const alertTimeLayout = "2006-01-02 15:04:05"

// SendCriticalAlert emails an alert about patientName to every staff
// recipient. Every recipient is attempted; failures are joined.
func (m *NotificationManager) SendCriticalAlert(ctx context.Context, recipients []string, patientName, message string) ([]*Notification, error) {
	if len(recipients) == 0 {
		return nil, errors.New("no alert recipients configured")
	}
	data := map[string]string{
		"patient_name": patientName,
		"alert":        message,
		"time":         m.now().Format(alertTimeLayout),
	}
	var sent []*Notification
	var errs []error
	for _, to := range recipients {
		n, err := m.sendTemplate(ctx, TemplateCriticalAlert, data, to, "urgent")
		if n != nil {
			sent = append(sent, n)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return sent, errors.Join(errs...)
}

// SendAppointmentReminder reminds a patient by email and/or SMS; empty
// contact fields are skipped.
func (m *NotificationManager) SendAppointmentReminder(ctx context.Context, email, phone, date, doctor string) ([]*Notification, error) {
	if email == "" && phone == "" {
		return nil, errors.New("an email address or phone number is required")
	}
	data := map[string]string{"date": date, "doctor": doctor}

	var sent []*Notification
	var errs []error
	if email != "" {
		n, err := m.SendFromTemplate(ctx, TemplateAppointmentReminder, data, email)
		if n != nil {
			sent = append(sent, n)
		}
		errs = append(errs, err)
	}
	if phone != "" {
		n, err := m.SendFromTemplate(ctx, TemplateAppointmentReminderSMS, data, phone)
		if n != nil {
			sent = append(sent, n)
		}
		errs = append(errs, err)
	}
	return sent, errors.Join(errs...)
}

func (m *NotificationManager) SendLabResults(ctx context.Context, email, patientName string) (*Notification, error) {
	return m.SendFromTemplate(ctx, TemplateLabResults, map[string]string{"patient_name": patientName}, email)
}

func (m *NotificationManager) SendMedicationReminder(ctx context.Context, phone, medication, dosage, at string) (*Notification, error) {
	return m.SendFromTemplate(ctx, TemplateMedicationReminder, map[string]string{
		"medication": medication,
		"dosage":     dosage,
		"time":       at,
	}, phone)
}

func (m *NotificationManager) SendFollowUpReminder(ctx context.Context, email, patientName, date, reason string) (*Notification, error) {
	return m.SendFromTemplate(ctx, TemplateFollowUpReminder, map[string]string{
		"patient_name": patientName,
		"date":         date,
		"reason":       reason,
	}, email)
}

func (m *NotificationManager) SendDischargeInstructions(ctx context.Context, email, patientName, instructions string) (*Notification, error) {
	return m.SendFromTemplate(ctx, TemplateDischargeInstructions, map[string]string{
		"patient_name": patientName,
		"instructions": instructions,
	}, email)
}
