package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/securemed/mednotes/internal/platform/metrics"
)

var ErrNotFound = errors.New("notification not found")

// NotificationManager sends notifications and keeps an in-memory delivery
// log for inspection and retry.
type NotificationManager struct {
	emailSender   EmailSender
	smsSender     SMSSender
	templates     *TemplateEngine
	now           func() time.Time
	mu            sync.RWMutex
	notifications map[string]*Notification
}

func NewNotificationManager(email EmailSender, sms SMSSender, tpl *TemplateEngine) *NotificationManager {
	return &NotificationManager{
		emailSender:   email,
		smsSender:     sms,
		templates:     tpl,
		now:           time.Now,
		notifications: make(map[string]*Notification),
	}
}

func (m *NotificationManager) deliver(ctx context.Context, n *Notification) error {
	switch n.Type {
	case TypeEmail:
		if m.emailSender == nil {
			return errors.New("email sender not configured")
		}
		return m.emailSender.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case TypeSMS:
		if m.smsSender == nil {
			return errors.New("sms sender not configured")
		}
		return m.smsSender.SendSMS(ctx, n.Recipient, n.Body)
	default:
		return fmt.Errorf("unsupported notification type: %s", n.Type)
	}
}

// Send dispatches n, assigns its ID and timestamps, and records the
// outcome. A failed delivery is still recorded and can be retried.
func (m *NotificationManager) Send(ctx context.Context, n *Notification) error {
	if n.Recipient == "" {
		return errors.New("recipient is required")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Priority == "" {
		n.Priority = "normal"
	}
	n.CreatedAt = m.now().UTC()

	err := m.deliver(ctx, n)

	m.mu.Lock()
	m.applyResult(n, err)
	m.notifications[n.ID] = n
	m.mu.Unlock()

	return err
}

// applyResult must be called with m.mu held.
func (m *NotificationManager) applyResult(n *Notification, err error) {
	n.Attempts++
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
	} else {
		n.Status = StatusSent
		sentAt := m.now().UTC()
		n.SentAt = &sentAt
		n.Error = ""
	}
	kind := n.TemplateID
	if kind == "" {
		kind = "custom"
	}
	metrics.RecordNotification(kind, string(n.Type), n.Status)
}

// SendFromTemplate renders a template and sends the resulting notification.
func (m *NotificationManager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	return m.sendTemplate(ctx, templateID, data, recipient, "")
}

func (m *NotificationManager) sendTemplate(ctx context.Context, templateID string, data map[string]string, recipient, priority string) (*Notification, error) {
	tpl, ok := m.templates.Lookup(templateID)
	if !ok {
		return nil, fmt.Errorf("template %q not found", templateID)
	}
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notification{
		Type:         tpl.Type,
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
		Priority:     priority,
	}
	if err := m.Send(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

func (m *NotificationManager) GetNotification(_ context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *n
	return &cp, nil
}

// ListByRecipient returns up to limit notifications for recipient, newest
// first.
func (m *NotificationManager) ListByRecipient(_ context.Context, recipient string, limit int) ([]*Notification, error) {
	m.mu.RLock()
	var result []*Notification
	for _, n := range m.notifications {
		if n.Recipient == recipient {
			cp := *n
			result = append(result, &cp)
		}
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Retry re-sends a failed notification.
func (m *NotificationManager) Retry(ctx context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	n, ok := m.notifications[id]
	var snapshot Notification
	if ok {
		snapshot = *n
	}
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if snapshot.Status != StatusFailed {
		return nil, fmt.Errorf("notification %q is not in failed status (current: %s)", id, snapshot.Status)
	}

	err := m.deliver(ctx, &snapshot)

	m.mu.Lock()
	m.applyResult(n, err)
	cp := *n
	m.mu.Unlock()

	return &cp, err
}

// NotificationStats returns counts of notifications grouped by status.
func (m *NotificationManager) NotificationStats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for _, n := range m.notifications {
		stats[n.Status]++
	}
	return stats
}
