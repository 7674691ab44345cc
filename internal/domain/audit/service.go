package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/securemed/mednotes/internal/platform/metrics"
	"github.com/securemed/mednotes/internal/platform/middleware"
)

type Service struct {
	logs Repository
	now  func() time.Time
}

func NewService(logs Repository) *Service {
	return &Service{logs: logs, now: time.Now}
}

// Record validates l, stamps it and appends it to the chain.
func (s *Service) Record(ctx context.Context, l *Log) error {
	if !validActions[l.Action] {
		return fmt.Errorf("%w: unknown action %q", ErrInvalid, l.Action)
	}
	if strings.TrimSpace(l.ResourceType) == "" {
		return fmt.Errorf("%w: resource_type is required", ErrInvalid)
	}
	l.ID = uuid.New()
	l.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	if err := s.logs.Append(ctx, l); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	metrics.RecordAuditEntry()
	return nil
}

// RecordAccess adapts a request-level entry from the audit middleware.
func (s *Service) RecordAccess(ctx context.Context, e middleware.AuditEntry) error {
	details := e.Method + " " + e.Path
	if e.PatientID != "" {
		details += " patient=" + e.PatientID
	}
	return s.Record(ctx, &Log{
		UserID:       e.UserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Details:      details,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		RequestID:    e.RequestID,
		StatusCode:   e.StatusCode,
	})
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Log, int, error) {
	return s.logs.List(ctx, f, limit, offset)
}

// Verify recomputes every hash oldest first and stops at the first row
// whose stored hash does not match.
func (s *Service) Verify(ctx context.Context) (*Verification, error) {
	v := &Verification{Valid: true}
	prev := ""
	err := s.logs.Walk(ctx, func(l *Log) bool {
		v.Checked++
		if l.ComputeHash(prev) != l.HashChain {
			id := l.ID
			v.Valid = false
			v.BrokenAt = &id
			return false
		}
		prev = l.HashChain
		return true
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}
