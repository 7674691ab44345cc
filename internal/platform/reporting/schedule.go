package reporting

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"

	ScheduleActive = "active"
)

var ErrScheduleNotFound = errors.New("schedule not found")

// NextRun returns when a schedule with the given frequency next fires after
// from. Unknown frequencies behave like daily.
func NextRun(frequency string, from time.Time) time.Time {
	switch frequency {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return from.AddDate(0, 0, 30)
	default:
		return from.AddDate(0, 0, 1)
	}
}

// Schedule is a recurring report delivered by email.
type Schedule struct {
	ID          string     `json:"id"`
	Kind        string     `json:"report_type"`
	Frequency   string     `json:"frequency"`
	Recipients  []string   `json:"recipients"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	NextRun     time.Time  `json:"next_run"`
	Status      string     `json:"status"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// ScheduleStore holds report schedules in memory.
type ScheduleStore struct {
	mu        sync.RWMutex
	schedules map[string]*Schedule
	now       func() time.Time
}

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{schedules: make(map[string]*Schedule), now: time.Now}
}

// Create validates and stores a new active schedule.
func (s *ScheduleStore) Create(kind, frequency string, recipients []string) (*Schedule, error) {
	def := FindDefinition(kind)
	if def == nil {
		return nil, fmt.Errorf("unknown report type %q", kind)
	}
	if !def.Schedulable {
		return nil, fmt.Errorf("report type %q cannot be scheduled", kind)
	}
	var cleaned []string
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return nil, errors.New("at least one recipient is required")
	}
	if frequency == "" {
		frequency = FrequencyDaily
	}

	now := s.now().UTC()
	sch := &Schedule{
		ID:          uuid.New().String(),
		Kind:        kind,
		Frequency:   frequency,
		Recipients:  cleaned,
		ScheduledAt: now,
		NextRun:     NextRun(frequency, now),
		Status:      ScheduleActive,
	}

	s.mu.Lock()
	s.schedules[sch.ID] = sch
	s.mu.Unlock()

	cp := *sch
	return &cp, nil
}

func (s *ScheduleStore) Get(id string) (*Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sch, ok := s.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	cp := *sch
	return &cp, nil
}

// List returns all schedules ordered by creation time.
func (s *ScheduleStore) List() []Schedule {
	s.mu.RLock()
	out := make([]Schedule, 0, len(s.schedules))
	for _, sch := range s.schedules {
		out = append(out, *sch)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

func (s *ScheduleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return ErrScheduleNotFound
	}
	delete(s.schedules, id)
	return nil
}

// Due returns active schedules whose next run is at or before now.
func (s *ScheduleStore) Due(now time.Time) []Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Schedule
	for _, sch := range s.schedules {
		if sch.Status == ScheduleActive && !sch.NextRun.After(now) {
			out = append(out, *sch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRun.Before(out[j].NextRun) })
	return out
}

// MarkRun records a run and advances the schedule's next run from ranAt.
func (s *ScheduleStore) MarkRun(id string, ranAt time.Time, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sch, ok := s.schedules[id]
	if !ok {
		return
	}
	sch.LastRunAt = &ranAt
	sch.LastError = ""
	if runErr != nil {
		sch.LastError = runErr.Error()
	}
	sch.NextRun = NextRun(sch.Frequency, ranAt)
}
