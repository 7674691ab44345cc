package risk

import (
	"errors"
	"fmt"
	"time"
)

// MaxTrendWeeks caps the number of weekly buckets returned by Aggregate.
const MaxTrendWeeks = 4

const (
	TrendIncreasing = "increasing"
	TrendStable     = "stable"
)

// weekLayout is the bucket key format (the Monday starting the week).
const weekLayout = "2006-01-02"

// ErrInvalidNote is wrapped by every ValidationError returned from Aggregate.
var ErrInvalidNote = errors.New("invalid note")

// ValidationError describes a note the aggregator refused.
type ValidationError struct {
	Index  int
	NoteID string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.NoteID != "" {
		return fmt.Sprintf("note %s (index %d): %s", e.NoteID, e.Index, e.Reason)
	}
	return fmt.Sprintf("note at index %d: %s", e.Index, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidNote }

// Note is the read-only view of a clinical note consumed by this package.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	RiskLevel Level     `json:"risk_level"`
	CreatedAt time.Time `json:"created_at"`
}

// WeekBucket summarises the notes created in one calendar week.
type WeekBucket struct {
	Week            string `json:"week"`
	TotalNotes      int    `json:"total_notes"`
	HighRiskNotes   int    `json:"high_risk_notes"`
	MediumRiskNotes int    `json:"medium_risk_notes"`
	RiskTrend       string `json:"risk_trend"`
}

// Increasing reports whether the bucket carries the increasing tag.
func (b WeekBucket) Increasing() bool { return b.RiskTrend == TrendIncreasing }

// WeekStart returns the Monday on or before t, in t's location, formatted
// as YYYY-MM-DD.
func WeekStart(t time.Time) string {
	offset := (int(t.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6
	return t.AddDate(0, 0, -offset).Format(weekLayout)
}

// Aggregate groups notes into weekly buckets keyed by the Monday starting
// each week. Buckets keep the order in which their week was first seen, so
// a newest-first input yields newest-first buckets. At most MaxTrendWeeks
// buckets are returned.
//
// The trend tag is a per-bucket label: a week is "increasing" when it holds
// at least one HIGH note. It is not a comparison with the previous week.
func Aggregate(notes []Note) ([]WeekBucket, error) {
	buckets := make([]WeekBucket, 0, MaxTrendWeeks)
	index := make(map[string]int)

	for i, n := range notes {
		if n.CreatedAt.IsZero() {
			return nil, &ValidationError{Index: i, NoteID: n.ID, Reason: "missing creation timestamp"}
		}
		key := WeekStart(n.CreatedAt)
		pos, ok := index[key]
		if !ok {
			pos = len(buckets)
			index[key] = pos
			buckets = append(buckets, WeekBucket{Week: key})
		}
		b := &buckets[pos]
		b.TotalNotes++
		switch ParseLevel(string(n.RiskLevel)) {
		case LevelHigh:
			b.HighRiskNotes++
		case LevelMedium:
			b.MediumRiskNotes++
		}
	}

	if len(buckets) > MaxTrendWeeks {
		buckets = buckets[:MaxTrendWeeks]
	}
	for i := range buckets {
		buckets[i].RiskTrend = TrendStable
		if buckets[i].HighRiskNotes > 0 {
			buckets[i].RiskTrend = TrendIncreasing
		}
	}
	return buckets, nil
}

// AnyIncreasing reports whether any bucket is tagged increasing.
func AnyIncreasing(trends []WeekBucket) bool {
	for _, t := range trends {
		if t.Increasing() {
			return true
		}
	}
	return false
}

// CountByLevel tallies notes by their risk label. Notes without a label are
// not counted.
func CountByLevel(notes []Note) map[string]int {
	out := make(map[string]int)
	for _, n := range notes {
		if n.RiskLevel == "" {
			continue
		}
		out[string(n.RiskLevel)]++
	}
	return out
}
