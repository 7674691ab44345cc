package risk

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func day(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{day(2024, time.January, 15, 9), "2024-01-15"},  // Monday
		{day(2024, time.January, 17, 23), "2024-01-15"}, // Wednesday
		{day(2024, time.January, 21, 12), "2024-01-15"}, // Sunday
		{day(2024, time.January, 22, 0), "2024-01-22"},  // next Monday
		{day(2024, time.March, 2, 8), "2024-02-26"},     // Saturday across a month boundary
		{day(2025, time.January, 1, 8), "2024-12-30"},   // Wednesday across a year boundary
	}
	for _, tt := range tests {
		if got := WeekStart(tt.in); got != tt.want {
			t.Errorf("WeekStart(%s) = %s, want %s", tt.in.Format(time.RFC3339), got, tt.want)
		}
	}
}

func TestAggregate_Empty(t *testing.T) {
	got, err := Aggregate(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestAggregate_GroupsByWeekInFirstSeenOrder(t *testing.T) {
	notes := []Note{
		{ID: "a", RiskLevel: LevelHigh, CreatedAt: day(2024, time.January, 24, 10)},
		{ID: "b", RiskLevel: LevelMedium, CreatedAt: day(2024, time.January, 22, 10)},
		{ID: "c", RiskLevel: LevelLow, CreatedAt: day(2024, time.January, 18, 10)},
		{ID: "d", RiskLevel: LevelMedium, CreatedAt: day(2024, time.January, 16, 10)},
		{ID: "e", CreatedAt: day(2024, time.January, 15, 10)},
	}
	got, err := Aggregate(notes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []WeekBucket{
		{Week: "2024-01-22", TotalNotes: 2, HighRiskNotes: 1, MediumRiskNotes: 1, RiskTrend: TrendIncreasing},
		{Week: "2024-01-15", TotalNotes: 3, HighRiskNotes: 0, MediumRiskNotes: 1, RiskTrend: TrendStable},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestAggregate_CapsAtFourWeeks(t *testing.T) {
	var notes []Note
	start := day(2024, time.March, 4, 9)
	for i := 0; i < 6; i++ {
		notes = append(notes, Note{CreatedAt: start.AddDate(0, 0, -7*i), RiskLevel: LevelLow})
	}
	got, err := Aggregate(notes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != MaxTrendWeeks {
		t.Fatalf("expected %d buckets, got %d", MaxTrendWeeks, len(got))
	}
	if got[0].Week != "2024-03-04" || got[3].Week != "2024-02-12" {
		t.Errorf("expected newest four weeks, got %s..%s", got[0].Week, got[3].Week)
	}
}

func TestAggregate_CountsAndTrendTag(t *testing.T) {
	levels := []Level{LevelHigh, LevelCritical, LevelMedium, LevelLow, "", "bogus", "high"}
	var notes []Note
	for i, l := range levels {
		notes = append(notes, Note{RiskLevel: l, CreatedAt: day(2024, time.April, 1+i, 8)})
	}
	got, err := Aggregate(notes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected a single week, got %d", len(got))
	}
	b := got[0]
	if b.TotalNotes != 7 {
		t.Errorf("expected 7 notes, got %d", b.TotalNotes)
	}
	// CRITICAL is not counted as HIGH; lower-case "high" is.
	if b.HighRiskNotes != 2 {
		t.Errorf("expected 2 high risk notes, got %d", b.HighRiskNotes)
	}
	if b.MediumRiskNotes != 1 {
		t.Errorf("expected 1 medium risk note, got %d", b.MediumRiskNotes)
	}
	if b.HighRiskNotes > b.TotalNotes {
		t.Error("high risk count exceeds total")
	}
	if !b.Increasing() {
		t.Errorf("expected increasing, got %s", b.RiskTrend)
	}
}

func TestAggregate_CriticalOnlyWeekIsStable(t *testing.T) {
	got, err := Aggregate([]Note{{RiskLevel: LevelCritical, CreatedAt: day(2024, time.May, 6, 8)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].RiskTrend != TrendStable {
		t.Errorf("expected stable, got %s", got[0].RiskTrend)
	}
}

func TestAggregate_MissingTimestamp(t *testing.T) {
	notes := []Note{
		{ID: "ok", CreatedAt: day(2024, time.January, 15, 9)},
		{ID: "broken"},
	}
	_, err := Aggregate(notes)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrInvalidNote) {
		t.Errorf("expected ErrInvalidNote, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if ve.Index != 1 || ve.NoteID != "broken" {
		t.Errorf("unexpected validation error fields: %+v", ve)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	notes := []Note{
		{RiskLevel: LevelHigh, CreatedAt: day(2024, time.June, 12, 9)},
		{RiskLevel: LevelMedium, CreatedAt: day(2024, time.June, 3, 9)},
		{RiskLevel: LevelLow, CreatedAt: day(2024, time.May, 20, 9)},
	}
	first, err := Aggregate(notes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Aggregate(notes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected equal results, got %+v and %+v", first, second)
	}
}

func TestCountByLevel(t *testing.T) {
	got := CountByLevel([]Note{
		{RiskLevel: LevelHigh}, {RiskLevel: LevelHigh}, {RiskLevel: LevelLow}, {},
	})
	want := map[string]int{"HIGH": 2, "LOW": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
