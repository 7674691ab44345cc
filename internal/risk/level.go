// Package risk turns a patient's clinical notes and an externally produced
// risk classification into a weekly trend, an escalation instruction, a
// recommendation list and a set of risk factor tags.
//
// Every function in this package is pure and safe for concurrent use.
package risk

import "strings"

// Level is a clinical risk label attached to a note or derived for a patient.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
	LevelUnknown  Level = "UNKNOWN"
)

// ParseLevel normalises a stored or model-produced label. Unrecognised
// values are upper-cased and returned as-is; the policies below treat them
// as the lowest tier.
func ParseLevel(s string) Level {
	return Level(strings.ToUpper(strings.TrimSpace(s)))
}

// Known reports whether l is one of the four graded levels.
func (l Level) Known() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh, LevelCritical:
		return true
	}
	return false
}

// Elevated reports whether l is HIGH or CRITICAL.
func (l Level) Elevated() bool {
	return l == LevelHigh || l == LevelCritical
}

func (l Level) String() string { return string(l) }
