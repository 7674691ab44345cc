package risk

import "strings"

const (
	TrendWarning    = "⚠️ Risk trend is increasing - consider escalation"
	allergyTemplate = "⚠️ Monitor for allergic reactions - known allergies: "
)

var (
	elevatedActions = []string{
		"Increase monitoring frequency to every 2-4 hours",
		"Consider 24-hour nursing supervision",
		"Notify attending physician immediately",
		"Document all vital signs and symptoms",
	}
	mediumActions = []string{
		"Monitor every 4-6 hours",
		"Review medication compliance",
		"Schedule follow-up within 24-48 hours",
		"Educate patient on warning signs",
	}
	routineActions = []string{
		"Continue routine monitoring",
		"Schedule regular follow-up appointments",
		"Maintain current care plan",
	}
)

// PatientAttributes carries the patient fields that shape recommendations.
type PatientAttributes struct {
	Allergies string `json:"allergies,omitempty"`
}

// Recommend builds the ordered recommendation list: the tier actions for
// level, then a trend warning when any week is increasing, then an allergy
// reminder when the patient has recorded allergies. Entries are not
// deduplicated.
func Recommend(level Level, trends []WeekBucket, patient PatientAttributes) []string {
	var base []string
	switch ParseLevel(string(level)) {
	case LevelCritical, LevelHigh:
		base = elevatedActions
	case LevelMedium:
		base = mediumActions
	default:
		base = routineActions
	}

	out := make([]string, 0, len(base)+2)
	out = append(out, base...)
	if AnyIncreasing(trends) {
		out = append(out, TrendWarning)
	}
	if strings.TrimSpace(patient.Allergies) != "" {
		out = append(out, allergyTemplate+patient.Allergies)
	}
	return out
}
