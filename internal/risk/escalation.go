package risk

const (
	EscalationImmediate = "Immediate escalation to attending physician and charge nurse"
	EscalationTwoHours  = "Escalate to attending physician within 2 hours"
	EscalationRounds    = "Notify attending physician during next rounds"
	EscalationNone      = "No immediate escalation required"
	EscalationNoData    = "No data available"
)

// Escalate maps a risk level to an escalation instruction. The trend list
// is part of the signature for future policies; the current policy depends
// on the level alone.
func Escalate(level Level, _ []WeekBucket) string {
	switch ParseLevel(string(level)) {
	case LevelCritical:
		return EscalationImmediate
	case LevelHigh:
		return EscalationTwoHours
	case LevelMedium:
		return EscalationRounds
	default:
		return EscalationNone
	}
}
