package dice

import "fmt"

// Outcome is one classified roll.
type Outcome struct {
	Raw         int  `json:"raw"`
	Success     bool `json:"success"`
	CritSuccess bool `json:"crit_success"`
	CritFailure bool `json:"crit_failure"`
}

// Classify maps a raw face onto the thresholds. Success takes precedence over
// critical failure when the two ranges overlap.
func Classify(raw int, t Thresholds) Outcome {
	o := Outcome{Raw: raw}
	if raw >= t.SuccessMin {
		o.Success = true
		o.CritSuccess = raw >= t.CritSuccessMin
		return o
	}
	o.CritFailure = t.AllowCritFail && raw <= t.CritFailMax
	return o
}

func (o Outcome) Label() string {
	switch {
	case o.CritSuccess:
		return "critical success"
	case o.Success:
		return "success"
	case o.CritFailure:
		return "critical failure"
	default:
		return "failure"
	}
}

// Better reports whether o beats other when taking the best of several rolls.
func (o Outcome) Better(other Outcome) bool {
	return o.Raw > other.Raw
}

// FormatLine renders the result line shown under the dice.
func FormatLine(o Outcome, sides int) string {
	return fmt.Sprintf("Rolled %d of %d: %s", o.Raw, sides, o.Label())
}
