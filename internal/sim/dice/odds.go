package dice

// Odds holds the exact probabilities of a best-of-n roll.
type Odds struct {
	Success     float64
	CritSuccess float64
	CritFailure float64
}

// ComputeOdds enumerates the distribution of the highest face among attempts
// rolls of a die with the given sides. P(max = v) = (v^n - (v-1)^n) / sides^n.
func ComputeOdds(sides int, t Thresholds, attempts int) Odds {
	if sides < 1 {
		return Odds{}
	}
	if attempts < 1 {
		attempts = 1
	}
	total := pow(sides, attempts)
	var odds Odds
	for v := 1; v <= sides; v++ {
		p := float64(pow(v, attempts)-pow(v-1, attempts)) / float64(total)
		o := Classify(v, t)
		if o.Success {
			odds.Success += p
		}
		if o.CritSuccess {
			odds.CritSuccess += p
		}
		if o.CritFailure {
			odds.CritFailure += p
		}
	}
	return odds
}

func pow(base, exp int) int {
	out := 1
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
