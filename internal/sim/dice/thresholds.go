package dice

// Thresholds classify a raw face. A value at or above SuccessMin succeeds, at
// or above CritSuccessMin succeeds critically, and a failing value at or below
// CritFailMax fails critically when AllowCritFail is set.
type Thresholds struct {
	SuccessMin     int  `json:"success_min" yaml:"success_min"`
	CritSuccessMin int  `json:"crit_success_min" yaml:"crit_success_min"`
	CritFailMax    int  `json:"crit_fail_max" yaml:"crit_fail_max"`
	AllowCritFail  bool `json:"allow_crit_fail" yaml:"allow_crit_fail"`
}

// Adjust shifts every threshold down by modifier. Positive modifiers make the
// roll easier, negative ones harder.
func (t Thresholds) Adjust(modifier int) Thresholds {
	t.SuccessMin -= modifier
	t.CritSuccessMin -= modifier
	t.CritFailMax -= modifier
	return t
}

// Normalize clamps thresholds into the range a die with the given number of
// sides can produce. A threshold of sides+1 is unreachable. The critical
// success threshold never falls below the success threshold.
func (t Thresholds) Normalize(sides int) Thresholds {
	if sides < 1 {
		sides = 1
	}
	t.SuccessMin = clamp(t.SuccessMin, 1, sides+1)
	t.CritSuccessMin = clamp(t.CritSuccessMin, 1, sides+1)
	if t.CritSuccessMin < t.SuccessMin {
		t.CritSuccessMin = t.SuccessMin
	}
	if t.AllowCritFail {
		t.CritFailMax = clamp(t.CritFailMax, 0, sides)
	} else {
		t.CritFailMax = 0
	}
	return t
}

// Valid reports whether the thresholds were already normalized for sides.
func (t Thresholds) Valid(sides int) bool {
	return t == t.Normalize(sides)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
