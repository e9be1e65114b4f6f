package action

import "viceroy.ai/internal/sim/dice"

type Tier int

const (
	TierLow Tier = iota
	TierModerate
	TierHigh
	TierDeadly
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "LOW"
	case TierModerate:
		return "MODERATE"
	case TierHigh:
		return "HIGH"
	default:
		return "DEADLY"
	}
}

// Modifier is one situational bonus or penalty with the label shown to the
// player.
type Modifier struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

func sumModifiers(ms []Modifier) int {
	n := 0
	for _, m := range ms {
		n += m.Value
	}
	return n
}

// RiskConfig holds the tier bands. A danger score at or below Bands[0] is
// LOW, at or below Bands[1] MODERATE, at or below Bands[2] HIGH, else DEADLY.
type RiskConfig struct {
	VeteranBonus int
	Bands        [3]int
}

func DefaultRisk() RiskConfig {
	return RiskConfig{VeteranBonus: 1, Bands: [3]int{0, 2, 4}}
}

// TierFor classifies the net modifier. The veteran bonus only softens the
// displayed tier; it never changes thresholds.
func (c RiskConfig) TierFor(modifier int, veteran bool) Tier {
	danger := -modifier
	if veteran {
		danger -= c.VeteranBonus
	}
	switch {
	case danger <= c.Bands[0]:
		return TierLow
	case danger <= c.Bands[1]:
		return TierModerate
	case danger <= c.Bands[2]:
		return TierHigh
	default:
		return TierDeadly
	}
}

// AdjustedThresholds applies the modifier to the base thresholds and
// normalizes the result for the die.
func AdjustedThresholds(base dice.Thresholds, modifier, sides int) dice.Thresholds {
	return base.Adjust(modifier).Normalize(sides)
}
