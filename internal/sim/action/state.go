package action

import (
	"time"

	"github.com/google/uuid"

	"viceroy.ai/internal/sim/dice"
	"viceroy.ai/internal/sim/ministry"
)

type State int

const (
	StateConfigured State = iota
	StateAwaitingConfirmation
	StateResolving
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "CONFIGURED"
	case StateAwaitingConfirmation:
		return "AWAITING_CONFIRMATION"
	case StateResolving:
		return "RESOLVING"
	case StateCompleted:
		return "COMPLETED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

func (s State) Terminal() bool { return s == StateCompleted || s == StateCancelled }

// Instance is one live attempt of an action.
type Instance struct {
	ID      string
	Spec    Spec
	UnitID  string
	Target  Target
	Created time.Time

	Modifiers  []Modifier
	Modifier   int
	Thresholds dice.Thresholds
	Tier       Tier
	Odds       dice.Odds

	state State

	// Scratch: filled in by execute.
	attempts int
	round    int
	rolled   dice.Thresholds
	raws     []int
	decision ministry.Decision
	effects  EffectSet
	trade    *tradeState
}

func newInstance(spec Spec, unitID string, target Target, now time.Time) *Instance {
	return &Instance{
		ID:      uuid.NewString(),
		Spec:    spec,
		UnitID:  unitID,
		Target:  target,
		Created: now,
		state:   StateConfigured,
	}
}

func (i *Instance) State() State { return i.state }

// Reported is the outcome the player was told about.
func (i *Instance) Reported() dice.Outcome { return i.decision.Reported }

func (i *Instance) Effects() EffectSet { return i.effects }

// TradeRemaining returns the transactions left in a running trade loop.
func (i *Instance) TradeRemaining() int {
	if i.trade == nil {
		return 0
	}
	return i.trade.remaining
}
