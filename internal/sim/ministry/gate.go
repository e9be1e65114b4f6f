package ministry

import (
	"fmt"
	"io"
	"log"

	"viceroy.ai/internal/sim/dice"
)

// Controllers resolves the minister in charge of an office.
type Controllers interface {
	Controller(office Office) (Minister, bool)
}

// Stake describes what a roll is worth to the minister reporting it.
type Stake struct {
	Office     Office
	Amount     int
	Thresholds dice.Thresholds
	ActionID   string
	Reason     string
}

// Decision is the gate's verdict on one roll. Reported drives every
// player-visible consequence; True and Diverted are bookkeeping only.
type Decision struct {
	MinisterID string
	Reported   dice.Outcome
	True       dice.Outcome
	Diverted   int
}

func (d Decision) Falsified() bool { return d.Reported != d.True }

// Gate sits between the resolver and the action layer.
type Gate struct {
	ministers Controllers
	ledger    *Ledger
	divertPct int
	log       *log.Logger
}

func NewGate(ministers Controllers, ledger *Ledger, divertPct int, logger *log.Logger) *Gate {
	if ledger == nil {
		ledger = NewLedger()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if divertPct <= 0 {
		divertPct = 50
	}
	return &Gate{ministers: ministers, ledger: ledger, divertPct: divertPct, log: logger}
}

func (g *Gate) Ledger() *Ledger { return g.ledger }

// Staffed reports whether the office has a minister.
func (g *Gate) Staffed(office Office) bool {
	if office == "" {
		return true
	}
	if g.ministers == nil {
		return false
	}
	_, ok := g.ministers.Controller(office)
	return ok
}

// SkillModifier is the controlling minister's contribution to the roll
// modifier, 0 when the office is vacant.
func (g *Gate) SkillModifier(office Office) int {
	m, ok := g.controller(office)
	if !ok {
		return 0
	}
	return m.SkillModifier()
}

// Arbitrate decides what the controlling minister reports for raw. A corrupt
// minister turns a true success into a plain failure and pockets part of the
// stake. A true failure, and a roll that could not have failed, are passed
// through unchanged.
func (g *Gate) Arbitrate(stake Stake, raw dice.Outcome) Decision {
	d := Decision{Reported: raw, True: raw}
	m, ok := g.controller(stake.Office)
	if !ok {
		return d
	}
	d.MinisterID = m.ID()
	if !raw.Success || stake.Amount <= 0 {
		return d
	}
	// With every face a success there is no failure to report instead.
	if stake.Thresholds.SuccessMin <= 1 {
		return d
	}
	if !m.IsCorrupt(stake.Amount) {
		return d
	}

	d.Reported = falseFailure(stake.Thresholds)
	d.Diverted = stake.Amount * g.divertPct / 100
	if d.Diverted < 1 {
		d.Diverted = 1
	}
	reason := stake.Reason
	if reason == "" {
		reason = fmt.Sprintf("skimmed %s roll", stake.Office)
	}
	m.Divert(d.Diverted, reason)
	g.ledger.Record(Diversion{
		MinisterID: m.ID(),
		Office:     stake.Office,
		Amount:     d.Diverted,
		Reason:     reason,
		ActionID:   stake.ActionID,
		TrueRaw:    raw.Raw,
	})
	g.log.Printf("ministry: %s reported %d as %d (diverted=%d action=%s)", m.ID(), raw.Raw, d.Reported.Raw, d.Diverted, stake.ActionID)
	return d
}

func (g *Gate) controller(office Office) (Minister, bool) {
	if g.ministers == nil || office == "" {
		return nil, false
	}
	return g.ministers.Controller(office)
}

// falseFailure picks the highest failing face for the report. It is a plain
// failure even when that face would classify as critical, so a lie never
// kills the acting unit.
func falseFailure(t dice.Thresholds) dice.Outcome {
	return dice.Outcome{Raw: t.SuccessMin - 1}
}
