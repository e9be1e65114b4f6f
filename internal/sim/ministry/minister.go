package ministry

import (
	"sort"

	"viceroy.ai/internal/sim/dice"
)

type Office string

const (
	OfficeTrade       Office = "TRADE"
	OfficeTreasury    Office = "TREASURY"
	OfficeWar         Office = "WAR"
	OfficeReligion    Office = "RELIGION"
	OfficeExploration Office = "EXPLORATION"
	OfficeWorks       Office = "PUBLIC_WORKS"
)

// Minister is everything the action layer may know about the official who
// reports a roll.
type Minister interface {
	ID() string
	Office() Office
	IsCorrupt(stake int) bool
	Divert(amount int, reason string)
	SkillModifier() int
}

// Cabinet maps offices to the minister currently holding them.
type Cabinet struct {
	seats map[Office]Minister
}

func NewCabinet(ms ...Minister) *Cabinet {
	c := &Cabinet{seats: map[Office]Minister{}}
	for _, m := range ms {
		c.Appoint(m)
	}
	return c
}

func (c *Cabinet) Appoint(m Minister) {
	if m == nil {
		return
	}
	c.seats[m.Office()] = m
}

func (c *Cabinet) Vacate(office Office) {
	delete(c.seats, office)
}

func (c *Cabinet) Controller(office Office) (Minister, bool) {
	m, ok := c.seats[office]
	return m, ok
}

func (c *Cabinet) Ministers() []Minister {
	offices := make([]string, 0, len(c.seats))
	for o := range c.seats {
		offices = append(offices, string(o))
	}
	sort.Strings(offices)
	out := make([]Minister, 0, len(offices))
	for _, o := range offices {
		out = append(out, c.seats[Office(o)])
	}
	return out
}

// Official is a minister with a fixed skill and honesty. Honesty is 0..100;
// the chance of corruption on a roll grows with the stake:
//
//	chance% = (100 - honesty) * stake / (stake + StakeScale)
type Official struct {
	id     string
	Name   string
	office Office

	Skill      int
	Honesty    int
	StakeScale int

	// Purse is the private ledger of value this official has diverted.
	Purse int
	src   dice.Source
}

func NewOfficial(id, name string, office Office, skill, honesty int, src dice.Source) *Official {
	if src == nil {
		src = dice.NewSource(int64(len(id)) + 1)
	}
	return &Official{
		id:         id,
		Name:       name,
		office:     office,
		Skill:      skill,
		Honesty:    clampPct(honesty),
		StakeScale: 100,
		src:        src,
	}
}

func (o *Official) ID() string         { return o.id }
func (o *Official) Office() Office     { return o.office }
func (o *Official) SkillModifier() int { return o.Skill }

func (o *Official) CorruptionChance(stake int) int {
	if stake <= 0 || o.Honesty >= 100 {
		return 0
	}
	scale := o.StakeScale
	if scale <= 0 {
		scale = 1
	}
	return (100 - o.Honesty) * stake / (stake + scale)
}

func (o *Official) IsCorrupt(stake int) bool {
	chance := o.CorruptionChance(stake)
	if chance <= 0 {
		return false
	}
	return o.src.Intn(100) < chance
}

func (o *Official) Divert(amount int, reason string) {
	if amount <= 0 {
		return
	}
	o.Purse += amount
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
