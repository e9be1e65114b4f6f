package ministry

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"viceroy.ai/internal/sim/dice"
)

var advertising = dice.Thresholds{SuccessMin: 4, CritSuccessMin: 6, CritFailMax: 1, AllowCritFail: true}

type mockMinister struct{ mock.Mock }

func (m *mockMinister) ID() string                       { return m.Called().String(0) }
func (m *mockMinister) Office() Office                   { return m.Called().Get(0).(Office) }
func (m *mockMinister) IsCorrupt(stake int) bool         { return m.Called(stake).Bool(0) }
func (m *mockMinister) Divert(amount int, reason string) { m.Called(amount, reason) }
func (m *mockMinister) SkillModifier() int               { return m.Called().Int(0) }

func TestGate_CorruptMinisterFalsifiesSuccess(t *testing.T) {
	m := &mockMinister{}
	m.On("Office").Return(OfficeTrade)
	m.On("ID").Return("M1")
	m.On("IsCorrupt", 40).Return(true)
	m.On("Divert", 20, "advertising").Return()

	ledger := NewLedger()
	g := NewGate(NewCabinet(m), ledger, 50, nil)
	d := g.Arbitrate(Stake{Office: OfficeTrade, Amount: 40, Thresholds: advertising, ActionID: "act-1", Reason: "advertising"}, dice.Classify(5, advertising))

	require.True(t, d.True.Success)
	assert.False(t, d.Reported.Success)
	assert.False(t, d.Reported.CritFailure, "a falsified report must never be fatal")
	assert.Equal(t, 3, d.Reported.Raw)
	assert.Equal(t, 20, d.Diverted)
	assert.True(t, d.Falsified())
	assert.Equal(t, 20, ledger.Total("M1"))
	require.Len(t, ledger.Entries(), 1)
	assert.Equal(t, 5, ledger.Entries()[0].TrueRaw)
	m.AssertExpectations(t)
}

func TestGate_TrueFailurePassesThrough(t *testing.T) {
	m := &mockMinister{}
	m.On("Office").Return(OfficeTrade)
	m.On("ID").Return("M1")

	g := NewGate(NewCabinet(m), nil, 50, nil)
	raw := dice.Classify(1, advertising)
	d := g.Arbitrate(Stake{Office: OfficeTrade, Amount: 40, Thresholds: advertising}, raw)

	assert.Equal(t, raw, d.Reported)
	assert.Zero(t, d.Diverted)
	m.AssertNotCalled(t, "IsCorrupt", mock.Anything)
	m.AssertNotCalled(t, "Divert", mock.Anything, mock.Anything)
}

func TestGate_CertainSuccessCannotBeFalsified(t *testing.T) {
	m := &mockMinister{}
	m.On("Office").Return(OfficeTrade)
	m.On("ID").Return("M1")

	sure := dice.Thresholds{SuccessMin: 1, CritSuccessMin: 6}
	ledger := NewLedger()
	g := NewGate(NewCabinet(m), ledger, 50, nil)
	raw := dice.Classify(1, sure)
	require.True(t, raw.Success)

	d := g.Arbitrate(Stake{Office: OfficeTrade, Amount: 40, Thresholds: sure}, raw)
	assert.Equal(t, raw, d.Reported)
	assert.False(t, d.Falsified())
	assert.Zero(t, d.Diverted)
	assert.Empty(t, ledger.Entries())
	m.AssertNotCalled(t, "IsCorrupt", mock.Anything)
	m.AssertNotCalled(t, "Divert", mock.Anything, mock.Anything)
}

func TestGate_VacantOfficeIsIdentity(t *testing.T) {
	g := NewGate(NewCabinet(), nil, 50, nil)
	raw := dice.Classify(6, advertising)
	d := g.Arbitrate(Stake{Office: OfficeWar, Amount: 100, Thresholds: advertising}, raw)
	if d.Reported != raw || d.Diverted != 0 || d.MinisterID != "" {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if g.Staffed(OfficeWar) {
		t.Fatalf("war office should be vacant")
	}
	if g.SkillModifier(OfficeWar) != 0 {
		t.Fatalf("vacant office should not modify rolls")
	}
}

func TestGate_MinimumDiversionIsOne(t *testing.T) {
	o := NewOfficial("M2", "Crooked", OfficeTreasury, 0, 0, dice.NewReplay(1))
	o.StakeScale = 1
	g := NewGate(NewCabinet(o), nil, 10, nil)
	d := g.Arbitrate(Stake{Office: OfficeTreasury, Amount: 5, Thresholds: advertising}, dice.Classify(4, advertising))
	if d.Diverted != 1 {
		t.Fatalf("diverted = %d, want 1", d.Diverted)
	}
	if o.Purse != 1 {
		t.Fatalf("purse = %d, want 1", o.Purse)
	}
}

// A corrupt trade minister turns a true 5 into a reported failure and keeps
// exactly the diverted value.
func TestGate_CorruptOfficialScenario(t *testing.T) {
	o := NewOfficial("M3", "Don Ruiz", OfficeTrade, 1, 0, dice.NewReplay(1))
	o.StakeScale = 1
	g := NewGate(NewCabinet(o), nil, 50, nil)

	before := o.Purse
	d := g.Arbitrate(Stake{Office: OfficeTrade, Amount: 60, Thresholds: advertising, ActionID: "a"}, dice.Classify(5, advertising))

	require.True(t, d.True.Success)
	require.False(t, d.Reported.Success)
	require.Greater(t, d.Diverted, 0)
	require.Equal(t, before+d.Diverted, o.Purse)
	require.Equal(t, d.Diverted, g.Ledger().Total("M3"))
	require.Equal(t, 1, g.SkillModifier(OfficeTrade))
}

func TestOfficial_CorruptionChance(t *testing.T) {
	honest := NewOfficial("H", "Honest", OfficeTrade, 0, 100, nil)
	if honest.CorruptionChance(1000) != 0 {
		t.Fatalf("an honest official is never corrupt")
	}
	o := NewOfficial("C", "Crooked", OfficeTrade, 0, 50, nil)
	if got := o.CorruptionChance(100); got != 25 {
		t.Fatalf("chance = %d, want 25", got)
	}
	if got := o.CorruptionChance(0); got != 0 {
		t.Fatalf("zero stake chance = %d", got)
	}
}

func TestCabinet_MinistersSortedByOffice(t *testing.T) {
	c := NewCabinet(
		NewOfficial("W", "War", OfficeWar, 0, 100, nil),
		NewOfficial("T", "Trade", OfficeTrade, 0, 100, nil),
	)
	ms := c.Ministers()
	if len(ms) != 2 || ms[0].ID() != "T" || ms[1].ID() != "W" {
		t.Fatalf("unexpected order")
	}
	c.Vacate(OfficeWar)
	if _, ok := c.Controller(OfficeWar); ok {
		t.Fatalf("office should be vacant")
	}
}

func TestGate_HonestMinisterIsIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("non-corrupt arbitration never changes the outcome", prop.ForAll(
		func(raw, stake int) bool {
			o := NewOfficial("H", "Honest", OfficeTrade, 2, 100, nil)
			g := NewGate(NewCabinet(o), nil, 50, nil)
			out := dice.Classify(raw, advertising)
			d := g.Arbitrate(Stake{Office: OfficeTrade, Amount: stake, Thresholds: advertising}, out)
			return d.Reported == out && d.True == out && d.Diverted == 0 && o.Purse == 0
		},
		gen.IntRange(1, 6),
		gen.IntRange(0, 10000),
	))

	properties.TestingRun(t)
}
