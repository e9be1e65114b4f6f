package action_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viceroy.ai/internal/sim/action"
	"viceroy.ai/internal/sim/dice"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/world/kernel/model"
)

func TestRiskConfig_TierFor(t *testing.T) {
	risk := action.DefaultRisk()
	cases := []struct {
		modifier int
		veteran  bool
		want     action.Tier
	}{
		{1, false, action.TierLow},
		{0, false, action.TierLow},
		{-1, false, action.TierModerate},
		{-2, false, action.TierModerate},
		{-3, false, action.TierHigh},
		{-4, false, action.TierHigh},
		{-5, false, action.TierDeadly},

		{-1, true, action.TierLow},
		{-2, true, action.TierModerate},
		{-3, true, action.TierModerate},
		{-4, true, action.TierHigh},
		{-5, true, action.TierHigh},
		{-6, true, action.TierDeadly},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d/veteran=%t", tc.modifier, tc.veteran), func(t *testing.T) {
			assert.Equal(t, tc.want, risk.TierFor(tc.modifier, tc.veteran))
		})
	}
}

func TestRiskConfig_CustomBands(t *testing.T) {
	risk := action.RiskConfig{VeteranBonus: 0, Bands: [3]int{1, 3, 5}}
	assert.Equal(t, action.TierLow, risk.TierFor(-1, true))
	assert.Equal(t, action.TierModerate, risk.TierFor(-2, true), "no veteran bonus")
	assert.Equal(t, action.TierDeadly, risk.TierFor(-6, false))
}

func TestEngine_RiskModifierMatchesPreview(t *testing.T) {
	t.Run("minister and village", func(t *testing.T) {
		priest := ministry.NewOfficial("R1", "Priest", ministry.OfficeReligion, 1, 100, dice.NewReplay(100))
		f := newFixture(t, []action.Spec{convertSpec()}, nil, priest)
		f.state.AddVillage(model.Village{Name: "Tupi", Pos: village, Population: 1200, Aggressiveness: 2})
		u := f.unit(model.UnitMissionary, camp)
		target := action.Target{Pos: village}

		inst, err := f.eng.Preview(action.KindConvert, u.ID, target)
		require.NoError(t, err)
		assert.Equal(t, []action.Modifier{
			{Label: "minister skill", Value: 1},
			{Label: "Tupi aggressiveness", Value: -2},
			{Label: "Tupi population", Value: -1},
		}, inst.Modifiers)
		assert.Equal(t, -2, inst.Modifier)
		assert.Equal(t, action.TierModerate, inst.Tier)
		assert.Equal(t, 6, inst.Thresholds.SuccessMin)

		mod, err := f.eng.RiskModifier(action.KindConvert, u.ID, target)
		require.NoError(t, err)
		assert.Equal(t, inst.Modifier, mod)
	})

	t.Run("relative strength", func(t *testing.T) {
		f := newFixture(t, []action.Spec{combatSpec()}, nil, honest("G1", ministry.OfficeWar))
		u := f.state.AddUnit(model.Unit{Kind: model.UnitSoldier, Name: "Guard", Movement: 3, Strength: 3})
		foe := f.state.AddUnit(model.Unit{Kind: model.UnitSoldier, Name: "Raider", Pos: model.Pos{X: 1, Y: 1}, Hostile: true})
		target := action.Target{UnitID: foe.ID}

		inst, err := f.eng.Preview(action.KindCombat, u.ID, target)
		require.NoError(t, err)
		assert.Equal(t, []action.Modifier{{Label: "relative strength", Value: 2}}, inst.Modifiers)
		assert.Equal(t, action.TierLow, inst.Tier)

		mod, err := f.eng.RiskModifier(action.KindCombat, u.ID, target)
		require.NoError(t, err)
		assert.Equal(t, 2, mod)

		foe.Strength = 5
		mod, err = f.eng.RiskModifier(action.KindCombat, u.ID, target)
		require.NoError(t, err)
		assert.Equal(t, -2, mod)
		inst, err = f.eng.Preview(action.KindCombat, u.ID, target)
		require.NoError(t, err)
		assert.Equal(t, action.TierModerate, inst.Tier)
	})

	t.Run("refused precondition", func(t *testing.T) {
		f := newFixture(t, []action.Spec{combatSpec()}, nil, honest("G1", ministry.OfficeWar))
		u := f.unit(model.UnitSoldier, model.Pos{X: 0, Y: 0})

		_, err := f.eng.RiskModifier(action.KindCombat, u.ID, action.Target{UnitID: "U404"})
		_, ok := action.ReasonOf(err)
		assert.True(t, ok)
		assert.Nil(t, f.queue.Displayed(), "a preview shows nothing")
	})
}
