package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viceroy.ai/internal/sim/dice"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/world/kernel/model"
)

func TestLoadScenario_Default(t *testing.T) {
	sc, err := LoadScenario("../../../configs/scenario.yaml")
	require.NoError(t, err)

	s := NewState(nil)
	s.SetPrice("furs", 99)
	sc.Populate(s)

	assert.Equal(t, 1000, s.Treasury())
	u, ok := s.Unit("U2")
	require.True(t, ok)
	assert.Equal(t, model.UnitCaravan, u.Kind)
	assert.Equal(t, 2, u.Movement, "movement starts full")
	assert.Equal(t, 2, u.Goods["furs"])

	u6, ok := s.Unit("U6")
	require.True(t, ok)
	assert.Equal(t, 3, u6.Movement, "default max movement")

	raiders, ok := s.Unit("R1")
	require.True(t, ok)
	assert.True(t, raiders.Hostile)

	_, ok = s.VillageAt(model.Pos{X: 5, Y: 4})
	assert.True(t, ok)
	_, ok = s.BuildingAt(model.Pos{}, model.BuildingMarket)
	assert.True(t, ok)
	tile, ok := s.TileAt(model.Pos{X: 7, Y: 7})
	require.True(t, ok)
	assert.Equal(t, model.FeatureRumor, tile.Feature)

	cab := sc.Cabinet(dice.NewSource(1), 200)
	m, ok := cab.Controller(ministry.OfficeTrade)
	require.True(t, ok)
	assert.Equal(t, "M1", m.ID())
	assert.Equal(t, 1, m.SkillModifier())
	assert.Equal(t, 200, m.(*ministry.Official).StakeScale)
	assert.Len(t, cab.Ministers(), 6)
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario("does-not-exist.yaml")
	assert.Error(t, err)
}
