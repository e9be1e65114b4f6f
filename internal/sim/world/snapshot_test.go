package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viceroy.ai/internal/persistence/snapshot"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/world/kernel/model"
)

func TestSession_EndTurnEmitsSnapshot(t *testing.T) {
	s, u := testSession(t)
	sink := make(chan snapshot.ColonyV1, 4)
	s.cfg.SnapshotSink = sink
	s.cfg.SnapshotEvery = 2
	s.state.SpendMovement(u.ID, 2)

	s.Step(Event{Kind: EventEndTurn}) // turn 2: skipped
	require.Empty(t, sink)
	s.Step(Event{Kind: EventEndTurn}) // turn 3
	require.Len(t, sink, 1)

	snap := <-sink
	assert.Equal(t, 3, snap.Header.Turn)
	assert.Equal(t, s.ID(), snap.Header.SessionID)
	assert.Equal(t, int64(7), snap.Seed)
	assert.Equal(t, 500, snap.Treasury)
	require.Len(t, snap.Units, 1)
	assert.Equal(t, 3, snap.Units[0].Movement, "snapshot is taken after movement is restored")
}

func TestSession_FullSnapshotSinkDoesNotBlock(t *testing.T) {
	s, _ := testSession(t)
	sink := make(chan snapshot.ColonyV1)
	s.cfg.SnapshotSink = sink
	s.cfg.SnapshotEvery = 1

	s.Step(Event{Kind: EventEndTurn})
	assert.Equal(t, 2, s.Turn())
}

func TestSnapshot_RestoreRoundTrip(t *testing.T) {
	st := NewState(nil)
	st.SetTreasury(320)
	st.SetPrice("rum", 9)
	st.Borrow(1000, 10)
	st.AddTile(model.Tile{Pos: model.Pos{X: 1, Y: 1}, Feature: model.FeatureArtifact})
	st.AddTile(model.Tile{Pos: model.Pos{X: 0, Y: 0}, Revealed: true})
	st.AddVillage(model.Village{Name: "Tupa", Pos: model.Pos{X: 4, Y: 2}, Population: 40, Converted: 5, Aggressiveness: 2})
	st.AddBuilding(model.Building{Kind: model.BuildingMarket, Pos: model.Pos{X: 0, Y: 0}, Level: 2})
	st.AddUnit(model.Unit{ID: "U7", Kind: model.UnitCaravan, Name: "Caravan", Goods: map[string]int{"rum": 3}, Veteran: true})

	official := ministry.NewOfficial("M2", "Crook", ministry.OfficeTrade, 0, 0, nil)
	official.Purse = 30
	s, err := NewSession(SessionConfig{Sides: 6, Seed: 9, Cabinet: ministry.NewCabinet(official)}, st, nil)
	require.NoError(t, err)
	s.gate.Ledger().Record(ministry.Diversion{MinisterID: "M2", Office: ministry.OfficeTrade, Amount: 30, ActionID: "a1", TrueRaw: 5})
	s.turn = 6

	snap := s.ExportSnapshot()
	assert.Equal(t, map[string]int{"M2": 30}, snap.Purses)
	require.Len(t, snap.Diversions, 1)
	require.Len(t, snap.Tiles, 2)
	assert.Equal(t, [2]int{0, 0}, snap.Tiles[0].Pos, "tiles are sorted")

	restored := RestoreState(snap, nil)
	assert.Equal(t, 320, restored.Treasury())
	assert.Equal(t, 9, restored.CurrentPrice("rum"))
	assert.Equal(t, []model.Debt{{Principal: 1000, InterestPct: 10}}, restored.Debts())
	v, ok := restored.VillageAt(model.Pos{X: 4, Y: 2})
	require.True(t, ok)
	assert.Equal(t, 5, v.Converted)
	b, ok := restored.BuildingAt(model.Pos{X: 0, Y: 0}, model.BuildingMarket)
	require.True(t, ok)
	assert.Equal(t, 2, b.Level)
	tile, ok := restored.TileAt(model.Pos{X: 1, Y: 1})
	require.True(t, ok)
	assert.Equal(t, model.FeatureArtifact, tile.Feature)
	u, ok := restored.Unit("U7")
	require.True(t, ok)
	assert.True(t, u.Veteran)
	assert.Equal(t, 3, u.Goods["rum"])
	assert.Equal(t, "U8", restored.SpawnUnit(model.UnitConvert, model.Pos{}), "new IDs continue after restored ones")

	fresh := ministry.NewOfficial("M2", "Crook", ministry.OfficeTrade, 0, 0, nil)
	resumed, err := NewSession(SessionConfig{Sides: 6, Seed: 9, Cabinet: ministry.NewCabinet(fresh), Resume: &snap}, restored, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, resumed.Turn())
	assert.Equal(t, 30, fresh.Purse)
	assert.Equal(t, 30, resumed.Ledger().Total("M2"))
	d := resumed.Ledger().Record(ministry.Diversion{MinisterID: "M2", Amount: 1})
	assert.Equal(t, uint64(2), d.Seq)
}

func ministryDiversion(minister string, amount int) ministry.Diversion {
	return ministry.Diversion{MinisterID: minister, Office: ministry.OfficeTrade, Amount: amount}
}
