package world

import (
	"io"
	"log"
	"sort"
	"strconv"
	"strings"

	"viceroy.ai/internal/persistence/snapshot"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/world/kernel/model"
)

// ExportSnapshot captures the colony and the ministry's books. Call it only
// from the session goroutine, between actions.
func (s *Session) ExportSnapshot() snapshot.ColonyV1 {
	snap := s.state.export()
	snap.Header = snapshot.Header{Version: snapshot.Version, SessionID: s.id, Turn: s.turn}
	snap.Seed = s.cfg.Seed
	snap.DiceSides = s.cfg.Sides
	snap.ActionsDigest = s.cfg.Catalogs.ActionsDigest
	snap.CommoditiesDigest = s.cfg.Catalogs.CommoditiesDigest

	for _, d := range s.gate.Ledger().Entries() {
		snap.Diversions = append(snap.Diversions, snapshot.DiversionV1{
			Seq:        d.Seq,
			MinisterID: d.MinisterID,
			Office:     string(d.Office),
			Amount:     d.Amount,
			Reason:     d.Reason,
			ActionID:   d.ActionID,
			TrueRaw:    d.TrueRaw,
		})
	}
	if s.cfg.Cabinet != nil {
		for _, m := range s.cfg.Cabinet.Ministers() {
			if o, ok := m.(*ministry.Official); ok && o.Purse > 0 {
				if snap.Purses == nil {
					snap.Purses = map[string]int{}
				}
				snap.Purses[o.ID()] = o.Purse
			}
		}
	}
	return snap
}

// maybeSnapshot hands a snapshot to the sink at the start of every
// SnapshotEvery-th turn. A busy sink loses the snapshot; the next one
// supersedes it.
func (s *Session) maybeSnapshot() {
	if s.cfg.SnapshotSink == nil || s.cfg.SnapshotEvery <= 0 || (s.turn-1)%s.cfg.SnapshotEvery != 0 {
		return
	}
	select {
	case s.cfg.SnapshotSink <- s.ExportSnapshot():
	default:
		s.log.Printf("session: snapshot sink backpressure, turn %d not saved", s.turn)
	}
}

// resume carries the turn counter and ministry books over from snap.
func (s *Session) resume(snap *snapshot.ColonyV1) {
	if snap.Header.Turn > 0 {
		s.turn = snap.Header.Turn
	}
	entries := make([]ministry.Diversion, 0, len(snap.Diversions))
	for _, d := range snap.Diversions {
		entries = append(entries, ministry.Diversion{
			Seq:        d.Seq,
			MinisterID: d.MinisterID,
			Office:     ministry.Office(d.Office),
			Amount:     d.Amount,
			Reason:     d.Reason,
			ActionID:   d.ActionID,
			TrueRaw:    d.TrueRaw,
		})
	}
	s.gate.Ledger().Restore(entries)
	if s.cfg.Cabinet != nil {
		for _, m := range s.cfg.Cabinet.Ministers() {
			if o, ok := m.(*ministry.Official); ok {
				o.Purse = snap.Purses[o.ID()]
			}
		}
	}
}

func (s *State) export() snapshot.ColonyV1 {
	snap := snapshot.ColonyV1{
		Treasury: s.treasury,
		Prices:   s.Prices(),
	}
	for _, d := range s.debts {
		snap.Debts = append(snap.Debts, snapshot.DebtV1{Principal: d.Principal, InterestPct: d.InterestPct})
	}
	for _, u := range s.Units() {
		snap.Units = append(snap.Units, snapshot.UnitV1{
			ID:          u.ID,
			Kind:        string(u.Kind),
			Name:        u.Name,
			Pos:         [2]int{u.Pos.X, u.Pos.Y},
			Movement:    u.Movement,
			MaxMovement: u.MaxMovement,
			Strength:    u.Strength,
			Veteran:     u.Veteran,
			Hostile:     u.Hostile,
			Goods:       copyCounts(u.Goods),
			Items:       copyCounts(u.Items),
		})
	}
	for _, v := range s.Villages() {
		snap.Villages = append(snap.Villages, snapshot.VillageV1{
			ID:             v.ID,
			Name:           v.Name,
			Pos:            [2]int{v.Pos.X, v.Pos.Y},
			Aggressiveness: v.Aggressiveness,
			Population:     v.Population,
			Converted:      v.Converted,
		})
	}
	for _, b := range s.buildings {
		snap.Buildings = append(snap.Buildings, snapshot.BuildingV1{Kind: string(b.Kind), Pos: [2]int{b.Pos.X, b.Pos.Y}, Level: b.Level})
	}
	sort.Slice(snap.Buildings, func(i, j int) bool {
		a, b := snap.Buildings[i], snap.Buildings[j]
		if a.Pos != b.Pos {
			return a.Pos[0] < b.Pos[0] || (a.Pos[0] == b.Pos[0] && a.Pos[1] < b.Pos[1])
		}
		return a.Kind < b.Kind
	})
	for _, t := range s.tiles {
		snap.Tiles = append(snap.Tiles, snapshot.TileV1{Pos: [2]int{t.Pos.X, t.Pos.Y}, Revealed: t.Revealed, Feature: string(t.Feature)})
	}
	sort.Slice(snap.Tiles, func(i, j int) bool {
		a, b := snap.Tiles[i].Pos, snap.Tiles[j].Pos
		return a[0] < b[0] || (a[0] == b[0] && a[1] < b[1])
	})
	return snap
}

// RestoreState rebuilds a colony from a snapshot.
func RestoreState(snap snapshot.ColonyV1, logger *log.Logger) *State {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := NewState(logger)
	s.treasury = snap.Treasury
	for c, p := range snap.Prices {
		s.SetPrice(c, p)
	}
	for _, d := range snap.Debts {
		s.debts = append(s.debts, model.Debt{Principal: d.Principal, InterestPct: d.InterestPct})
	}
	for _, t := range snap.Tiles {
		s.AddTile(model.Tile{Pos: posOf(t.Pos), Revealed: t.Revealed, Feature: model.Feature(t.Feature)})
	}
	for _, v := range snap.Villages {
		s.AddVillage(model.Village{
			ID:             v.ID,
			Name:           v.Name,
			Pos:            posOf(v.Pos),
			Aggressiveness: v.Aggressiveness,
			Population:     v.Population,
			Converted:      v.Converted,
		})
	}
	for _, b := range snap.Buildings {
		s.AddBuilding(model.Building{Kind: model.BuildingKind(b.Kind), Pos: posOf(b.Pos), Level: b.Level})
	}
	for _, u := range snap.Units {
		s.AddUnit(model.Unit{
			ID:          u.ID,
			Kind:        model.UnitKind(u.Kind),
			Name:        u.Name,
			Pos:         posOf(u.Pos),
			Movement:    u.Movement,
			MaxMovement: u.MaxMovement,
			Strength:    u.Strength,
			Veteran:     u.Veteran,
			Hostile:     u.Hostile,
			Goods:       copyCounts(u.Goods),
			Items:       copyCounts(u.Items),
		})
		// Keep spawned IDs from colliding with ones already used.
		if n, err := strconv.Atoi(strings.TrimPrefix(u.ID, "U")); err == nil && strings.HasPrefix(u.ID, "U") && n > s.nextUnitNum {
			s.nextUnitNum = n
		}
	}
	return s
}

func posOf(p [2]int) model.Pos { return model.Pos{X: p[0], Y: p[1]} }

func copyCounts(m map[string]int) map[string]int {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
