package world

import (
	"fmt"
	"io"
	"log"
	"sort"

	"viceroy.ai/internal/sim/world/kernel/model"
)

type buildingKey struct {
	pos  model.Pos
	kind model.BuildingKind
}

// State is the in-memory colony: treasury, market, units and map. It backs
// the action engine's Economy and Territory and is owned by the session
// loop.
type State struct {
	treasury  int
	prices    map[string]int
	debts     []model.Debt
	units     map[string]*model.Unit
	villages  map[model.Pos]*model.Village
	buildings map[buildingKey]*model.Building
	tiles     map[model.Pos]*model.Tile

	nextUnitNum int
	log         *log.Logger
}

func NewState(logger *log.Logger) *State {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &State{
		prices:    map[string]int{},
		units:     map[string]*model.Unit{},
		villages:  map[model.Pos]*model.Village{},
		buildings: map[buildingKey]*model.Building{},
		tiles:     map[model.Pos]*model.Tile{},
		log:       logger,
	}
}

// Setup.

func (s *State) SetTreasury(n int) { s.treasury = n }

func (s *State) SetPrice(commodity string, p int) {
	if p < 1 {
		p = 1
	}
	s.prices[commodity] = p
}

// AddUnit stores a copy of u and returns the stored unit. An empty ID is
// assigned.
func (s *State) AddUnit(u model.Unit) *model.Unit {
	if u.ID == "" {
		u.ID = s.newUnitID()
	}
	u.InitDefaults()
	cp := u
	s.units[cp.ID] = &cp
	return &cp
}

func (s *State) AddVillage(v model.Village) {
	if v.ID == "" {
		v.ID = fmt.Sprintf("V%d_%d", v.Pos.X, v.Pos.Y)
	}
	s.villages[v.Pos] = &v
}

func (s *State) AddBuilding(b model.Building) {
	if b.Level < 1 {
		b.Level = 1
	}
	s.buildings[buildingKey{b.Pos, b.Kind}] = &b
}

func (s *State) AddTile(t model.Tile) { s.tiles[t.Pos] = &t }

// Queries.

func (s *State) Units() []*model.Unit {
	out := make([]*model.Unit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *State) Villages() []*model.Village {
	out := make([]*model.Village, 0, len(s.villages))
	for _, v := range s.villages {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *State) Debts() []model.Debt {
	return append([]model.Debt(nil), s.debts...)
}

func (s *State) Prices() map[string]int {
	out := make(map[string]int, len(s.prices))
	for k, v := range s.prices {
		out[k] = v
	}
	return out
}

// Economy.

func (s *State) Treasury() int { return s.treasury }

func (s *State) PayCost(amount int) bool {
	if amount < 0 || s.treasury < amount {
		return false
	}
	s.treasury -= amount
	return true
}

func (s *State) Earn(amount int) {
	if amount > 0 {
		s.treasury += amount
	}
}

func (s *State) CurrentPrice(commodity string) int { return s.prices[commodity] }

// ChangePrice shifts a known commodity's price. Prices never fall below 1.
func (s *State) ChangePrice(commodity string, delta int) {
	p, ok := s.prices[commodity]
	if !ok {
		s.log.Printf("world: price change for unknown commodity %q ignored", commodity)
		return
	}
	p += delta
	if p < 1 {
		p = 1
	}
	s.prices[commodity] = p
}

func (s *State) Commodities() []string {
	out := make([]string, 0, len(s.prices))
	for k := range s.prices {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *State) Borrow(principal, interestPct int) {
	if principal <= 0 {
		return
	}
	s.debts = append(s.debts, model.Debt{Principal: principal, InterestPct: interestPct})
}

// Territory.

func (s *State) Unit(id string) (*model.Unit, bool) {
	u, ok := s.units[id]
	return u, ok
}

func (s *State) SpendMovement(id string, points int) {
	u, ok := s.units[id]
	if !ok || points <= 0 {
		return
	}
	u.Movement -= points
	if u.Movement < 0 {
		u.Movement = 0
	}
}

func (s *State) Promote(id string) {
	if u, ok := s.units[id]; ok {
		u.Veteran = true
	}
}

func (s *State) RemoveUnit(id string) {
	if _, ok := s.units[id]; !ok {
		return
	}
	delete(s.units, id)
	s.log.Printf("world: unit %s removed", id)
}

func (s *State) SpawnUnit(kind model.UnitKind, pos model.Pos) string {
	u := s.AddUnit(model.Unit{Kind: kind, Name: string(kind), Pos: pos})
	return u.ID
}

func (s *State) TakeGood(unitID, commodity string) bool {
	u, ok := s.units[unitID]
	if !ok || u.Goods[commodity] <= 0 {
		return false
	}
	u.Goods[commodity]--
	if u.Goods[commodity] == 0 {
		delete(u.Goods, commodity)
	}
	return true
}

func (s *State) GiveItem(unitID, item string) {
	if u, ok := s.units[unitID]; ok {
		u.Items[item]++
	}
}

func (s *State) VillageAt(pos model.Pos) (*model.Village, bool) {
	v, ok := s.villages[pos]
	return v, ok
}

func (s *State) ChangeVillage(pos model.Pos, populationDelta, convertedDelta, hostilityDelta int) {
	v, ok := s.villages[pos]
	if !ok {
		return
	}
	v.Population = max(0, v.Population+populationDelta)
	v.Converted = min(v.Population, max(0, v.Converted+convertedDelta))
	v.Aggressiveness = min(model.MaxAggressiveness, max(0, v.Aggressiveness+hostilityDelta))
}

func (s *State) BuildingAt(pos model.Pos, kind model.BuildingKind) (*model.Building, bool) {
	b, ok := s.buildings[buildingKey{pos, kind}]
	return b, ok
}

// UpgradeBuilding raises a building one level, founding it at level 1 when
// absent. It returns the resulting level.
func (s *State) UpgradeBuilding(pos model.Pos, kind model.BuildingKind) int {
	k := buildingKey{pos, kind}
	b, ok := s.buildings[k]
	if !ok {
		b = &model.Building{Kind: kind, Pos: pos}
		s.buildings[k] = b
	}
	if b.Level < model.MaxBuildingLevel {
		b.Level++
	}
	return b.Level
}

func (s *State) TileAt(pos model.Pos) (*model.Tile, bool) {
	t, ok := s.tiles[pos]
	return t, ok
}

// Reveal uncovers every known tile within radius of center and returns how
// many were newly revealed.
func (s *State) Reveal(center model.Pos, radius int) int {
	n := 0
	for p, t := range s.tiles {
		if t.Revealed || center.Dist(p) > radius {
			continue
		}
		t.Revealed = true
		n++
	}
	return n
}

func (s *State) ClearFeature(pos model.Pos) {
	if t, ok := s.tiles[pos]; ok {
		t.Feature = model.FeatureNone
	}
}

// StartTurn restores every unit's movement.
func (s *State) StartTurn() {
	for _, u := range s.units {
		u.Movement = u.MaxMovement
	}
}

func (s *State) newUnitID() string {
	for {
		s.nextUnitNum++
		id := fmt.Sprintf("U%d", s.nextUnitNum)
		if _, taken := s.units[id]; !taken {
			return id
		}
	}
}
