package action

import (
	"time"

	"viceroy.ai/internal/sim/dice"
	"viceroy.ai/internal/sim/world/kernel/model"
)

// Economy is the colony treasury and the commodity price table.
type Economy interface {
	Treasury() int
	PayCost(amount int) bool
	Earn(amount int)
	CurrentPrice(commodity string) int
	ChangePrice(commodity string, delta int)
	Commodities() []string
	Borrow(principal, interestPct int)
}

// Territory is the map, its units and their surroundings. Returned pointers
// are read-only for callers; all mutation goes through the methods.
type Territory interface {
	Unit(id string) (*model.Unit, bool)
	SpendMovement(id string, points int)
	Promote(id string)
	RemoveUnit(id string)
	SpawnUnit(kind model.UnitKind, pos model.Pos) string
	TakeGood(unitID, commodity string) bool
	GiveItem(unitID, item string)

	VillageAt(pos model.Pos) (*model.Village, bool)
	ChangeVillage(pos model.Pos, populationDelta, convertedDelta, hostilityDelta int)
	BuildingAt(pos model.Pos, kind model.BuildingKind) (*model.Building, bool)
	UpgradeBuilding(pos model.Pos, kind model.BuildingKind) int
	TileAt(pos model.Pos) (*model.Tile, bool)
	Reveal(center model.Pos, radius int) int
	ClearFeature(pos model.Pos)
}

// Record is the audit trail of one resolved roll. True and Diverted are only
// for ministerial accounting.
type Record struct {
	Time       time.Time       `json:"time"`
	ActionID   string          `json:"action_id"`
	Kind       Kind            `json:"kind"`
	UnitID     string          `json:"unit_id"`
	Round      int             `json:"round"`
	Modifier   int             `json:"modifier"`
	Tier       string          `json:"tier"`
	Thresholds dice.Thresholds `json:"thresholds"`
	Raws       []int           `json:"raws,omitempty"`
	Reported   dice.Outcome    `json:"reported"`
	True       dice.Outcome    `json:"true"`
	Diverted   int             `json:"diverted,omitempty"`
	MinisterID string          `json:"minister_id,omitempty"`
	Effects    EffectSet       `json:"effects,omitempty"`
}

// AuditSink stores records (zstd JSONL log, sqlite index). May be nil.
type AuditSink interface {
	WriteAction(r Record) error
}
