package action

import "viceroy.ai/internal/sim/world/kernel/model"

type EffectKind string

const (
	EffectPrice     EffectKind = "PRICE"
	EffectMoney     EffectKind = "MONEY"
	EffectPromote   EffectKind = "PROMOTE"
	EffectRemove    EffectKind = "REMOVE_UNIT"
	EffectSpawn     EffectKind = "SPAWN_UNIT"
	EffectUpgrade   EffectKind = "UPGRADE"
	EffectReveal    EffectKind = "REVEAL"
	EffectConvert   EffectKind = "CONVERT"
	EffectPopulace  EffectKind = "POPULATION"
	EffectHostility EffectKind = "HOSTILITY"
	EffectDebt      EffectKind = "DEBT"
	EffectClear     EffectKind = "CLEAR_FEATURE"
	EffectItem      EffectKind = "ITEM"
	EffectSellGood  EffectKind = "SELL_GOOD"
)

// Effect is one permanent change to the world. Kind selects which of the
// other fields are meaningful.
type Effect struct {
	Kind      EffectKind         `json:"kind"`
	UnitID    string             `json:"unit_id,omitempty"`
	UnitKind  model.UnitKind     `json:"unit_kind,omitempty"`
	Commodity string             `json:"commodity,omitempty"`
	Building  model.BuildingKind `json:"building,omitempty"`
	Feature   model.Feature      `json:"feature,omitempty"`
	Pos       model.Pos          `json:"pos"`
	Amount    int                `json:"amount,omitempty"`
	Radius    int                `json:"radius,omitempty"`
	Percent   int                `json:"percent,omitempty"`
	Item      string             `json:"item,omitempty"`
}

type EffectSet []Effect

func (s EffectSet) Has(k EffectKind) bool {
	for _, e := range s {
		if e.Kind == k {
			return true
		}
	}
	return false
}

func (s EffectSet) Of(k EffectKind) []Effect {
	var out []Effect
	for _, e := range s {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

func price(commodity string, delta int) Effect {
	return Effect{Kind: EffectPrice, Commodity: commodity, Amount: delta}
}

func money(amount int) Effect { return Effect{Kind: EffectMoney, Amount: amount} }

func remove(unitID string) Effect { return Effect{Kind: EffectRemove, UnitID: unitID} }

func spawn(kind model.UnitKind, pos model.Pos) Effect {
	return Effect{Kind: EffectSpawn, UnitKind: kind, Pos: pos}
}
