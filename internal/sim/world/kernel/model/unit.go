package model

import (
	"fmt"
	"sort"
)

type UnitKind string

const (
	UnitMerchant   UnitKind = "MERCHANT"
	UnitCaravan    UnitKind = "CARAVAN"
	UnitExplorer   UnitKind = "EXPLORER"
	UnitMissionary UnitKind = "MISSIONARY"
	UnitSoldier    UnitKind = "SOLDIER"
	UnitBuilder    UnitKind = "BUILDER"
	UnitConvert    UnitKind = "CONVERT"
	UnitCaptive    UnitKind = "CAPTIVE"
)

type Pos struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Dist is the Chebyshev distance: diagonal neighbours are 1 apart.
func (p Pos) Dist(o Pos) int {
	dx := p.X - o.X
	if dx < 0 {
		dx = -dx
	}
	dy := p.Y - o.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

type Unit struct {
	ID   string   `json:"id" yaml:"id"`
	Kind UnitKind `json:"kind" yaml:"kind"`
	Name string   `json:"name" yaml:"name"`
	Pos  Pos      `json:"pos" yaml:"pos"`

	Movement    int  `json:"movement" yaml:"movement"`
	MaxMovement int  `json:"max_movement" yaml:"max_movement"`
	Strength    int  `json:"strength" yaml:"strength"`
	Veteran     bool `json:"veteran" yaml:"veteran"`
	Hostile     bool `json:"hostile,omitempty" yaml:"hostile"`

	// Goods carried for trade, commodity -> count.
	Goods map[string]int `json:"goods,omitempty" yaml:"goods"`
	// Items found on expeditions (artifacts).
	Items map[string]int `json:"items,omitempty" yaml:"items"`
}

func (u *Unit) InitDefaults() {
	if u.Goods == nil {
		u.Goods = map[string]int{}
	}
	if u.Items == nil {
		u.Items = map[string]int{}
	}
	if u.MaxMovement == 0 {
		u.MaxMovement = 3
	}
	if u.Strength == 0 {
		u.Strength = 1
	}
}

func (u *Unit) GoodsCount() int {
	n := 0
	for _, c := range u.Goods {
		if c > 0 {
			n += c
		}
	}
	return n
}

// NextGood is the first carried commodity in name order, "" when empty.
func (u *Unit) NextGood() string {
	keys := make([]string, 0, len(u.Goods))
	for k, c := range u.Goods {
		if c > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return keys[0]
}
