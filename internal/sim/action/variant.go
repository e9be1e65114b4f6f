package action

import (
	"fmt"
	"sort"

	"viceroy.ai/internal/protocol"
	"viceroy.ai/internal/sim/dice"
	"viceroy.ai/internal/sim/world/kernel/model"
)

// Context is what a variant callback sees. Unit is a snapshot taken when the
// callback runs; Outcome is the reported outcome and is zero before the roll.
type Context struct {
	Spec    Spec
	Unit    model.Unit
	Target  Target
	Outcome dice.Outcome

	Economy   Economy
	Territory Territory

	rand dice.Source
}

// Pick returns a uniform index in [0, n).
func (c *Context) Pick(n int) int {
	if n <= 1 || c.rand == nil {
		return 0
	}
	return c.rand.Intn(n)
}

func (c *Context) Village() (*model.Village, bool) {
	return c.Territory.VillageAt(c.Target.Pos)
}

// Variant is the per-kind behaviour plugged into the engine. Every callback
// is optional. The engine itself adds promotion on a critical success and
// removes the acting unit on a critical failure.
type Variant struct {
	Check     func(c *Context) *Reason
	Modifiers func(c *Context) []Modifier
	Success   func(c *Context) EffectSet
	// Critical defaults to Success.
	Critical func(c *Context) EffectSet
	// Fatal adds effects to the unit's removal.
	Fatal func(c *Context) EffectSet
}

func DefaultVariants() map[Kind]Variant {
	return map[Kind]Variant{
		KindTrade:     tradeVariant(),
		KindAdvertise: advertiseVariant(),
		KindBuild:     buildVariant(),
		KindUpgrade:   upgradeVariant(),
		KindExplore:   exploreVariant(),
		KindConvert:   convertVariant(),
		KindCombat:    combatVariant(),
		KindCapture:   captureVariant(),
		KindLoan:      loanVariant(),
		KindRumor:     featureVariant(model.FeatureRumor),
		KindArtifact:  featureVariant(model.FeatureArtifact),
	}
}

func within(c *Context, reach int) *Reason {
	if c.Unit.Pos.Dist(c.Target.Pos) > reach {
		return reason(protocol.ErrBadLocation, fmt.Sprintf("%s is too far from %s", c.Unit.Name, c.Target))
	}
	return nil
}

func villageTarget(c *Context) (*model.Village, *Reason) {
	v, ok := c.Village()
	if !ok {
		return nil, reason(protocol.ErrInvalidTarget, fmt.Sprintf("no village at %s", c.Target))
	}
	if r := within(c, 1); r != nil {
		return nil, r
	}
	return v, nil
}

func villageModifiers(c *Context) []Modifier {
	v, ok := c.Village()
	if !ok {
		return nil
	}
	var mods []Modifier
	if v.Aggressiveness > 0 {
		mods = append(mods, Modifier{Label: v.Name + " aggressiveness", Value: -v.Aggressiveness})
	}
	if v.Population >= 1000 {
		mods = append(mods, Modifier{Label: v.Name + " population", Value: -1})
	}
	return mods
}

func tradeVariant() Variant {
	return Variant{
		Check: func(c *Context) *Reason {
			if _, r := villageTarget(c); r != nil {
				return r
			}
			if c.Unit.GoodsCount() == 0 {
				return reason(protocol.ErrNoGoods, fmt.Sprintf("%s carries nothing to sell", c.Unit.Name))
			}
			return nil
		},
		Modifiers: villageModifiers,
	}
}

func advertiseVariant() Variant {
	// others lists the commodities whose price can still fall.
	others := func(c *Context) []string {
		var out []string
		for _, com := range c.Economy.Commodities() {
			if com != c.Target.Commodity && c.Economy.CurrentPrice(com) > 1 {
				out = append(out, com)
			}
		}
		sort.Strings(out)
		return out
	}
	campaign := func(c *Context, delta int) EffectSet {
		set := EffectSet{price(c.Target.Commodity, delta)}
		if cands := others(c); len(cands) > 0 {
			set = append(set, price(cands[c.Pick(len(cands))], -delta))
		}
		return set
	}
	return Variant{
		Check: func(c *Context) *Reason {
			for _, com := range c.Economy.Commodities() {
				if com == c.Target.Commodity {
					return nil
				}
			}
			return reason(protocol.ErrInvalidTarget, fmt.Sprintf("no market for %q", c.Target.Commodity))
		},
		Success:  func(c *Context) EffectSet { return campaign(c, c.Spec.Magnitude) },
		Critical: func(c *Context) EffectSet { return campaign(c, 2*c.Spec.Magnitude) },
	}
}

func buildVariant() Variant {
	return Variant{
		Check: func(c *Context) *Reason {
			if c.Target.Building == "" {
				return reason(protocol.ErrInvalidTarget, "no building named")
			}
			if _, ok := c.Territory.TileAt(c.Target.Pos); !ok {
				return reason(protocol.ErrBadLocation, fmt.Sprintf("nothing can be built at %s", c.Target))
			}
			if _, ok := c.Territory.BuildingAt(c.Target.Pos, c.Target.Building); ok {
				return reason(protocol.ErrInvalidTarget, fmt.Sprintf("%s already stands at %s", c.Target.Building, c.Target.Pos.String()))
			}
			return within(c, 0)
		},
		Success: func(c *Context) EffectSet {
			return EffectSet{{Kind: EffectUpgrade, Pos: c.Target.Pos, Building: c.Target.Building}}
		},
		Critical: func(c *Context) EffectSet {
			up := Effect{Kind: EffectUpgrade, Pos: c.Target.Pos, Building: c.Target.Building}
			return EffectSet{up, up}
		},
	}
}

func upgradeVariant() Variant {
	return Variant{
		Check: func(c *Context) *Reason {
			b, ok := c.Territory.BuildingAt(c.Target.Pos, c.Target.Building)
			if !ok {
				return reason(protocol.ErrInvalidTarget, fmt.Sprintf("no %s at %s", c.Target.Building, c.Target.Pos.String()))
			}
			if b.Level >= model.MaxBuildingLevel {
				return reason(protocol.ErrInvalidTarget, fmt.Sprintf("%s is fully upgraded", b.Kind))
			}
			return within(c, 0)
		},
		Success: func(c *Context) EffectSet {
			return EffectSet{{Kind: EffectUpgrade, Pos: c.Target.Pos, Building: c.Target.Building}}
		},
		Critical: func(c *Context) EffectSet {
			return EffectSet{
				{Kind: EffectUpgrade, Pos: c.Target.Pos, Building: c.Target.Building},
				money(c.Spec.Cost / 2),
			}
		},
	}
}

func exploreVariant() Variant {
	reveal := func(radius int) func(c *Context) EffectSet {
		return func(c *Context) EffectSet {
			return EffectSet{{Kind: EffectReveal, Pos: c.Target.Pos, Radius: radius + c.Spec.Magnitude}}
		}
	}
	return Variant{
		Check: func(c *Context) *Reason {
			if _, ok := c.Territory.TileAt(c.Target.Pos); !ok {
				return reason(protocol.ErrBadLocation, fmt.Sprintf("%s lies off the map", c.Target))
			}
			return within(c, 1)
		},
		Success:  reveal(0),
		Critical: reveal(1),
	}
}

func convertVariant() Variant {
	convert := func(factor int) func(c *Context) EffectSet {
		return func(c *Context) EffectSet {
			set := EffectSet{{Kind: EffectConvert, Pos: c.Target.Pos, Amount: factor * c.Spec.Magnitude}}
			if factor > 1 {
				set = append(set, spawn(model.UnitConvert, c.Target.Pos))
			}
			return set
		}
	}
	return Variant{
		Check: func(c *Context) *Reason {
			_, r := villageTarget(c)
			return r
		},
		Modifiers: villageModifiers,
		Success:   convert(1),
		Critical:  convert(2),
		Fatal: func(c *Context) EffectSet {
			return EffectSet{{Kind: EffectHostility, Pos: c.Target.Pos, Amount: 1}}
		},
	}
}

func combatVariant() Variant {
	foe := func(c *Context) (*model.Unit, bool) {
		return c.Territory.Unit(c.Target.UnitID)
	}
	return Variant{
		Check: func(c *Context) *Reason {
			f, ok := foe(c)
			if !ok || !f.Hostile {
				return reason(protocol.ErrInvalidTarget, fmt.Sprintf("%q is not an enemy", c.Target.UnitID))
			}
			if c.Unit.Pos.Dist(f.Pos) > 1 {
				return reason(protocol.ErrBadLocation, fmt.Sprintf("%s is out of reach", f.Name))
			}
			return nil
		},
		Modifiers: func(c *Context) []Modifier {
			f, ok := foe(c)
			if !ok || f.Strength == c.Unit.Strength {
				return nil
			}
			return []Modifier{{Label: "relative strength", Value: c.Unit.Strength - f.Strength}}
		},
		Success: func(c *Context) EffectSet {
			return EffectSet{remove(c.Target.UnitID)}
		},
		Critical: func(c *Context) EffectSet {
			return EffectSet{remove(c.Target.UnitID), money(c.Spec.Magnitude)}
		},
	}
}

func captureVariant() Variant {
	capture := func(n int) func(c *Context) EffectSet {
		return func(c *Context) EffectSet {
			var set EffectSet
			for i := 0; i < n; i++ {
				set = append(set, spawn(model.UnitCaptive, c.Unit.Pos))
			}
			return append(set,
				Effect{Kind: EffectPopulace, Pos: c.Target.Pos, Amount: -n},
				Effect{Kind: EffectHostility, Pos: c.Target.Pos, Amount: 1},
			)
		}
	}
	return Variant{
		Check: func(c *Context) *Reason {
			v, r := villageTarget(c)
			if r != nil {
				return r
			}
			if v.Population <= 0 {
				return reason(protocol.ErrInvalidTarget, fmt.Sprintf("%s is deserted", v.Name))
			}
			return nil
		},
		Modifiers: villageModifiers,
		Success:   capture(1),
		Critical:  capture(2),
	}
}

func loanVariant() Variant {
	loan := func(interest int) func(c *Context) EffectSet {
		return func(c *Context) EffectSet {
			return EffectSet{
				money(c.Spec.Magnitude),
				{Kind: EffectDebt, Amount: c.Spec.Magnitude, Percent: interest},
			}
		}
	}
	return Variant{
		Success:  loan(10),
		Critical: loan(5),
	}
}

// featureVariant searches a rumor or artifact on the target tile. A failed
// search leaves the feature for a later attempt.
func featureVariant(f model.Feature) Variant {
	find := func(factor int) func(c *Context) EffectSet {
		return func(c *Context) EffectSet {
			set := EffectSet{
				{Kind: EffectClear, Pos: c.Target.Pos, Feature: f},
				money(factor * c.Spec.Magnitude),
			}
			if factor > 1 {
				switch f {
				case model.FeatureArtifact:
					set = append(set, Effect{Kind: EffectItem, UnitID: c.Unit.ID, Item: "artifact"})
				case model.FeatureRumor:
					set = append(set, Effect{Kind: EffectReveal, Pos: c.Target.Pos, Radius: 2})
				}
			}
			return set
		}
	}
	return Variant{
		Check: func(c *Context) *Reason {
			t, ok := c.Territory.TileAt(c.Target.Pos)
			if !ok || t.Feature != f {
				return reason(protocol.ErrInvalidTarget, fmt.Sprintf("nothing to search at %s", c.Target))
			}
			return within(c, 0)
		},
		Success:  find(1),
		Critical: find(2),
	}
}
