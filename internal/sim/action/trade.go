package action

import (
	"fmt"

	"viceroy.ai/internal/sim/dice"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/notify"
)

type tradeState struct {
	remaining int
	sold      int
}

// openTrade starts the sale loop after the village agreed to trade.
func (e *Engine) openTrade(inst *Instance) {
	budget := inst.Spec.TradeBudget
	if inst.Reported().CritSuccess {
		budget++
	}
	inst.trade = &tradeState{remaining: budget}
	e.offerTrade(inst)
}

// offerTrade re-offers the sale choice, or ends the loop once the unit has
// nothing left to sell or the village has no transactions left.
func (e *Engine) offerTrade(inst *Instance) {
	u, ok := e.terr.Unit(inst.UnitID)
	switch {
	case !ok || u.GoodsCount() == 0:
		e.endTrade(inst, "The caravan has no more goods to sell.")
		return
	case inst.trade.remaining <= 0:
		e.endTrade(inst, "The village will trade no more.")
		return
	}
	good := u.NextGood()
	price := e.econ.CurrentPrice(good)
	m := notify.NewMessage(inst.Spec.Name,
		e.printer.Sprintf("The village will hear %d more offer(s).", inst.trade.remaining),
		e.printer.Sprintf("%s in the hold: %d. Market price %d gold.", good, u.Goods[good], price),
	)
	m.Options = []string{"Sell " + good, "Leave"}
	m.OnDismiss = func(choice int) {
		if choice == 0 {
			e.sell(inst, good)
			return
		}
		e.endTrade(inst, "The caravan moves on.")
	}
	e.queue.EnqueueFront(m)
}

// sell resolves one transaction. It always consumes a transaction and a good;
// the reported outcome only sets the payout.
func (e *Engine) sell(inst *Instance, good string) {
	price := e.econ.CurrentPrice(good)
	th := inst.Spec.SubRoll.Normalize(e.resolver.Sides())
	e.roll(inst, th, 1, ministry.Stake{
		Office: inst.Spec.Office,
		Amount: price,
		Reason: "sale of " + good,
	})
	inst.trade.remaining--

	payout := e.payout(price, inst.Reported())
	text := e.printer.Sprintf("Sold %s for %d gold.", good, payout)
	if payout == 0 {
		text = fmt.Sprintf("The %s was seized without payment.", good)
	}
	rolling, result := e.rollMessages(inst, text)
	result.OnDismiss = func(int) {
		fx := EffectSet{{Kind: EffectSellGood, UnitID: inst.UnitID, Commodity: good, Amount: payout}}
		e.apply(fx)
		inst.effects = append(inst.effects, fx...)
		inst.trade.sold++
		e.record(inst, fx)
		e.offerTrade(inst)
	}
	e.queue.EnqueueFront(rolling, result)
}

func (e *Engine) payout(price int, o dice.Outcome) int {
	switch {
	case o.CritSuccess:
		return price * e.trade.CritPct / 100
	case o.Success:
		return price
	case o.CritFailure:
		return 0
	default:
		return price * e.trade.FailPct / 100
	}
}

func (e *Engine) endTrade(inst *Instance, line string) {
	e.queue.EnqueueFront(notify.NewMessage(inst.Spec.Name, line))
	e.finish(inst)
}
