package action

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"viceroy.ai/internal/protocol"
	"viceroy.ai/internal/sim/dice"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/notify"
	"viceroy.ai/internal/sim/world/kernel/model"
)

const dieSpacing = 48

// TradeConfig sets sale payouts as percent of the market price.
type TradeConfig struct {
	CritPct int
	FailPct int
}

func DefaultTrade() TradeConfig { return TradeConfig{CritPct: 150, FailPct: 50} }

type Config struct {
	Specs    []Spec
	Variants map[Kind]Variant

	Resolver  *dice.Resolver
	Gate      *ministry.Gate
	Queue     *notify.Queue
	Economy   Economy
	Territory Territory
	// Rand drives incidental picks such as the commodity an advertising
	// campaign pushes down. Defaults to a fixed seed.
	Rand dice.Source

	Risk  RiskConfig
	Trade TradeConfig
	Audit AuditSink

	Logger *log.Logger
	Now    func() time.Time
}

// Engine runs every action kind through the same confirm, execute and
// complete steps. It is not safe for concurrent use; the session loop owns
// it.
type Engine struct {
	specs    map[Kind]Spec
	variants map[Kind]Variant

	resolver *dice.Resolver
	gate     *ministry.Gate
	queue    *notify.Queue
	econ     Economy
	terr     Territory
	rand     dice.Source

	risk  RiskConfig
	trade TradeConfig
	audit AuditSink

	log     *log.Logger
	now     func() time.Time
	printer *message.Printer

	inflight *Instance
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("action engine: resolver is required")
	}
	if cfg.Queue == nil {
		return nil, errors.New("action engine: queue is required")
	}
	if cfg.Economy == nil || cfg.Territory == nil {
		return nil, errors.New("action engine: economy and territory are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	e := &Engine{
		specs:    map[Kind]Spec{},
		variants: cfg.Variants,
		resolver: cfg.Resolver,
		gate:     cfg.Gate,
		queue:    cfg.Queue,
		econ:     cfg.Economy,
		terr:     cfg.Territory,
		rand:     cfg.Rand,
		risk:     cfg.Risk,
		trade:    cfg.Trade,
		audit:    cfg.Audit,
		log:      logger,
		now:      cfg.Now,
		printer:  message.NewPrinter(language.English),
	}
	for _, s := range cfg.Specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := e.specs[s.Kind]; dup {
			return nil, fmt.Errorf("action engine: duplicate spec %s", s.Kind)
		}
		e.specs[s.Kind] = s
	}
	if e.variants == nil {
		e.variants = DefaultVariants()
	}
	if e.gate == nil {
		e.gate = ministry.NewGate(nil, nil, 0, logger)
	}
	if e.rand == nil {
		e.rand = dice.NewSource(1)
	}
	if e.risk == (RiskConfig{}) {
		e.risk = DefaultRisk()
	}
	if e.trade == (TradeConfig{}) {
		e.trade = DefaultTrade()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

func (e *Engine) Kinds() []Kind {
	out := make([]Kind, 0, len(e.specs))
	for k := range e.specs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InFlight returns the action between Begin and its terminal state, or nil.
func (e *Engine) InFlight() *Instance { return e.inflight }

func (e *Engine) Busy() bool { return e.inflight != nil }

// CanAttempt checks every precondition of kind for the unit without touching
// the world. A failed precondition is a *Reason.
func (e *Engine) CanAttempt(kind Kind, unitID string, target Target) error {
	spec, ok := e.specs[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	u, ok := e.terr.Unit(unitID)
	if !ok {
		return reason(protocol.ErrUnknownUnit, fmt.Sprintf("no unit %q", unitID))
	}
	if r := e.check(spec, u, target); r != nil {
		return r
	}
	return nil
}

func (e *Engine) check(spec Spec, u *model.Unit, target Target) *Reason {
	if !spec.AllowsUnit(u.Kind) {
		return reason(protocol.ErrBadUnit, fmt.Sprintf("%s cannot undertake %s", u.Name, spec.Name))
	}
	if u.Movement < spec.RequiredMovement() {
		return reason(protocol.ErrNoMovement, fmt.Sprintf("%s has no movement left", u.Name))
	}
	if e.econ.Treasury() < spec.Cost {
		return reason(protocol.ErrNoFunds, e.printer.Sprintf("%s costs %d gold; the treasury holds %d", spec.Name, spec.Cost, e.econ.Treasury()))
	}
	if !e.gate.Staffed(spec.Office) {
		return reason(protocol.ErrNoMinister, fmt.Sprintf("no minister holds the %s office", spec.Office))
	}
	if v := e.variants[spec.Kind]; v.Check != nil {
		return v.Check(e.context(spec, u, target))
	}
	return nil
}

// Preview runs the preconditions and computes modifiers, thresholds, tier
// and odds without starting anything.
func (e *Engine) Preview(kind Kind, unitID string, target Target) (*Instance, error) {
	if err := e.CanAttempt(kind, unitID, target); err != nil {
		return nil, err
	}
	u, _ := e.terr.Unit(unitID)
	inst := newInstance(e.specs[kind], unitID, target, e.now())
	e.assess(inst, u)
	return inst, nil
}

// RiskModifier is the net situational modifier kind would roll with.
func (e *Engine) RiskModifier(kind Kind, unitID string, target Target) (int, error) {
	inst, err := e.Preview(kind, unitID, target)
	if err != nil {
		return 0, err
	}
	return inst.Modifier, nil
}

// Begin starts an action: it checks preconditions and queues the
// confirmation choice. Nothing is deducted until the player proceeds. A
// failed precondition is also shown to the player once.
func (e *Engine) Begin(kind Kind, unitID string, target Target) (*Instance, error) {
	if e.inflight != nil {
		return nil, ErrBusy
	}
	if err := e.CanAttempt(kind, unitID, target); err != nil {
		if r, ok := ReasonOf(err); ok {
			e.queue.Enqueue(notify.NewMessage("Cannot proceed", r.Message), false)
		}
		return nil, err
	}
	u, _ := e.terr.Unit(unitID)
	inst := newInstance(e.specs[kind], unitID, target, e.now())
	e.assess(inst, u)
	e.inflight = inst
	e.confirm(inst, u)
	return inst, nil
}

func (e *Engine) assess(inst *Instance, u *model.Unit) {
	spec := inst.Spec
	var mods []Modifier
	if skill := e.gate.SkillModifier(spec.Office); skill != 0 {
		mods = append(mods, Modifier{Label: "minister skill", Value: skill})
	}
	if spec.Building != "" && spec.MissingBuildingPenalty != 0 {
		if _, ok := e.terr.BuildingAt(u.Pos, spec.Building); !ok {
			mods = append(mods, Modifier{
				Label: "no " + strings.ToLower(strings.ReplaceAll(string(spec.Building), "_", " ")),
				Value: -spec.MissingBuildingPenalty,
			})
		}
	}
	if v := e.variants[spec.Kind]; v.Modifiers != nil {
		mods = append(mods, v.Modifiers(e.context(spec, u, inst.Target))...)
	}
	inst.Modifiers = mods
	inst.Modifier = sumModifiers(mods)
	inst.Thresholds = AdjustedThresholds(spec.Thresholds, inst.Modifier, e.resolver.Sides())
	inst.attempts = 1
	if spec.VeteranReroll && u.Veteran {
		inst.attempts = 2
	}
	inst.Tier = e.risk.TierFor(inst.Modifier, u.Veteran)
	inst.Odds = dice.ComputeOdds(e.resolver.Sides(), inst.Thresholds, inst.attempts)
}

func (e *Engine) confirm(inst *Instance, u *model.Unit) {
	inst.state = StateAwaitingConfirmation
	m := notify.NewMessage(inst.Spec.Name, e.confirmLines(inst, u)...)
	m.Options = []string{"Proceed", "Cancel"}
	m.AddElement(notify.NewElement(notify.ElementPortrait, u.Name, 0, notify.Point{}))
	m.OnDismiss = func(choice int) {
		if choice == 0 {
			e.execute(inst)
			return
		}
		e.cancel(inst)
	}
	e.queue.Enqueue(m, false)
}

func (e *Engine) confirmLines(inst *Instance, u *model.Unit) []string {
	var lines []string
	if t := render(inst.Spec.Texts.Attempt, u.Name, inst.Target); t != "" {
		lines = append(lines, t)
	}
	lines = append(lines,
		e.printer.Sprintf("Cost: %d gold", inst.Spec.Cost),
		fmt.Sprintf("Risk: %s", inst.Tier),
	)
	for _, m := range inst.Modifiers {
		lines = append(lines, fmt.Sprintf("  %s %+d", m.Label, m.Value))
	}
	odds := e.printer.Sprintf("Odds: %.0f%% success, %.0f%% critical", inst.Odds.Success*100, inst.Odds.CritSuccess*100)
	if inst.Odds.CritFailure > 0 {
		odds += e.printer.Sprintf(", %.0f%% disaster", inst.Odds.CritFailure*100)
	}
	lines = append(lines, odds)
	if inst.attempts > 1 {
		lines = append(lines, "Veteran: best of two rolls")
	}
	return lines
}

func (e *Engine) cancel(inst *Instance) {
	inst.state = StateCancelled
	e.release(inst)
	e.log.Printf("action: %s %s cancelled", inst.Spec.Kind, inst.ID)
}

// execute spends the cost and all remaining movement, rolls through the
// ministry and queues the rolling and result messages. Spending is
// irrevocable from here on.
func (e *Engine) execute(inst *Instance) {
	u, ok := e.terr.Unit(inst.UnitID)
	if !ok {
		e.log.Printf("action: %s unit %s vanished before execution", inst.ID, inst.UnitID)
		inst.state = StateCancelled
		e.release(inst)
		return
	}
	if !e.econ.PayCost(inst.Spec.Cost) {
		e.queue.Enqueue(notify.NewMessage("Cannot proceed", "The treasury can no longer cover the cost."), true)
		inst.state = StateCancelled
		e.release(inst)
		return
	}
	inst.state = StateResolving
	e.terr.SpendMovement(u.ID, u.Movement)

	e.roll(inst, inst.Thresholds, inst.attempts, ministry.Stake{
		Office: inst.Spec.Office,
		Amount: inst.Spec.Stake,
		Reason: fmt.Sprintf("%s by %s", inst.Spec.Name, u.Name),
	})
	rolling, result := e.rollMessages(inst, e.narrative(inst, u.Name))
	result.OnDismiss = func(int) { e.complete(inst) }
	e.queue.EnqueueFront(rolling, result)
}

func (e *Engine) roll(inst *Instance, th dice.Thresholds, attempts int, stake ministry.Stake) {
	best := e.resolver.ResolveBest(th, attempts)
	stake.Thresholds = th
	stake.ActionID = inst.ID
	inst.round++
	inst.rolled = th
	inst.raws = best.Raws
	inst.decision = e.gate.Arbitrate(stake, best.Outcome)
}

// shownRaws are the faces drawn on the dice. A falsified report caps every
// die at the reported face so the display agrees with the narrative.
func (inst *Instance) shownRaws() []int {
	out := append([]int(nil), inst.raws...)
	if !inst.decision.Falsified() {
		return out
	}
	for i, r := range out {
		if r > inst.decision.Reported.Raw {
			out[i] = inst.decision.Reported.Raw
		}
	}
	return out
}

func (e *Engine) rollMessages(inst *Instance, narrative string) (*notify.Message, *notify.Message) {
	sides := e.resolver.Sides()
	rolling := notify.NewMessage(inst.Spec.Name, "Rolling...")
	rolling.TransferOnDismiss = true
	for i, raw := range inst.shownRaws() {
		d := notify.NewElement(notify.ElementDie, fmt.Sprintf("d%d", sides), raw, notify.Point{X: i * dieSpacing})
		d.Z = i
		rolling.AddElement(d)
	}
	rolling.Dice = len(rolling.Elements)

	lines := []string{dice.FormatLine(inst.Reported(), sides)}
	if narrative != "" {
		lines = append(lines, narrative)
	}
	result := notify.NewMessage(inst.Spec.Name, lines...)
	result.AcceptsTransfer = true
	return rolling, result
}

func (e *Engine) narrative(inst *Instance, unitName string) string {
	t := inst.Spec.Texts
	o := inst.Reported()
	var tmpl string
	switch {
	case o.CritSuccess:
		tmpl = firstNonEmpty(t.Critical, t.Success)
	case o.Success:
		tmpl = t.Success
	case o.CritFailure:
		tmpl = firstNonEmpty(t.Fatal, t.Failure)
	default:
		tmpl = t.Failure
	}
	return render(tmpl, unitName, inst.Target)
}

// complete applies the reported outcome once the result has been read.
func (e *Engine) complete(inst *Instance) {
	if inst.state != StateResolving {
		return
	}
	effects := e.outcomeEffects(inst)
	e.apply(effects)
	inst.effects = append(inst.effects, effects...)
	e.record(inst, effects)

	if inst.Spec.Trades() && inst.Reported().Success {
		if _, alive := e.terr.Unit(inst.UnitID); alive {
			e.openTrade(inst)
			return
		}
	}
	e.finish(inst)
}

func (e *Engine) outcomeEffects(inst *Instance) EffectSet {
	u, ok := e.terr.Unit(inst.UnitID)
	if !ok {
		e.log.Printf("action: %s unit %s vanished before completion", inst.ID, inst.UnitID)
		return nil
	}
	ctx := e.context(inst.Spec, u, inst.Target)
	ctx.Outcome = inst.Reported()
	v := e.variants[inst.Spec.Kind]

	var set EffectSet
	switch o := ctx.Outcome; {
	case o.CritSuccess:
		switch {
		case v.Critical != nil:
			set = v.Critical(ctx)
		case v.Success != nil:
			set = v.Success(ctx)
		}
		if !u.Veteran {
			set = append(set, Effect{Kind: EffectPromote, UnitID: u.ID})
		}
	case o.Success:
		if v.Success != nil {
			set = v.Success(ctx)
		}
	case o.CritFailure:
		if v.Fatal != nil {
			set = v.Fatal(ctx)
		}
		set = append(set, remove(u.ID))
	}
	return set
}

func (e *Engine) apply(set EffectSet) {
	for _, fx := range set {
		switch fx.Kind {
		case EffectPrice:
			e.econ.ChangePrice(fx.Commodity, fx.Amount)
		case EffectMoney:
			if fx.Amount > 0 {
				e.econ.Earn(fx.Amount)
			}
		case EffectDebt:
			e.econ.Borrow(fx.Amount, fx.Percent)
		case EffectPromote:
			e.terr.Promote(fx.UnitID)
		case EffectRemove:
			e.terr.RemoveUnit(fx.UnitID)
		case EffectSpawn:
			e.terr.SpawnUnit(fx.UnitKind, fx.Pos)
		case EffectUpgrade:
			e.terr.UpgradeBuilding(fx.Pos, fx.Building)
		case EffectReveal:
			e.terr.Reveal(fx.Pos, fx.Radius)
		case EffectConvert:
			e.terr.ChangeVillage(fx.Pos, 0, fx.Amount, 0)
		case EffectPopulace:
			e.terr.ChangeVillage(fx.Pos, fx.Amount, 0, 0)
		case EffectHostility:
			e.terr.ChangeVillage(fx.Pos, 0, 0, fx.Amount)
		case EffectClear:
			e.terr.ClearFeature(fx.Pos)
		case EffectItem:
			e.terr.GiveItem(fx.UnitID, fx.Item)
		case EffectSellGood:
			if e.terr.TakeGood(fx.UnitID, fx.Commodity) && fx.Amount > 0 {
				e.econ.Earn(fx.Amount)
			}
		default:
			e.log.Printf("action: unknown effect kind %q", fx.Kind)
		}
	}
}

func (e *Engine) record(inst *Instance, effects EffectSet) {
	if e.audit == nil {
		return
	}
	d := inst.decision
	r := Record{
		Time:       e.now().UTC(),
		ActionID:   inst.ID,
		Kind:       inst.Spec.Kind,
		UnitID:     inst.UnitID,
		Round:      inst.round,
		Modifier:   inst.Modifier,
		Tier:       inst.Tier.String(),
		Thresholds: inst.rolled,
		Raws:       append([]int(nil), inst.raws...),
		Reported:   d.Reported,
		True:       d.True,
		Diverted:   d.Diverted,
		MinisterID: d.MinisterID,
		Effects:    effects,
	}
	if err := e.audit.WriteAction(r); err != nil {
		e.log.Printf("action: audit %s round %d: %v", inst.ID, inst.round, err)
	}
}

func (e *Engine) finish(inst *Instance) {
	inst.state = StateCompleted
	e.release(inst)
	e.log.Printf("action: %s %s completed reported=%s effects=%d", inst.Spec.Kind, inst.ID, inst.Reported().Label(), len(inst.effects))
}

func (e *Engine) release(inst *Instance) {
	if e.inflight == inst {
		e.inflight = nil
	}
}

func (e *Engine) context(spec Spec, u *model.Unit, target Target) *Context {
	return &Context{
		Spec:      spec,
		Unit:      *u,
		Target:    target,
		Economy:   e.econ,
		Territory: e.terr,
		rand:      e.rand,
	}
}

func render(tmpl, unit string, target Target) string {
	if tmpl == "" {
		return ""
	}
	return strings.NewReplacer("{unit}", unit, "{target}", target.String()).Replace(tmpl)
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
