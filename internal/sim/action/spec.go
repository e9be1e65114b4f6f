package action

import (
	"fmt"

	"viceroy.ai/internal/sim/dice"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/world/kernel/model"
)

type Kind string

const (
	KindTrade     Kind = "TRADE"
	KindAdvertise Kind = "ADVERTISE"
	KindBuild     Kind = "BUILD"
	KindUpgrade   Kind = "UPGRADE"
	KindExplore   Kind = "EXPLORE"
	KindConvert   Kind = "CONVERT"
	KindCombat    Kind = "COMBAT"
	KindCapture   Kind = "CAPTURE"
	KindLoan      Kind = "LOAN"
	KindRumor     Kind = "RUMOR"
	KindArtifact  Kind = "ARTIFACT"
)

// Texts are the narrative templates of one action kind. {unit} and {target}
// are substituted.
type Texts struct {
	Attempt  string `json:"attempt"`
	Success  string `json:"success"`
	Critical string `json:"critical"`
	Failure  string `json:"failure"`
	Fatal    string `json:"fatal"`
}

// Spec is the immutable configuration of one action kind.
type Spec struct {
	Kind        Kind            `json:"kind"`
	Name        string          `json:"name"`
	Cost        int             `json:"cost"`
	MinMovement int             `json:"min_movement"`
	Office      ministry.Office `json:"office"`
	Stake       int             `json:"stake"`
	Thresholds  dice.Thresholds `json:"thresholds"`
	// VeteranReroll grants veterans the best of two rolls.
	VeteranReroll bool             `json:"veteran_reroll"`
	UnitKinds     []model.UnitKind `json:"unit_kinds"`

	// Building supports the action; its absence at the unit's position costs
	// MissingBuildingPenalty.
	Building               model.BuildingKind `json:"building,omitempty"`
	MissingBuildingPenalty int                `json:"missing_building_penalty,omitempty"`

	// Magnitude scales the success effect (price delta, reveal radius, loan).
	Magnitude int `json:"magnitude"`

	// TradeBudget > 0 turns the action into a trade loop: a successful roll
	// grants that many transactions, each resolved against SubRoll.
	TradeBudget int             `json:"trade_budget,omitempty"`
	SubRoll     dice.Thresholds `json:"sub_roll,omitempty"`

	Texts Texts `json:"texts"`
}

func (s Spec) Validate() error {
	if s.Kind == "" {
		return fmt.Errorf("action spec: empty kind")
	}
	if s.Cost < 0 {
		return fmt.Errorf("action %s: negative cost", s.Kind)
	}
	if s.Thresholds.SuccessMin <= 0 {
		return fmt.Errorf("action %s: success_min must be positive", s.Kind)
	}
	if s.TradeBudget > 0 && s.SubRoll.SuccessMin <= 0 {
		return fmt.Errorf("action %s: trade loop needs sub_roll thresholds", s.Kind)
	}
	return nil
}

func (s Spec) AllowsUnit(k model.UnitKind) bool {
	if len(s.UnitKinds) == 0 {
		return true
	}
	for _, u := range s.UnitKinds {
		if u == k {
			return true
		}
	}
	return false
}

func (s Spec) RequiredMovement() int {
	if s.MinMovement < 1 {
		return 1
	}
	return s.MinMovement
}

func (s Spec) Trades() bool { return s.TradeBudget > 0 }

// Target names what the action is aimed at. Which fields matter depends on
// the kind.
type Target struct {
	Pos       model.Pos          `json:"pos"`
	UnitID    string             `json:"unit_id,omitempty"`
	Commodity string             `json:"commodity,omitempty"`
	Building  model.BuildingKind `json:"building,omitempty"`
}

func (t Target) String() string {
	switch {
	case t.Commodity != "":
		return t.Commodity
	case t.UnitID != "":
		return t.UnitID
	case t.Building != "":
		return string(t.Building)
	default:
		return t.Pos.String()
	}
}
