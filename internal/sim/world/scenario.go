package world

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"viceroy.ai/internal/sim/dice"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/world/kernel/model"
)

// Scenario is the starting colony: treasury, prices, units, the map around
// them and the cabinet.
type Scenario struct {
	Treasury  int               `yaml:"treasury"`
	Prices    map[string]int    `yaml:"prices"`
	Units     []model.Unit      `yaml:"units"`
	Villages  []model.Village   `yaml:"villages"`
	Buildings []model.Building  `yaml:"buildings"`
	Tiles     []model.Tile      `yaml:"tiles"`
	Ministers []MinisterProfile `yaml:"ministers"`
}

type MinisterProfile struct {
	ID         string          `yaml:"id"`
	Name       string          `yaml:"name"`
	Office     ministry.Office `yaml:"office"`
	Skill      int             `yaml:"skill"`
	Honesty    int             `yaml:"honesty"`
	StakeScale int             `yaml:"stake_scale"`
}

func LoadScenario(path string) (Scenario, error) {
	var sc Scenario
	raw, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return sc, fmt.Errorf("scenario.yaml: %w", err)
	}
	return sc, nil
}

// Populate loads the scenario into s. Prices given here override any already
// set from the commodity catalog.
func (sc Scenario) Populate(s *State) {
	if sc.Treasury > 0 {
		s.SetTreasury(sc.Treasury)
	}
	for c, p := range sc.Prices {
		s.SetPrice(c, p)
	}
	for _, t := range sc.Tiles {
		s.AddTile(t)
	}
	for _, v := range sc.Villages {
		s.AddVillage(v)
	}
	for _, b := range sc.Buildings {
		s.AddBuilding(b)
	}
	for _, u := range sc.Units {
		u.InitDefaults()
		if u.Movement == 0 {
			u.Movement = u.MaxMovement
		}
		s.AddUnit(u)
	}
}

// Cabinet appoints the scenario's ministers. Corruption checks draw from
// src; stakeScale applies to ministers that do not set their own.
func (sc Scenario) Cabinet(src dice.Source, stakeScale int) *ministry.Cabinet {
	c := ministry.NewCabinet()
	for _, p := range sc.Ministers {
		o := ministry.NewOfficial(p.ID, p.Name, p.Office, p.Skill, p.Honesty, src)
		switch {
		case p.StakeScale > 0:
			o.StakeScale = p.StakeScale
		case stakeScale > 0:
			o.StakeScale = stakeScale
		}
		c.Appoint(o)
	}
	return c
}
