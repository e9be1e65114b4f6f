package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"viceroy.ai/internal/sim/action"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Dice     Dice     `yaml:"dice"`
	Risk     Risk     `yaml:"risk"`
	Ministry Ministry `yaml:"ministry"`
	Trade    Trade    `yaml:"trade"`
	Session  Session  `yaml:"session"`
}

type Dice struct {
	Sides int `yaml:"sides"`
	// Seed 0 means a fresh random seed per process.
	Seed int64 `yaml:"seed"`
}

type Risk struct {
	VeteranBonus int   `yaml:"veteran_bonus"`
	Bands        []int `yaml:"bands"`
}

type Ministry struct {
	DivertPct  int `yaml:"divert_pct"`
	StakeScale int `yaml:"stake_scale"`
}

type Trade struct {
	CritPct int `yaml:"crit_pct"`
	FailPct int `yaml:"fail_pct"`
}

type Session struct {
	ClientQueue int `yaml:"client_queue"`
	// Per-connection frame budget; frames over it get E_RATE_LIMIT.
	FramesPerSecond float64 `yaml:"frames_per_second"`
	FrameBurst      int     `yaml:"frame_burst"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Dice:            Dice{Sides: 6},
		Risk:            Risk{VeteranBonus: 1, Bands: []int{0, 2, 4}},
		Ministry:        Ministry{DivertPct: 50, StakeScale: 100},
		Trade:           Trade{CritPct: 150, FailPct: 50},
		Session:         Session{ClientQueue: 64, FramesPerSecond: 20, FrameBurst: 40},
	}
}

// Load reads a tuning file over the defaults; keys missing from the file keep
// their default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Dice.Sides < 2 {
		return fmt.Errorf("dice.sides must be at least 2, got %d", t.Dice.Sides)
	}
	if len(t.Risk.Bands) != 3 {
		return fmt.Errorf("risk.bands needs 3 values, got %d", len(t.Risk.Bands))
	}
	if t.Risk.Bands[0] > t.Risk.Bands[1] || t.Risk.Bands[1] > t.Risk.Bands[2] {
		return fmt.Errorf("risk.bands must be ascending: %v", t.Risk.Bands)
	}
	if t.Ministry.DivertPct < 0 || t.Ministry.DivertPct > 100 {
		return fmt.Errorf("ministry.divert_pct out of range: %d", t.Ministry.DivertPct)
	}
	return nil
}

func (t Tuning) RiskConfig() action.RiskConfig {
	rc := action.RiskConfig{VeteranBonus: t.Risk.VeteranBonus}
	copy(rc.Bands[:], t.Risk.Bands)
	return rc
}

func (t Tuning) TradeConfig() action.TradeConfig {
	return action.TradeConfig{CritPct: t.Trade.CritPct, FailPct: t.Trade.FailPct}
}

// Digest identifies the applied tuning in WELCOME and the catalog index.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
