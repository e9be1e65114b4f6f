package model

type BuildingKind string

const (
	BuildingMarket      BuildingKind = "MARKET"
	BuildingTradingPost BuildingKind = "TRADING_POST"
	BuildingMission     BuildingKind = "MISSION"
	BuildingFort        BuildingKind = "FORT"
	BuildingBank        BuildingKind = "BANK"
	BuildingWarehouse   BuildingKind = "WAREHOUSE"
)

const MaxBuildingLevel = 3

type Building struct {
	Kind  BuildingKind `json:"kind" yaml:"kind"`
	Pos   Pos          `json:"pos" yaml:"pos"`
	Level int          `json:"level" yaml:"level"`
}

type Village struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Pos  Pos    `json:"pos" yaml:"pos"`

	// Aggressiveness is 0 (peaceful) .. 3 (hostile).
	Aggressiveness int `json:"aggressiveness" yaml:"aggressiveness"`
	Population     int `json:"population" yaml:"population"`
	Converted      int `json:"converted" yaml:"converted"`
}

const MaxAggressiveness = 3

type Feature string

const (
	FeatureNone     Feature = ""
	FeatureRumor    Feature = "RUMOR"
	FeatureArtifact Feature = "ARTIFACT"
)

type Tile struct {
	Pos      Pos     `json:"pos" yaml:"pos"`
	Revealed bool    `json:"revealed" yaml:"revealed"`
	Feature  Feature `json:"feature,omitempty" yaml:"feature"`
}

type Debt struct {
	Principal   int `json:"principal" yaml:"principal"`
	InterestPct int `json:"interest_pct" yaml:"interest_pct"`
}
