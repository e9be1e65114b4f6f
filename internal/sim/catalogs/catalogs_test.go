package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"viceroy.ai/internal/sim/action"
)

const configDir = "../../../configs"

func TestLoad_Configs(t *testing.T) {
	c, err := Load(configDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Actions.Specs) != 11 {
		t.Fatalf("specs=%d want 11", len(c.Actions.Specs))
	}
	for i := 1; i < len(c.Actions.Specs); i++ {
		if c.Actions.Specs[i-1].Kind >= c.Actions.Specs[i].Kind {
			t.Fatalf("specs not sorted at %d: %s >= %s", i, c.Actions.Specs[i-1].Kind, c.Actions.Specs[i].Kind)
		}
	}
	tr, ok := c.Actions.ByKind[action.KindTrade]
	if !ok || !tr.Trades() {
		t.Fatalf("TRADE spec missing or not a trade loop: %+v", tr)
	}
	if c.Actions.Digest == "" || c.Commodities.DefsDigest == "" || c.Commodities.PaletteDigest == "" {
		t.Fatalf("missing digests: %+v", c)
	}
	want := []string{"cloth", "furs", "rum", "sugar", "tobacco"}
	if strings.Join(c.Commodities.Palette, ",") != strings.Join(want, ",") {
		t.Fatalf("palette=%v want %v", c.Commodities.Palette, want)
	}
	if c.Commodities.Index["furs"] != 1 {
		t.Fatalf("furs index=%d want 1", c.Commodities.Index["furs"])
	}
	if c.Commodities.Defs["rum"].BasePrice != 9 {
		t.Fatalf("rum base price=%d", c.Commodities.Defs["rum"].BasePrice)
	}
}

func TestLoad_DigestIsStable(t *testing.T) {
	a, err := Load(configDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := Load(configDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Actions.Digest != b.Actions.Digest || a.Commodities.PaletteDigest != b.Commodities.PaletteDigest {
		t.Fatalf("digests differ between loads")
	}
}

func writeConfigs(t *testing.T, actions, commodities string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "actions.json"), []byte(actions), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "commodities.json"), []byte(commodities), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

const goodCommodities = `[{"id":"furs","base_price":4}]`

func TestLoad_DigestIgnoresFormatting(t *testing.T) {
	actions, err := os.ReadFile(filepath.Join(configDir, "actions.json"))
	if err != nil {
		t.Fatal(err)
	}
	compact := writeConfigs(t, string(actions), goodCommodities)
	spaced := writeConfigs(t, string(actions), "[\n  { \"base_price\": 4,\n    \"id\": \"furs\" }\n]\n")

	a, err := Load(compact)
	if err != nil {
		t.Fatalf("Load compact: %v", err)
	}
	b, err := Load(spaced)
	if err != nil {
		t.Fatalf("Load spaced: %v", err)
	}
	if a.Commodities.DefsDigest != b.Commodities.DefsDigest {
		t.Fatalf("digest changed with formatting: %s vs %s", a.Commodities.DefsDigest, b.Commodities.DefsDigest)
	}
	if a.Actions.Digest != b.Actions.Digest {
		t.Fatalf("same actions file, different digests")
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		name        string
		actions     string
		commodities string
		wantErr     string
	}{
		{
			name:        "negative cost",
			actions:     `[{"kind":"LOAN","name":"Loan","cost":-1,"thresholds":{"success_min":3,"crit_success_min":6}}]`,
			commodities: goodCommodities,
			wantErr:     "actions.json",
		},
		{
			name:        "unknown kind",
			actions:     `[{"kind":"PIRACY","name":"Piracy","cost":0,"thresholds":{"success_min":3,"crit_success_min":6}}]`,
			commodities: goodCommodities,
			wantErr:     "actions.json",
		},
		{
			name:        "unknown field",
			actions:     `[{"kind":"LOAN","name":"Loan","cost":0,"odds":3,"thresholds":{"success_min":3,"crit_success_min":6}}]`,
			commodities: goodCommodities,
			wantErr:     "actions.json",
		},
		{
			name: "duplicate kind",
			actions: `[{"kind":"LOAN","name":"Loan","cost":0,"thresholds":{"success_min":3,"crit_success_min":6}},
				{"kind":"LOAN","name":"Loan again","cost":0,"thresholds":{"success_min":3,"crit_success_min":6}}]`,
			commodities: goodCommodities,
			wantErr:     "duplicate kind LOAN",
		},
		{
			name:        "trade loop without sub roll",
			actions:     `[{"kind":"TRADE","name":"Trade","cost":0,"trade_budget":2,"thresholds":{"success_min":3,"crit_success_min":6}}]`,
			commodities: goodCommodities,
			wantErr:     "sub_roll",
		},
		{
			name:        "zero base price",
			actions:     `[{"kind":"LOAN","name":"Loan","cost":0,"thresholds":{"success_min":3,"crit_success_min":6}}]`,
			commodities: `[{"id":"furs","base_price":0}]`,
			wantErr:     "commodities.json",
		},
		{
			name:        "duplicate commodity",
			actions:     `[{"kind":"LOAN","name":"Loan","cost":0,"thresholds":{"success_min":3,"crit_success_min":6}}]`,
			commodities: `[{"id":"furs","base_price":4},{"id":"furs","base_price":5}]`,
			wantErr:     "duplicate id furs",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeConfigs(t, tc.actions, tc.commodities)
			_, err := Load(dir)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err=%v want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestActionCatalog_Normalize(t *testing.T) {
	c, err := Load(configDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if notes := c.Actions.Normalize(6); len(notes) != 0 {
		t.Fatalf("shipped catalog should already fit a d6: %v", notes)
	}

	notes := c.Actions.Normalize(4)
	if len(notes) == 0 {
		t.Fatalf("expected notes when shrinking to a d4")
	}
	for _, s := range c.Actions.Specs {
		if !s.Thresholds.Valid(4) {
			t.Fatalf("%s thresholds not normalized: %+v", s.Kind, s.Thresholds)
		}
		if c.Actions.ByKind[s.Kind].Thresholds != s.Thresholds {
			t.Fatalf("%s ByKind out of sync", s.Kind)
		}
	}
}
