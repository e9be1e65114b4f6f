package indexdb

import (
	"encoding/json"
	"os"
	"path/filepath"

	"viceroy.ai/internal/sim/catalogs"
	"viceroy.ai/internal/sim/tuning"
)

type catalogRow struct {
	name   string
	digest string
	data   []byte
}

// catalogRows collects the catalogs the session runs with: raw config files
// where available, canonical JSON otherwise, and the applied tuning.
func catalogRows(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) ([]catalogRow, error) {
	raw := map[string][]byte{}
	read := func(name, path string) {
		b, err := os.ReadFile(path)
		if err != nil {
			return
		}
		raw[name] = b
	}
	if configDir != "" {
		read("actions", filepath.Join(configDir, "actions.json"))
		read("commodities", filepath.Join(configDir, "commodities.json"))
	}

	var rows []catalogRow
	if b := raw["actions"]; len(b) > 0 {
		rows = append(rows, catalogRow{name: "actions", digest: cats.Actions.Digest, data: b})
	} else if b, err := json.Marshal(cats.Actions.Specs); err == nil {
		rows = append(rows, catalogRow{name: "actions", digest: cats.Actions.Digest, data: b})
	}
	if b := raw["commodities"]; len(b) > 0 {
		rows = append(rows, catalogRow{name: "commodities", digest: cats.Commodities.DefsDigest, data: b})
	}
	if b, err := json.Marshal(cats.Commodities.Palette); err == nil && len(b) > 0 {
		rows = append(rows, catalogRow{name: "commodities_palette", digest: cats.Commodities.PaletteDigest, data: b})
	}

	b, err := json.Marshal(tune)
	if err != nil {
		return nil, err
	}
	rows = append(rows, catalogRow{name: "tuning", digest: tune.Digest(), data: b})

	out := rows[:0]
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.data) == 0 {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
