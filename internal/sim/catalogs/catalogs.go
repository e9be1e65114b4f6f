package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gowebpki/jcs"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"viceroy.ai/internal/sim/action"
)

//go:embed schemas/*.json
var schemaFS embed.FS

type Catalogs struct {
	Actions     ActionCatalog
	Commodities CommodityCatalog
}

type ActionCatalog struct {
	Specs  []action.Spec
	ByKind map[action.Kind]action.Spec
	Digest string
}

type CommodityCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]CommodityDef
	DefsDigest    string
	PaletteDigest string
}

type CommodityDef struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	BasePrice int    `json:"base_price"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadActions(filepath.Join(configDir, "actions.json"), &c.Actions); err != nil {
		return nil, err
	}
	if err := loadCommodities(filepath.Join(configDir, "commodities.json"), &c.Commodities); err != nil {
		return nil, err
	}
	return &c, nil
}

// Normalize clamps every action's thresholds to a die with the given number
// of sides and returns a note for each spec that had to change.
func (a *ActionCatalog) Normalize(sides int) []string {
	var notes []string
	for i, s := range a.Specs {
		th := s.Thresholds.Normalize(sides)
		if th != s.Thresholds {
			notes = append(notes, fmt.Sprintf("%s thresholds %+v normalized to %+v", s.Kind, s.Thresholds, th))
			s.Thresholds = th
		}
		if s.Trades() {
			sub := s.SubRoll.Normalize(sides)
			if sub != s.SubRoll {
				notes = append(notes, fmt.Sprintf("%s sub_roll %+v normalized to %+v", s.Kind, s.SubRoll, sub))
				s.SubRoll = sub
			}
		}
		a.Specs[i] = s
		a.ByKind[s.Kind] = s
	}
	return notes
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// canonicalDigest hashes the RFC 8785 form of raw, so reformatting a config
// file does not change the digest clients compare against.
func canonicalDigest(file string, raw []byte) (string, error) {
	c, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("%s: canonicalize: %w", file, err)
	}
	return sha256Hex(c), nil
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, err
	}
	return jsonschema.CompileString(name, string(raw))
}

// validate checks raw against the embedded schema before any decoding, so a
// malformed file is reported with the offending JSON pointer.
func validate(file, schema string, raw []byte) error {
	s, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("%s: schema: %w", file, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	return nil
}

func loadActions(path string, out *ActionCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := validate("actions.json", "actions.schema.json", raw); err != nil {
		return err
	}
	if out.Digest, err = canonicalDigest("actions.json", raw); err != nil {
		return err
	}

	var specs []action.Spec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return fmt.Errorf("actions.json: %w", err)
	}
	out.ByKind = map[action.Kind]action.Spec{}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("actions.json: %w", err)
		}
		if _, dup := out.ByKind[s.Kind]; dup {
			return fmt.Errorf("actions.json: duplicate kind %s", s.Kind)
		}
		out.ByKind[s.Kind] = s
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Kind < specs[j].Kind })
	out.Specs = specs
	return nil
}

func loadCommodities(path string, out *CommodityCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := validate("commodities.json", "commodities.schema.json", raw); err != nil {
		return err
	}
	if out.DefsDigest, err = canonicalDigest("commodities.json", raw); err != nil {
		return err
	}

	var defs []CommodityDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("commodities.json: %w", err)
	}
	out.Defs = map[string]CommodityDef{}
	for _, d := range defs {
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("commodities.json: duplicate id %s", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}
