package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version   int    `json:"version"`
	SessionID string `json:"session_id"`
	Turn      int    `json:"turn"`
}

// ColonyV1 is the colony as it stands at the start of a turn. Snapshots are
// only taken between actions, so nothing in flight is ever captured.
type ColonyV1 struct {
	Header Header `json:"header"`

	Seed      int64 `json:"seed"`
	DiceSides int   `json:"dice_sides"`

	// Digests of the catalogs the colony was played with.
	ActionsDigest     string `json:"actions_digest,omitempty"`
	CommoditiesDigest string `json:"commodities_digest,omitempty"`

	Treasury  int            `json:"treasury"`
	Prices    map[string]int `json:"prices"`
	Debts     []DebtV1       `json:"debts,omitempty"`
	Units     []UnitV1       `json:"units"`
	Villages  []VillageV1    `json:"villages,omitempty"`
	Buildings []BuildingV1   `json:"buildings,omitempty"`
	Tiles     []TileV1       `json:"tiles,omitempty"`

	Diversions []DiversionV1 `json:"diversions,omitempty"`
	Purses     map[string]int `json:"purses,omitempty"`
}

type DebtV1 struct {
	Principal   int `json:"principal"`
	InterestPct int `json:"interest_pct"`
}

type UnitV1 struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Name        string         `json:"name"`
	Pos         [2]int         `json:"pos"`
	Movement    int            `json:"movement"`
	MaxMovement int            `json:"max_movement"`
	Strength    int            `json:"strength"`
	Veteran     bool           `json:"veteran,omitempty"`
	Hostile     bool           `json:"hostile,omitempty"`
	Goods       map[string]int `json:"goods,omitempty"`
	Items       map[string]int `json:"items,omitempty"`
}

type VillageV1 struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Pos            [2]int `json:"pos"`
	Aggressiveness int    `json:"aggressiveness"`
	Population     int    `json:"population"`
	Converted      int    `json:"converted"`
}

type BuildingV1 struct {
	Kind  string `json:"kind"`
	Pos   [2]int `json:"pos"`
	Level int    `json:"level"`
}

type TileV1 struct {
	Pos      [2]int `json:"pos"`
	Revealed bool   `json:"revealed,omitempty"`
	Feature  string `json:"feature,omitempty"`
}

type DiversionV1 struct {
	Seq        uint64 `json:"seq"`
	MinisterID string `json:"minister_id"`
	Office     string `json:"office"`
	Amount     int    `json:"amount"`
	Reason     string `json:"reason"`
	ActionID   string `json:"action_id"`
	TrueRaw    int    `json:"true_raw"`
}

// FileName is the snapshot file name for a turn: "<turn>.snap.zst".
func FileName(turn int) string { return fmt.Sprintf("%d.snap.zst", turn) }

// WriteSnapshot stores a JSON header line followed by the gob-encoded
// colony, zstd-compressed. It writes to a temp file and renames so readers
// never see a partial snapshot.
func WriteSnapshot(path string, snap ColonyV1) error {
	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap ColonyV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func ReadSnapshot(path string) (ColonyV1, error) {
	var snap ColonyV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var hdr Header
	if err := json.Unmarshal(line, &hdr); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if hdr.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", hdr.Version)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// Latest returns the highest-turn snapshot in dir, or "" when there is none.
func Latest(dir string) string {
	files := list(dir)
	if len(files) == 0 {
		return ""
	}
	return files[len(files)-1]
}

// Prune removes all but the keep most recent snapshots in dir and returns
// how many were removed.
func Prune(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	files := list(dir)
	removed := 0
	for i := 0; i < len(files)-keep; i++ {
		if err := os.Remove(files[i]); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// list returns the "<turn>.snap.zst" files in dir in turn order.
func list(dir string) []string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	type cand struct {
		turn int
		name string
	}
	var cands []cand
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, ".snap.zst"))
		if err != nil {
			continue
		}
		cands = append(cands, cand{n, name})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].turn < cands[j].turn })
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = filepath.Join(dir, c.name)
	}
	return out
}
