package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshots", FileName(4))

	in := ColonyV1{
		Header:    Header{SessionID: "s1", Turn: 4},
		Seed:      42,
		DiceSides: 6,
		Treasury:  130,
		Prices:    map[string]int{"furs": 7, "rum": 9},
		Debts:     []DebtV1{{Principal: 1000, InterestPct: 10}},
		Units: []UnitV1{
			{ID: "U1", Kind: "CARAVAN", Name: "Caravan", Pos: [2]int{2, 3}, Movement: 3, MaxMovement: 3, Strength: 1, Goods: map[string]int{"furs": 2}},
		},
		Diversions: []DiversionV1{{Seq: 1, MinisterID: "M2", Office: "TRADE", Amount: 30, ActionID: "a1", TrueRaw: 5}},
		Purses:     map[string]int{"M2": 30},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header.Version != Version || got.Header.Turn != 4 || got.Header.SessionID != "s1" {
		t.Fatalf("header: %+v", got.Header)
	}
	if got.Treasury != 130 || got.Prices["rum"] != 9 || len(got.Debts) != 1 {
		t.Fatalf("economy: %+v", got)
	}
	if len(got.Units) != 1 || got.Units[0].Goods["furs"] != 2 || got.Units[0].Pos != [2]int{2, 3} {
		t.Fatalf("units: %+v", got.Units)
	}
	if got.Purses["M2"] != 30 || len(got.Diversions) != 1 || got.Diversions[0].TrueRaw != 5 {
		t.Fatalf("ministry: %+v %+v", got.Purses, got.Diversions)
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if Latest(dir) != "" {
		t.Fatalf("empty dir should have no latest")
	}
	for _, turn := range []int{2, 10, 9} {
		if err := WriteSnapshot(filepath.Join(dir, FileName(turn)), ColonyV1{Header: Header{Turn: turn}}); err != nil {
			t.Fatalf("write %d: %v", turn, err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "notes.snap.zst"), []byte("x"), 0o644)

	if got, want := Latest(dir), filepath.Join(dir, "10.snap.zst"); got != want {
		t.Fatalf("latest=%s want %s", got, want)
	}
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	for turn := 1; turn <= 5; turn++ {
		if err := WriteSnapshot(filepath.Join(dir, FileName(turn)), ColonyV1{Header: Header{Turn: turn}}); err != nil {
			t.Fatalf("write %d: %v", turn, err)
		}
	}
	n, err := Prune(dir, 2)
	if err != nil || n != 3 {
		t.Fatalf("prune: n=%d err=%v", n, err)
	}
	if got := list(dir); len(got) != 2 || filepath.Base(got[0]) != "4.snap.zst" {
		t.Fatalf("left: %v", got)
	}
	if n, _ := Prune(dir, 0); n != 0 {
		t.Fatalf("keep=0 must not prune")
	}
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.snap.zst")
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected error")
	}
}
