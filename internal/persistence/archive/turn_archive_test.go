package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"viceroy.ai/internal/persistence/snapshot"
)

func TestArchiveTurnSnapshot(t *testing.T) {
	dataDir := t.TempDir()
	src := filepath.Join(dataDir, "snapshots", snapshot.FileName(10))
	snap := snapshot.ColonyV1{
		Header:     snapshot.Header{SessionID: "s1", Turn: 10},
		Seed:       42,
		Treasury:   250,
		Diversions: []snapshot.DiversionV1{{MinisterID: "M2", Amount: 30}, {MinisterID: "M3", Amount: 5}},
	}
	require.NoError(t, snapshot.WriteSnapshot(src, snap))

	dst, ok, err := ArchiveTurnSnapshot(dataDir, src, snap, 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, filepath.Join(dataDir, "archives", "turn_0010", "10.snap.zst"), dst)

	got, err := snapshot.ReadSnapshot(dst)
	require.NoError(t, err)
	require.Equal(t, 250, got.Treasury)

	raw, err := os.ReadFile(filepath.Join(dataDir, "archives", "turn_0010", "meta.json"))
	require.NoError(t, err)
	var meta TurnArchiveMeta
	require.NoError(t, json.Unmarshal(raw, &meta))
	require.Equal(t, 10, meta.Turn)
	require.Equal(t, 35, meta.Diverted)
	require.Equal(t, "10.snap.zst", meta.Snapshot)
}

func TestArchiveTurnSnapshotSkipsOffTurns(t *testing.T) {
	dataDir := t.TempDir()
	for _, tc := range []struct {
		turn, every int
	}{
		{turn: 7, every: 5},
		{turn: 10, every: 0},
		{turn: 0, every: 5},
	} {
		snap := snapshot.ColonyV1{Header: snapshot.Header{Turn: tc.turn}}
		_, ok, err := ArchiveTurnSnapshot(dataDir, filepath.Join(dataDir, "missing.snap.zst"), snap, tc.every)
		require.NoError(t, err)
		require.False(t, ok, "turn=%d every=%d", tc.turn, tc.every)
	}
	_, err := os.Stat(filepath.Join(dataDir, "archives"))
	require.True(t, os.IsNotExist(err))
}
