package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"viceroy.ai/internal/persistence/snapshot"
)

type TurnArchiveMeta struct {
	Turn      int    `json:"turn"`
	SessionID string `json:"session_id"`
	Seed      int64  `json:"seed"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
	Treasury  int    `json:"treasury"`
	Diverted  int    `json:"diverted_total"`
}

// ArchiveTurnSnapshot copies the snapshot of every everyTurns-th turn into
// `dataDir/archives/turn_<NNNN>/` next to a meta.json summary. Snapshots in
// dataDir/snapshots are pruned by the server; archives are kept.
func ArchiveTurnSnapshot(dataDir, snapshotPath string, snap snapshot.ColonyV1, everyTurns int) (archivedPath string, archived bool, err error) {
	turn := snap.Header.Turn
	if everyTurns <= 0 || turn <= 0 || turn%everyTurns != 0 {
		return "", false, nil
	}

	dir := filepath.Join(dataDir, "archives", fmt.Sprintf("turn_%04d", turn))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}
	dst := filepath.Join(dir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := TurnArchiveMeta{
		Turn:      turn,
		SessionID: snap.Header.SessionID,
		Seed:      snap.Seed,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Treasury:  snap.Treasury,
	}
	for _, d := range snap.Diversions {
		meta.Diverted += d.Amount
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
	}
	return dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
