package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"viceroy.ai/internal/persistence/archive"
	"viceroy.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints one line per snapshot and archived turn on disk.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	archives := fs.Bool("archives", false, "list archive metadata instead of snapshot files")
	_ = fs.Parse(args)

	list := listSnapshots
	if *archives {
		list = listArchives
	}
	if err := list(os.Stdout, *dataDir); err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
}

type snapshotLine struct {
	path string
	snap snapshot.ColonyV1
}

func listSnapshots(w io.Writer, dataDir string) error {
	var paths []string
	for _, pattern := range []string{
		filepath.Join(dataDir, "snapshots", "*.snap.zst"),
		filepath.Join(dataDir, "archives", "turn_*", "*.snap.zst"),
	} {
		m, err := filepath.Glob(pattern)
		if err != nil {
			return err
		}
		paths = append(paths, m...)
	}
	var lines []snapshotLine
	for _, p := range paths {
		snap, err := snapshot.ReadSnapshot(p)
		if err != nil {
			fmt.Fprintf(w, "%s\tunreadable: %v\n", p, err)
			continue
		}
		lines = append(lines, snapshotLine{p, snap})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].snap.Header.Turn != lines[j].snap.Header.Turn {
			return lines[i].snap.Header.Turn < lines[j].snap.Header.Turn
		}
		return lines[i].path < lines[j].path
	})
	for _, l := range lines {
		diverted := 0
		for _, d := range l.snap.Diversions {
			diverted += d.Amount
		}
		kind := "snapshot"
		if strings.Contains(filepath.ToSlash(l.path), "/archives/") {
			kind = "archive"
		}
		fmt.Fprintf(w, "turn=%d\t%s\ttreasury=%d\tunits=%d\tdiverted=%d\t%s\n",
			l.snap.Header.Turn, kind, l.snap.Treasury, len(l.snap.Units), diverted, l.path)
	}
	return nil
}

// listArchives prints the meta.json of every archived turn.
func listArchives(w io.Writer, dataDir string) error {
	metas, err := filepath.Glob(filepath.Join(dataDir, "archives", "turn_*", "meta.json"))
	if err != nil {
		return err
	}
	sort.Strings(metas)
	for _, p := range metas {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		var m archive.TurnArchiveMeta
		if err := json.Unmarshal(b, &m); err != nil {
			fmt.Fprintf(w, "%s\tbad meta: %v\n", p, err)
			continue
		}
		fmt.Fprintf(w, "turn=%d\tsession=%s\tseed=%d\ttreasury=%d\tdiverted=%d\tcreated=%s\n",
			m.Turn, m.SessionID, m.Seed, m.Treasury, m.Diverted, m.CreatedAt)
	}
	return nil
}
