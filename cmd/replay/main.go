package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"viceroy.ai/internal/persistence/indexdb"
	persistlog "viceroy.ai/internal/persistence/log"
	"viceroy.ai/internal/sim/action"
	"viceroy.ai/internal/sim/ministry"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		dbPath  = flag.String("db", "", "sqlite index to cross-check (optional)")
		verbose = flag.Bool("v", false, "print every violation")
	)
	flag.Parse()

	rep := newReport()
	files, err := persistlog.ListFiles(filepath.Join(*dataDir, "actions"), "actions")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list actions:", err)
		os.Exit(1)
	}
	for _, path := range files {
		if err := persistlog.ReadActions(path, func(r action.Record) error {
			rep.check(r)
			return nil
		}); err != nil {
			fmt.Fprintln(os.Stderr, "read actions:", err)
			os.Exit(1)
		}
	}

	fmt.Printf("files=%d rounds=%d falsified=%d violations=%d\n", len(files), rep.Records, rep.Falsified, len(rep.Violations))
	kinds := make([]string, 0, len(rep.Rounds))
	for k := range rep.Rounds {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("  %-14s %d\n", k, rep.Rounds[action.Kind(k)])
	}
	fmt.Println("diverted per minister:")
	for _, id := range sortedKeys(rep.Diverted) {
		fmt.Printf("  %-8s %d\n", id, rep.Diverted[id])
	}

	mismatches := 0
	ledger, err := diversionTotals(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read diversions:", err)
		os.Exit(1)
	}
	if ledger != nil {
		for _, m := range compare(rep.Diverted, ledger) {
			fmt.Println("ledger mismatch:", m)
			mismatches++
		}
	}

	if *dbPath != "" {
		idx, err := indexdb.OpenSQLite(*dbPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open index:", err)
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		totals, err := idx.MinisterTotals(ctx)
		cancel()
		_ = idx.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "index totals:", err)
			os.Exit(1)
		}
		for _, m := range compare(rep.Diverted, totals) {
			fmt.Println("index mismatch:", m)
			mismatches++
		}
	}

	for i, v := range rep.Violations {
		if !*verbose && i >= 20 {
			fmt.Printf("... %d more (use -v)\n", len(rep.Violations)-i)
			break
		}
		fmt.Println("violation:", v)
	}
	if len(rep.Violations) > 0 || mismatches > 0 {
		os.Exit(1)
	}
}

// diversionTotals sums the diversion log per minister. It returns nil when
// there is no log to compare against.
func diversionTotals(dataDir string) (map[string]int, error) {
	files, err := persistlog.ListFiles(filepath.Join(dataDir, "ministry"), "diversions")
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	totals := map[string]int{}
	for _, path := range files {
		if err := persistlog.ReadDiversions(path, func(d ministry.Diversion) error {
			totals[d.MinisterID] += d.Amount
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return totals, nil
}
