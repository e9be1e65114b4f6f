package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const dbUsage = "usage: admin db [-data ./data|-db PATH] [-unit U1] [-minister M1] [-limit N] totals|actions|diversions|snapshots"

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (defaults to <data>/index/viceroy.sqlite)")
	unitID := fs.String("unit", "", "unit_id filter (actions)")
	ministerID := fs.String("minister", "", "minister_id filter (diversions)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "totals"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "viceroy.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	f := dbFilter{Unit: strings.TrimSpace(*unitID), Minister: strings.TrimSpace(*ministerID), Limit: *limit}
	if err := runQuery(os.Stdout, db, q, f); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, dbUsage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type dbFilter struct {
	Unit     string
	Minister string
	Limit    int
}

func runQuery(w io.Writer, db *sql.DB, q string, f dbFilter) error {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	switch q {
	case "totals":
		rows, err := db.Query(`SELECT minister_id, office, SUM(amount), COUNT(*) FROM diversions GROUP BY minister_id, office ORDER BY SUM(amount) DESC, minister_id`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				MinisterID string `json:"minister_id"`
				Office     string `json:"office"`
				Total      int    `json:"total"`
				Count      int    `json:"count"`
			}
			if err := rows.Scan(&r.MinisterID, &r.Office, &r.Total, &r.Count); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(w, r)
		}
		return rows.Err()

	case "actions":
		sqlq := `SELECT action_id,round,kind,unit_id,recorded_at,modifier,tier,reported_raw,reported,true_raw,true_outcome,diverted,COALESCE(minister_id,'') FROM actions`
		var args []any
		if f.Unit != "" {
			sqlq += ` WHERE unit_id=?`
			args = append(args, f.Unit)
		}
		sqlq += ` ORDER BY recorded_at DESC, round DESC LIMIT ?`
		args = append(args, f.Limit)
		rows, err := db.Query(sqlq, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				ActionID    string `json:"action_id"`
				Round       int    `json:"round"`
				Kind        string `json:"kind"`
				UnitID      string `json:"unit_id"`
				RecordedAt  string `json:"recorded_at"`
				Modifier    int    `json:"modifier"`
				Tier        string `json:"tier"`
				ReportedRaw int    `json:"reported_raw"`
				Reported    string `json:"reported"`
				TrueRaw     int    `json:"true_raw"`
				TrueOutcome string `json:"true_outcome"`
				Diverted    int    `json:"diverted"`
				MinisterID  string `json:"minister_id,omitempty"`
			}
			if err := rows.Scan(&r.ActionID, &r.Round, &r.Kind, &r.UnitID, &r.RecordedAt, &r.Modifier, &r.Tier,
				&r.ReportedRaw, &r.Reported, &r.TrueRaw, &r.TrueOutcome, &r.Diverted, &r.MinisterID); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(w, r)
		}
		return rows.Err()

	case "diversions":
		sqlq := `SELECT seq,minister_id,office,amount,COALESCE(reason,''),COALESCE(action_id,''),true_raw,recorded_at FROM diversions`
		var args []any
		if f.Minister != "" {
			sqlq += ` WHERE minister_id=?`
			args = append(args, f.Minister)
		}
		sqlq += ` ORDER BY seq DESC LIMIT ?`
		args = append(args, f.Limit)
		rows, err := db.Query(sqlq, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Seq        int64  `json:"seq"`
				MinisterID string `json:"minister_id"`
				Office     string `json:"office"`
				Amount     int    `json:"amount"`
				Reason     string `json:"reason,omitempty"`
				ActionID   string `json:"action_id,omitempty"`
				TrueRaw    int    `json:"true_raw"`
				RecordedAt string `json:"recorded_at"`
			}
			if err := rows.Scan(&r.Seq, &r.MinisterID, &r.Office, &r.Amount, &r.Reason, &r.ActionID, &r.TrueRaw, &r.RecordedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(w, r)
		}
		return rows.Err()

	case "snapshots":
		rows, err := db.Query(`SELECT turn,session_id,path,treasury,diverted_total,recorded_at FROM snapshots ORDER BY turn DESC LIMIT ?`, f.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Turn       int    `json:"turn"`
				SessionID  string `json:"session_id"`
				Path       string `json:"path"`
				Treasury   int    `json:"treasury"`
				Diverted   int    `json:"diverted_total"`
				RecordedAt string `json:"recorded_at"`
			}
			if err := rows.Scan(&r.Turn, &r.SessionID, &r.Path, &r.Treasury, &r.Diverted, &r.RecordedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(w, r)
		}
		return rows.Err()
	}
	return fmt.Errorf("unknown query: %s", q)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
