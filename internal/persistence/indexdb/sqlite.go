package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"viceroy.ai/internal/persistence/snapshot"
	"viceroy.ai/internal/sim/action"
	"viceroy.ai/internal/sim/catalogs"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary copy of the audit trail. Writes are
// queued to a single goroutine and committed in batches; the JSONL logs stay
// the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAction    atomic.Uint64
	dropDiversion atomic.Uint64
	dropSnapshot  atomic.Uint64
}

type Stats struct {
	DropActionTotal    uint64
	DropDiversionTotal uint64
	DropSnapshotTotal  uint64
	QueueDepth         int
	QueueCapacity      int
}

type reqKind int

const (
	reqAction reqKind = iota + 1
	reqDiversion
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	action    action.Record
	diversion ministry.Diversion
	snapshot  snapshotRow
	done      chan struct{}
}

type snapshotRow struct {
	turn      int
	sessionID string
	path      string
	treasury  int
	diverted  int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			action_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			kind TEXT NOT NULL,
			unit_id TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			modifier INTEGER NOT NULL,
			tier TEXT NOT NULL,
			reported_raw INTEGER NOT NULL,
			reported TEXT NOT NULL,
			true_raw INTEGER NOT NULL,
			true_outcome TEXT NOT NULL,
			diverted INTEGER NOT NULL,
			minister_id TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (action_id, round)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_unit ON actions(unit_id, recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_kind ON actions(kind, recorded_at);`,
		`CREATE TABLE IF NOT EXISTS diversions (
			seq INTEGER PRIMARY KEY,
			minister_id TEXT NOT NULL,
			office TEXT NOT NULL,
			amount INTEGER NOT NULL,
			reason TEXT,
			action_id TEXT,
			true_raw INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_diversions_minister ON diversions(minister_id);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			turn INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL,
			path TEXT NOT NULL,
			treasury INTEGER NOT NULL,
			diverted_total INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropActionTotal:    s.dropAction.Load(),
		DropDiversionTotal: s.dropDiversion.Load(),
		DropSnapshotTotal:  s.dropSnapshot.Load(),
		QueueDepth:         len(s.ch),
		QueueCapacity:      cap(s.ch),
	}
}

func (s *SQLiteIndex) WriteAction(r action.Record) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAction, action: r}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropAction.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordDiversion(d ministry.Diversion) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqDiversion, diversion: d}:
	default:
		s.dropDiversion.Add(1)
	}
}

// RecordSnapshot notes where the colony snapshot of a turn was written.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.ColonyV1) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: snapshotRowOf(path, snap)}:
	default:
		s.dropSnapshot.Add(1)
	}
}

func snapshotRowOf(path string, snap snapshot.ColonyV1) snapshotRow {
	row := snapshotRow{turn: snap.Header.Turn, sessionID: snap.Header.SessionID, path: path, treasury: snap.Treasury}
	for _, d := range snap.Diversions {
		row.diverted += d.Amount
	}
	return row
}

// Flush commits everything queued so far. It blocks until the writer has
// caught up or ctx ends.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MinisterTotals sums diverted value per minister.
func (s *SQLiteIndex) MinisterTotals(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT minister_id, SUM(amount) FROM diversions GROUP BY minister_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var id string
		var total int
		if err := rows.Scan(&id, &total); err != nil {
			return nil, err
		}
		out[id] = total
	}
	return out, rows.Err()
}

// CountActions returns the number of indexed rolls per action kind.
func (s *SQLiteIndex) CountActions(ctx context.Context) (map[action.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM actions GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[action.Kind]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[action.Kind(kind)] = n
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil || cats == nil {
		return nil
	}
	rows, err := catalogRows(configDir, cats, tune)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.data), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAction, _ := s.db.Prepare(`INSERT OR REPLACE INTO actions(action_id,round,kind,unit_id,recorded_at,modifier,tier,reported_raw,reported,true_raw,true_outcome,diverted,minister_id,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertDiversion, _ := s.db.Prepare(`INSERT OR REPLACE INTO diversions(seq,minister_id,office,amount,reason,action_id,true_raw,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(turn,session_id,path,treasury,diverted_total,recorded_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
		if insertAction != nil {
			_ = insertAction.Close()
		}
		if insertDiversion != nil {
			_ = insertDiversion.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAction:
			a := r.action
			raw, _ := json.Marshal(a)
			if insertAction != nil {
				if _, err := tx.Stmt(insertAction).Exec(
					a.ActionID,
					a.Round,
					string(a.Kind),
					a.UnitID,
					a.Time.UTC().Format(time.RFC3339Nano),
					a.Modifier,
					a.Tier,
					a.Reported.Raw,
					a.Reported.Label(),
					a.True.Raw,
					a.True.Label(),
					a.Diverted,
					a.MinisterID,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqDiversion:
			d := r.diversion
			if insertDiversion != nil {
				if _, err := tx.Stmt(insertDiversion).Exec(
					int64(d.Seq),
					d.MinisterID,
					string(d.Office),
					d.Amount,
					d.Reason,
					d.ActionID,
					d.TrueRaw,
					time.Now().UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					sn.turn,
					sn.sessionID,
					sn.path,
					sn.treasury,
					sn.diverted,
					time.Now().UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
