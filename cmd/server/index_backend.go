package main

import (
	"fmt"
	"log"
	"path/filepath"

	"viceroy.ai/internal/persistence/indexdb"
	"viceroy.ai/internal/persistence/snapshot"
	"viceroy.ai/internal/sim/action"
	"viceroy.ai/internal/sim/catalogs"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/tuning"
)

// runtimeIndex is the optional read model next to the JSONL logs. It never
// feeds back into the session.
type runtimeIndex interface {
	action.AuditSink
	ministry.DiversionSink
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.ColonyV1)
	Close() error
}

func openRuntimeIndex(cfg serverConfig, sessionID string, logger *log.Logger) (runtimeIndex, error) {
	switch cfg.Index.Backend {
	case "", "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(cfg.DataDir, "index", "viceroy.sqlite"))
	case "remote":
		if cfg.Index.URL == "" {
			return nil, fmt.Errorf("VICEROY_INDEX_BACKEND=remote but VICEROY_INDEX_URL is empty")
		}
		return indexdb.OpenRemote(indexdb.RemoteConfig{
			Endpoint:      cfg.Index.URL,
			Token:         cfg.Index.Token,
			SessionID:     sessionID,
			BatchSize:     cfg.Index.BatchSize,
			FlushInterval: cfg.Index.FlushInterval,
			Logger:        logger,
		})
	case "redis":
		if cfg.Index.URL == "" {
			return nil, fmt.Errorf("VICEROY_INDEX_BACKEND=redis but VICEROY_INDEX_URL is empty")
		}
		return indexdb.OpenRedis(indexdb.RedisConfig{
			URL:           cfg.Index.URL,
			SessionID:     sessionID,
			BatchSize:     cfg.Index.BatchSize,
			FlushInterval: cfg.Index.FlushInterval,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Index.Backend)
	}
}

// multiAuditSink writes every record to the action log and the index. The
// log's error is the one reported; the index is best effort.
type multiAuditSink struct {
	a action.AuditSink
	b action.AuditSink
}

func (m multiAuditSink) WriteAction(r action.Record) error {
	var err error
	if m.a != nil {
		err = m.a.WriteAction(r)
	}
	if m.b != nil {
		_ = m.b.WriteAction(r)
	}
	return err
}

type multiDiversionSink struct {
	a ministry.DiversionSink
	b ministry.DiversionSink
}

func (m multiDiversionSink) RecordDiversion(d ministry.Diversion) {
	if m.a != nil {
		m.a.RecordDiversion(d)
	}
	if m.b != nil {
		m.b.RecordDiversion(d)
	}
}
