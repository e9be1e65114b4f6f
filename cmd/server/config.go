package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// serverConfig is read from VICEROY_* environment variables; command-line
// flags override it.
type serverConfig struct {
	Addr         string `env:"ADDR" envDefault:":8080"`
	ConfigDir    string `env:"CONFIGS" envDefault:"./configs"`
	DataDir      string `env:"DATA" envDefault:"./data"`
	TuningPath   string `env:"TUNING"`
	ScenarioPath string `env:"SCENARIO"`
	// Seed 0 defers to tuning.yaml; if that is 0 too a random seed is drawn.
	Seed int64 `env:"SEED"`

	SnapshotPath       string `env:"SNAPSHOT"`
	LoadLatestSnapshot bool   `env:"LOAD_LATEST_SNAPSHOT" envDefault:"true"`
	SnapshotEvery      int    `env:"SNAPSHOT_EVERY_TURNS" envDefault:"1"`
	SnapshotKeep       int    `env:"SNAPSHOT_KEEP" envDefault:"20"`
	ArchiveEvery       int    `env:"ARCHIVE_EVERY_TURNS" envDefault:"10"`

	EnableAdminHTTP bool `env:"ENABLE_ADMIN_HTTP" envDefault:"true"`
	EnablePprofHTTP bool `env:"ENABLE_PPROF_HTTP"`

	// OTLP/HTTP traces endpoint, e.g. http://collector:4318/v1/traces.
	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	Index  indexConfig  `envPrefix:"INDEX_"`
	Mirror mirrorConfig `envPrefix:"MIRROR_"`
}

type indexConfig struct {
	// Backend is sqlite, remote, redis or none.
	Backend       string        `env:"BACKEND" envDefault:"sqlite"`
	URL           string        `env:"URL"`
	Token         string        `env:"TOKEN"`
	BatchSize     int           `env:"BATCH_SIZE" envDefault:"128"`
	FlushInterval time.Duration `env:"FLUSH_INTERVAL" envDefault:"500ms"`
}

type mirrorConfig struct {
	Endpoint        string        `env:"ENDPOINT"`
	Bucket          string        `env:"BUCKET"`
	Region          string        `env:"REGION"`
	AccessKeyID     string        `env:"ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"SECRET_ACCESS_KEY"`
	Prefix          string        `env:"PREFIX" envDefault:"viceroy"`
	Workers         int           `env:"WORKERS" envDefault:"2"`
	QueueCapacity   int           `env:"QUEUE_CAPACITY" envDefault:"256"`
	EnqueueWait     time.Duration `env:"ENQUEUE_WAIT" envDefault:"25ms"`
}

func (m mirrorConfig) enabled() bool {
	return strings.TrimSpace(m.Endpoint) != "" || strings.TrimSpace(m.Bucket) != ""
}

func loadConfig(args []string, environ map[string]string) (serverConfig, error) {
	var cfg serverConfig
	opts := env.Options{Prefix: "VICEROY_"}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("env: %w", err)
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address")
	fs.StringVar(&cfg.ConfigDir, "configs", cfg.ConfigDir, "config directory")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "runtime data directory")
	fs.StringVar(&cfg.TuningPath, "tuning", cfg.TuningPath, "path to tuning.yaml (default: <configs>/tuning.yaml)")
	fs.StringVar(&cfg.ScenarioPath, "scenario", cfg.ScenarioPath, "path to scenario.yaml (default: <configs>/scenario.yaml)")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "dice seed (0: tuning.yaml, then random)")
	fs.StringVar(&cfg.SnapshotPath, "snapshot", cfg.SnapshotPath, "path to snapshot to resume from (optional)")
	fs.BoolVar(&cfg.LoadLatestSnapshot, "load_latest_snapshot", cfg.LoadLatestSnapshot, "resume from the latest snapshot in the data dir when -snapshot is empty")
	fs.IntVar(&cfg.SnapshotEvery, "snapshot_every", cfg.SnapshotEvery, "snapshot every N turns (0 disables)")
	fs.StringVar(&cfg.Index.Backend, "index", cfg.Index.Backend, "index backend: sqlite, remote, redis or none")
	fs.StringVar(&cfg.OTelEndpoint, "otel_endpoint", cfg.OTelEndpoint, "OTLP/HTTP traces endpoint (empty disables tracing)")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if cfg.TuningPath == "" {
		cfg.TuningPath = filepath.Join(cfg.ConfigDir, "tuning.yaml")
	}
	if cfg.ScenarioPath == "" {
		cfg.ScenarioPath = filepath.Join(cfg.ConfigDir, "scenario.yaml")
	}
	cfg.Index.Backend = strings.ToLower(strings.TrimSpace(cfg.Index.Backend))
	return cfg, nil
}
