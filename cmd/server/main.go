package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"viceroy.ai/internal/persistence/archive"
	persistlog "viceroy.ai/internal/persistence/log"
	"viceroy.ai/internal/persistence/objstore"
	"viceroy.ai/internal/persistence/snapshot"
	"viceroy.ai/internal/protocol"
	"viceroy.ai/internal/random"
	"viceroy.ai/internal/sim/catalogs"
	"viceroy.ai/internal/sim/dice"
	"viceroy.ai/internal/sim/tuning"
	"viceroy.ai/internal/sim/world"
	"viceroy.ai/internal/telemetry"
	"viceroy.ai/internal/transport/ws"
)

func main() {
	cfg, err := loadConfig(os.Args[1:], nil)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	_ = os.MkdirAll(cfg.DataDir, 0o755)
	snapDir := filepath.Join(cfg.DataDir, "snapshots")

	snapshotToLoad := strings.TrimSpace(cfg.SnapshotPath)
	if snapshotToLoad == "" && cfg.LoadLatestSnapshot {
		snapshotToLoad = snapshot.Latest(snapDir)
	}
	var resume *snapshot.ColonyV1
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		resume = &snap
	}

	// Tuning is required for a fresh colony; a resume falls back to defaults.
	tune, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		if resume == nil || !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", cfg.TuningPath)
		tune = tuning.Defaults()
	}

	cats, err := catalogs.Load(cfg.ConfigDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	for _, note := range cats.Actions.Normalize(tune.Dice.Sides) {
		logger.Printf("catalogs: %s", note)
	}

	sc, err := world.LoadScenario(cfg.ScenarioPath)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}

	var st *world.State
	var seed int64
	if resume != nil {
		seed = resume.Seed
		if resume.DiceSides != 0 && resume.DiceSides != tune.Dice.Sides {
			logger.Printf("snapshot was played with d%d, tuning says d%d", resume.DiceSides, tune.Dice.Sides)
		}
		if resume.ActionsDigest != "" && resume.ActionsDigest != cats.Actions.Digest {
			logger.Printf("actions catalog changed since snapshot (was %s)", resume.ActionsDigest)
		}
		st = world.RestoreState(*resume, logger)
		logger.Printf("resumed from snapshot=%s turn=%d", filepath.Base(snapshotToLoad), resume.Header.Turn)
	} else {
		seed = cfg.Seed
		if seed == 0 {
			seed = tune.Dice.Seed
		}
		if seed == 0 {
			if seed, err = random.NewSeed(); err != nil {
				logger.Fatalf("seed: %v", err)
			}
		}
		st = world.NewState(logger)
		for id, def := range cats.Commodities.Defs {
			st.SetPrice(id, def.BasePrice)
		}
		sc.Populate(st)
	}
	logger.Printf("seed=%d sides=%d actions=%d", seed, tune.Dice.Sides, len(cats.Actions.Specs))

	ctx, cancel := signalContext()
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, "viceroy-server", cfg.OTelEndpoint)
	if err != nil {
		logger.Fatalf("tracing: %v", err)
	}
	defer func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = shutdownTracing(ctx2)
	}()

	mirror, err := buildMirror(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("init mirror: %v", err)
	}
	defer mirror.Close()

	sessionID := uuid.NewString()
	idx, err := openRuntimeIndex(cfg, sessionID, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(cfg.ConfigDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	actionLog := persistlog.NewActionLogger(cfg.DataDir)
	diversionLog := persistlog.NewDiversionLogger(cfg.DataDir)
	if mirror != nil {
		actionLog.OnClose(mirror.Enqueue)
		diversionLog.OnClose(mirror.Enqueue)
	}
	defer actionLog.Close()
	defer diversionLog.Close()

	snapCh := make(chan snapshot.ColonyV1, 2)
	sess, err := world.NewSession(world.SessionConfig{
		ID:            sessionID,
		Specs:         cats.Actions.Specs,
		Sides:         tune.Dice.Sides,
		Seed:          seed,
		DivertPct:     tune.Ministry.DivertPct,
		Risk:          tune.RiskConfig(),
		Trade:         tune.TradeConfig(),
		Cabinet:       sc.Cabinet(dice.NewSource(seed+2), tune.Ministry.StakeScale),
		Audit:         multiAuditSink{a: actionLog, b: idx},
		Diversions:    multiDiversionSink{a: diversionLog, b: idx},
		Catalogs:      protocol.CatalogDigests{ActionsDigest: cats.Actions.Digest, CommoditiesDigest: cats.Commodities.DefsDigest, TuningDigest: tune.Digest()},
		SnapshotSink:  snapCh,
		SnapshotEvery: cfg.SnapshotEvery,
		Resume:        resume,
	}, st, logger)
	if err != nil {
		logger.Fatalf("session: %v", err)
	}

	var bg sync.WaitGroup
	bg.Add(2)
	go func() {
		defer bg.Done()
		writeSnapshots(ctx, snapCh, cfg, idx, mirror, logger)
	}()
	go func() {
		defer bg.Done()
		if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("session stopped: %v", err)
		}
	}()

	if !cfg.EnableAdminHTTP {
		logger.Printf("admin endpoints disabled (VICEROY_ENABLE_ADMIN_HTTP=false)")
	}
	router := newRouter(routerDeps{
		sess:  sess,
		seed:  seed,
		ws:    ws.NewServer(sess, tune.Session.ClientQueue, logger).WithRateLimit(tune.Session.FramesPerSecond, tune.Session.FrameBurst).Handler(),
		admin: cfg.EnableAdminHTTP,
		pprof: cfg.EnablePprofHTTP,
		extras: func(w http.ResponseWriter) {
			writeIndexMetrics(w, idx)
			writeMirrorMetrics(w, mirror)
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("session %s listening on %s", sess.ID(), cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	cancel()
	bg.Wait()
	if err := diversionLog.Err(); err != nil {
		logger.Printf("diversion log: %v", err)
	}
}

// writeSnapshots persists colony snapshots as the session hands them over,
// then indexes, mirrors and archives them.
func writeSnapshots(ctx context.Context, ch <-chan snapshot.ColonyV1, cfg serverConfig, idx runtimeIndex, mirror *objstore.Mirror, logger *log.Logger) {
	dir := filepath.Join(cfg.DataDir, "snapshots")
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			path := filepath.Join(dir, snapshot.FileName(snap.Header.Turn))
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			if idx != nil {
				idx.RecordSnapshot(path, snap)
			}
			if mirror != nil {
				mirror.Enqueue(path)
			}
			if archived, ok, err := archive.ArchiveTurnSnapshot(cfg.DataDir, path, snap, cfg.ArchiveEvery); err != nil {
				logger.Printf("archive snapshot: %v", err)
			} else if ok && mirror != nil {
				mirror.Enqueue(archived)
				enqueueIfExists(mirror, filepath.Join(filepath.Dir(archived), "meta.json"))
			}
			if n, err := snapshot.Prune(dir, cfg.SnapshotKeep); err != nil {
				logger.Printf("snapshot prune: %v", err)
			} else if n > 0 {
				logger.Printf("pruned %d old snapshots", n)
			}
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
