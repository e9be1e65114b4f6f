package indexdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"viceroy.ai/internal/persistence/snapshot"
	"viceroy.ai/internal/sim/action"
	"viceroy.ai/internal/sim/catalogs"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/tuning"
)

// RedisConfig streams index events into one redis stream per session,
// "<prefix>:<session>:events", for live dashboards.
type RedisConfig struct {
	URL           string
	Prefix        string
	SessionID     string
	MaxLen        int64
	BatchSize     int
	FlushInterval time.Duration
	Logger        *log.Logger
}

type RedisIndex struct {
	cfg    RedisConfig
	stream string
	client *redis.Client

	ch   chan remoteEvent
	wg   sync.WaitGroup
	once sync.Once

	closed    atomic.Bool
	dropped   atomic.Uint64
	flushFail atomic.Uint64
	delivered atomic.Uint64
}

func OpenRedis(cfg RedisConfig) (*RedisIndex, error) {
	cfg.SessionID = strings.TrimSpace(cfg.SessionID)
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("empty session id")
	}
	opts, err := redis.ParseURL(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "viceroy"
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 100_000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	d := &RedisIndex{
		cfg:    cfg,
		stream: streamKey(cfg.Prefix, cfg.SessionID),
		client: redis.NewClient(opts),
		ch:     make(chan remoteEvent, 32768),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func streamKey(prefix, sessionID string) string {
	return strings.TrimSuffix(prefix, ":") + ":" + sessionID + ":events"
}

func (d *RedisIndex) Stream() string { return d.stream }

func (d *RedisIndex) Close() error {
	if d == nil {
		return nil
	}
	var err error
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
		err = d.client.Close()
	})
	return err
}

func (d *RedisIndex) Stats() RemoteStats {
	if d == nil {
		return RemoteStats{}
	}
	return RemoteStats{
		QueueDroppedTotal: d.dropped.Load(),
		FlushFailTotal:    d.flushFail.Load(),
		DeliveredTotal:    d.delivered.Load(),
	}
}

func (d *RedisIndex) WriteAction(r action.Record) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	d.enqueue(actionEvent(d.cfg.SessionID, r))
	return nil
}

func (d *RedisIndex) RecordDiversion(div ministry.Diversion) {
	if d == nil || d.closed.Load() {
		return
	}
	d.enqueue(diversionEvent(d.cfg.SessionID, div))
}

func (d *RedisIndex) RecordSnapshot(path string, snap snapshot.ColonyV1) {
	if d == nil || d.closed.Load() {
		return
	}
	d.enqueue(snapshotEvent(d.cfg.SessionID, path, snap))
}

func (d *RedisIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if d == nil || d.closed.Load() || cats == nil {
		return nil
	}
	evs, err := catalogEvents(d.cfg.SessionID, configDir, cats, tune)
	if err != nil {
		return err
	}
	for _, ev := range evs {
		d.enqueue(ev)
	}
	return nil
}

func (d *RedisIndex) enqueue(ev remoteEvent) {
	select {
	case d.ch <- ev:
	default:
		d.dropped.Add(1)
		d.printf("redis index queue full; drop kind=%s", ev.Kind)
	}
}

// loop pipelines one XADD per event. A failed batch is dropped: the stream
// is a live feed and the JSONL logs stay authoritative.
func (d *RedisIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]remoteEvent, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.sendBatch(ctx, batch); err != nil {
			d.flushFail.Add(1)
			d.dropped.Add(uint64(len(batch)))
			d.printf("redis index flush failed batch=%d err=%v", len(batch), err)
		} else {
			d.delivered.Add(uint64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *RedisIndex) sendBatch(ctx context.Context, events []remoteEvent) error {
	pipe := d.client.Pipeline()
	for _, ev := range events {
		args, err := xaddArgs(d.stream, d.cfg.MaxLen, ev)
		if err != nil {
			return err
		}
		pipe.XAdd(ctx, args)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func xaddArgs(stream string, maxLen int64, ev remoteEvent) (*redis.XAddArgs, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", ev.Kind, err)
	}
	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{
			"kind":       ev.Kind,
			"session_id": ev.SessionID,
			"payload":    string(payload),
		},
	}, nil
}

func (d *RedisIndex) printf(format string, args ...any) {
	if d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
