package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"viceroy.ai/internal/persistence/objstore"
)

// buildMirror returns nil when no bucket is configured. A half-configured
// mirror is an error rather than a silent no-op.
func buildMirror(ctx context.Context, cfg serverConfig, logger *log.Logger) (*objstore.Mirror, error) {
	if !cfg.Mirror.enabled() {
		return nil, nil
	}
	client, err := objstore.New(ctx, objstore.Config{
		Endpoint:        cfg.Mirror.Endpoint,
		Bucket:          cfg.Mirror.Bucket,
		Region:          cfg.Mirror.Region,
		AccessKeyID:     cfg.Mirror.AccessKeyID,
		SecretAccessKey: cfg.Mirror.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	m := objstore.NewMirror(client, objstore.MirrorConfig{
		DataDir:       cfg.DataDir,
		Prefix:        cfg.Mirror.Prefix,
		Workers:       cfg.Mirror.Workers,
		QueueCapacity: cfg.Mirror.QueueCapacity,
		EnqueueWait:   cfg.Mirror.EnqueueWait,
		Logger:        logger,
	})
	logger.Printf("mirror enabled bucket=%s prefix=%s workers=%d", cfg.Mirror.Bucket, cfg.Mirror.Prefix, cfg.Mirror.Workers)
	return m, nil
}

func enqueueIfExists(m *objstore.Mirror, path string) {
	if m == nil {
		return
	}
	if _, err := os.Stat(path); err == nil {
		m.Enqueue(path)
	}
}

func writeMirrorMetrics(w io.Writer, m *objstore.Mirror) {
	if m == nil {
		return
	}
	s := m.Stats()
	gauge(w, "viceroy_mirror_queue_depth", "Files waiting to be uploaded.", s.QueueDepth)
	gauge(w, "viceroy_mirror_queue_capacity", "Mirror queue capacity.", s.QueueCapacity)
	counter(w, "viceroy_mirror_enqueued_total", "Files handed to the mirror.", s.EnqueuedTotal)
	counter(w, "viceroy_mirror_dropped_total", "Files dropped because the queue stayed full.", s.DroppedTotal)
	counter(w, "viceroy_mirror_upload_success_total", "Successful uploads.", s.UploadSuccessTotal)
	counter(w, "viceroy_mirror_upload_fail_total", "Uploads that failed after retries.", s.UploadFailTotal)
	gauge(w, "viceroy_mirror_last_success_unix", "Unix time of the last successful upload.", s.LastSuccessUnix)
}

func gauge[T int | int64 | uint64](w io.Writer, name, help string, v T) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, help, name, name, v)
}

func counter(w io.Writer, name, help string, v uint64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
}
