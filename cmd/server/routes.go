package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"viceroy.ai/internal/sim/world"
)

// sessionAPI is what the HTTP surface reads from the running session.
type sessionAPI interface {
	ID() string
	Do(ctx context.Context, fn func()) error
	Metrics() world.SessionMetrics
	RequestSnapshot(ctx context.Context) (int, error)
}

type routerDeps struct {
	sess   sessionAPI
	seed   int64
	ws     http.Handler
	admin  bool
	pprof  bool
	extras func(http.ResponseWriter) // index and mirror metrics
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		m, err := readMetrics(r.Context(), d.sess)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeSessionMetrics(w, d.sess.ID(), m)
		if d.extras != nil {
			d.extras(w)
		}
	})
	if d.ws != nil {
		r.Handle("/v1/ws", d.ws)
	}

	if d.admin {
		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(loopbackOnly)
			r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
				m, err := readMetrics(r.Context(), d.sess)
				if err != nil {
					http.Error(w, err.Error(), http.StatusServiceUnavailable)
					return
				}
				writeJSON(w, http.StatusOK, struct {
					SessionID string               `json:"session_id"`
					Seed      int64                `json:"seed"`
					Metrics   world.SessionMetrics `json:"metrics"`
				}{d.sess.ID(), d.seed, m})
			})
			r.Get("/ministers/{id}", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				m, err := readMetrics(r.Context(), d.sess)
				if err != nil {
					http.Error(w, err.Error(), http.StatusServiceUnavailable)
					return
				}
				total, ok := m.Diverted[id]
				writeJSON(w, http.StatusOK, map[string]any{"minister_id": id, "diverted_total": total, "implicated": ok})
			})
			r.Post("/snapshot", func(w http.ResponseWriter, r *http.Request) {
				ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
				defer cancel()
				turn, err := d.sess.RequestSnapshot(ctx)
				if err != nil {
					writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "turn": turn, "error": err.Error()})
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true, "turn": turn})
			})
		})
	}

	if d.pprof {
		r.HandleFunc("/debug/pprof/*", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return r
}

func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func readMetrics(ctx context.Context, sess sessionAPI) (world.SessionMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var m world.SessionMetrics
	err := sess.Do(ctx, func() { m = sess.Metrics() })
	return m, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
