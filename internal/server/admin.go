package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Trigger starts a job in the background; false means a run was already
// in progress.
type Trigger func(ctx context.Context) bool

// Admin exposes health and manual-trigger endpoints for operators. Jobs
// triggered here run in the background against the server's base context,
// so they survive the HTTP request that started them.
type Admin struct {
	srv *http.Server
}

func NewAdmin(addr string, baseCtx context.Context, aggregate, mine Trigger) *Admin {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/v1/aggregations/run", triggerHandler(baseCtx, "aggregation", aggregate))
	r.Post("/api/v1/mining/run", triggerHandler(baseCtx, "mining", mine))

	return &Admin{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func triggerHandler(baseCtx context.Context, name string, trigger Trigger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !trigger(baseCtx) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"status": "already_running",
				"job":    name,
			})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "started",
			"job":    name,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Writing admin response failed")
	}
}

// ListenAndServe blocks until Shutdown or a listener error.
func (a *Admin) ListenAndServe() error {
	log.Info().Str("addr", a.srv.Addr).Msg("Admin server listening")
	return a.srv.ListenAndServe()
}

func (a *Admin) Shutdown(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}
