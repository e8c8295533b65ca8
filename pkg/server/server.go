// Package server exposes stored opportunities and harvest controls over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/replyradar/internal/scheduler"
	"github.com/elonfeng/replyradar/internal/store"
	"github.com/elonfeng/replyradar/pkg/candidate"
	"github.com/elonfeng/replyradar/pkg/opportunity"
	"github.com/elonfeng/replyradar/pkg/pipeline"
	"github.com/elonfeng/replyradar/pkg/rank"
)

// BatchTrigger runs a harvest batch on demand.
type BatchTrigger interface {
	RunBatch(ctx context.Context) (*pipeline.Batch, error)
}

// Options are the optional collaborators of a Server.
type Options struct {
	Trigger   BatchTrigger
	Evaluator *pipeline.Evaluator
	Metrics   http.Handler
	Logger    logrus.FieldLogger
}

// Server provides the HTTP API.
type Server struct {
	store store.Store
	opts  Options
	port  int
	now   func() time.Time
}

// New creates a new HTTP server.
func New(s store.Store, port int, opts Options) *Server {
	if port == 0 {
		port = 8080
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Server{
		store: s,
		opts:  opts,
		port:  port,
		now:   time.Now,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/opportunities", s.handleOpportunities)
	mux.HandleFunc("GET /api/v1/opportunities/{id}", s.handleOpportunity)
	mux.HandleFunc("POST /api/v1/opportunities/{id}/consume", s.handleConsume)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/seeds", s.handleSeeds)
	mux.HandleFunc("POST /api/v1/harvest", s.handleHarvest)
	mux.HandleFunc("POST /api/v1/score", s.handleScore)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}
	return mux
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.WithField("addr", srv.Addr).Info("replyradar server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListOpts{
		Status:    opportunity.Status(q.Get("status")),
		ValueTier: rank.ValueTier(q.Get("tier")),
		Account:   candidate.NormalizeHandle(q.Get("account")),
		OrderBy:   store.Order(q.Get("order")),
		Limit:     100,
	}
	if v := q.Get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("min_score: %w", err))
			return
		}
		opts.MinScore = f
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		opts.Limit = min(n, 500)
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("since must be an RFC3339 timestamp"))
			return
		}
		opts.Since = t
	}

	ops, err := s.store.ListOpportunities(r.Context(), opts)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  ops,
		"count": len(ops),
	})
}

func (s *Server) handleOpportunity(w http.ResponseWriter, r *http.Request) {
	o, err := s.store.GetOpportunity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleConsume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.MarkConsumed(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	o, err := s.store.GetOpportunity(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": counts})
}

func (s *Server) handleSeeds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.SeedStatOpts{
		Account: candidate.NormalizeHandle(q.Get("account")),
		BatchID: q.Get("batch_id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		opts.Limit = min(n, 500)
	}

	stats, err := s.store.ListSeedStats(r.Context(), opts)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  stats,
		"count": len(stats),
	})
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	if s.opts.Trigger == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("harvesting is not enabled on this server"))
		return
	}

	batch, err := s.opts.Trigger.RunBatch(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"batch_id": batch.ID,
		"stored":   batch.StoredCount(),
		"stats":    batch.Stats,
	})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if s.opts.Evaluator == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("scoring is not enabled on this server"))
		return
	}

	var raw candidate.Raw
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode candidate: %w", err))
		return
	}

	e := s.opts.Evaluator.Evaluate(candidate.Normalize(raw, raw.AuthorHandle, s.now()))
	writeJSON(w, http.StatusOK, map[string]any{
		"evaluation":  e,
		"admitted":    e.Admitted(),
		"drop_reason": e.DropReason(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrBatchRunning):
		return http.StatusConflict
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
