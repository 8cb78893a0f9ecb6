// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/duelboard/internal/adapters/repository"
	service "github.com/okian/duelboard/internal/app"
	"github.com/okian/duelboard/internal/domain/model"
	"github.com/okian/duelboard/internal/domain/stats"
	"github.com/okian/duelboard/internal/domain/types"
)

const defaultMaxRankingLimit = 256

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Ingest queues batches for storage.
	Ingest(ctx context.Context, source, validator string, batches []model.BatchReport) (service.IngestResult, error)

	// Read operations expose aggregated battle data.
	Aggregate(ctx context.Context, validator string) (service.AggregateView, error)
	Ranking(ctx context.Context, validator string, limit int) ([]types.Standing, error)
	Availability(ctx context.Context, validator string) ([]stats.Availability, error)
	Tiers(ctx context.Context, hotkey string) (stats.TierReport, error)
	Validators(ctx context.Context) ([]types.ValidatorInfo, error)

	StatsProvider
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxRankingLimit caps the limit accepted by GET /ranking.
func WithMaxRankingLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRankingLimit = n
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps            Dependencies
	maxRankingLimit int

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:            deps,
		maxRankingLimit: defaultMaxRankingLimit,
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /reports", MetricsMiddleware(s.handlePostReports, "reports"))
	mux.HandleFunc("GET /aggregate", MetricsMiddleware(s.handleGetAggregate, "aggregate"))
	mux.HandleFunc("GET /ranking", MetricsMiddleware(s.handleGetRanking, "ranking"))
	mux.HandleFunc("GET /availability", MetricsMiddleware(s.handleGetAvailability, "availability"))
	mux.HandleFunc("GET /validators", MetricsMiddleware(s.handleGetValidators, "validators"))
	mux.HandleFunc("GET /validators/{hotkey}/tiers", MetricsMiddleware(s.handleGetTiers, "tiers"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeOpError maps err onto a status by kind.
func writeOpError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, repository.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
