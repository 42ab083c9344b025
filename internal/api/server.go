package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/adcasthq/adcast/internal/allocation"
	"github.com/adcasthq/adcast/internal/analytics"
	"github.com/adcasthq/adcast/internal/config"
	"github.com/adcasthq/adcast/internal/db"
	"github.com/adcasthq/adcast/internal/middleware"
	"github.com/adcasthq/adcast/internal/models"
	"github.com/adcasthq/adcast/internal/observability"
)

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger    *zap.Logger
	Store     models.InventoryStore
	PG        *db.Postgres
	Redis     *db.RedisStore
	Analytics analytics.AnalyticsService
	Resolver  *allocation.Resolver
	Allocator *allocation.Allocator
	Metrics   observability.MetricsRegistry
	Config    config.Config
}

// NewServer constructs a Server. The resolver and allocator are built over
// the given store.
func NewServer(logger *zap.Logger, store models.InventoryStore, pg *db.Postgres, rs *db.RedisStore, an analytics.AnalyticsService, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	resolver := allocation.NewResolver(store, logger)
	return &Server{
		Logger:    logger,
		Store:     store,
		PG:        pg,
		Redis:     rs,
		Analytics: an,
		Resolver:  resolver,
		Allocator: allocation.NewAllocator(resolver, logger),
		Metrics:   metrics,
		Config:    cfg,
	}
}

// Router builds the HTTP routes with tracing and metrics instrumentation.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(s.Logger))
	r.Use(s.instrument)

	r.Handle("/api/v1/allocations/preview",
		otelhttp.NewHandler(http.HandlerFunc(s.HandleAllocationPreview), "allocation_preview")).Methods(http.MethodPost)
	r.Handle("/api/v1/availability",
		otelhttp.NewHandler(http.HandlerFunc(s.HandleAvailability), "availability")).Methods(http.MethodGet)
	r.Handle("/api/v1/availability/day",
		otelhttp.NewHandler(http.HandlerFunc(s.HandleMultiSpotAllowance), "availability_day")).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.HandleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// instrument records request counts and latency per route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}
		s.Metrics.IncrementRequests(endpoint, r.Method, http.StatusText(rec.status))
		s.Metrics.RecordRequestLatency(endpoint, r.Method, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
