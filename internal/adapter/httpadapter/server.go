package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/weather-station-etl/internal/aggregator"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DailyRunner reconstructs one local calendar day on demand.
type DailyRunner interface {
	RunDay(ctx context.Context, day time.Time) (aggregator.Result, error)
}

// Server exposes health, readiness, and metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		mux:    mux,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// HandleDailyReconcile adds POST /reconcile/daily?date=YYYY-MM-DD, which runs
// the daily reconstruction for a day in loc. Without a date it runs yesterday.
func (s *Server) HandleDailyReconcile(runner DailyRunner, loc *time.Location) {
	s.mux.HandleFunc("POST /reconcile/daily", func(w http.ResponseWriter, r *http.Request) {
		day := domain.Now().In(loc).AddDate(0, 0, -1)
		if v := r.URL.Query().Get("date"); v != "" {
			parsed, err := time.ParseInLocation(time.DateOnly, v, loc)
			if err != nil {
				sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
				return
			}
			day = parsed
		}

		res, err := runner.RunDay(r.Context(), day)
		switch {
		case errors.Is(err, domain.ErrDayInProgress):
			sharedobs.WriteJSON(w, http.StatusConflict, map[string]string{"day": res.Day, "error": err.Error()})
			return
		case err != nil:
			s.logger.Error("daily reconcile failed", "day", res.Day, "error", err)
			sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"day": res.Day, "error": err.Error()})
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
			"day":           res.Day,
			"outcome":       res.Outcome,
			"restarts":      res.Summary.Restarts,
			"adjustments":   len(res.Summary.Adjustments),
			"max_corrected": res.Summary.MaxCorrected,
		})
	})
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// AllReady combines readiness checks; the first failure wins.
func AllReady(checkers ...sharedobs.ReadinessChecker) sharedobs.ReadinessChecker {
	return readinessChecks(checkers)
}

type readinessChecks []sharedobs.ReadinessChecker

func (c readinessChecks) CheckReadiness(ctx context.Context) error {
	for _, checker := range c {
		if err := checker.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
