// Package api serves the evshift admin HTTP surface.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/balkashynov/evshift/internal/models"
	"github.com/balkashynov/evshift/internal/reconciler"
)

const shutdownTimeout = 10 * time.Second

// ShiftService is the part of the store the handlers use
type ShiftService interface {
	CreateShift(ctx context.Context, req models.CreateShiftRequest) (*models.Shift, error)
	GetShift(ctx context.Context, id uint) (*models.Shift, error)
	ListShifts(ctx context.Context, opts models.ListOptions) ([]models.Shift, error)
	AssignShift(ctx context.Context, id uint, req models.AssignRequest) (*models.Shift, error)
	CancelShift(ctx context.Context, id uint, note string) (*models.Shift, error)
	SetEndTime(ctx context.Context, id uint, end time.Time) (*models.Shift, error)
	DeleteShift(ctx context.Context, id uint) error
	Describe() string
}

// PassRunner triggers an on-demand reconciliation pass
type PassRunner interface {
	RunOnce(ctx context.Context) (reconciler.Report, error)
}

type Server struct {
	shifts   ShiftService
	passes   PassRunner
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewServer wires the handlers. A nil gatherer serves the default registry.
func NewServer(shifts ShiftService, passes PassRunner, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		shifts:   shifts,
		passes:   passes,
		gatherer: gatherer,
		logger:   logger.Named("api"),
	}
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/shifts", func(r chi.Router) {
		r.Get("/", s.handleListShifts)
		r.Post("/", s.handleCreateShift)
		r.Route("/{shiftId}", func(r chi.Router) {
			r.Get("/", s.handleGetShift)
			r.Delete("/", s.handleDeleteShift)
			r.Post("/assign", s.handleAssignShift)
			r.Post("/cancel", s.handleCancelShift)
			r.Put("/end-time", s.handleSetEndTime)
		})
	})

	r.Post("/reconcile", s.handleReconcile)

	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving admin API", zap.String("addr", addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("gracefully stopping admin API")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
