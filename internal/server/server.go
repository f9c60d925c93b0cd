// Package server serves built charts over HTTP and refreshes them on a schedule.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/internal/snapshot"
	"github.com/huangsam/chartkit/schema"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ChartBuilder builds chart definitions from specs.
type ChartBuilder interface {
	Build(ctx context.Context, specs ...schema.ChartSpec) ([]schema.ChartDefinition, error)
}

// Server caches the definitions of the last successful build and serves them.
type Server struct {
	builder ChartBuilder
	specs   []schema.ChartSpec
	store   contract.SnapshotStore
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	defs    []schema.ChartDefinition
	index   map[string]int
	runID   string
	builtAt time.Time
	lastErr error

	scheduler *cron.Cron
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for refresh and request events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSnapshotStore persists every refresh and seeds the cache from the latest run.
func WithSnapshotStore(store contract.SnapshotStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithClock sets the clock used to stamp builds.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a server for specs. Nothing is built until Refresh or LoadSnapshot.
func New(builder ChartBuilder, specs []schema.ChartSpec, opts ...Option) *Server {
	s := &Server{
		builder: builder,
		specs:   specs,
		logger:  zap.NewNop(),
		now:     time.Now,
		index:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh rebuilds every chart outside the lock and swaps the cache on success.
// A failed build keeps serving the previous definitions.
func (s *Server) Refresh(ctx context.Context) error {
	builtAt := s.now()
	defs, err := s.builder.Build(ctx, s.specs...)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.logger.Error("chart refresh failed", zap.Error(err))
		return err
	}

	runID := snapshot.NewRunID()
	if s.store != nil {
		if err := s.store.SaveRun(ctx, runID, builtAt, defs); err != nil {
			s.logger.Warn("failed to save snapshot", zap.String("run_id", runID), zap.Error(err))
		}
	}

	s.swap(runID, builtAt, defs)
	s.logger.Info("charts refreshed",
		zap.String("run_id", runID),
		zap.Int("charts", len(defs)),
		zap.Duration("took", s.now().Sub(builtAt)),
	)
	return nil
}

// LoadSnapshot seeds the cache from the latest stored run.
func (s *Server) LoadSnapshot(ctx context.Context) error {
	if s.store == nil {
		return snapshot.ErrNoSnapshots
	}
	runID, defs, err := s.store.LatestRun(ctx)
	if err != nil {
		return err
	}
	s.swap(runID, time.Time{}, defs)
	s.logger.Info("loaded snapshot", zap.String("run_id", runID), zap.Int("charts", len(defs)))
	return nil
}

func (s *Server) swap(runID string, builtAt time.Time, defs []schema.ChartDefinition) {
	index := make(map[string]int, len(defs))
	for i, def := range defs {
		index[def.Spec.Name] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs = defs
	s.index = index
	s.runID = runID
	s.builtAt = builtAt
	s.lastErr = nil
}

// Schedule refreshes the charts on a standard five-field cron spec.
func (s *Server) Schedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	s.scheduler = cron.New()
	if _, err := s.scheduler.AddFunc(spec, func() {
		_ = s.Refresh(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	s.scheduler.Start()
	s.logger.Info("scheduled chart refresh", zap.String("schedule", spec))
	return nil
}

// Stop halts scheduled refreshes and waits for a running one to finish.
func (s *Server) Stop() {
	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
	}
}

// App returns the fiber application with all routes registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/healthz", s.health)
	app.Get("/charts", s.listCharts)
	app.Get("/charts/:name", s.getChart)
	return app
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	app := s.App()
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr)
	}()
	s.logger.Info("serving charts", zap.String("addr", addr))

	select {
	case err := <-errCh:
		s.Stop()
		return err
	case <-ctx.Done():
	}

	s.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) health(c *fiber.Ctx) error {
	s.mu.RLock()
	resp := HealthResponse{
		Status:  "ok",
		Charts:  len(s.defs),
		RunID:   s.runID,
		BuiltAt: s.builtAt,
	}
	if s.lastErr != nil {
		resp.LastError = s.lastErr.Error()
	}
	s.mu.RUnlock()

	if resp.RunID == "" {
		resp.Status = "not_ready"
		return c.Status(http.StatusServiceUnavailable).JSON(resp)
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func (s *Server) listCharts(c *fiber.Ctx) error {
	s.mu.RLock()
	resp := ChartsResponse{
		RunID:   s.runID,
		BuiltAt: s.builtAt,
		Charts:  make([]ChartSummary, 0, len(s.defs)),
	}
	for _, def := range s.defs {
		resp.Charts = append(resp.Charts, summarize(def))
	}
	s.mu.RUnlock()

	return c.Status(http.StatusOK).JSON(resp)
}

// getChart returns a cached definition. ?live=true builds the chart on the
// spot without touching the cache.
func (s *Server) getChart(c *fiber.Ctx) error {
	name := c.Params("name")

	if c.QueryBool("live") {
		return s.buildLive(c, name)
	}

	s.mu.RLock()
	i, ok := s.index[name]
	var def schema.ChartDefinition
	if ok {
		def = s.defs[i]
	}
	s.mu.RUnlock()

	if !ok {
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{
			Error:   "chart_not_found",
			Message: fmt.Sprintf("no chart named %q", name),
		})
	}
	return c.Status(http.StatusOK).JSON(def)
}

func (s *Server) buildLive(c *fiber.Ctx, name string) error {
	for _, spec := range s.specs {
		if spec.Name != name {
			continue
		}
		defs, err := s.builder.Build(c.UserContext(), spec)
		if err != nil {
			return c.Status(statusFor(err)).JSON(ErrorResponse{
				Error:   "build_failed",
				Message: err.Error(),
			})
		}
		return c.Status(http.StatusOK).JSON(defs[0])
	}
	return c.Status(http.StatusNotFound).JSON(ErrorResponse{
		Error:   "chart_not_found",
		Message: fmt.Sprintf("no chart named %q", name),
	})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var dsErr *schema.DataSourceError
	switch {
	case errors.As(err, &dsErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
