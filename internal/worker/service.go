// Package worker provides the HTTP worker service for the rule intelligence
// platform: case submission, feedback ingestion, rule and statistics queries.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm/logger"

	"github.com/Soham2704/ai-rule-intelligence-platform/internal/adaptive"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/cache"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/config"
	gormdb "github.com/Soham2704/ai-rule-intelligence-platform/internal/db/gorm"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/db/sqlite"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/explain"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/policy"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/rules"
	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// MaxRequestBody bounds incoming request bodies.
	MaxRequestBody = 1 << 20 // 1 MiB
)

// FeedbackHistory extends the adaptive feedback log with the case-level
// query the API serves.
type FeedbackHistory interface {
	adaptive.FeedbackLog
	ForCase(ctx context.Context, caseID string) ([]models.FeedbackEvent, error)
}

// ReportStore persists and serves case reports.
type ReportStore interface {
	Save(ctx context.Context, report *models.CaseReport) error
	GetByCase(ctx context.Context, caseID string) (*models.CaseReport, error)
	ListByProject(ctx context.Context, projectID string) ([]*models.CaseReport, error)
}

// backend bundles one storage backend's concrete stores.
type backend struct {
	ruleSource rules.Source
	segments   adaptive.SegmentStore
	feedback   FeedbackHistory
	reports    ReportStore
	close      func() error
}

// Service is the main worker service orchestrator.
type Service struct {
	// Version of the worker binary
	version string

	// Configuration
	config *config.Config

	// Storage
	backend *backend

	// Domain components
	factStore  *rules.FactStore
	matcher    *rules.Matcher
	scorer     *policy.Scorer
	controller *adaptive.Controller
	explainer  explain.Explainer
	cache      *cache.Cache

	// Coalesces concurrent identical case submissions.
	caseGroup singleflight.Group

	// HTTP server
	router    *chi.Mux
	server    *http.Server
	startTime time.Time

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Initialization state (for deferred init)
	ready     atomic.Bool
	initError error
	initMu    sync.RWMutex
}

// NewService creates a new worker service with deferred initialization.
// The HTTP surface comes up immediately with health endpoints available;
// storage and policy initialization happens in the background.
func NewService(version string) (*Service, error) {
	cfg := config.Get()
	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:   version,
		config:    cfg,
		scorer:    policy.NewScorer(),
		explainer: explain.NewTemplateExplainer(),
		router:    chi.NewRouter(),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	svc.setupMiddleware()
	svc.setupRoutes()

	go svc.initializeAsync()

	return svc, nil
}

// initializeAsync performs heavy initialization in the background.
func (s *Service) initializeAsync() {
	log.Info().Msg("Starting async initialization...")

	if err := config.EnsureDataDir(); err != nil {
		s.setInitError(fmt.Errorf("ensure data dir: %w", err))
		return
	}

	be, err := openBackend(s.config)
	if err != nil {
		s.setInitError(fmt.Errorf("init storage: %w", err))
		return
	}

	factStore := rules.NewFactStore()
	if err := factStore.LoadFromSource(s.ctx, be.ruleSource); err != nil {
		s.setInitError(err)
		return
	}

	table := adaptive.NewTable()
	if err := table.LoadFrom(s.ctx, be.segments); err != nil {
		s.setInitError(fmt.Errorf("load segment weights: %w", err))
		return
	}

	s.initMu.Lock()
	s.backend = be
	s.factStore = factStore
	s.matcher = rules.NewMatcher(factStore)
	s.controller = adaptive.NewController(table, be.segments, be.feedback, s.config.PersistTimeout)
	s.cache = cache.New(s.config.RedisAddr)
	s.initMu.Unlock()

	s.ready.Store(true)
	log.Info().
		Int("rules", factStore.RuleCount()).
		Int("cities", factStore.CityCount()).
		Int("segments", len(table.Cities())).
		Msg("Async initialization complete - service ready")

	// The scorer serves degraded until the watcher finds an artifact.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		watcher := policy.NewWatcher(s.scorer, s.config.PolicyPath)
		if err := watcher.Run(s.ctx); err != nil && s.ctx.Err() == nil {
			log.Error().Err(err).Msg("Policy artifact watcher stopped")
		}
	}()
}

// openBackend selects PostgreSQL when a DSN is configured, otherwise the
// embedded SQLite store.
func openBackend(cfg *config.Config) (*backend, error) {
	if cfg.DatabaseDSN != "" {
		store, err := gormdb.NewStore(gormdb.Config{
			DSN:      cfg.DatabaseDSN,
			MaxConns: cfg.MaxConns,
			LogLevel: logger.Silent,
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Using PostgreSQL storage backend")
		return &backend{
			ruleSource: gormdb.NewRuleStore(store),
			segments:   gormdb.NewSegmentStore(store),
			feedback:   gormdb.NewFeedbackStore(store),
			reports:    gormdb.NewReportStore(store),
			close:      store.Close,
		}, nil
	}

	store, err := sqlite.NewStore(sqlite.StoreConfig{
		Path:     cfg.SQLitePath,
		MaxConns: cfg.MaxConns,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.SQLitePath).Msg("Using embedded SQLite storage backend")
	return &backend{
		ruleSource: sqlite.NewRuleStore(store),
		segments:   sqlite.NewSegmentStore(store),
		feedback:   sqlite.NewFeedbackStore(store),
		reports:    sqlite.NewReportStore(store),
		close:      store.Close,
	}, nil
}

// setupMiddleware configures the middleware stack.
func (s *Service) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
	s.router.Use(middleware.RealIP)
	s.router.Use(MaxBodySize(MaxRequestBody))
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	// Health and version work immediately, even during init.
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/version", s.handleVersion)

	// Readiness check - returns 200 only when fully initialized.
	s.router.Get("/api/ready", s.handleReady)

	// Routes that require storage to be ready.
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireReady)

		r.Post("/api/run_case", s.handleRunCase)
		r.Get("/api/cases/{caseID}", s.handleGetCase)
		r.Get("/api/projects/{projectID}/cases", s.handleProjectCases)

		r.Post("/api/feedback", s.handleFeedback)
		r.Get("/api/feedback/summary", s.handleFeedbackSummary)
		r.Get("/api/feedback/{caseID}", s.handleFeedbackForCase)

		r.Get("/api/rules/{city}", s.handleRulesForCity)
		r.Get("/api/cities/{city}/stats", s.handleCityStats)
	})
}

// Start starts the HTTP server. Initialization continues in the background.
func (s *Service) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.WorkerPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().
		Int("port", s.config.WorkerPort).
		Msg("Worker HTTP server started (initialization in progress)")
	return nil
}

// Stop gracefully shuts the service down.
func (s *Service) Stop(ctx context.Context) error {
	s.cancel()

	var shutdownErr error
	if s.server != nil {
		shutdownErr = s.server.Shutdown(ctx)
	}

	s.wg.Wait()

	s.initMu.RLock()
	be := s.backend
	c := s.cache
	s.initMu.RUnlock()
	if c != nil {
		_ = c.Close()
	}
	if be != nil {
		if err := be.close(); err != nil {
			log.Warn().Err(err).Msg("Error closing storage backend")
		}
	}

	log.Info().Msg("Worker service stopped")
	return shutdownErr
}

// Ready reports whether initialization has completed.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// Router exposes the HTTP handler, for tests.
func (s *Service) Router() http.Handler {
	return s.router
}

// GetInitError returns the initialization error, if any.
func (s *Service) GetInitError() error {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	return s.initError
}

func (s *Service) setInitError(err error) {
	s.initMu.Lock()
	s.initError = err
	s.initMu.Unlock()
	log.Error().Err(err).Msg("Initialization failed")
}
