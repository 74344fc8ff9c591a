// Package main wires the lead-enrichment service's HTTP surface: routes,
// middleware chain, and the full domain object graph each handler needs.
package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MbInteligen/mbras-c2s-enrichment/api/handlers"
	"github.com/MbInteligen/mbras-c2s-enrichment/config"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/breaker"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/cache"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/metrics"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pipeline"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/pool"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/server"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/storage"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/webhook"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/crm"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/deepenrich"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/taxid"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server owns the complete object graph and the two HTTP listeners
// (application routes and the Prometheus metrics endpoint).
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	db         *gorm.DB

	httpManager    *server.Manager
	metricsManager *server.Manager

	metricsCollector *metrics.Collector
	caches           *cache.Manager
	breaker          *breaker.CircuitBreaker
	store            *storage.Engine
	crmClient        *crm.Client
	taxIDClient      *taxid.Client
	deepClient       *deepenrich.Client
	pipeline         *pipeline.Pipeline
	workers          *pool.GoroutinePool
	ingestor         *webhook.Ingestor
	sweeper          *webhook.ReconcileSweeper

	healthHandler    *handlers.HealthHandler
	customerHandler  *handlers.CustomerHandler
	enrichHandler    *handlers.EnrichHandler
	leadsHandler     *handlers.LeadsHandler
	c2sHandler       *handlers.C2SHandler
	webhookHandler   *handlers.WebhookHandler
	modulesHandler   *handlers.ModulesHandler

	rateLimiterCtx    context.Context
	cancelRateLimiter context.CancelFunc

	wg sync.WaitGroup
}

// NewServer constructs a Server over an already-connected database
// handle. Every other dependency (caches, breaker, provider clients,
// pipeline, worker pool, webhook ingestor) is built from cfg in Start.
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, db *gorm.DB) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		db:         db,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start builds the domain object graph, registers routes, and starts
// both HTTP listeners, all non-blocking.
func (s *Server) Start() error {
	s.buildDependencyGraph()

	if err := s.initHandlers(); err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweeper.Run()
	}()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.Port),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

// buildDependencyGraph constructs the cache manager, circuit breaker,
// party storage engine, outbound provider clients, enrichment pipeline,
// bounded worker pool, webhook ingestor, and reconciliation sweeper.
func (s *Server) buildDependencyGraph() {
	s.metricsCollector = metrics.NewCollector("enrichsvc", s.logger)

	s.caches = cache.NewManager(s.logger)
	s.breaker = breaker.New(breaker.Config{
		OnStateChange: func(from, to breaker.State) {
			s.metricsCollector.RecordCircuitBreakerState("datastore", int(to))
		},
	})
	s.store = storage.New(s.db, s.breaker, s.logger)

	s.crmClient = crm.New(s.cfg.CRM.BaseURL, s.cfg.CRM.Token, s.cfg.CRM.DefaultSeller, s.logger)
	s.taxIDClient = taxid.New(s.cfg.TaxID.BaseURL, s.cfg.TaxID.User, s.cfg.TaxID.Password)
	s.deepClient = deepenrich.New(s.cfg.Enrich.BaseURL, s.cfg.Enrich.APIKey)

	s.pipeline = pipeline.New(pipeline.Config{
		Caches:            s.caches,
		Store:             s.store,
		TaxIDResolver:     s.taxIDClient,
		DeepEnrichment:    s.deepClient,
		CRM:               s.crmClient,
		DescriptionMaxLen: s.cfg.Enrich.DescriptionMaxLength,
		Logger:            s.logger,
	})

	poolCfg := pool.DefaultGoroutinePoolConfig()
	if s.cfg.Worker.PoolSize > 0 {
		poolCfg.MaxWorkers = s.cfg.Worker.PoolSize
	}
	if s.cfg.Worker.QueueSize > 0 {
		poolCfg.QueueSize = s.cfg.Worker.QueueSize
	}
	s.workers = pool.NewGoroutinePool(poolCfg)

	s.ingestor = webhook.New(s.db, s.workers, s.pipeline, s.logger)
	s.sweeper = webhook.NewReconcileSweeper(s.db, webhook.ReconcileConfig{
		Interval: s.cfg.Worker.ReconcileInterval,
		Timeout:  s.cfg.Worker.ReconcileTimeout,
	}, s.logger)
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initHandlers constructs every HTTP handler over the dependency graph
// built by buildDependencyGraph.
func (s *Server) initHandlers() error {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewDatabaseHealthCheck("database", func(ctx context.Context) error {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}))
	s.healthHandler.RegisterCheck(handlers.NewProviderHealthCheck("crm", s.crmClient.HealthCheck))

	s.customerHandler = handlers.NewCustomerHandler(s.store, s.logger)
	s.enrichHandler = handlers.NewEnrichHandler(s.pipeline, s.logger)
	s.leadsHandler = handlers.NewLeadsHandler(s.db, s.crmClient, s.pipeline, s.workers, s.logger)
	s.c2sHandler = handlers.NewC2SHandler(s.crmClient, s.pipeline, s.logger)
	s.webhookHandler = handlers.NewWebhookHandler(s.db, s.ingestor, s.crmClient, s.pipeline, s.workers, s.cfg.Webhook.AdsKey, s.logger)
	s.modulesHandler = handlers.NewModulesHandler(s.deepClient, s.caches, s.logger)

	s.logger.Info("handlers initialized")
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("GET /api/v1/contributor/customer", s.customerHandler.HandleContributorLookup)
	mux.HandleFunc("GET /api/v1/customers/{id}", s.customerHandler.HandleGetByID)
	mux.HandleFunc("POST /api/v1/enrich", s.enrichHandler.HandleEnrich)
	mux.HandleFunc("GET /api/v1/work/modules/{module}", s.modulesHandler.HandleModule)
	mux.HandleFunc("POST /api/v1/leads", s.leadsHandler.HandleCreate)
	mux.HandleFunc("GET /api/v1/leads/process", s.leadsHandler.HandleProcess)
	mux.HandleFunc("POST /api/v1/c2s/enrich/{lead_id}", s.c2sHandler.HandleEnrichLead)

	webhookMux := http.NewServeMux()
	webhookMux.HandleFunc("POST /api/v1/webhooks/c2s", s.webhookHandler.HandleC2S)
	mux.Handle("POST /api/v1/webhooks/c2s", Chain(webhookMux, WebhookAuth("X-Webhook-Token", s.cfg.Webhook.Secret, s.logger)))
	mux.HandleFunc("POST /api/v1/webhooks/google-ads", s.webhookHandler.HandleGoogleAds)

	s.rateLimiterCtx, s.cancelRateLimiter = context.WithCancel(context.Background())

	handler := Chain(mux,
		BodyLimit(),
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		SecurityHeaders(),
		RateLimiter(s.rateLimiterCtx, 10, 10, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.Port),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.Port))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown blocks until the HTTP server's signal handler fires,
// then runs Shutdown.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops the background sweeper, the rate limiter's cleanup
// goroutine, both HTTP listeners, and the worker pool, in that order.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx := context.Background()

	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.cancelRateLimiter != nil {
		s.cancelRateLimiter()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.workers != nil {
		s.workers.Close()
	}
	if s.caches != nil {
		s.caches.Close()
	}

	s.wg.Wait()

	s.logger.Info("graceful shutdown completed")
}
