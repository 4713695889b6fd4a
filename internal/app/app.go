// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/erp-gateway-go/internal/buildinfo"
	"github.com/garyellow/erp-gateway-go/internal/config"
	"github.com/garyellow/erp-gateway-go/internal/csvimport"
	"github.com/garyellow/erp-gateway-go/internal/gateway"
	"github.com/garyellow/erp-gateway-go/internal/i18n"
	"github.com/garyellow/erp-gateway-go/internal/logger"
	"github.com/garyellow/erp-gateway-go/internal/metrics"
	"github.com/garyellow/erp-gateway-go/internal/prefs"
	"github.com/garyellow/erp-gateway-go/internal/r2client"
	"github.com/garyellow/erp-gateway-go/internal/resources"
	"github.com/garyellow/erp-gateway-go/internal/seeds"
	"github.com/garyellow/erp-gateway-go/internal/sentry"
	"github.com/garyellow/erp-gateway-go/internal/stream"
	"github.com/garyellow/erp-gateway-go/internal/upstream"
)

// leadsPath is the resource that accepts CSV imports.
const leadsPath = "/crm/leads"

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	db             *prefs.DB
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	upstream       *upstream.Client
	catalog        *seeds.Catalog
	syncer         *seeds.Syncer // nil when R2 overrides are disabled
	readinessState *seeds.ReadinessState
	hub            *stream.Hub
	generator      *stream.Generator
	server         *http.Server
	wg             sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	var opts logger.Options
	if cfg.BetterStackEnabled {
		opts.BetterStackToken = cfg.BetterStackToken
	}
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, opts)

	log = log.WithField("service", "erp-gateway")
	instanceID := cfg.InstanceID
	if instanceID == "" {
		if host, err := os.Hostname(); err == nil {
			instanceID = host
		}
	}
	if instanceID != "" {
		log = log.WithField("instance_id", instanceID)
	}

	// Package-level slog.*Context calls pick up request, session and org ids.
	slog.SetDefault(log.Logger)

	log.WithField("environment", cfg.Environment).Info("Initializing application...")
	if opts.BetterStackToken != "" {
		log.Info("Better Stack logging enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)
	metrics.RegisterLogDrops(registry, log.ShippingDrops)

	if cfg.SentryEnabled {
		err := sentry.Initialize(sentry.Config{
			DSN:         cfg.SentryDSN,
			Environment: cfg.Environment,
			Release:     buildinfo.Version,
			ServerName:  instanceID,
			SampleRate:  cfg.SentrySampleRate,
		})
		if err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
		log.Info("Sentry error tracking enabled")
	}

	db, err := prefs.Open(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("preferences: %w", err)
	}
	log.WithField("path", db.Path()).Info("Preference database opened")

	catalog, err := resources.NewCatalog()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seeds: %w", err)
	}

	readiness := seeds.NewReadinessState(cfg.SeedGracePeriod)
	var syncer *seeds.Syncer
	if cfg.R2Enabled {
		store, err := r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.R2Endpoint(),
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretAccessKey,
			BucketName:  cfg.R2BucketName,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("r2: %w", err)
		}
		syncer = seeds.NewSyncer(store, catalog, cfg.SeedPrefix, config.SeedSyncTimeout, readiness, m, log)
		log.WithField("bucket", cfg.R2BucketName).Info("Seed overrides enabled")
	} else {
		readiness.MarkReady()
	}

	client := upstream.NewClient(cfg.APIBaseURL, cfg.UpstreamTimeout, config.UpstreamIdleConn)
	if client.Configured() {
		log.WithField("base_url", cfg.APIBaseURL).Info("Upstream configured")
	} else {
		log.Info("No upstream configured, serving fallback data only")
	}

	fallbackLocale, err := i18n.ParseLocale(cfg.DefaultLocale)
	if err != nil {
		log.WithField("locale", cfg.DefaultLocale).Warn("Unsupported default locale, using English")
		fallbackLocale = i18n.DefaultLocale
	}
	bundle, err := i18n.LoadEmbedded()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("i18n: %w", err)
	}
	for l, loadErr := range bundle.Failed() {
		log.WithError(loadErr).WithField("locale", string(l)).Warn("Translation bundle failed to load, using default")
	}
	translator := i18n.NewTranslator(bundle, m, log, cfg.IsProduction())

	hub := stream.NewHub(m)
	generator := stream.NewGenerator(hub, catalog, resources.OpportunityStages, uint64(time.Now().UnixNano()), log)

	gw := gateway.New(gateway.Config{
		Upstream: client,
		Catalog:  catalog,
		Metrics:  m,
		Logger:   log,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.SentryEnabled {
		router.Use(sentry.Middleware())
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(log, m))

	app := &Application{
		cfg:            cfg,
		logger:         log,
		db:             db,
		metrics:        m,
		registry:       registry,
		upstream:       client,
		catalog:        catalog,
		syncer:         syncer,
		readinessState: readiness,
		hub:            hub,
		generator:      generator,
	}

	router.GET("/livez", app.livenessCheck)
	router.HEAD("/livez", app.livenessCheck)
	router.GET("/readyz", app.readinessCheck)
	router.HEAD("/readyz", app.readinessCheck)
	router.GET("/version", app.version)
	router.GET("/metrics",
		metricsAuthMiddleware(cfg.MetricsAuthEnabled, cfg.MetricsUsername, cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.Use(prefs.SessionMiddleware(cfg.IsProduction()))
	api.Use(orgMiddleware())

	for _, res := range resources.All() {
		gw.Register(api, res)
		if res.Path == leadsPath {
			csvimport.NewHandler(gw, res, m, log).Register(api)
		}
	}
	validators := prefs.DefaultValidators().With(prefs.KeyLocale, i18n.ValidateLocale)
	prefs.NewHandler(db, validators, log).Register(api)
	i18n.NewHandler(db, translator, fallbackLocale, m, log).Register(api)
	stream.NewHandler(hub, cfg.StreamHeartbeat, log).Register(api)

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: config.HTTPReadHeader,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

// Handler returns the HTTP handler serving all routes.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and background jobs.
//
// Shutdown order:
//  1. Receive SIGINT/SIGTERM
//  2. Cancel context so background jobs stop
//  3. Wait for background jobs
//  4. Stop the HTTP server, close event streams, close the database, flush Sentry and logs
//
// Jobs finish before the database closes so cleanup never hits a closed handle.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	errCh := a.startHTTPServer()

	select {
	case sig := <-a.waitForShutdownSignal():
		a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-errCh:
		a.logger.WithError(err).Error("HTTP server stopped unexpectedly")
	}

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	if a.syncer != nil {
		a.wg.Go(func() {
			a.syncer.Run(ctx, a.cfg.SeedRefreshInterval)
		})
	}
	a.wg.Go(func() {
		a.preferencesCleanup(ctx)
	})
	a.wg.Go(func() {
		a.generator.Run(ctx, a.cfg.StreamInterval)
	})
}

// startHTTPServer starts the HTTP server in a goroutine.
// The returned channel receives an error if the listener fails.
func (a *Application) startHTTPServer() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// waitForShutdownSignal returns a channel notified on SIGINT/SIGTERM.
func (a *Application) waitForShutdownSignal() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return quit
}

// shutdown stops the HTTP server and releases resources.
// Call it only after background jobs have returned.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	// Closing the hub first ends open event streams so Shutdown does not wait on them.
	a.hub.Close()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Closing resources...")
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	if a.cfg.SentryEnabled {
		sentry.Flush(2 * time.Second)
	}

	a.logger.Info("Shutdown complete")
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}
	return nil
}
