// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/wishlane/dispatcher/internal/config"
	"github.com/wishlane/dispatcher/internal/dispatch"
	"github.com/wishlane/dispatcher/internal/mailqueue"
	mailqueuepostgres "github.com/wishlane/dispatcher/internal/mailqueue/postgres"
	"github.com/wishlane/dispatcher/internal/notify"
	"github.com/wishlane/dispatcher/internal/notify/email"
	"github.com/wishlane/dispatcher/internal/notify/inapp"
	"github.com/wishlane/dispatcher/internal/notify/push"
	"github.com/wishlane/dispatcher/internal/orders"
	orderspostgres "github.com/wishlane/dispatcher/internal/orders/postgres"
	"github.com/wishlane/dispatcher/internal/pkg/ctxlog"
	"github.com/wishlane/dispatcher/internal/pkg/httputil"
	"github.com/wishlane/dispatcher/internal/pkg/metrics"
	"github.com/wishlane/dispatcher/internal/pkg/postgres"
	"github.com/wishlane/dispatcher/internal/reminders"
	reminderspostgres "github.com/wishlane/dispatcher/internal/reminders/postgres"
	"github.com/wishlane/dispatcher/internal/version"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	coordinator   *dispatch.Coordinator
	cronRunner    *cron.Cron
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, err := app.setupRouter(metricsCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	if cfg.Scheduler.Enabled {
		if err := app.setupCron(); err != nil {
			db.Close()
			metricsCancel()
			return nil, fmt.Errorf("setup scheduler: %w", err)
		}
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers and, when enabled, the internal cron
// trigger.
func (a *App) Run() error {
	if a.cronRunner != nil {
		a.logger.Info("starting internal scheduler", "spec", a.config.Scheduler.Spec)
		a.cronRunner.Start()
	}

	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Stop the cron trigger first so no new dispatch run starts while
	// the servers drain.
	if a.cronRunner != nil {
		cronCtx := a.cronRunner.Stop()
		select {
		case <-cronCtx.Done():
		case <-ctx.Done():
		}
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) collectQueueMetrics(ctx context.Context, repo mailqueue.Repository) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := repo.Stats(ctx)
			if err != nil {
				slog.Error("failed to get queue stats", "error", err)
				continue
			}
			mailqueue.RecordStats(stats)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Coordinator returns the dispatch coordinator. Used in tests to
// trigger runs without going through HTTP.
func (a *App) Coordinator() *dispatch.Coordinator {
	return a.coordinator
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	renderer, err := notify.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	emailSender, err := email.NewSender(email.Config{
		Enabled:      a.config.Email.Enabled,
		SMTPHost:     a.config.Email.SMTPHost,
		SMTPPort:     a.config.Email.SMTPPort,
		SMTPUser:     a.config.Email.SMTPUser,
		SMTPPassword: a.config.Email.SMTPPassword,
		FromAddress:  a.config.Email.FromAddress,
		RateLimit:    a.config.Email.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create email sender: %w", err)
	}

	if !a.config.Email.Enabled {
		slog.Warn("email sender is disabled: queued emails and reminders will not be delivered")
	}

	pushSender, err := push.NewSender(push.Config{
		Enabled:    a.config.Push.Enabled,
		WebhookURL: a.config.Push.WebhookURL,
		AuthToken:  a.config.Push.AuthToken,
		Timeout:    a.config.Push.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create push sender: %w", err)
	}

	inappSender := inapp.NewSender(a.db)

	dispatcher := notify.NewDispatcher(emailSender, pushSender, inappSender)

	queueRepo := mailqueuepostgres.NewRepository(a.db)
	queueService := mailqueue.NewService(queueRepo, renderer)
	queueHandler := mailqueue.NewHandler(queueService)

	processor := mailqueue.NewProcessor(mailqueue.Config{
		BatchSize:   a.config.MailQueue.BatchSize,
		MaxAttempts: a.config.MailQueue.MaxAttempts,
		StuckAfter:  a.config.MailQueue.StuckAfter,
	}, queueRepo, renderer, dispatcher)

	remindersRepo := reminderspostgres.NewRepository(a.db)
	scheduler := reminders.NewScheduler(
		remindersRepo,
		renderer,
		dispatcher,
		reminders.WindowsForDays(a.config.Reminders.WindowDays),
	)

	ordersRepo := orderspostgres.NewRepository(a.db)
	sweeper := orders.NewSweeper(orders.Config{
		Timeout: a.config.Orders.Timeout,
	}, ordersRepo)

	a.coordinator = dispatch.NewCoordinator(dispatch.Config{
		TaskTimeout: a.config.Dispatch.TaskTimeout,
	}, processor, scheduler, sweeper)

	dispatchHandler := dispatch.NewHandler(a.coordinator)

	go a.collectQueueMetrics(ctx, queueRepo)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httputil.SecretAuthMiddleware(a.config.Dispatch.Secret))

			dispatchHandler.RegisterRoutes(r)
			queueHandler.RegisterRoutes(r)
		})
	})

	return r, nil
}

func (a *App) setupCron() error {
	runner := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))

	_, err := runner.AddFunc(a.config.Scheduler.Spec, func() {
		ctx := ctxlog.WithLogger(context.Background(), a.logger.With("trigger", "cron"))
		a.coordinator.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("add cron entry %q: %w", a.config.Scheduler.Spec, err)
	}

	a.cronRunner = runner
	return nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
