// Package app wires the chat ordering server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/sazon-bot/internal/api"
	"github.com/xenking/sazon-bot/internal/confirm"
	"github.com/xenking/sazon-bot/internal/dialogue"
	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/domain/order"
	"github.com/xenking/sazon-bot/internal/generation"
	"github.com/xenking/sazon-bot/internal/session"
	"github.com/xenking/sazon-bot/internal/storage/csvstore"
	"github.com/xenking/sazon-bot/internal/storage/postgres"
	"github.com/xenking/sazon-bot/pkg/health"
	"github.com/xenking/sazon-bot/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("ledger", cfg.Ledger.Driver),
		zap.Bool("generation", cfg.Generation.Enabled),
	)

	loc, err := time.LoadLocation(cfg.Restaurant.TimeZone)
	if err != nil {
		return errors.Wrap(err, "load time zone")
	}

	cat, err := csvstore.LoadCatalog(csvstore.Files{
		Menu:      cfg.Catalog.MenuFile,
		Districts: cfg.Catalog.DistrictsFile,
		Drinks:    cfg.Catalog.DrinksFile,
		Desserts:  cfg.Catalog.DessertsFile,
	})
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}
	lg.Info("Catalog loaded", zap.Int("items", cat.Len()))

	ledger, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		return errors.Wrap(err, "open ledger")
	}
	defer ledger.close()

	driver, err := newDriver(cfg, cat, ledger, loc)
	if err != nil {
		return errors.Wrap(err, "create driver")
	}

	sessions, err := session.NewManager(driver, session.Options{
		TTL:            cfg.Session.TTL,
		MaxSessions:    cfg.Session.MaxSessions,
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create session manager")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.Register(health.Check{
		Name:    "ledger",
		Kind:    health.Readiness,
		Timeout: 5 * time.Second,
		Func:    ledger.check,
	})
	healthSvc.Register(health.Check{
		Name:    "goroutines",
		Kind:    health.Liveness,
		Timeout: time.Second,
		Func:    health.GoroutineCountCheck(10000),
	})
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Turns may wait on the generation service.
		WriteTimeout:   cfg.Generation.Timeout*3 + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: newHandler(gctx, handlerDeps{
			sessions:       sessions,
			catalog:        cat,
			health:         healthSvc,
			rateLimit:      cfg.RateLimit,
			logger:         zctx.From(ctx),
			meterProvider:  m.MeterProvider(),
			tracerProvider: m.TracerProvider(),
		}),
	}

	g.Go(func() error {
		return sessions.RunJanitor(gctx, cfg.Session.SweepInterval)
	})

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

// ledgerBackend is the configured order ledger with its probe and cleanup.
type ledgerBackend struct {
	order.Ledger
	check func(ctx context.Context) error
	close func()
}

func openLedger(ctx context.Context, cfg LedgerConfig) (*ledgerBackend, error) {
	switch cfg.Driver {
	case LedgerPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		return &ledgerBackend{
			Ledger: postgres.NewLedgerRepository(pool),
			check:  pool.Ping,
			close:  pool.Close,
		}, nil
	case LedgerFile:
		l, err := csvstore.OpenLedger(cfg.Path, cfg.Sync)
		if err != nil {
			return nil, err
		}
		return &ledgerBackend{
			Ledger: l,
			check:  l.Check,
			close:  func() { _ = l.Close() },
		}, nil
	default:
		return nil, errors.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}

func newDriver(cfg *Config, cat *catalog.Catalog, ledger order.Ledger, loc *time.Location) (*dialogue.Driver, error) {
	dcfg := dialogue.Config{
		Catalog:        cat,
		Ledger:         ledger,
		PickupLocation: cfg.Restaurant.PickupLocation,
		Location:       loc,
	}

	if cfg.Generation.Enabled {
		model, err := generation.NewOpenAI(generation.OpenAIConfig{
			BaseURL: cfg.Generation.BaseURL,
			APIKey:  cfg.Generation.APIKey,
			Model:   cfg.Generation.Model,
		})
		if err != nil {
			return nil, err
		}
		svc := generation.New(model, generation.Config{
			Reply: generation.Options{
				Temperature: cfg.Generation.Temperature,
				MaxTokens:   cfg.Generation.MaxTokens,
			},
			Timeout: cfg.Generation.Timeout,
		})
		dcfg.Replier = svc
		dcfg.Normalizer = svc
		dcfg.SystemPrompt = generation.SystemPrompt(cat, cfg.Restaurant.Name, cfg.Restaurant.PickupLocation)
		if cfg.Generation.ExtractWithModel {
			dcfg.Confirmer = confirm.NewModelExtractor(svc, cat, loc)
		}
	}

	return dialogue.New(dcfg), nil
}

type handlerDeps struct {
	sessions       api.Sessions
	catalog        *catalog.Catalog
	health         *health.Health
	rateLimit      RateLimitConfig
	logger         *zap.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// newHandler builds the mux with probes and API routes behind the
// middleware chain. The rate limiter cleanup stops with ctx.
func newHandler(ctx context.Context, deps handlerDeps) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", deps.health.LiveEndpoint)
	mux.HandleFunc("GET /readyz", deps.health.ReadyEndpoint)
	api.NewHandler(deps.sessions, deps.catalog).Register(mux)

	return httpmiddleware.Wrap(
		otelhttp.NewHandler(mux, "sazon-api",
			otelhttp.WithMeterProvider(deps.meterProvider),
			otelhttp.WithTracerProvider(deps.tracerProvider),
		),
		httpmiddleware.Recovery(),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			RPS:   deps.rateLimit.RPS,
			Burst: deps.rateLimit.Burst,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(deps.logger),
		httpmiddleware.LogRequests(),
	)
}
