package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/tendzd/settlement/internal/domain/checkout"
	"github.com/tendzd/settlement/internal/domain/ordernumber"
	"github.com/tendzd/settlement/internal/handler"
	"github.com/tendzd/settlement/internal/payment"
	"github.com/tendzd/settlement/internal/repository"
	"github.com/tendzd/settlement/internal/sequence"
	"github.com/tendzd/settlement/pkg/health"
	"github.com/tendzd/settlement/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	engine, err := cfg.Settlement.Engine()
	if err != nil {
		return errors.Wrap(err, "settlement config")
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New(cfg.HealthTTL)
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	var (
		sequences ordernumber.Counter
		windows   httpmiddleware.WindowCounter
	)
	if cfg.RedisURL != "" {
		store, client, err := sequence.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = client.Close() }()
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(store))
		sequences, windows = store, store
	} else {
		lg.Warn("No Redis configured, using PostgreSQL sequences and process-local rate limits")
		sequences, windows = repository.NewSequenceRepository(pool), sequence.NewMemory()
	}

	payments := payment.NewRouter()
	if cfg.BankTransfer.IBAN != "" {
		payments.Register(payment.MethodBankTransfer, payment.BankTransfer{
			IBAN:        cfg.BankTransfer.IBAN,
			Beneficiary: cfg.BankTransfer.Beneficiary,
		})
	}

	checkoutSvc := checkout.NewService(
		engine,
		repository.NewVendorRepository(pool),
		repository.NewOrderRepository(pool),
		ordernumber.NewGenerator(sequences, time.Now),
		payments,
		checkout.WithTelemetry(m.TracerProvider(), m.MeterProvider()),
	)

	h, err := handler.New(checkoutSvc)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		httpmiddleware.Recovery(),
		httpmiddleware.LogRequests(),
	)
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit.Max > 0 {
			r.Use(httpmiddleware.RateLimit(windows, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}))
		}
		h.Routes(r)
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins:          cfg.CORS.Origins,
				Headers:          []string{"Content-Type", "Accept-Language", httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			func(next http.Handler) http.Handler {
				return otelhttp.NewHandler(next, "settlement-api",
					otelhttp.WithTracerProvider(m.TracerProvider()),
					otelhttp.WithMeterProvider(m.MeterProvider()),
				)
			},
		),
	}

	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
