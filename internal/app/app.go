package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/quipushop/checkout/internal/domain/checkout"
	"github.com/quipushop/checkout/internal/domain/order"
	"github.com/quipushop/checkout/internal/handler"
	"github.com/quipushop/checkout/internal/intent"
	"github.com/quipushop/checkout/internal/payment"
	"github.com/quipushop/checkout/internal/storage/postgres"
	"github.com/quipushop/checkout/pkg/health"
	"github.com/quipushop/checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories and stores.
	productRepo := postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	ledger := postgres.NewVariantLedger(pool)
	intentStore := postgres.NewIntentStore(pool, cfg.Intent.TTL)

	intent.StartJanitor(ctx, intentStore, cfg.Intent.PurgeInterval, func(n int, err error) {
		if err != nil {
			lg.Warn("Intent purge failed", zap.Error(err))
		} else if n > 0 {
			lg.Info("Purged expired intents", zap.Int("count", n))
		}
	})

	// Gateway client.
	gateway := payment.NewClient(payment.ClientConfig{
		Endpoint:     cfg.Gateway.Endpoint,
		Username:     cfg.Gateway.Username,
		Password:     cfg.Gateway.Password,
		PublicKey:    cfg.Gateway.PublicKey,
		MerchantCode: cfg.Gateway.MerchantCode,
		Currency:     cfg.Gateway.Currency,
		Timeout:      cfg.Gateway.Timeout,
	})

	// Domain services.
	checkoutSvc := checkout.NewService(productRepo, gateway, intentStore)
	fulfillment, err := order.NewFulfillment(
		order.FulfillmentConfig{HMACKey: []byte(cfg.Gateway.HMACKey)},
		intentStore,
		orderRepo,
		ledger,
		m.MeterProvider().Meter("checkout"),
		m.TracerProvider().Tracer("checkout"),
	)
	if err != nil {
		return errors.Wrap(err, "create fulfillment")
	}

	// HTTP handlers.
	securityHandler := handler.NewSecurityHandler(apikeyRepo, []byte(cfg.APIKeyPepper))
	h := handler.NewHandler(checkoutSvc, fulfillment, orderRepo, securityHandler)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "api_key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("checkout-api", m),
			httpmiddleware.LogRequests(),
		),
	}

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
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
