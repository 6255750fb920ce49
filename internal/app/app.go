// Package app wires the checkout core's dependencies and runs the service.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	rd "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/oolio-checkout/internal/api"
	"github.com/xenking/oolio-checkout/internal/checkout"
	"github.com/xenking/oolio-checkout/internal/domain/cart"
	"github.com/xenking/oolio-checkout/internal/domain/order"
	"github.com/xenking/oolio-checkout/internal/domain/payment"
	"github.com/xenking/oolio-checkout/internal/domain/webhook"
	"github.com/xenking/oolio-checkout/internal/event"
	stripegw "github.com/xenking/oolio-checkout/internal/gateway/stripe"
	"github.com/xenking/oolio-checkout/internal/storage/memory"
	"github.com/xenking/oolio-checkout/internal/storage/postgres"
	redisstore "github.com/xenking/oolio-checkout/internal/storage/redis"
	"github.com/xenking/oolio-checkout/pkg/health"
	"github.com/xenking/oolio-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP edge, and handles graceful
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
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool.Ping))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Domain events: in-process bus, optional Kafka fanout, and a
	// logging notifier standing in for the email/push collaborators.
	bus := event.NewBus()
	bus.SubscribeAll(func(ctx context.Context, e event.Event) error {
		zctx.From(ctx).Info("Domain event", zap.String("event", e.EventName()))
		return nil
	})
	if len(cfg.Events.Brokers) > 0 {
		kafka := event.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		defer func() { _ = kafka.Close() }()
		bus.SubscribeAll(kafka.Handle)
	}

	// Repositories and the inventory ledger.
	productRepo := postgres.NewProductRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	refundRepo := postgres.NewRefundRepository(pool)

	ledger := postgres.NewInventoryLedger(pool)
	ledger.OnReserve(func(productID int64, remaining int) {
		if remaining <= cfg.LowStockThreshold {
			bus.Publish(ctx, event.InventoryLow{
				ProductID:  productID,
				Stock:      remaining,
				Threshold:  cfg.LowStockThreshold,
				OccurredAt: time.Now().UTC(),
			})
		}
	})

	// Payment gateway.
	gateway := stripegw.New(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.CallTimeout)

	// Webhook dedup window: Redis when configured, in-process otherwise.
	var dedup webhook.DedupStore
	if cfg.RedisAddr != "" {
		rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
		dedup = redisstore.NewDedupStore(rdb)
	} else {
		lg.Warn("Redis not configured, webhook dedup window is process-local")
		dedup = memory.NewDedupStore()
	}

	// Domain services.
	cartStore := cart.NewStore(cartRepo, productRepo, cfg.MaxItemQty)
	orderEngine := order.NewEngine(cartStore, ledger, orderRepo, bus)
	orchestrator := payment.NewOrchestrator(orderRepo, paymentRepo, refundRepo, gateway, bus, payment.Options{
		SettleOnPartialRefund: cfg.Refunds.SettleOnPartial,
	})
	processor := webhook.NewProcessor(gateway, dedup, orchestrator, 0)
	facade := checkout.NewFacade(orderEngine, orchestrator, bus, checkout.Config{
		Currency: cfg.Currency,
	})

	// HTTP edge: probes, the gateway webhook ingress, and the JSON API.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/webhooks/payment", api.NewWebhookHandler(processor))
	api.NewHandler(cartStore, orderEngine, orchestrator, facade).Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(mux, "checkout",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.Recovery(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.CorrelationID(),
			httpmiddleware.LogRequests(),
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
