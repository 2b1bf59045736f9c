package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/releasehub-billing/api/routes"
	"github.com/angelmondragon/releasehub-billing/internal/accounts"
	"github.com/angelmondragon/releasehub-billing/internal/notifications"
	"github.com/angelmondragon/releasehub-billing/internal/plans"
	"github.com/angelmondragon/releasehub-billing/internal/webhooks/events"
	stripewebhook "github.com/angelmondragon/releasehub-billing/internal/webhooks/stripe"
	"github.com/angelmondragon/releasehub-billing/pkg/config"
	"github.com/angelmondragon/releasehub-billing/pkg/db"
	"github.com/angelmondragon/releasehub-billing/pkg/instance"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
	"github.com/angelmondragon/releasehub-billing/pkg/metrics"
	"github.com/angelmondragon/releasehub-billing/pkg/migrate"
	"github.com/angelmondragon/releasehub-billing/pkg/pubsub"
	"github.com/angelmondragon/releasehub-billing/pkg/redis"
	"github.com/angelmondragon/releasehub-billing/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	catalog, err := plans.Load(cfg.Plans)
	if err != nil {
		return err
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers = append(closers, dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var (
		redisPinger redis.Pinger
		guard       *stripewebhook.InFlightGuard
	)
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
		redisPinger = redisClient

		guard, err = stripewebhook.NewInFlightGuard(redisClient, cfg.Webhooks.InFlightTTL)
		if err != nil {
			return err
		}
	} else {
		logg.Warn(ctx, "redis not configured; concurrent redeliveries rely on the event table alone")
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)
	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	var notifier notifications.Dispatcher = notifications.NewLogDispatcher(logg, webhookMetrics)
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		closers = append(closers, psClient.Close)
		dispatcher, err := notifications.NewPubSubDispatcher(psClient.NotificationPublisher(), cfg.PubSub.PublishTimeout, logg, webhookMetrics)
		if err != nil {
			return err
		}
		closers = append(closers, dispatcher.Close)
		notifier = dispatcher
	}

	accountRepo := accounts.NewRepository(dbClient.DB())
	eventRepo := events.NewRepository(dbClient.DB())

	var emails accounts.EmailLookup
	if stripeClient.API() != nil {
		emails = stripeClient
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Accounts:          accountRepo,
		Events:            eventRepo,
		Resolver:          accounts.NewResolver(accountRepo, emails, logg),
		Plans:             catalog,
		TransactionRunner: dbClient,
		Notifier:          notifier,
		Metrics:           webhookMetrics,
		Logger:            logg,
		Config:            cfg.Webhooks,
	})
	if err != nil {
		return err
	}
	verifier := stripewebhook.NewVerifier(stripeClient, cfg.Stripe, logg, webhookMetrics)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisPinger,
			prometheus.DefaultGatherer,
			httpMetrics,
			verifier,
			webhookService,
			guard,
			accountRepo,
			eventRepo,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
