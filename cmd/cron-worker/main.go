package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/angelmondragon/releasehub-billing/internal/cron"
	"github.com/angelmondragon/releasehub-billing/internal/webhooks/events"
	"github.com/angelmondragon/releasehub-billing/pkg/config"
	"github.com/angelmondragon/releasehub-billing/pkg/db"
	"github.com/angelmondragon/releasehub-billing/pkg/instance"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
	"github.com/angelmondragon/releasehub-billing/pkg/metrics"
	"github.com/angelmondragon/releasehub-billing/pkg/migrate"
	"github.com/angelmondragon/releasehub-billing/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	jobs := flag.String("jobs", "", "comma-separated job names to run (default: all)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg, *once, splitJobs(*jobs)); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger, once bool, jobNames []string) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var lock cron.Lock = cron.NewLocalLock()
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName+":"+cfg.App.Env), 0)
		if err != nil {
			return err
		}
		lock = redisLock
	} else {
		logg.Warn(ctx, "redis not configured; run a single cron-worker replica")
	}

	retention, err := cron.NewWebhookEventRetentionJob(cron.WebhookEventRetentionJobParams{
		Logger:        logg,
		Repository:    events.NewRepository(dbClient.DB()),
		RetentionDays: cfg.Retention.WebhookEventDays,
	})
	if err != nil {
		return err
	}

	registry, err := cron.NewRegistry(retention)
	if err != nil {
		return err
	}
	registry, err = registry.Select(jobNames...)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Retention.CronInterval,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"once":     once,
		"jobs":     lo.Map(registry.Jobs(), func(job cron.Job, _ int) string { return job.Name() }),
	})
	logg.Info(ctx, "starting cron worker")

	if once {
		return service.RunOnce(ctx)
	}
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

func splitJobs(raw string) []string {
	return lo.Compact(lo.Map(strings.Split(raw, ","), func(name string, _ int) string {
		return strings.TrimSpace(name)
	}))
}
