package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/releasehub-billing/api/controllers"
	admincontrollers "github.com/angelmondragon/releasehub-billing/api/controllers/admin"
	webhookcontrollers "github.com/angelmondragon/releasehub-billing/api/controllers/webhooks"
	"github.com/angelmondragon/releasehub-billing/api/middleware"
	stripewebhook "github.com/angelmondragon/releasehub-billing/internal/webhooks/stripe"
	"github.com/angelmondragon/releasehub-billing/pkg/config"
	"github.com/angelmondragon/releasehub-billing/pkg/db"
	"github.com/angelmondragon/releasehub-billing/pkg/enums"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
	"github.com/angelmondragon/releasehub-billing/pkg/metrics"
	"github.com/angelmondragon/releasehub-billing/pkg/redis"
)

// NewRouter mounts the webhook endpoint, probes and the admin read API.
// redisP may be nil when Redis is not configured; the admin API is only mounted with a JWT secret.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	stripeVerifier *stripewebhook.Verifier,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.InFlightGuard,
	accountReader admincontrollers.AccountReader,
	eventReader admincontrollers.WebhookEventReader,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadyCheck{Name: "database", Pinger: dbP},
			controllers.ReadyCheck{Name: "redis", Pinger: redisP},
		))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(
			stripeVerifier,
			stripeWebhookService,
			stripeWebhookGuard,
			cfg.Webhooks.MaxBodyBytes,
			logg,
		))
	})

	if cfg.JWT.Secret != "" {
		r.Route("/api/admin/v1", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(logg, enums.OperatorRoleAdmin))

			r.Get("/accounts/{accountId}/billing", admincontrollers.AccountBilling(accountReader, logg))
			r.Get("/webhooks/events/{eventId}", admincontrollers.WebhookEvent(eventReader, logg))
		})
	}

	return r
}
