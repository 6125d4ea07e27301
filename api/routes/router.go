package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

type redisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(policy, scope, id string) string
	Ping(ctx context.Context) error
}

type orderFeed interface {
	Subscribe(ctx context.Context, orderID uuid.UUID, onChange func(orders.OrderSnapshot)) (func(), error)
}

// Dependencies are the services the API surface is mounted on. Leave a field
// nil to have its routes answer with an internal error.
type Dependencies struct {
	DB            controllers.Pinger
	Redis         redisStore
	Orders        orders.Service
	Feed          orderFeed
	Payments      payments.Service
	Refunds       refunds.Service
	Carts         cartcontrollers.Store
	Notifications notifications.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	paymentPolicy := middleware.NewRateLimitPolicy(
		"payment",
		cfg.Payments.RateLimitWindow,
		cfg.Payments.RateLimitPerUser,
		cfg.Payments.RateLimitPerIP,
	)

	ready := map[string]controllers.Pinger{"db": deps.DB}
	if deps.Redis != nil {
		ready["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, ready, logg))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())

		r.Post("/webhooks/payments/{provider}", webhookcontrollers.PaymentCallback(deps.Payments, webhookcontrollers.Secrets{
			Shared: cfg.Payments.WebhookSecret,
			Stripe: cfg.Stripe.WebhookSecret,
		}, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(deps.Redis, logg))

			customer := middleware.RequireRole(logg, enums.RoleCustomer)
			seller := middleware.RequireRole(logg, enums.RoleSeller)
			resolver := middleware.RequireRole(logg, enums.RoleSeller, enums.RoleAdmin)

			r.Get("/me", controllers.WhoAmI(logg))

			r.Route("/orders", func(r chi.Router) {
				r.With(customer).Post("/", ordercontrollers.Create(deps.Orders, deps.Carts, logg))
				r.With(customer).Get("/", ordercontrollers.List(deps.Orders, logg))

				r.Route("/{orderId}", func(r chi.Router) {
					r.Get("/", ordercontrollers.Detail(deps.Orders, logg))
					r.Get("/events", ordercontrollers.Events(deps.Orders, deps.Feed, logg))
					r.With(customer, middleware.RateLimit(paymentPolicy, deps.Redis, logg)).
						Post("/payment", ordercontrollers.Pay(deps.Payments, logg))
					r.With(customer).Post("/cancel", ordercontrollers.Cancel(deps.Orders, logg))
					r.With(resolver).Post("/cancel/resolve", ordercontrollers.ResolveCancellation(deps.Orders, logg))
					r.With(customer).Post("/refund", ordercontrollers.Refund(deps.Orders, logg))
					r.With(resolver).Post("/refund/resolve", ordercontrollers.ResolveRefund(deps.Refunds, logg))
				})
			})

			r.Get("/refund-disputes", ordercontrollers.Disputes(deps.Refunds, logg))

			r.Route("/suborders", func(r chi.Router) {
				r.With(seller).Get("/", ordercontrollers.SellerSubOrders(deps.Orders, logg))
				r.With(seller).Post("/{subOrderId}/process", ordercontrollers.MarkProcessing(deps.Orders, logg))
				r.With(resolver).Post("/{subOrderId}/deliver", ordercontrollers.ConfirmDelivery(deps.Orders, logg))
				r.With(seller).Delete("/{subOrderId}", ordercontrollers.DeleteSubOrder(deps.Orders, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Use(customer)
				r.Get("/", cartcontrollers.CartFetch(deps.Carts, logg))
				r.Put("/", cartcontrollers.CartReplace(deps.Carts, logg))
			})

			r.Route("/seller/alerts", func(r chi.Router) {
				r.Use(seller)
				r.Get("/", controllers.ListSellerAlerts(deps.Notifications, logg))
				r.Post("/{alertId}/read", controllers.MarkSellerAlertRead(deps.Notifications, logg))
			})
		})
	})

	return r
}
