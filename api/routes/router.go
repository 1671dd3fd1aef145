package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gaardshagen/farmbox-backend/api/controllers"
	webhookcontrollers "github.com/gaardshagen/farmbox-backend/api/controllers/webhooks"
	"github.com/gaardshagen/farmbox-backend/api/middleware"
	"github.com/gaardshagen/farmbox-backend/internal/bulk"
	"github.com/gaardshagen/farmbox-backend/internal/catalog"
	internalorders "github.com/gaardshagen/farmbox-backend/internal/orders"
	squarewebhook "github.com/gaardshagen/farmbox-backend/internal/webhooks/square"
	"github.com/gaardshagen/farmbox-backend/pkg/config"
	"github.com/gaardshagen/farmbox-backend/pkg/db"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
	"github.com/gaardshagen/farmbox-backend/pkg/redis"
	"github.com/gaardshagen/farmbox-backend/pkg/square"
)

type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         redis.Pinger
	Catalog       catalog.Service
	Orders        internalorders.Service
	OrdersRepo    internalorders.Repository
	Bulk          bulk.Runner
	Square        *square.Client
	SquareWebhook *squarewebhook.Service
	WebhookGuard  *squarewebhook.IdempotencyGuard
}

// NewRouter wires the storefront, back-office, and webhook surfaces.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.CORS(),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/readyz", controllers.HealthReady(cfg, logg, params.DB, params.Redis))

	r.Route("/v1", func(r chi.Router) {
		// Storefront surface: no auth, customers reserve and look up by
		// order number only.
		r.Get("/catalog/boxes", controllers.ListBoxPresets(params.Catalog, logg))
		r.Get("/catalog/extras", controllers.ListExtraProducts(params.Catalog, logg))
		r.Get("/catalog/windows", controllers.ListDeliveryWindows(params.Catalog, logg))

		r.Post("/orders", controllers.CreateOrder(params.Orders, logg))
		r.Route("/orders/{orderNumber}", func(r chi.Router) {
			r.Get("/", controllers.GetOrderByNumber(params.Orders, logg))
			r.Post("/extras", controllers.AddOrderExtra(params.Orders, logg))
			r.Put("/extras/{extraProductId}", controllers.AdjustOrderExtra(params.Orders, logg))
			r.Post("/discount", controllers.ApplyOrderDiscount(params.Orders, logg))
			r.Delete("/discount", controllers.ClearOrderDiscount(params.Orders, logg))
			r.Put("/delivery", controllers.UpdateOrderDelivery(params.Orders, logg))
			r.Post("/cancel", controllers.CancelOrder(params.Orders, logg))
			r.Post("/payments", controllers.CreateOrderPayment(params.Orders, params.Square, logg))
			r.Get("/payments/{paymentId}", controllers.GetOrderPayment(params.Orders, params.Square, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.Admin.APIToken, logg))

			r.Get("/orders", controllers.AdminListOrders(params.Orders, logg))
			r.Get("/orders/{orderId}", controllers.AdminGetOrder(params.Orders, logg))
			r.Post("/orders/{orderId}/transitions", controllers.AdminTransitionOrder(params.Orders, logg))
			r.Post("/orders/{orderId}/provider-refund", controllers.AdminProviderRefund(params.OrdersRepo, params.Square, logg))
			r.Post("/orders/bulk", controllers.AdminBulkTransition(params.Bulk, logg))
		})

		r.Post("/webhooks/square", webhookcontrollers.SquareWebhook(
			params.SquareWebhook, params.Square, params.WebhookGuard, logg,
		))
	})

	return r
}
