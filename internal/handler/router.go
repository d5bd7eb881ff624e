package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/observability"
	"github.com/lulicookies/storefront-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Healthchecker is the slice of the persistence client /healthz needs.
type Healthchecker interface {
	Healthcheck(ctx context.Context) error
}

// Deps bundles everything the router wires together.
type Deps struct {
	Catalog   *service.CatalogService
	Checkout  *service.CheckoutService
	Orders    *service.OrderService
	Fidelity  *service.FidelityService
	Profile   *service.ProfileService
	Auth      *service.AuthService
	Shipping  *service.ShippingService
	Settings  *service.SettingsService
	Payments  *service.PaymentService
	Health    Healthchecker
	Metrics   *observability.Metrics
	Logger    *zap.Logger
	JWTSecret string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(d.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Health, d.Logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. 🍪 Catálogo
		// =============================================
		r.Get("/menu", menuHandler(d.Catalog, d.Logger))
		r.Get("/products", listProductsHandler(d.Catalog, d.Logger))
		r.Get("/products/{productId}", getProductHandler(d.Catalog, d.Logger))
		r.Get("/categories", listCategoriesHandler(d.Catalog, d.Logger))

		// =============================================
		// 2. 🛒 Checkout (guest or authenticated)
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(OptionalAuthMiddleware(d.JWTSecret, d.Logger))
			r.Post("/checkout", checkoutHandler(d.Checkout, d.Logger))
		})

		// =============================================
		// 3. 🚚 Frete
		// =============================================
		r.Get("/shipping/cep/{cep}", resolveCEPHandler(d.Shipping, d.Logger))
		r.Post("/shipping/quote", shippingQuoteHandler(d.Shipping, d.Logger))

		// =============================================
		// 4. 🔐 Autenticação
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authSignUpHandler(d.Auth, d.Logger))
			r.Post("/login", authSignInHandler(d.Auth, d.Logger))
			r.Post("/logout", authSignOutHandler(d.Auth, d.Logger))
			r.Get("/me", authMeHandler(d.Auth, d.Logger))
		})

		// =============================================
		// 5. 👤 Conta do cliente (protected)
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.JWTSecret, d.Logger))
			r.Get("/orders", listOrdersHandler(d.Orders, d.Logger))
			r.Get("/orders/{orderId}", getOrderHandler(d.Orders, d.Logger))
			r.Get("/fidelity", fidelityHandler(d.Fidelity, d.Logger))
			r.Get("/profile", getProfileHandler(d.Profile, d.Logger))
			r.Put("/profile/name", updateProfileNameHandler(d.Profile, d.Logger))
			r.Put("/profile/address", updateProfileAddressHandler(d.Profile, d.Logger))
		})

		// =============================================
		// 6. 🏪 Loja aberta/fechada
		// =============================================
		r.Get("/settings/store", getStoreSettingsHandler(d.Settings, d.Logger))
		r.Group(func(r chi.Router) {
			// Flipping the flag is reserved for the operator's
			// service-role key.
			r.Use(ServiceRoleMiddleware(d.JWTSecret, d.Logger))
			r.Put("/settings/store", setStoreOpenHandler(d.Settings, d.Logger))
		})

		// =============================================
		// 7. 💳 Pagamentos
		// =============================================
		r.Post("/payments/preference", createPreferenceHandler(d.Payments, d.Logger))
		r.Post("/webhooks/mercadopago", mercadoPagoWebhookHandler(d.Payments, d.Logger))

		// =============================================
		// 8. 📊 Métricas de pedidos
		// =============================================
		r.Get("/metrics/orders", orderStatsHandler(d.Metrics))
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(health Healthchecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "storefront-api", Status: "healthy", LastChecked: now},
		}

		if health != nil {
			start := time.Now()
			err := health.Healthcheck(r.Context())
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("healthcheck: persistence unreachable", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = "degraded"
			}
		}
		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func orderStatsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetOrderStats())
	}
}
