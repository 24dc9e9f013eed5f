// Package httpserver exposes the storefront capture endpoint and the
// back-office JSON API. Storefront routes are public; back-office routes sit
// behind the JWT middleware, with reads open to staff and writes requiring a
// database-verified admin.
package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"ecomOrderManagement/internal/auth"
	"ecomOrderManagement/internal/lifecycle"
	"ecomOrderManagement/repository"
)

// Config carries the listen address and the JWT signing secret.
type Config struct {
	Address   string
	JWTSecret string
}

// Deps are the collaborators the handlers use. Logger is optional.
type Deps struct {
	Lifecycle  *lifecycle.Service
	Orders     *repository.OrderRepository
	Items      *repository.OrderItemRepository
	Events     *repository.OrderEventRepository
	Products   *repository.ProductRepository
	Variants   *repository.VariantRepository
	Categories *repository.CategoryRepository
	Shipping   *repository.ShippingRepository
	Operators  *repository.OperatorRepository
	Stats      *repository.StatsRepository
	Logger     *zap.Logger
}

type handlers struct {
	d Deps
}

// New builds the HTTP server with all routes and middleware wired.
func New(cfg Config, deps Deps) *http.Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &handlers{d: deps}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Get("/healthz", h.health)

	r.Route("/api", func(r chi.Router) {
		// Storefront: order capture and catalog browsing, unauthenticated.
		r.Post("/orders", h.createOrder)
		r.Get("/categories", h.listCategories)
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Get("/products/{id}/variants", h.listProductVariants)
		r.Get("/wilayas", h.listWilayas)
		r.Get("/wilayas/{id}/communes", h.listCommunes)

		// Back office.
		r.Group(func(r chi.Router) {
			r.Use(auth.NewMiddleware(cfg.JWTSecret))

			r.Get("/orders", h.listOrders)
			r.Get("/orders/{id}", h.getOrder)
			r.Patch("/orders/{id}", h.updateOrderDetails)
			r.Post("/orders/{id}/status", h.setOrderStatus)
			r.Get("/orders/{id}/events", h.listOrderEvents)
			r.Post("/orders/{id}/items", h.addOrderItem)
			r.Patch("/orders/{id}/items/{itemID}", h.updateOrderItem)
			r.Delete("/orders/{id}/items/{itemID}", h.removeOrderItem)
			r.Post("/orders/bulk/{action}", h.bulkOrderAction)

			r.Post("/categories", h.createCategory)
			r.Patch("/categories/{id}", h.updateCategory)
			r.Delete("/categories/{id}", h.deleteCategory)
			r.Post("/products", h.createProduct)
			r.Patch("/products/{id}", h.updateProduct)
			r.Delete("/products/{id}", h.deleteProduct)
			r.Post("/products/{id}/variants", h.createVariant)
			r.Patch("/variants/{id}", h.updateVariant)
			r.Put("/variants/{id}/stock", h.setVariantStock)
			r.Delete("/variants/{id}", h.deleteVariant)

			r.Post("/wilayas", h.createWilaya)
			r.Patch("/wilayas/{id}", h.updateWilaya)
			r.Delete("/wilayas/{id}", h.deleteWilaya)
			r.Post("/wilayas/{id}/communes", h.createCommune)
			r.Delete("/communes/{id}", h.deleteCommune)

			r.Get("/operators", h.listOperators)
			r.Post("/operators", h.createOperator)
			r.Patch("/operators/{username}", h.updateOperatorRole)
			r.Delete("/operators/{id}", h.deleteOperator)

			r.Get("/stats/dashboard", h.dashboard)
			r.Get("/stats/series", h.statsSeries)
		})
	})

	return &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per request through the application logger.
func requestLogger(l *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			l.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}
