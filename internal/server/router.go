package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wkc-labs/wkc-server/pkg/ratelimit"
)

// Handler returns the HTTP API. Routes that call the model are rate limited
// per client.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(accessLog)
	r.Use(tracing)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	limited := ratelimit.Middleware(s.limiter)

	r.With(limited).Post("/query", s.handleQuery)

	r.Route("/operations", func(r chi.Router) {
		r.Get("/", s.handleListOperations)
		r.Get("/openapi.json", s.handleOpenAPI)
		r.With(limited).Post("/{name}", s.handleInvokeOperation)
	})

	r.Route("/products", func(r chi.Router) {
		r.Post("/", s.handleCreateProduct)
		r.Get("/seller/{userID}", s.handleSellerProducts)
		r.Get("/seller/{userID}/search", s.handleSearchProducts)
		r.Route("/{productID}", func(r chi.Router) {
			r.Get("/", s.handleGetProduct)
			r.Put("/", s.handleUpdateProduct)
			r.Delete("/", s.handleDeleteProduct)
			r.Put("/quantity", s.handleUpdateQuantity)
		})
	})

	r.With(limited).Post("/place_order", s.handlePlaceOrder)
	r.With(limited).Post("/process_chat", s.handleProcessChat)
	r.Get("/user/{userID}/orders", s.handleUserOrders)
	r.Route("/order/{orderID}", func(r chi.Router) {
		r.Get("/", s.handleGetOrder)
		r.Put("/status", s.handleUpdateOrderStatus)
		r.With(limited).Put("/modify", s.handleModifyOrder)
	})

	return r
}
