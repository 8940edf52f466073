package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/HarshalNinawe/technoupi2/internal/idempotency"
)

// RouterOptions carries the optional collaborators of the router.
type RouterOptions struct {
	Logger *zap.Logger
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Observer counts requests when set.
	Observer RequestObserver
	// Idempotency enables Idempotency-Key replay on mutating routes when set.
	Idempotency *idempotency.Store
}

// NewRouter wires the API routes.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger, opts.Observer))
	r.Use(middleware.Recoverer)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/auth/register", h.Register)

		r.Group(func(r chi.Router) {
			r.Use(requireCaller)

			r.Get("/user/profile", h.Profile)
			r.Get("/balance", h.Balance)
			r.Get("/transactions/history", h.History)

			r.Group(func(r chi.Router) {
				if opts.Idempotency != nil {
					r.Use(idempotency.Middleware(opts.Idempotency, CallerID, logger))
				}
				r.Post("/transactions/send", h.Send)
			})
		})
	})

	return r
}
