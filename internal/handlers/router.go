package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/agentmall/gateway/internal/platform/config"
	"github.com/agentmall/gateway/internal/platform/envelope"
	"github.com/agentmall/gateway/internal/platform/idempotency"
	"github.com/agentmall/gateway/internal/platform/observability"
	"github.com/agentmall/gateway/internal/repositories"
	"github.com/agentmall/gateway/internal/services"
)

var (
	errRouterCartRequired       = errors.New("router: cart service is required")
	errRouterCheckoutRequired   = errors.New("router: checkout service is required")
	errRouterComplianceRequired = errors.New("router: compliance service is required")
	errRouterEvidenceRequired   = errors.New("router: evidence service is required")
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Logger           *zap.Logger
	Cart             services.CartService
	Checkout         services.CheckoutService
	Compliance       services.ComplianceService
	Evidence         services.EvidenceService
	Audit            services.AuditService
	IdempotencyStore idempotency.Store
	Health           repositories.HealthRepository
	Config           config.Config
	Clock            func() time.Time
}

// NewRouter assembles the middleware chain and mounts every tool endpoint.
// Tool calls are POSTs under /tools; only /healthz bypasses the envelope.
func NewRouter(deps RouterDeps) (http.Handler, error) {
	if deps.Cart == nil {
		return nil, errRouterCartRequired
	}
	if deps.Checkout == nil {
		return nil, errRouterCheckoutRequired
	}
	if deps.Compliance == nil {
		return nil, errRouterComplianceRequired
	}
	if deps.Evidence == nil {
		return nil, errRouterEvidenceRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.InjectLoggerMiddleware(logger))
	r.Use(observability.TraceMiddleware())
	r.Use(observability.RecoveryMiddleware(logger))

	r.Get("/healthz", NewHealthHandler(deps.Health).ServeHTTP)

	r.Route("/tools", func(r chi.Router) {
		r.Use(envelope.Middleware())
		r.Use(observability.RequestLoggerMiddleware())
		r.Use(RateLimitMiddleware(deps.Config.RateLimits, clock))
		if deps.Audit != nil {
			r.Use(AuditMiddleware(deps.Audit, clock))
		}
		if deps.IdempotencyStore != nil {
			r.Use(idempotency.Middleware(deps.IdempotencyStore,
				idempotency.WithTTL(deps.Config.Idempotency.TTL),
				idempotency.WithReplayHeader(deps.Config.Idempotency.ReplayHeader),
				idempotency.WithClock(clock),
			))
		}

		r.Route("/cart", NewCartHandlers(deps.Cart).Routes)
		r.Route("/checkout", NewCheckoutHandlers(deps.Checkout, clock).Routes)
		r.Route("/compliance", NewComplianceHandlers(deps.Compliance).Routes)
		r.Route("/evidence", NewEvidenceHandlers(deps.Evidence).Routes)
	})

	return r, nil
}
