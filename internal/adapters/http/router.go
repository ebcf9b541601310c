package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/viralforge/donor-ledger/internal/application"
	"github.com/viralforge/donor-ledger/internal/ports"
)

// Handler is the HTTP adapter entrypoint for ledger use-cases.
type Handler struct {
	service  *application.Service
	verifier ports.TokenVerifier
	ready    func(ctx context.Context) error
}

// NewHandler binds the ledger service and the bearer-token verifier. ready
// may be nil, in which case /readyz always reports ready.
func NewHandler(service *application.Service, verifier ports.TokenVerifier, ready func(ctx context.Context) error) *Handler {
	return &Handler{service: service, verifier: verifier, ready: ready}
}

type RouterConfig struct {
	AllowedOrigins  []string
	WriteRateLimit  int
	RateLimitWindow time.Duration
	Metrics         http.Handler
	Observer        RequestObserver
}

// NewRouter registers the ledger routes. Reads are only throttled by the
// upstream gateway; writes get a per-IP limit here.
func NewRouter(handler *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware(cfg.Observer))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	writeLimit := func(next http.Handler) http.Handler { return next }
	if cfg.WriteRateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		writeLimit = httprate.LimitByIP(cfg.WriteRateLimit, window)
	}

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(handler.authMiddleware)

		r.Route("/donors", func(r chi.Router) {
			r.Get("/user", handler.listOwnerDonors)
			r.Post("/by-ids", handler.listDonorsByIDs)
			r.With(writeLimit).Post("/", handler.recordContribution)
			r.With(writeLimit).Delete("/{id}", handler.refundDonor)
		})

		r.Route("/donations", func(r chi.Router) {
			r.Get("/recommended", handler.recommend)
			r.Get("/owned", handler.listOwnerCampaigns)
			r.Get("/{id}", handler.getCampaign)
			r.With(writeLimit).Post("/", handler.createCampaign)
			r.With(writeLimit).Patch("/{id}", handler.updateCampaign)
			r.With(writeLimit).Patch("/{id}/pause", handler.togglePause)
		})

		r.With(writeLimit).Post("/payment-intents", handler.createPaymentIntent)
	})

	return r
}
