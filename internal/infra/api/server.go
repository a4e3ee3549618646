package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/config"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/usecase"
)

// HealthCheck probes one dependency; a non-nil error marks the service degraded.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Purchase usecase.PurchaseUseCase
	Confirm  usecase.ConfirmationUseCase
	Subs     usecase.SubscriptionUseCase
	Stats    usecase.StatsUseCase
	Plans    repository.PlanRepository
	Auth     *AuthManager // nil disables the bearer guard
	Limiter  Limiter
	Checks   map[string]HealthCheck
}

type Server struct {
	purchase usecase.PurchaseUseCase
	confirm  usecase.ConfirmationUseCase
	subs     usecase.SubscriptionUseCase
	stats    usecase.StatsUseCase
	plans    repository.PlanRepository
	auth     *AuthManager
	limiter  Limiter
	checks   map[string]HealthCheck

	cfg config.HTTPConfig
	dev bool
	log *zerolog.Logger

	srv *http.Server
}

func NewServer(d Deps, cfg config.HTTPConfig, dev bool, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	s := &Server{
		purchase: d.Purchase,
		confirm:  d.Confirm,
		subs:     d.Subs,
		stats:    d.Stats,
		plans:    d.Plans,
		auth:     d.Auth,
		limiter:  d.Limiter,
		checks:   d.Checks,
		cfg:      cfg,
		dev:      dev,
		log:      &l,
	}
	// built here so a Shutdown that wins the race against Start still
	// stops the listener
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Metrics())

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(s.cfg.RequestTimeout))

		r.Get("/plans", s.handleListPlans)

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(s.limiter, "confirmation", s.cfg.ConfirmRateLimit, s.cfg.ConfirmRateWindow, s.log))
			r.Post("/payments/confirmation", s.handleConfirmation)
			r.Get("/payments/confirmation", s.handleConfirmation)
			r.Get("/payments/response", s.handleResponse)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(s.auth))
			r.Post("/purchases", s.handlePurchase)
			r.Get("/payments/{reference}", s.handleGetPayment)
			r.Get("/users/{userID}/subscription", s.handleGetSubscription)
			r.Post("/users/{userID}/subscription/cancel", s.handleCancelSubscription)
			r.Get("/admin/stats", s.handleStats)
		})
	})
	return r
}

// Start serves until Shutdown; http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
