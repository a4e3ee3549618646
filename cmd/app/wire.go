package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/config"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
	payAdapters "github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/adapters/payment"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/api"
	pg "github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/db/postgres"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/logging"
	red "github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/redis"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/worker"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/usecase"
)

// core is the wired service graph shared by serve and sweep.
type core struct {
	cfg    *config.Config
	log    *zerolog.Logger
	pool   *pgxpool.Pool
	redis  *red.Client
	events *worker.Pool

	plans    repository.PlanRepository
	subs     *usecase.SubscriptionManager
	confirm  *usecase.Orchestrator
	purchase usecase.PurchaseUseCase
	stats    usecase.StatsUseCase
}

func buildCore(ctx context.Context, cfg *config.Config) (*core, error) {
	log := logging.New(cfg.Log, cfg.Runtime.Dev)

	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	rc, err := red.NewClient(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	tax, err := usecase.NewTaxCalculator(cfg.Payment.TaxRate)
	if err != nil {
		pool.Close()
		_ = rc.Close()
		return nil, fmt.Errorf("payment.tax_rate: %w", err)
	}

	events := worker.NewPool(cfg.Scheduler.Workers, 256, *log)
	publisher := red.NewEventPublisher(rc, events, cfg.Redis.Channel, *log)

	tm := pg.NewTxManager(pool)
	payments := pg.NewPaymentRecordRepo(pool)
	subsRepo := pg.NewSubscriptionRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	plans := pg.NewPlanRepoCacheDecorator(planRepo, rc, cfg.Redis.TTL, *log)
	catalog := pg.NewCatalogRepo(pool, plans)
	gateway := payAdapters.NewEpaycoGateway(cfg.Epayco, cfg.Payment)

	retry := usecase.DefaultRetryPolicy()
	retry.Attempts = cfg.Payment.Retry.Attempts
	retry.Initial = cfg.Payment.Retry.Initial
	retry.Max = cfg.Payment.Retry.Max

	subs := usecase.NewSubscriptionManager(subsRepo, plans, tm, publisher, log,
		usecase.WithOpTimeout(cfg.Payment.OpTimeout),
		usecase.WithSweepBatch(cfg.Scheduler.BatchSize),
	)
	c := &core{
		cfg:    cfg,
		log:    log,
		pool:   pool,
		redis:  rc,
		events: events,
		plans:  plans,
		subs:   subs,
		confirm: usecase.NewOrchestrator(gateway, payments, subs, publisher, retry,
			cfg.Payment.OpTimeout, log),
		purchase: usecase.NewPurchaseUseCase(catalog, payments, subs, gateway, tm, tax,
			usecase.NewReferenceGenerator(), cfg.Payment.Currency, cfg.Payment.OpTimeout, log),
		stats: usecase.NewStatsUseCase(subsRepo, payments, log),
	}
	return c, nil
}

// start launches the event workers detached from ctx so that close can
// drain queued events after a signal; close then releases the connections.
func (c *core) start(ctx context.Context) {
	c.events.Start(context.WithoutCancel(ctx))
}

func (c *core) close() {
	c.events.Stop()
	if err := c.redis.Close(); err != nil {
		c.log.Warn().Err(err).Msg("redis close")
	}
	c.pool.Close()
}

func (c *core) healthChecks() map[string]api.HealthCheck {
	return map[string]api.HealthCheck{
		"postgres": func(ctx context.Context) error { return c.pool.Ping(ctx) },
		"redis":    c.redis.Ping,
	}
}
