package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/api"
	pg "github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/db/postgres"
	red "github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/redis"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/sched"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the expiry sweep and the activation reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, err := buildCore(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.close()
			c.start(ctx)
			if cfg.Runtime.Dev {
				c.log.Warn().Msg("developer mode enabled")
			}

			var auth *api.AuthManager
			if cfg.Auth.JWTSecret != "" {
				auth = api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
			} else {
				c.log.Warn().Msg("auth.jwt_secret not set; purchase API is unauthenticated")
			}
			srv := api.NewServer(api.Deps{
				Purchase: c.purchase,
				Confirm:  c.confirm,
				Subs:     c.subs,
				Stats:    c.stats,
				Plans:    c.plans,
				Auth:     auth,
				Limiter:  red.NewRateLimiter(c.redis),
				Checks:   c.healthChecks(),
			}, cfg.HTTP, cfg.Runtime.Dev, c.log)

			sweeper := sched.NewExpiryWorker(cfg.Scheduler.SweepInterval, c.subs, red.NewLocker(c.redis), c.log)
			reconciler := sched.NewActivationReconciler(c.confirm, c.stats,
				cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileAfter, cfg.Scheduler.BatchSize, c.log)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(srv.Start)
			g.Go(func() error {
				if err := sweeper.Run(gctx); !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				reconciler.Start(gctx)
				return nil
			})
			g.Go(func() error {
				pg.ReportPoolStats(gctx, c.pool, 15*time.Second)
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				c.log.Info().Msg("shutdown requested")
				sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
				defer cancel()
				return srv.Shutdown(sctx)
			})
			return g.Wait()
		},
	}
}
