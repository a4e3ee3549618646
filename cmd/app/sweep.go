package main

import (
	"github.com/spf13/cobra"

	red "github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/redis"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/sched"
)

func newSweepCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue subscriptions once and exit",
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

			w := sched.NewExpiryWorker(cfg.Scheduler.SweepInterval, c.subs, red.NewLocker(c.redis), c.log)
			n, err := w.RunOnce(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("expired %d subscriptions\n", n)
			return nil
		},
	}
}
