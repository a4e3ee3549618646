package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/config"
	pg "github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/db/postgres"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/logging"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply or inspect the embedded schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			cfg, err := config.Parse(flags.configPath, flags.dev)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("config: database.url is required")
			}
			log := logging.New(cfg.Log, cfg.Runtime.Dev)

			ctx := cmd.Context()
			pool, err := pg.NewPool(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer pool.Close()
			return pg.Migrate(ctx, pool, command, *log)
		},
	}
}
