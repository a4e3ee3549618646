package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/db/postgres/migrations"
)

type gooseLogger struct{ log zerolog.Logger }

func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.log.Fatal().Msgf(format, v...) }
func (l gooseLogger) Printf(format string, v ...interface{}) { l.log.Info().Msgf(format, v...) }

// Migrate runs the embedded goose migrations. command is up, down or status.
func Migrate(ctx context.Context, pool *pgxpool.Pool, command string, log zerolog.Logger) error {
	db := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{log: log.With().Str("component", "migrate").Logger()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var err error
	switch command {
	case "", "up":
		err = goose.UpContext(ctx, db, ".")
	case "down":
		err = goose.DownContext(ctx, db, ".")
	case "status":
		err = goose.StatusContext(ctx, db, ".")
	default:
		return fmt.Errorf("migrate: unknown command %q", command)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}
