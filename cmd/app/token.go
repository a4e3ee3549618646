package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/config"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/api"
)

// newTokenCmd mints a bearer token for local testing of the guarded routes.
func newTokenCmd(flags *rootFlags) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token signed with auth.jwt_secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Parse(flags.configPath, flags.dev)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not set")
			}
			tok, err := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Mint(args[0], role, ttl)
			if err != nil {
				return err
			}
			cmd.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role claim, e.g. admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
