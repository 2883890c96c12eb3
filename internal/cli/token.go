package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/24f2002329/caniedit/internal/auth"
	"github.com/24f2002329/caniedit/internal/config"
	"github.com/24f2002329/caniedit/internal/models"
)

func newTokenCmd() *cobra.Command {
	var (
		subject  string
		email    string
		fullName string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 bearer token for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.App.Environment == "production" {
				return errors.New("token minting is disabled in production")
			}

			token, err := auth.GenerateToken(cfg.Auth, models.Identity{Subject: subject, Email: email, FullName: fullName}, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "sub", "", "Subject (user ID)")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&fullName, "name", "", "Full name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	return cmd
}
