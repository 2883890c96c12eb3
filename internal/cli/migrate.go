package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/24f2002329/caniedit/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := migrateSchema(cmd.Context(), a); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", a.db.Driver)
			return err
		},
	}
}

func migrateSchema(ctx context.Context, a *app) error {
	if err := database.Migrate(ctx, a.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
