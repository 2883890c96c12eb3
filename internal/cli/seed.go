package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/24f2002329/caniedit/internal/plans"
	"github.com/24f2002329/caniedit/internal/tools"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the plan catalog and tool registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.seed(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range plans.Definitions(a.cfg.Plans) {
				fmt.Fprintf(out, "plan  %-12s daily_limit=%d\n", p.Slug, p.DailyLimit)
			}
			for _, t := range tools.Definitions() {
				fmt.Fprintf(out, "tool  %-12s weight=%d premium=%t\n", t.Slug, t.Weight, t.IsPremium)
			}
			return nil
		},
	}
}
