package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newGrantCmd() *cobra.Command {
	var (
		userID    string
		planSlug  string
		periodEnd string
	)

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Make a plan the user's single active subscription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" || planSlug == "" {
				return errors.New("--user and --plan are required")
			}
			end, err := parsePeriodEnd(periodEnd)
			if err != nil {
				return err
			}

			a, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			sub, err := a.resolver.Grant(cmd.Context(), userID, planSlug, end)
			if err != nil {
				return err
			}
			until := "open-ended"
			if sub.CurrentPeriodEnd != nil {
				until = sub.CurrentPeriodEnd.Format(time.RFC3339)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "subscription %d: %s -> %s (%s)\n", sub.ID, userID, planSlug, until)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID (identity provider subject)")
	cmd.Flags().StringVar(&planSlug, "plan", "", "Plan slug, e.g. individual")
	cmd.Flags().StringVar(&periodEnd, "period-end", "", "End of the paid period (RFC3339 or YYYY-MM-DD); empty for open-ended")

	return cmd
}

func parsePeriodEnd(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid --period-end %q: use RFC3339 or YYYY-MM-DD", value)
}
