// Package cli is the caniedit command line: the API server plus the
// operator commands that share its wiring.
package cli

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "caniedit",
		Short:         "CanIEdit API server and operator tools",
		Long:          "caniedit serves the PDF tools API and provides commands to migrate the schema, seed the plan and tool catalogs, run retention sweeps and manage subscriptions.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newSweepCmd(),
		newGrantCmd(),
		newTokenCmd(),
	)

	return rootCmd
}
