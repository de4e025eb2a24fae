// schedulerctl runs operator tasks against the scheduler's configuration:
// schema migration, one-off sweeps, API tokens and shared secrets.
package main

import (
	"fmt"
	"os"

	"github.com/maheshrc27/social-scheduler/internal/telemetry"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	telemetry.SetupLogger()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "schedulerctl",
		Short:         "Operator tool for the social post scheduler",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newMigrateCmd(),
		newSweepCmd(),
		newTokenCmd(),
		newSecretCmd(),
	)
	return rootCmd
}
