package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tandem/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tandem",
		Short: "Couple windowed simulators through translating relays",
		Long: `tandem runs coupled simulations inside one results tree: it publishes
the effective run configuration, launches the configured child
processes, sequences them over filesystem readiness handshakes, and
joins them at the end. Any child exiting non-zero fails the run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newRunCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Describe("tandem"))
		},
	}
}
