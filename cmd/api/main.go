package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "api",
		Short:        "Microloan ledger API",
		SilenceUsage: true,
	}
	cmd.AddCommand(serveCmd(), migrateCmd())
	return cmd
}
