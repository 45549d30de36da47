package main

import (
	"os"

	"github.com/spf13/cobra"

	"proxypulse/internal/interfaces/cli/run"
	"proxypulse/internal/interfaces/cli/serve"
	"proxypulse/internal/shared/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "proxypulse",
		Short:   "proxypulse - a proxy subscription aggregator",
		Long:    `proxypulse fetches proxy subscriptions, validates their nodes, scores subscriptions by historical reliability, and emits ranked node lists.`,
		Version: version.Current,
	}

	rootCmd.Flags().BoolP("version", "v", false, "version for proxypulse")

	rootCmd.AddCommand(
		run.NewCommand(),
		serve.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
