// Package cmd defines and implements the CLI commands for the leadscout
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leadscout",
		Short: "A lead-generation pipeline over public forum posts.",
		Long: `leadscout ingests short public posts from configured feeds, filters
and classifies them for business opportunity, clusters the results by
normalized category, and records every run in a queryable lifecycle table.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is environment-only)")

	cmd.AddCommand(newRunCmd())

	return cmd
}

// Execute is the main entry point. A failed run exits non-zero so schedulers
// can see it.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
