package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fedgrid-hq/triton/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "triton",
	Short: "Triton - policy decision and enforcement engine",
	Long: `Triton is a policy decision and enforcement engine for federated
learning deployments on software-defined networks.

It provides:
  - Versioned policy storage with lifecycle management
  - Context-driven condition evaluation and scheduling
  - Dependency and conflict resolution across policies
  - Action dispatch to SDN controllers and FL coordinators
  - Append-only audit trail and automatic rollback`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
