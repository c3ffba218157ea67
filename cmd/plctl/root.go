package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stemsi/prairie-backend/internal/config"
	"github.com/stemsi/prairie-backend/internal/logger"
)

// newRootCmd builds the command tree. A fresh tree per call keeps flag state
// out of tests.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "plctl",
		Short:         "Operator tool for the prairie backend",
		Long:          "plctl signs and checks variant tokens, replays grading notifications and dry-runs variant generation.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().Bool("verbose", false, "Log at debug level to stderr")

	root.AddCommand(newTokenCmd())
	root.AddCommand(newGradingCmd())
	root.AddCommand(newVariantCmd())
	return root
}

func Execute() error {
	return newRootCmd().Execute()
}

// setup loads configuration and a logger honoring --verbose.
func setup(cmd *cobra.Command) (*config.Config, zerolog.Logger) {
	cfg := config.Load()
	level := cfg.LogLevel
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = "debug"
	}
	return cfg, logger.New(cmd.ErrOrStderr(), level, "pretty")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
