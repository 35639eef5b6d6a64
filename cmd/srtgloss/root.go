package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/srtgloss/cmd/srtgloss/commands"
	"github.com/walteh/srtgloss/cmd/srtgloss/opts"
	"github.com/walteh/srtgloss/pkg/config"
	"github.com/walteh/srtgloss/pkg/log"
	"gitlab.com/tozd/go/errors"
)

var (
	// Flags
	configFile string
	debug      bool
)

// newRootOpts creates a new RootOpts with initialized dependencies
func newRootOpts(cmd *cobra.Command) (*opts.RootOpts, error) {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx, configFile)
	if err != nil {
		return nil, errors.Errorf("loading config: %w", err)
	}

	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return &opts.RootOpts{
		Config:  cfg,
		Console: log.New(cmd.OutOrStdout(), level),
	}, nil
}

// newRootCmd builds the srtgloss command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "srtgloss",
		Short:         "Batch-apply a regex glossary to subtitle files",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}
	addRootFlags(root)

	root.AddCommand(
		commands.NewRunCmd(newRootOpts),
		commands.NewRevertCmd(newRootOpts),
		commands.NewPurgeCmd(newRootOpts),
		commands.NewRulesCmd(newRootOpts),
		commands.NewHistoryCmd(newRootOpts),
	)
	return root
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", ".srtgloss.yaml", "config file path")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

// setupLogging configures zerolog based on flags
func setupLogging() {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
}
