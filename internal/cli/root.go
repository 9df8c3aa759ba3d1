// Package cli implements the clinic-agent command line using cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clinic-agent/internal/app"
	"clinic-agent/internal/config"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "clinic-agent",
		Short:         "Appointment booking assistant for a clinic",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default $CLINIC_CONFIG)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to a .env file (default ./.env when present)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(
		newChatCommand(opts),
		newServeCommand(opts),
		newLambdaCommand(opts),
		newSpecialtiesCommand(opts),
		newDoctorsCommand(opts),
		newAvailabilityCommand(opts),
		newBookCommand(opts),
	)
	return root
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (o *rootOptions) load() (*config.Config, *app.Container, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	c, err := app.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}
