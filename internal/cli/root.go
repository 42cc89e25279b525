package cli

import (
	"context"

	"github.com/spf13/cobra"

	"loans/internal/config"
	"loans/internal/log"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	envFile string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "loans",
		Short:   "Loan payment status service",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newWorkerCommand(opts),
		newClassifyCommand(opts),
	)

	return rootCmd
}

// Execute runs the command tree.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

// bootstrap loads the env file and configuration and installs the logger.
func (o *rootOptions) bootstrap(overrides ...func(*config.Config)) (*config.Config, *log.Logger, error) {
	if o.envFile != "" {
		LoadEnvFile(o.envFile)
	}
	cfg, err := LoadAndValidateConfig(overrides...)
	if err != nil {
		return nil, nil, err
	}
	logger, err := SetupLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
