package cli

import (
	"context"
	"fmt"
	"io"

	"smartats/internal/common"
	"smartats/internal/config"
	"smartats/internal/errors"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}
type servicesFactoryKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}
var servicesFactoryKey = servicesFactoryKeyType{}

// ServicesFactory builds the analyzer stack for a command
type ServicesFactory func(ctx context.Context, cfg *config.Config, logger *errors.Logger) (*common.Services, error)

// defaultServicesFactory wires the analyzer from configuration
func defaultServicesFactory(ctx context.Context, cfg *config.Config, logger *errors.Logger) (*common.Services, error) {
	return common.NewServices(ctx, cfg, Version, logger)
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "smartats",
		Short: "Score a resume against a job description with a generative model",
		Long: `SmartATS compares a resume PDF with a job description the way an applicant
tracking system would. It reports a percentage match, the keywords the
resume is missing and a profile summary with suggestions.

Run it once from the command line with "analyze" or start the web form
with "serve".`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

// Execute runs the CLI with config and logger attached to the context
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	return ExecuteWith(ctx, cfg, logger, defaultServicesFactory, nil)
}

// ExecuteWith is Execute with an injectable services factory and arguments.
// Nil args means os.Args.
func ExecuteWith(ctx context.Context, cfg *config.Config, logger *errors.Logger, factory ServicesFactory, args []string) error {
	return execute(ctx, cfg, logger, factory, args, nil)
}

func execute(ctx context.Context, cfg *config.Config, logger *errors.Logger, factory ServicesFactory, args []string, out io.Writer) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	ctx = context.WithValue(ctx, servicesFactoryKey, factory)

	rootCmd := NewRootCommand()
	if args != nil {
		rootCmd.SetArgs(args)
	}
	if out != nil {
		rootCmd.SetOut(out)
		rootCmd.SetErr(out)
	}
	return rootCmd.ExecuteContext(ctx)
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("config not found in context")
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) (*errors.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger, nil
	}
	return nil, fmt.Errorf("logger not found in context")
}

func getServicesFactoryFromContext(ctx context.Context) ServicesFactory {
	if factory, ok := ctx.Value(servicesFactoryKey).(ServicesFactory); ok && factory != nil {
		return factory
	}
	return defaultServicesFactory
}

// commandDeps resolves everything a command needs from its context
func commandDeps(cmd *cobra.Command) (*config.Config, *errors.Logger, ServicesFactory, error) {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, getServicesFactoryFromContext(cmd.Context()), nil
}
