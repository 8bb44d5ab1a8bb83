package cli

import (
	"context"
	stderrors "errors"
	"fmt"

	"smartats/internal/common"
	"smartats/internal/formatters"

	"github.com/spf13/cobra"
)

func newAnalyzeCommand() *cobra.Command {
	var (
		cmdConfig common.CommandConfig
		input     common.AnalyzeInput
	)

	cmd := &cobra.Command{
		Use:   "analyze [resume.pdf]",
		Short: "Score a resume PDF against a job description",
		Long: `Analyze extracts the text of a resume PDF, sends it together with the job
description to the configured model and prints the match percentage, the
missing keywords and a profile summary.

The job description is given inline with --jd or read from --jd-file.
Missing inputs are reported the same way the web form reports them.`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if cmdConfig.OutputFormat == "" {
				cmdConfig.OutputFormat = cfg.App.DefaultFormat
			}
			return common.ValidateOutputFormat(cmdConfig.OutputFormat, cfg.App.SupportedFormats)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				input.ResumeFile = args[0]
			}
			return runAnalyze(cmd, cmdConfig, input)
		},
	}

	cmd.Flags().StringVar(&input.JobDescription, "jd", "", "Job description text")
	cmd.Flags().StringVar(&input.JobDescriptionFile, "jd-file", "", "File containing the job description")
	cmd.Flags().StringVarP(&cmdConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&cmdConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	cmd.MarkFlagsMutuallyExclusive("jd", "jd-file")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return []string{}, cobra.ShellCompDirectiveError
		}
		available := formatters.NewFormatterRegistry().GetSupportedFormats()
		return common.CompletableFormats(cfg.App.SupportedFormats, available), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runAnalyze(cmd *cobra.Command, cmdConfig common.CommandConfig, input common.AnalyzeInput) error {
	cfg, logger, factory, err := commandDeps(cmd)
	if err != nil {
		return err
	}

	services, err := factory(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	defer func() {
		if err := services.Close(context.Background()); err != nil {
			logger.LogError(err, "Failed to release analyzer resources")
		}
	}()

	outputHandler := common.NewOutputHandlerWithWriter(cmd.OutOrStdout(), logger)
	outcome, err := common.RunAnalyzeCommand(cmd.Context(), logger, services.Analyzer, cmdConfig, input, outputHandler)
	if err != nil {
		if stderrors.Is(err, common.ErrAnalysisFailed) {
			return err
		}
		return fmt.Errorf("failed to analyze resume: %w", err)
	}

	logger.Info("Resume analysis completed successfully",
		"id", outcome.ID,
		"model", outcome.Model,
		"duration", outcome.Duration)
	return nil
}
