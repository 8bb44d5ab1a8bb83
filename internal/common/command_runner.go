package common

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"

	"smartats/internal/ats"
	"smartats/internal/errors"
	"smartats/internal/types"
)

// AnalyzeInput names where the CLI reads a submission from.
// JobDescription wins over JobDescriptionFile when both are set.
type AnalyzeInput struct {
	ResumeFile         string
	JobDescription     string
	JobDescriptionFile string
}

// SubmissionAnalyzer runs one submission to completion
type SubmissionAnalyzer interface {
	Analyze(ctx context.Context, in types.Submission) *ats.Outcome
}

// ErrAnalysisFailed is returned when the outcome was written but ended in an error state
var ErrAnalysisFailed = stderrors.New("analysis did not produce a result")

// RunAnalyzeCommand reads the inputs, runs the analyzer and writes the outcome.
// The outcome is written in both the rendered and the error case.
func RunAnalyzeCommand(
	ctx context.Context,
	logger *errors.Logger,
	analyzer SubmissionAnalyzer,
	cmdConfig CommandConfig,
	input AnalyzeInput,
	outputHandler *OutputHandler,
) (*ats.Outcome, error) {
	fileProcessor := NewFileProcessor(logger)

	submission, err := buildSubmission(fileProcessor, input)
	if err != nil {
		return nil, err
	}

	logger.Info("Starting resume analysis",
		"resume", submission.ResumeFilename,
		"resume_bytes", len(submission.ResumePDF),
		"jd_chars", len(submission.JobDescription),
		"output_format", cmdConfig.OutputFormat)

	outcome := analyzer.Analyze(ctx, submission)

	if usage := outcome.TokenUsage; usage != nil {
		logger.Info("AI token usage",
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens,
			"total_tokens", usage.TotalTokens)
	}

	if err := outputHandler.HandleOutput(outcome, cmdConfig); err != nil {
		return outcome, err
	}

	if !outcome.Succeeded() {
		return outcome, fmt.Errorf("%w: %s", ErrAnalysisFailed, outcome.Failure.Code)
	}
	return outcome, nil
}

// buildSubmission leaves missing inputs empty so the analyzer reports them
// through its validation step
func buildSubmission(fp *FileProcessor, input AnalyzeInput) (types.Submission, error) {
	var submission types.Submission

	switch {
	case input.JobDescription != "":
		submission.JobDescription = input.JobDescription
	case input.JobDescriptionFile != "":
		jd, err := fp.ReadFile(input.JobDescriptionFile)
		if err != nil {
			return submission, err
		}
		submission.JobDescription = jd
	}

	if input.ResumeFile != "" {
		data, err := fp.ReadResume(input.ResumeFile)
		if err != nil {
			return submission, err
		}
		submission.ResumePDF = data
		submission.ResumeFilename = filepath.Base(input.ResumeFile)
	}

	return submission, nil
}
