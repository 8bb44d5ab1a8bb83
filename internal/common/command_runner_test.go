package common

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"smartats/internal/analysis"
	"smartats/internal/ats"
	"smartats/internal/errors"
	"smartats/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAnalyzer struct {
	got     types.Submission
	outcome *ats.Outcome
}

func (r *recordingAnalyzer) Analyze(_ context.Context, in types.Submission) *ats.Outcome {
	r.got = in
	return r.outcome
}

func renderedOutcome(t *testing.T) *ats.Outcome {
	t.Helper()
	parsed := analysis.Parse(`{"JD Match":"75%","MissingKeywords":["Terraform"],"Profile Summary":"Solid."}`)
	require.True(t, parsed.Decoded())
	view := analysis.RenderOutcome(parsed)
	return &ats.Outcome{
		ID:         "run-1",
		State:      ats.StateRendered,
		View:       &view,
		TokenUsage: &types.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestRunAnalyzeCommandWritesRenderedOutcome(t *testing.T) {
	dir := t.TempDir()
	resume := writeFile(t, dir, "cv.pdf", "%PDF-1.4 fake")
	jdFile := writeFile(t, dir, "jd.txt", "Platform engineer, Terraform")

	analyzer := &recordingAnalyzer{outcome: renderedOutcome(t)}
	var stdout bytes.Buffer
	logger := errors.NewNopLogger()

	outcome, err := RunAnalyzeCommand(context.Background(), logger, analyzer,
		CommandConfig{OutputFormat: "text"},
		AnalyzeInput{ResumeFile: resume, JobDescriptionFile: jdFile},
		NewOutputHandlerWithWriter(&stdout, logger))
	require.NoError(t, err)
	assert.True(t, outcome.Succeeded())

	assert.Equal(t, "Platform engineer, Terraform", analyzer.got.JobDescription)
	assert.Equal(t, []byte("%PDF-1.4 fake"), analyzer.got.ResumePDF)
	assert.Equal(t, "cv.pdf", analyzer.got.ResumeFilename)
	assert.Contains(t, stdout.String(), "Job Description Match: 75%")
	assert.Contains(t, stdout.String(), "  - Terraform")
}

func TestRunAnalyzeCommandInlineJobDescriptionWins(t *testing.T) {
	dir := t.TempDir()
	jdFile := writeFile(t, dir, "jd.txt", "from file")
	analyzer := &recordingAnalyzer{outcome: renderedOutcome(t)}
	logger := errors.NewNopLogger()

	_, err := RunAnalyzeCommand(context.Background(), logger, analyzer,
		CommandConfig{OutputFormat: "json"},
		AnalyzeInput{JobDescription: "inline", JobDescriptionFile: jdFile},
		NewOutputHandlerWithWriter(&bytes.Buffer{}, logger))
	require.NoError(t, err)
	assert.Equal(t, "inline", analyzer.got.JobDescription)
	assert.Nil(t, analyzer.got.ResumePDF)
}

func TestRunAnalyzeCommandReportsFailedOutcome(t *testing.T) {
	analyzer := &recordingAnalyzer{outcome: &ats.Outcome{
		State: ats.StateErrorShown,
		Failure: &ats.Failure{
			Kind:    errors.ErrorTypeValidation,
			Code:    errors.ErrCodeMissingResume,
			Message: ats.MsgMissingResume,
			Field:   ats.FieldResume,
		},
	}}
	var stdout bytes.Buffer
	logger := errors.NewNopLogger()

	outcome, err := RunAnalyzeCommand(context.Background(), logger, analyzer,
		CommandConfig{OutputFormat: "text"},
		AnalyzeInput{JobDescription: "Backend engineer"},
		NewOutputHandlerWithWriter(&stdout, logger))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrAnalysisFailed))
	assert.ErrorContains(t, err, errors.ErrCodeMissingResume)
	require.NotNil(t, outcome)
	assert.Contains(t, stdout.String(), ats.MsgMissingResume)
}

func TestRunAnalyzeCommandMissingFiles(t *testing.T) {
	dir := t.TempDir()
	logger := errors.NewNopLogger()
	analyzer := &recordingAnalyzer{outcome: renderedOutcome(t)}

	_, err := RunAnalyzeCommand(context.Background(), logger, analyzer,
		CommandConfig{OutputFormat: "text"},
		AnalyzeInput{JobDescriptionFile: filepath.Join(dir, "missing.txt")},
		NewOutputHandlerWithWriter(&bytes.Buffer{}, logger))
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeFileNotFound, appErr.Code)

	_, err = RunAnalyzeCommand(context.Background(), logger, analyzer,
		CommandConfig{OutputFormat: "text"},
		AnalyzeInput{JobDescription: "jd", ResumeFile: filepath.Join(dir, "missing.pdf")},
		NewOutputHandlerWithWriter(&bytes.Buffer{}, logger))
	appErr, ok = errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeValidation, appErr.Type)
}

func TestHandleOutputToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "reports", "result.md")
	handler := NewOutputHandlerWithWriter(&bytes.Buffer{}, errors.NewNopLogger())

	require.NoError(t, handler.HandleOutput(renderedOutcome(t), CommandConfig{OutputFile: out, OutputFormat: "markdown"}))
	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# ATS Analysis Results")

	err = handler.HandleOutput(renderedOutcome(t), CommandConfig{OutputFormat: "yaml"})
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInvalidFormat, appErr.Code)
}
