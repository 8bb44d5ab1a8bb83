package formatters

import (
	"encoding/json"
	"testing"

	"smartats/internal/analysis"
	"smartats/internal/ats"
	"smartats/internal/errors"
	"smartats/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderedOutcome(t *testing.T, raw string) *ats.Outcome {
	t.Helper()
	parsed := analysis.Parse(raw)
	require.True(t, parsed.Decoded())
	view := analysis.RenderOutcome(parsed)
	return &ats.Outcome{ID: "id-1", State: ats.StateRendered, View: &view}
}

func TestFormatRenderedOutcome(t *testing.T) {
	outcome := renderedOutcome(t, `{"JD Match":"82%","MissingKeywords":["SQL","Docker"],"Profile Summary":"Strong backend skills."}`)
	registry := NewFormatterRegistry()

	text, err := registry.Format(outcome, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "Job Description Match: 82%")
	assert.Contains(t, text, ProgressBar(0.82, 40))
	assert.Contains(t, text, "  - SQL\n  - Docker\n")
	assert.Contains(t, text, "Strong backend skills.")

	md, err := registry.Format(outcome, "markdown")
	require.NoError(t, err)
	assert.Contains(t, md, "# ATS Analysis Results")
	assert.Contains(t, md, "- SQL\n- Docker\n")

	js, err := registry.Format(outcome, "json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(js), &decoded))
	assert.Equal(t, "rendered", decoded["state"])
	view := decoded["view"].(map[string]any)
	assert.InDelta(t, 0.82, view["progress"], 1e-9)
}

func TestFormatEmptyKeywordsAndUnusableMatch(t *testing.T) {
	outcome := renderedOutcome(t, `{"JD Match":"N/A","MissingKeywords":[],"Profile Summary":"ok"}`)

	text, err := NewFormatterRegistry().Format(outcome, "text")
	require.NoError(t, err)
	assert.Contains(t, text, analysis.NoMissingKeywordsMessage)
	assert.Contains(t, text, "Job Description Match: N/A")
	assert.Contains(t, text, outcome.View.MatchNote)
	assert.NotContains(t, text, "[#")
}

func TestFormatFailureShowsRawReply(t *testing.T) {
	outcome := &ats.Outcome{
		State: ats.StateErrorShown,
		Failure: &ats.Failure{
			Kind:        errors.ErrorTypeJSONDecode,
			Code:        errors.ErrCodeResponseParseFailed,
			Message:     ats.MsgInvalidJSON,
			RawReply:    "plain prose",
			HasRawReply: true,
		},
	}

	for _, format := range []string{"text", "markdown"} {
		t.Run(format, func(t *testing.T) {
			out, err := NewFormatterRegistry().Format(outcome, format)
			require.NoError(t, err)
			assert.Contains(t, out, ats.MsgInvalidJSON)
			assert.Contains(t, out, "plain prose")
		})
	}
}

func TestFormatValidationFailureListsEveryField(t *testing.T) {
	outcome := ats.Outcome{
		State: ats.StateErrorShown,
		Failure: &ats.Failure{
			Kind:    errors.ErrorTypeValidation,
			Message: ats.MsgMissingJobDescription,
			Violations: []ats.Violation{
				{Field: ats.FieldJobDescription, Message: ats.MsgMissingJobDescription},
				{Field: ats.FieldResume, Message: ats.MsgMissingResume},
			},
		},
	}

	text, err := NewFormatterRegistry().Format(outcome, "text")
	require.NoError(t, err)
	assert.Contains(t, text, ats.MsgMissingJobDescription)
	assert.Contains(t, text, ats.MsgMissingResume)
}

func TestFormatUnknownFormat(t *testing.T) {
	_, err := NewFormatterRegistry().Format(types.NewAnalysisResult(), "yaml")
	assert.Error(t, err)
	assert.Equal(t, []string{"json", "markdown", "text"}, NewFormatterRegistry().GetSupportedFormats())
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		fraction float64
		expected string
	}{
		{0, "[----------]"},
		{0.5, "[#####-----]"},
		{0.82, "[########--]"},
		{1, "[##########]"},
		{1.5, "[##########]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ProgressBar(tt.fraction, 10))
	}
}

func TestFormatterRejectsWrongType(t *testing.T) {
	_, err := (&OutcomeTextFormatter{}).Format("nope")
	assert.Error(t, err)
	_, err = (&OutcomeMarkdownFormatter{}).Format((*ats.Outcome)(nil))
	assert.Error(t, err)
}
