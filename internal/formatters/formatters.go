package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"smartats/internal/ats"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "Outcome", &OutcomeTextFormatter{})
	registry.RegisterFormatter("markdown", "Outcome", &OutcomeMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats in sorted order
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case *ats.Outcome, ats.Outcome:
		return "Outcome"
	default:
		return "any"
	}
}

func asOutcome(data any) (*ats.Outcome, error) {
	switch v := data.(type) {
	case *ats.Outcome:
		if v == nil {
			return nil, fmt.Errorf("outcome is nil")
		}
		return v, nil
	case ats.Outcome:
		return &v, nil
	default:
		return nil, fmt.Errorf("expected Outcome, got %T", data)
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// ProgressBar draws a fixed-width bar for a fraction in [0,1]
func ProgressBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction*float64(width) + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// OutcomeTextFormatter handles text formatting for analysis outcomes
type OutcomeTextFormatter struct{}

func (tf *OutcomeTextFormatter) Format(data any) (string, error) {
	outcome, err := asOutcome(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	if outcome.Failure != nil {
		f := outcome.Failure
		output.WriteString("=== ERROR ===\n")
		output.WriteString(f.Message)
		output.WriteString("\n")
		for _, v := range f.Violations[min(1, len(f.Violations)):] {
			output.WriteString(v.Message)
			output.WriteString("\n")
		}
		if f.HasRawReply {
			output.WriteString("\n--- raw model output ---\n")
			output.WriteString(f.RawReply)
			output.WriteString("\n")
		}
		return output.String(), nil
	}

	view := outcome.View
	if view == nil {
		return "", fmt.Errorf("outcome %s has no result", outcome.ID)
	}
	output.WriteString("=== ATS ANALYSIS RESULTS ===\n\n")
	output.WriteString("Job Description Match: ")
	output.WriteString(view.Match)
	output.WriteString("\n")
	if view.HasProgress() {
		output.WriteString(ProgressBar(*view.Progress, 40))
		output.WriteString("\n")
	} else if view.MatchNote != "" {
		output.WriteString(view.MatchNote)
		output.WriteString("\n")
	}

	output.WriteString("\nMissing Keywords for Improvement:\n")
	if len(view.MissingKeywords) == 0 {
		output.WriteString(view.NoMissingMessage)
		output.WriteString("\n")
	}
	for _, keyword := range view.MissingKeywords {
		output.WriteString(fmt.Sprintf("  - %s\n", keyword))
	}

	output.WriteString("\nDetailed Profile Summary & Suggestions:\n")
	output.WriteString(view.Summary)
	output.WriteString("\n")

	return output.String(), nil
}

func (tf *OutcomeTextFormatter) SupportedType() string {
	return "Outcome"
}

// OutcomeMarkdownFormatter handles markdown formatting for analysis outcomes
type OutcomeMarkdownFormatter struct{}

func (mf *OutcomeMarkdownFormatter) Format(data any) (string, error) {
	outcome, err := asOutcome(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	if outcome.Failure != nil {
		f := outcome.Failure
		output.WriteString("# Error\n\n")
		for _, v := range f.Violations {
			output.WriteString(fmt.Sprintf("- **%s**: %s\n", v.Field, v.Message))
		}
		if len(f.Violations) == 0 {
			output.WriteString(f.Message)
			output.WriteString("\n")
		}
		if f.HasRawReply {
			output.WriteString("\n```\n")
			output.WriteString(f.RawReply)
			output.WriteString("\n```\n")
		}
		return output.String(), nil
	}

	view := outcome.View
	if view == nil {
		return "", fmt.Errorf("outcome %s has no result", outcome.ID)
	}
	output.WriteString("# ATS Analysis Results\n\n")
	output.WriteString("## Job Description Match\n\n")
	if view.HasProgress() {
		output.WriteString(fmt.Sprintf("**%s** `%s`\n\n", view.Match, ProgressBar(*view.Progress, 20)))
	} else {
		output.WriteString(fmt.Sprintf("**%s**\n\n", view.Match))
		if view.MatchNote != "" {
			output.WriteString(fmt.Sprintf("> %s\n\n", view.MatchNote))
		}
	}

	output.WriteString("## Missing Keywords for Improvement\n\n")
	if len(view.MissingKeywords) == 0 {
		output.WriteString(view.NoMissingMessage)
		output.WriteString("\n")
	}
	for _, keyword := range view.MissingKeywords {
		output.WriteString(fmt.Sprintf("- %s\n", keyword))
	}

	output.WriteString("\n## Detailed Profile Summary & Suggestions\n\n")
	output.WriteString(view.Summary)
	output.WriteString("\n")

	return output.String(), nil
}

func (mf *OutcomeMarkdownFormatter) SupportedType() string {
	return "Outcome"
}
