package analysis

import (
	"fmt"

	"smartats/internal/types"
)

// NoMissingKeywordsMessage is shown instead of an empty keyword list
const NoMissingKeywordsMessage = "Great job! Your resume appears to cover all the key skills."

// View is the display form of an analysis result
type View struct {
	Match string `json:"jdMatch"`
	// Progress is Match as a fraction in [0,1]. Nil when Match is not a usable percentage.
	Progress  *float64 `json:"progress,omitempty"`
	Percent   int      `json:"percent"`
	MatchNote string   `json:"matchNote,omitempty"`

	MissingKeywords  []string `json:"missingKeywords"`
	NoMissingMessage string   `json:"noMissingMessage,omitempty"`

	Summary  string   `json:"profileSummary"`
	Warnings []string `json:"warnings,omitempty"`
}

// HasProgress reports whether a progress indicator can be drawn
func (v View) HasProgress() bool {
	return v.Progress != nil
}

// Render builds the view for a decoded result
func Render(result types.AnalysisResult) View {
	view := View{
		Match:           result.JDMatch,
		MissingKeywords: result.MissingKeywords,
		Summary:         result.ProfileSummary,
	}

	if view.Match == "" {
		view.Match = types.DefaultJDMatch
	}
	if pct, err := ParsePercent(view.Match); err == nil {
		progress := float64(pct) / 100
		view.Progress = &progress
		view.Percent = pct
	} else {
		view.MatchNote = fmt.Sprintf("The match score could not be read as a percentage (%v); showing it as returned.", err)
	}

	if view.MissingKeywords == nil {
		view.MissingKeywords = []string{}
	}
	if len(view.MissingKeywords) == 0 {
		view.NoMissingMessage = NoMissingKeywordsMessage
	}

	// An explicit empty summary is shown as empty
	if view.Summary == "" && !result.HasProfileSummary {
		view.Summary = types.DefaultProfileSummary
	}

	return view
}

// RenderOutcome renders a decoded outcome and carries its warnings along
func RenderOutcome(outcome ParseOutcome) View {
	view := Render(outcome.Result)
	view.Warnings = outcome.Warnings
	return view
}
