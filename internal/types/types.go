package types

// Default values used when the model omits a field
const (
	DefaultJDMatch        = "N/A"
	DefaultProfileSummary = "The model did not provide a summary."
)

// Reply keys the model is instructed to emit
const (
	KeyJDMatch         = "JD Match"
	KeyMissingKeywords = "MissingKeywords"
	KeyProfileSummary  = "Profile Summary"
)

// Submission is one form submission: a job description and a resume PDF
type Submission struct {
	JobDescription string `json:"jobDescription"`
	ResumePDF      []byte `json:"-"`
	ResumeFilename string `json:"resumeFilename,omitempty"`
}

// AnalysisResult is the typed form of the model's JSON reply.
// Every field holds its default when the key was absent or had the wrong type.
type AnalysisResult struct {
	JDMatch         string   `json:"JD Match"`
	MissingKeywords []string `json:"MissingKeywords"`
	ProfileSummary  string   `json:"Profile Summary"`

	HasJDMatch         bool `json:"-"`
	HasMissingKeywords bool `json:"-"`
	HasProfileSummary  bool `json:"-"`
}

// NewAnalysisResult returns a result with every field at its default
func NewAnalysisResult() AnalysisResult {
	return AnalysisResult{
		JDMatch:         DefaultJDMatch,
		MissingKeywords: []string{},
		ProfileSummary:  DefaultProfileSummary,
	}
}

// TokenUsage holds token usage as reported by the model API
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens"`
}
