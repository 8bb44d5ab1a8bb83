package prompt

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Builder fills the evaluator template with a resume and a job description.
// The template can be swapped at runtime; Build always sees a complete one.
type Builder struct {
	template atomic.Pointer[string]
}

// NewBuilder creates a builder. An empty template selects DefaultTemplate.
func NewBuilder(template string) (*Builder, error) {
	if template == "" {
		template = DefaultTemplate
	}
	b := &Builder{}
	if err := b.SetTemplate(template); err != nil {
		return nil, err
	}
	return b, nil
}

// Build substitutes both placeholders in a single pass over the template.
// Inserted text is not rescanned and is not escaped: a resume containing
// "{jd}" stays literal.
func (b *Builder) Build(resumeText, jobDescription string) string {
	r := strings.NewReplacer(
		ResumePlaceholder, resumeText,
		JobDescriptionPlaceholder, jobDescription,
	)
	return r.Replace(*b.template.Load())
}

// SetTemplate replaces the template after checking it carries both placeholders
func (b *Builder) SetTemplate(template string) error {
	if err := ValidateTemplate(template); err != nil {
		return err
	}
	b.template.Store(&template)
	return nil
}

// Template returns the template currently in use
func (b *Builder) Template() string {
	return *b.template.Load()
}

// ValidateTemplate rejects templates missing a placeholder
func ValidateTemplate(template string) error {
	if strings.TrimSpace(template) == "" {
		return fmt.Errorf("prompt template is empty")
	}
	var missing []string
	for _, p := range []string{ResumePlaceholder, JobDescriptionPlaceholder} {
		if !strings.Contains(template, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("prompt template is missing placeholder(s): %s", strings.Join(missing, ", "))
	}
	return nil
}
