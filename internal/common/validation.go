package common

import (
	"fmt"
	"slices"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// CompletableFormats returns the configured formats the formatter registry
// can actually produce, for shell completion
func CompletableFormats(supportedFormats, available []string) []string {
	if len(supportedFormats) == 0 {
		return available
	}
	out := make([]string, 0, len(supportedFormats))
	for _, format := range supportedFormats {
		if slices.Contains(available, format) {
			out = append(out, format)
		}
	}
	return out
}
