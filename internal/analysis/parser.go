// Package analysis decodes the model's reply and turns it into a view.
package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"smartats/internal/errors"
	"smartats/internal/types"
)

// ParseStatus tags the variant held by a ParseOutcome
type ParseStatus string

const (
	StatusDecoded      ParseStatus = "decoded"
	StatusDecodeFailed ParseStatus = "decode_failed"
)

// ParseOutcome is either a decoded result or a decode failure carrying the raw reply
type ParseOutcome struct {
	Status   ParseStatus
	Result   types.AnalysisResult
	Warnings []string

	// Set when Status is StatusDecodeFailed
	Err *errors.AppError
	Raw string
}

// Decoded reports whether the reply decoded into a result
func (o ParseOutcome) Decoded() bool {
	return o.Status == StatusDecoded
}

// Parse decodes a model reply. It never panics and never returns an error;
// failures come back as a StatusDecodeFailed outcome.
func Parse(raw string) (outcome ParseOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = decodeFailed(raw, fmt.Errorf("panic while decoding reply: %v", r))
		}
	}()

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &fields); err != nil {
		return decodeFailed(raw, err)
	}
	if fields == nil {
		// the literal null decodes into a nil map
		return decodeFailed(raw, fmt.Errorf("reply is null, expected a JSON object"))
	}

	result := types.NewAnalysisResult()
	var warnings []string
	warn := func(key string, err error) {
		warnings = append(warnings, fmt.Sprintf("%q ignored: %v", key, err))
	}

	if v, ok := present(fields, types.KeyJDMatch); ok {
		if match, err := decodeMatch(v); err != nil {
			warn(types.KeyJDMatch, err)
		} else {
			result.JDMatch = match
			result.HasJDMatch = true
		}
	}

	if v, ok := present(fields, types.KeyMissingKeywords); ok {
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err != nil {
			warn(types.KeyMissingKeywords, fmt.Errorf("expected a list of strings"))
		} else {
			keywords := make([]string, 0, len(items))
			for i, item := range items {
				var keyword string
				if err := json.Unmarshal(item, &keyword); err != nil || bytes.Equal(item, []byte("null")) {
					warnings = append(warnings, fmt.Sprintf("%q item %d ignored: expected a string, got %s", types.KeyMissingKeywords, i, item))
					continue
				}
				keywords = append(keywords, keyword)
			}
			result.MissingKeywords = keywords
			result.HasMissingKeywords = true
		}
	}

	if v, ok := present(fields, types.KeyProfileSummary); ok {
		var summary string
		if err := json.Unmarshal(v, &summary); err != nil {
			warn(types.KeyProfileSummary, fmt.Errorf("expected a string"))
		} else {
			result.ProfileSummary = summary
			result.HasProfileSummary = true
		}
	}

	return ParseOutcome{Status: StatusDecoded, Result: result, Warnings: warnings, Raw: raw}
}

// present returns the value for key unless it is missing or null
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	v, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

// decodeMatch accepts a string, or a bare number kept in its JSON spelling
// so the renderer can report it as missing the percent sign
func decodeMatch(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("expected a percentage string")
}

func decodeFailed(raw string, err error) ParseOutcome {
	return ParseOutcome{
		Status: StatusDecodeFailed,
		Result: types.NewAnalysisResult(),
		Err: errors.NewJSONDecodeError(errors.ErrCodeResponseParseFailed,
			"The model returned a response but it was not a valid JSON structure", err),
		Raw: raw,
	}
}

// StripCodeFence removes a surrounding markdown code fence such as ```json
func StripCodeFence(input string) string {
	clean := strings.TrimSpace(input)
	if !strings.HasPrefix(clean, "```") {
		return clean
	}

	clean = strings.TrimPrefix(clean, "```")
	// drop the info string on the opening line, e.g. "json"
	if i := strings.IndexAny(clean, "\r\n"); i >= 0 {
		if info := strings.TrimSpace(clean[:i]); info == "" || isFenceInfo(info) {
			clean = clean[i:]
		}
	} else {
		clean = strings.TrimPrefix(clean, "json")
	}
	clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")

	return strings.TrimSpace(clean)
}

func isFenceInfo(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// ParsePercent reads "82%" as 82. The value must end in '%' and its prefix
// must be an integer between 0 and 100.
func ParsePercent(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("%q does not end with %%", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(s, "%")))
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number percentage", s)
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("%q is outside 0-100%%", s)
	}
	return n, nil
}
