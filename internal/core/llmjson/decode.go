// Package llmjson decodes JSON objects out of free-form model output.
//
// Model responses are expected to hold a single JSON object but frequently
// arrive wrapped in markdown fences, surrounded by prose, or with literal line
// breaks inside string values. Decode tolerates all three.
package llmjson

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

var errEmpty = errors.New("empty response")

var fenceRegex = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\n?```")

// Decode extracts the JSON object from raw and unmarshals it into out.
// Failures are reported as domain.ErrMalformedResponse.
func Decode(raw string, out any) error {
	candidate := Clean(raw)
	if candidate == "" {
		return domain.WrapError(domain.ErrMalformedResponse, "decode json", errEmpty)
	}

	err := json.Unmarshal([]byte(candidate), out)
	if err == nil {
		return nil
	}
	collapsed := CollapseStringNewlines(candidate)
	if collapsed != candidate {
		if retryErr := json.Unmarshal([]byte(collapsed), out); retryErr == nil {
			return nil
		}
	}
	return domain.WrapError(domain.ErrMalformedResponse, "decode json", err)
}

// DecodeObject is Decode into a generic map.
func DecodeObject(raw string) (map[string]any, error) {
	var out map[string]any
	if err := Decode(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "decode json", errors.New("null object"))
	}
	return out, nil
}

// Clean strips markdown fences and surrounding prose, leaving the outermost
// object text.
func Clean(raw string) string {
	text := StripFences(raw)
	return ExtractObject(text)
}

func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if matches := fenceRegex.FindStringSubmatch(text); len(matches) >= 2 {
		return strings.TrimSpace(matches[1])
	}
	return text
}

// ExtractObject returns the text between the first '{' and the last '}'.
func ExtractObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

// CollapseStringNewlines replaces raw line breaks and tabs that appear inside
// quoted string values with single spaces. Structure outside strings is left
// untouched.
func CollapseStringNewlines(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	inString := false
	escaped := false
	lastSpace := false
	afterBreak := false
	for _, r := range raw {
		if !inString {
			if r == '"' {
				inString = true
				lastSpace, afterBreak = false, false
			}
			b.WriteRune(r)
			continue
		}

		switch {
		case escaped:
			escaped = false
			lastSpace, afterBreak = false, false
			b.WriteRune(r)
		case r == '\\':
			escaped = true
			b.WriteRune(r)
		case r == '"':
			inString = false
			b.WriteRune(r)
		case r == '\n' || r == '\r' || r == '\t':
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace, afterBreak = true, true
		case r == ' ' && afterBreak:
			// indentation of a continuation line
		default:
			lastSpace, afterBreak = r == ' ', false
			b.WriteRune(r)
		}
	}
	return b.String()
}
