// Package prompts builds the instructions sent to the vision capability.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

const maxExamplesPerCategory = 3

// Classification asks for one (document_category, document_type) pair chosen
// from the taxonomy.
func Classification(t domain.Taxonomy) string {
	byCategory := t.TypesByCategory()
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var canonical strings.Builder
	var examples []string
	for _, category := range categories {
		types := byCategory[category]
		fmt.Fprintf(&canonical, "- %s: %s\n", category, strings.Join(types, ", "))
		for i, docType := range types {
			if i >= maxExamplesPerCategory {
				break
			}
			examples = append(examples, example(len(examples)+1, docType+" document", category, docType))
		}
	}
	examples = append(examples, example(len(examples)+1, "irrelevant or unclear", domain.UnknownLabel, domain.UnknownLabel))

	return fmt.Sprintf(`You are a document classification assistant.

You will be given one or more page images of a single document. Analyze them carefully and output the most appropriate document_category and document_type.

Canonical categories and their types:
%s
Examples:
%s

Instructions:
- Always choose from the canonical values when possible.
- If unsure, use "unknown" for both values.
- Respond with a single JSON object with keys "document_category" and "document_type", no extra commentary.
`, canonical.String(), strings.Join(examples, "\n\n"))
}

func example(n int, input, category, docType string) string {
	return fmt.Sprintf("Example %d:\nInput: %s\nOutput:\n{\"document_category\": %q, \"document_type\": %q}", n, input, category, docType)
}
