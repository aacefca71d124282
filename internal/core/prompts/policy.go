package prompts

import (
	"fmt"
	"strings"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

// PolicyBatch packages every applicable policy for one filing into a single
// request. The answer must map each policy name to {result, comment}.
func PolicyBatch(policies []domain.PolicyRule, documentTypes []string) string {
	var rules strings.Builder
	for i, p := range policies {
		fmt.Fprintf(&rules, "%d. Policy name: %q\n   Rule: %s\n   Applies to: %s\n", i+1, p.Name, strings.TrimSpace(p.RuleText), p.ApplicableDocumentType)
	}

	types := "none"
	if len(documentTypes) > 0 {
		types = strings.Join(documentTypes, ", ")
	}

	return fmt.Sprintf(`You are a policy compliance reviewer for loan applications.

You will be given the page images of every document in one application. The application contains these document types: %s.

Evaluate each policy below against the documents. A policy may need information from several documents; cross-reference them where needed. If the documents do not contain enough information to confirm compliance, the policy fails.

Policies:
%s
Respond with a single JSON object only. Use each policy name exactly as given as a key, and for each return an object {"result": "Pass" or "Fail", "comment": "<short rationale>"}.
`, types, rules.String())
}
