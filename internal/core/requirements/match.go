// Package requirements checks a filing's classified documents against the
// documents required for its application type.
package requirements

import (
	"fmt"
	"strings"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/core/taxonomy"
)

type Options struct {
	// Fuzzy enables the type-only fallback when no exact pair matches.
	Fuzzy bool
}

// Match resolves every requirement against the classifications, in input
// order. Exact (category, type) matches win over fuzzy ones and unknown
// classifications never match.
func Match(reqs []domain.RequirementEntry, classifications []domain.NamedClassification, opts Options) []domain.RequirementCheckResult {
	out := make([]domain.RequirementCheckResult, 0, len(reqs))
	for _, req := range reqs {
		category := taxonomy.NormalizeLabel(req.Category)
		docType := taxonomy.NormalizeLabel(req.Type)

		filename, ok := findExact(category, docType, classifications)
		if !ok && opts.Fuzzy {
			filename, ok = findFuzzy(docType, classifications)
		}

		result := domain.RequirementCheckResult{
			Category:   category,
			Type:       docType,
			IsOptional: req.IsOptional,
			Present:    ok,
		}
		if ok {
			result.Reason = fmt.Sprintf("%s is present", docType)
			result.MatchedFilename = filename
		} else {
			result.Reason = fmt.Sprintf("%s is missing", docType)
		}
		out = append(out, result)
	}
	return out
}

// DocumentCheckStatus fails when any mandatory requirement is absent.
// Optional requirements never affect the status.
func DocumentCheckStatus(results []domain.RequirementCheckResult) domain.CheckStatus {
	for _, r := range results {
		if !r.Present && !r.IsOptional {
			return domain.CheckFail
		}
	}
	return domain.CheckPass
}

// MatchedTypes lists the types of present requirements, in requirement order.
func MatchedTypes(results []domain.RequirementCheckResult) []string {
	var out []string
	for _, r := range results {
		if r.Present {
			out = append(out, r.Type)
		}
	}
	return out
}

func findExact(category, docType string, classifications []domain.NamedClassification) (string, bool) {
	for _, c := range classifications {
		cls := c.Classification
		if !cls.Matchable() {
			continue
		}
		if cls.Category == category && cls.Type == docType {
			return c.Filename, true
		}
	}
	return "", false
}

func findFuzzy(docType string, classifications []domain.NamedClassification) (string, bool) {
	for _, c := range classifications {
		cls := c.Classification
		if !cls.Matchable() {
			continue
		}
		if typesSimilar(docType, cls.Type) {
			return c.Filename, true
		}
	}
	return "", false
}

func typesSimilar(required, classified string) bool {
	if required == domain.UnknownLabel || classified == domain.UnknownLabel {
		return false
	}
	if strings.Contains(classified, required) || strings.Contains(required, classified) {
		return true
	}
	return taxonomy.Ratio(classified, required) >= taxonomy.DefaultCutoff
}
