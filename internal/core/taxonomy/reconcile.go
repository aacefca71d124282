// Package taxonomy normalizes free-text document labels and reconciles them
// against the canonical taxonomy of an application type.
package taxonomy

import (
	"strings"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

// LabelMatch records how a single label was resolved.
type LabelMatch string

const (
	LabelExact LabelMatch = "exact"
	LabelAlias LabelMatch = "alias"
	LabelFuzzy LabelMatch = "fuzzy"
	LabelNone  LabelMatch = "none"
)

type Reconciliation struct {
	Category      string
	Type          string
	Status        domain.MatchStatus
	CategoryMatch LabelMatch
	TypeMatch     LabelMatch
}

// NormalizeLabel lowercases and trims raw, and replaces spaces and hyphens
// with underscores. Empty input yields "unknown".
func NormalizeLabel(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	if label == "" {
		return domain.UnknownLabel
	}
	return strings.NewReplacer(" ", "_", "-", "_").Replace(label)
}

// Reconcile maps raw model labels onto the taxonomy. Each label is resolved
// independently by exact membership, then the alias table, then fuzzy match.
// Unresolved labels are kept in normalized form.
func Reconcile(rawCategory, rawType string, t domain.Taxonomy) Reconciliation {
	category, categoryMatch := resolve(rawCategory, t.Categories(), t.CategoryAliases)
	docType, typeMatch := resolve(rawType, t.Types(), t.TypeAliases)

	out := Reconciliation{
		Category:      category,
		Type:          docType,
		CategoryMatch: categoryMatch,
		TypeMatch:     typeMatch,
	}
	switch {
	case t.Contains(category, docType):
		out.Status = domain.MatchClassified
	case categoryMatch == LabelNone && typeMatch == LabelNone:
		out.Status = domain.MatchUnknown
	default:
		out.Status = domain.MatchExtra
	}
	return out
}

// Apply turns a reconciliation into a ClassificationResult with the
// standard note for each status.
func (r Reconciliation) Apply(raw string) domain.ClassificationResult {
	result := domain.ClassificationResult{
		Category:       r.Category,
		Type:           r.Type,
		MatchStatus:    r.Status,
		RawModelOutput: raw,
	}
	switch r.Status {
	case domain.MatchExtra:
		result.Note = domain.NotePairNotInTaxonomy
	case domain.MatchUnknown:
		result.Note = domain.NoteUnrecognized
	}
	return result
}

func resolve(raw string, allowed []string, aliases map[string]string) (string, LabelMatch) {
	label := NormalizeLabel(raw)
	if contains(allowed, label) {
		return label, LabelExact
	}
	if target, ok := lookupAlias(aliases, label); ok && contains(allowed, target) {
		return target, LabelAlias
	}
	if match, _, ok := CloseMatch(label, allowed, DefaultCutoff); ok {
		return match, LabelFuzzy
	}
	return label, LabelNone
}

func lookupAlias(aliases map[string]string, label string) (string, bool) {
	if len(aliases) == 0 {
		return "", false
	}
	if target, ok := aliases[label]; ok {
		return NormalizeLabel(target), true
	}
	for from, target := range aliases {
		if NormalizeLabel(from) == label {
			return NormalizeLabel(target), true
		}
	}
	return "", false
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
