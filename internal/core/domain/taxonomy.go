package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// UnknownLabel is the normalized fallback for absent or unusable labels.
const UnknownLabel = "unknown"

type TaxonomyEntry struct {
	Category string `json:"category" yaml:"category"`
	Type     string `json:"type" yaml:"type"`
}

// Taxonomy is the canonical set of (category, type) pairs for one application
// type. It is loaded once per run and never mutated while a filing is processed.
type Taxonomy struct {
	Version         string            `json:"version" yaml:"version"`
	Entries         []TaxonomyEntry   `json:"entries" yaml:"entries"`
	CategoryAliases map[string]string `json:"category_aliases,omitempty" yaml:"category_aliases"`
	TypeAliases     map[string]string `json:"type_aliases,omitempty" yaml:"type_aliases"`
}

func (t Taxonomy) Empty() bool {
	return len(t.Entries) == 0
}

func (t Taxonomy) Contains(category, docType string) bool {
	for _, entry := range t.Entries {
		if entry.Category == category && entry.Type == docType {
			return true
		}
	}
	return false
}

// Categories returns the distinct categories in sorted order.
func (t Taxonomy) Categories() []string {
	return uniqueSorted(t.Entries, func(e TaxonomyEntry) string { return e.Category })
}

// Types returns the distinct types in sorted order.
func (t Taxonomy) Types() []string {
	return uniqueSorted(t.Entries, func(e TaxonomyEntry) string { return e.Type })
}

// TypesByCategory groups allowed types under their category, preserving entry order.
func (t Taxonomy) TypesByCategory() map[string][]string {
	out := make(map[string][]string)
	for _, entry := range t.Entries {
		out[entry.Category] = append(out[entry.Category], entry.Type)
	}
	return out
}

func uniqueSorted(entries []TaxonomyEntry, key func(TaxonomyEntry) string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		k := key(entry)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fingerprint digests the entries and alias maps, independent of entry order
// and of Version. Taxonomies with the same fingerprint reconcile identically.
func (t Taxonomy) Fingerprint() string {
	entries := make([]TaxonomyEntry, len(t.Entries))
	copy(entries, t.Entries)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Category != entries[j].Category {
			return entries[i].Category < entries[j].Category
		}
		return entries[i].Type < entries[j].Type
	})
	// Map keys are marshaled in sorted order.
	canonical, _ := json.Marshal(struct {
		Entries         []TaxonomyEntry   `json:"e"`
		CategoryAliases map[string]string `json:"c"`
		TypeAliases     map[string]string `json:"t"`
	}{entries, t.CategoryAliases, t.TypeAliases})
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:8])
}
