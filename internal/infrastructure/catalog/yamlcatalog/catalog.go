// Package yamlcatalog loads the document taxonomy and per-application-type
// requirements from YAML.
package yamlcatalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/core/taxonomy"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

type file struct {
	Version         string                     `yaml:"version"`
	Categories      map[string][]string        `yaml:"categories"`
	CategoryAliases map[string]string          `yaml:"category_aliases"`
	TypeAliases     map[string]string          `yaml:"type_aliases"`
	Applications    map[string]applicationType `yaml:"application_types"`
}

type applicationType struct {
	// Categories restricts the taxonomy; empty means every category.
	Categories   []string                  `yaml:"categories"`
	Requirements []domain.RequirementEntry `yaml:"requirements"`
}

// Catalog implements ports.CatalogProvider. It is immutable after loading.
type Catalog struct {
	taxonomies   map[string]domain.Taxonomy
	requirements map[string][]domain.RequirementEntry
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultCatalog)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load catalog", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse catalog", err)
	}
	c, err := build(f)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse catalog", err)
	}
	return c, nil
}

func build(f file) (*Catalog, error) {
	if len(f.Categories) == 0 {
		return nil, errors.New("catalog has no categories")
	}
	if len(f.Applications) == 0 {
		return nil, errors.New("catalog has no application types")
	}

	categoryAliases := normalizeAliases(f.CategoryAliases)
	typeAliases := normalizeAliases(f.TypeAliases)

	c := &Catalog{
		taxonomies:   make(map[string]domain.Taxonomy, len(f.Applications)),
		requirements: make(map[string][]domain.RequirementEntry, len(f.Applications)),
	}
	for rawName, app := range f.Applications {
		name := taxonomy.NormalizeLabel(rawName)
		entries, err := entriesFor(f.Categories, app.Categories)
		if err != nil {
			return nil, fmt.Errorf("application type %q: %w", name, err)
		}
		t := domain.Taxonomy{
			Version:         fmt.Sprintf("%s/%s", f.Version, name),
			Entries:         entries,
			CategoryAliases: categoryAliases,
			TypeAliases:     typeAliases,
		}

		reqs := make([]domain.RequirementEntry, 0, len(app.Requirements))
		for _, r := range app.Requirements {
			req := domain.RequirementEntry{
				Category:   taxonomy.NormalizeLabel(r.Category),
				Type:       taxonomy.NormalizeLabel(r.Type),
				IsOptional: r.IsOptional,
			}
			if !t.Contains(req.Category, req.Type) {
				return nil, fmt.Errorf("application type %q: requirement %s/%s is not in the taxonomy", name, req.Category, req.Type)
			}
			reqs = append(reqs, req)
		}

		c.taxonomies[name] = t
		c.requirements[name] = reqs
	}
	return c, nil
}

// entriesFor flattens the category table in sorted category order, keeping
// each category's type order.
func entriesFor(categories map[string][]string, only []string) ([]domain.TaxonomyEntry, error) {
	normalized := make(map[string][]string, len(categories))
	for cat, types := range categories {
		normalized[taxonomy.NormalizeLabel(cat)] = types
	}

	names := make([]string, 0, len(normalized))
	if len(only) > 0 {
		for _, cat := range only {
			name := taxonomy.NormalizeLabel(cat)
			if _, ok := normalized[name]; !ok {
				return nil, fmt.Errorf("unknown category %q", name)
			}
			names = append(names, name)
		}
	} else {
		for name := range normalized {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var entries []domain.TaxonomyEntry
	for _, cat := range names {
		for _, typ := range normalized[cat] {
			entries = append(entries, domain.TaxonomyEntry{Category: cat, Type: taxonomy.NormalizeLabel(typ)})
		}
	}
	if len(entries) == 0 {
		return nil, errors.New("empty taxonomy")
	}
	return entries, nil
}

func normalizeAliases(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for from, to := range in {
		out[taxonomy.NormalizeLabel(from)] = taxonomy.NormalizeLabel(to)
	}
	return out
}

func (c *Catalog) Taxonomy(_ context.Context, applicationType string) (domain.Taxonomy, error) {
	t, ok := c.taxonomies[taxonomy.NormalizeLabel(applicationType)]
	if !ok {
		return domain.Taxonomy{}, unknownApplicationType(applicationType)
	}
	return t, nil
}

func (c *Catalog) Requirements(_ context.Context, applicationType string) ([]domain.RequirementEntry, error) {
	reqs, ok := c.requirements[taxonomy.NormalizeLabel(applicationType)]
	if !ok {
		return nil, unknownApplicationType(applicationType)
	}
	return append([]domain.RequirementEntry(nil), reqs...), nil
}

// ApplicationTypes lists the configured application types in sorted order.
func (c *Catalog) ApplicationTypes() []string {
	out := make([]string, 0, len(c.taxonomies))
	for name := range c.taxonomies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func unknownApplicationType(name string) error {
	return domain.WrapError(domain.ErrInvalidInput, "catalog", fmt.Errorf("unknown application type %q", name))
}
