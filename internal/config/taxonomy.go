package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abelbrown/roundup/internal/model"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

// Taxonomy is the versioned keyword data injected into the normalizer,
// grouper and classifier. Nothing in the pipeline hardcodes these lists.
type Taxonomy struct {
	Version string `yaml:"version"`

	// Exclusion categories in priority order; earlier categories win ties
	// when picking a dominant category.
	Exclusion []Category `yaml:"exclusion"`

	// Institutional tokens mark accountability or policy coverage. They are
	// matched on word boundaries.
	Institutional []string `yaml:"institutional"`

	GenericHeadlines []string `yaml:"generic_headlines"`

	// TrackingParams are stripped from URLs. A trailing * matches a prefix.
	TrackingParams []string `yaml:"tracking_params"`

	Grouping GroupingVocabulary `yaml:"grouping"`

	// Outlets maps a bare domain to the outlet's display name.
	Outlets map[string]string `yaml:"outlets"`
}

// Category is one exclusion category.
type Category struct {
	Name     string        `yaml:"name"`
	Keywords []string      `yaml:"keywords"`
	DemoteTo model.Section `yaml:"demote_to"`

	// InstitutionalOverride lifts the top-section veto when institutional
	// tokens co-occur with this category's keywords.
	InstitutionalOverride bool `yaml:"institutional_override"`
}

// GroupingVocabulary feeds signature extraction.
type GroupingVocabulary struct {
	// Events maps an event class to its surface forms.
	Events map[string][]string `yaml:"events"`

	// Aliases maps a surface form (one or two words) to a canonical entity.
	Aliases map[string]string `yaml:"aliases"`

	// Ubiquitous tokens appear in most regional stories and carry no signal.
	Ubiquitous []string `yaml:"ubiquitous"`

	Stopwords []string `yaml:"stopwords"`
}

// DefaultTaxonomy decodes the embedded taxonomy.
func DefaultTaxonomy() (*Taxonomy, error) {
	return ParseTaxonomy(defaultTaxonomy)
}

// LoadTaxonomy reads a taxonomy file, or the embedded default when path
// is empty.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy decodes and validates taxonomy YAML.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.lowercase()
	return &t, nil
}

// Validate checks the taxonomy is usable.
func (t *Taxonomy) Validate() error {
	if t.Version == "" {
		return errors.New("taxonomy: missing version")
	}
	seen := make(map[string]bool, len(t.Exclusion))
	for _, c := range t.Exclusion {
		if c.Name == "" {
			return errors.New("taxonomy: exclusion category without name")
		}
		if seen[c.Name] {
			return fmt.Errorf("taxonomy: duplicate category %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Keywords) == 0 {
			return fmt.Errorf("taxonomy: category %q has no keywords", c.Name)
		}
		if c.DemoteTo == "" {
			return fmt.Errorf("taxonomy: category %q has no demote_to section", c.Name)
		}
	}

	forms := make(map[string]string)
	for _, class := range t.EventClasses() {
		for _, f := range t.Grouping.Events[class] {
			f = strings.ToLower(f)
			if other, ok := forms[f]; ok {
				return fmt.Errorf("taxonomy: event form %q in both %q and %q", f, other, class)
			}
			forms[f] = class
		}
	}
	return nil
}

// Category returns the named exclusion category.
func (t *Taxonomy) Category(name string) (Category, bool) {
	for _, c := range t.Exclusion {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// EventClasses returns event class names in sorted order.
func (t *Taxonomy) EventClasses() []string {
	out := make([]string, 0, len(t.Grouping.Events))
	for k := range t.Grouping.Events {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// OutletName resolves a bare domain, also trying its parent domain so
// subdomains like www or feeds inherit the outlet name.
func (t *Taxonomy) OutletName(domain string) (string, bool) {
	domain = strings.ToLower(strings.TrimPrefix(domain, "www."))
	for domain != "" {
		if name, ok := t.Outlets[domain]; ok {
			return name, true
		}
		i := strings.IndexByte(domain, '.')
		if i < 0 || strings.IndexByte(domain[i+1:], '.') < 0 {
			return "", false
		}
		domain = domain[i+1:]
	}
	return "", false
}

func (t *Taxonomy) lowercase() {
	for i := range t.Exclusion {
		t.Exclusion[i].Keywords = lowerAll(t.Exclusion[i].Keywords)
	}
	t.Institutional = lowerAll(t.Institutional)
	t.GenericHeadlines = lowerAll(t.GenericHeadlines)
	t.Grouping.Ubiquitous = lowerAll(t.Grouping.Ubiquitous)
	t.Grouping.Stopwords = lowerAll(t.Grouping.Stopwords)
	for class, forms := range t.Grouping.Events {
		t.Grouping.Events[class] = lowerAll(forms)
	}
	aliases := make(map[string]string, len(t.Grouping.Aliases))
	for k, v := range t.Grouping.Aliases {
		aliases[strings.ToLower(k)] = strings.ToLower(v)
	}
	t.Grouping.Aliases = aliases
	outlets := make(map[string]string, len(t.Outlets))
	for k, v := range t.Outlets {
		outlets[strings.ToLower(k)] = v
	}
	t.Outlets = outlets
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
