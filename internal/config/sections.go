package config

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/abelbrown/roundup/internal/model"
)

// SectionConfig describes one content section of the edition. The first
// configured section is the top-priority section.
type SectionConfig struct {
	Name        string   `yaml:"name"`
	Display     string   `yaml:"display,omitempty"`
	Min         int      `yaml:"min"`
	Max         int      `yaml:"max"`
	Description string   `yaml:"description,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty"`
	Aliases     []string `yaml:"aliases,omitempty"`
	CatchAll    bool     `yaml:"catch_all,omitempty"`
}

// Section returns the typed section name.
func (s SectionConfig) Section() model.Section {
	return model.Section(s.Name)
}

// DisplayName returns the configured display name or a title-cased form
// of the section name.
func (s SectionConfig) DisplayName() string {
	if s.Display != "" {
		return s.Display
	}
	return cases.Title(language.English).String(strings.ReplaceAll(s.Name, "_", " "))
}

// DefaultSections mirrors the newsletter's section table.
func DefaultSections() []SectionConfig {
	return []SectionConfig{
		{
			Name: "top_stories", Display: "Top stories", Min: 3, Max: 6,
			Description: "Major breaking news, high-impact statewide stories, investigations, stories covered by multiple outlets",
			Aliases:     []string{"top stories", "top story", "top section", "front page", "lead stories"},
		},
		{
			Name: "politics", Display: "Politics + government", Min: 2, Max: 8,
			Description: "Government, legislature, elections, campaigns, courts, police, corruption, budgets, taxes, voting",
			Keywords:    []string{"governor", "legislature", "election", "court", "senate", "assembly", "campaign", "budget", "lawmakers", "mayor", "council"},
			Aliases:     []string{"politics", "government", "political"},
		},
		{
			Name: "housing", Display: "Housing + development", Min: 1, Max: 5,
			Description: "Affordable housing, rent, development, zoning, real estate, homelessness, construction, warehouses",
			Keywords:    []string{"housing", "rent", "development", "zoning", "affordable", "homeless", "warehouse", "construction"},
			Aliases:     []string{"housing", "development"},
		},
		{
			Name: "education", Display: "Work + education", Min: 1, Max: 5,
			Description: "Schools (K-12), universities, colleges, school boards, teachers, curriculum, education policy",
			Keywords:    []string{"school", "education", "university", "teacher", "college", "student", "curriculum"},
			Aliases:     []string{"education", "schools"},
		},
		{
			Name: "health", Display: "Health + safety", Min: 1, Max: 5,
			Description: "Healthcare, hospitals, public health, mental health, addiction, insurance, medical issues",
			Keywords:    []string{"health", "hospital", "covid", "medical", "addiction", "insurance", "overdose"},
			Aliases:     []string{"health", "healthcare"},
		},
		{
			Name: "environment", Display: "Climate + environment", Min: 1, Max: 5,
			Description: "Climate, clean energy, weather, pollution, environmental regulations, offshore wind, PFAS",
			Keywords:    []string{"climate", "environment", "energy", "pollution", "offshore wind", "pfas", "flood", "drought"},
			Aliases:     []string{"environment", "climate"},
		},
		{
			Name: "lastly", Display: "Lastly", Min: 2, Max: 12, CatchAll: true,
			Description: "Arts, culture, sports, entertainment, restaurants, community events, human interest, lighter news",
			Aliases:     []string{"lastly", "last section", "misc"},
		},
	}
}

// DefaultSources is a starter set of regional feeds.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{Name: "NJ Spotlight News", URL: "https://www.njspotlightnews.org/feed/", Domain: "njspotlightnews.org"},
		{Name: "NJ Monitor", URL: "https://newjerseymonitor.com/feed/", Domain: "newjerseymonitor.com"},
		{Name: "NJ Globe", URL: "https://newjerseyglobe.com/feed/", Domain: "newjerseyglobe.com"},
		{Name: "WHYY", URL: "https://whyy.org/feed/", Domain: "whyy.org"},
		{Name: "Gothamist", URL: "https://gothamist.com/feed", Domain: "gothamist.com"},
	}
}

// SectionNames returns content sections in priority order.
func (c *Config) SectionNames() []model.Section {
	out := make([]model.Section, len(c.Sections))
	for i, s := range c.Sections {
		out[i] = s.Section()
	}
	return out
}

// TopSection is the first, highest-priority section.
func (c *Config) TopSection() model.Section {
	return c.Sections[0].Section()
}

// CatchAllSection returns the catch-all section, if one is configured.
func (c *Config) CatchAllSection() (model.Section, bool) {
	for _, s := range c.Sections {
		if s.CatchAll {
			return s.Section(), true
		}
	}
	return "", false
}

// Lookup finds a section's config by name.
func (c *Config) Lookup(name model.Section) (SectionConfig, bool) {
	for _, s := range c.Sections {
		if s.Section() == name {
			return s, true
		}
	}
	return SectionConfig{}, false
}

// DisplayName returns the display name of any section, including skip.
func (c *Config) DisplayName(name model.Section) string {
	if name == model.SectionSkip {
		return "Skipped"
	}
	if s, ok := c.Lookup(name); ok {
		return s.DisplayName()
	}
	return SectionConfig{Name: string(name)}.DisplayName()
}
