package model

import "time"

// RawItem is one item as supplied by a fetch collaborator. Only Headline and
// URL are required; everything else may be missing or imprecise.
type RawItem struct {
	Headline     string    `json:"headline" yaml:"headline"`
	URL          string    `json:"url" yaml:"url"`
	SourceName   string    `json:"source,omitempty" yaml:"source,omitempty"`
	SourceDomain string    `json:"source_domain,omitempty" yaml:"source_domain,omitempty"`
	PublishedAt  time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`
	Excerpt      string    `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`

	// Section is set by submission sources that arrive pre-classified.
	Section Section `json:"section,omitempty" yaml:"section,omitempty"`
}

// Story is a normalized, attributed item. ID is derived from CanonicalURL,
// which is unique among the stories of one run.
type Story struct {
	ID           string
	Headline     string
	CanonicalURL string
	SourceName   string
	SourceDomain string
	PublishedAt  time.Time
	RawExcerpt   string

	// DateImprecise is set when the item carried no publication time and
	// PublishedAt was stamped by the normalizer.
	DateImprecise bool

	// PresetSection carries a submission's pre-assigned section.
	PresetSection Section

	// Seq is the discovery order within the run.
	Seq int
}
