package model

import (
	"strings"
	"time"
)

// Group is a cluster of stories believed to cover one event.
// Members keep discovery order; Seq is the group's creation order within
// the run and is the final tie-break everywhere downstream.
type Group struct {
	ID                     string
	Members                []Story
	RepresentativeHeadline string
	Signature              []string
	Seq                    int

	Class Classification
}

// OutletCount is the number of distinct source domains among members.
func (g *Group) OutletCount() int {
	seen := make(map[string]bool, len(g.Members))
	for _, m := range g.Members {
		seen[m.SourceDomain] = true
	}
	return len(seen)
}

// Sources returns distinct member source names in discovery order.
func (g *Group) Sources() []string {
	seen := make(map[string]bool, len(g.Members))
	var out []string
	for _, m := range g.Members {
		if seen[m.SourceName] {
			continue
		}
		seen[m.SourceName] = true
		out = append(out, m.SourceName)
	}
	return out
}

// Headlines returns every member headline in discovery order.
func (g *Group) Headlines() []string {
	out := make([]string, len(g.Members))
	for i, m := range g.Members {
		out[i] = m.Headline
	}
	return out
}

// Text joins the member headlines for keyword screening.
func (g *Group) Text() string {
	return strings.Join(g.Headlines(), " \n ")
}

// PublishedAt is the most recent member publication time.
func (g *Group) PublishedAt() time.Time {
	var latest time.Time
	for _, m := range g.Members {
		if m.PublishedAt.After(latest) {
			latest = m.PublishedAt
		}
	}
	return latest
}

// PresetSection returns the first pre-assigned section among members, if any.
func (g *Group) PresetSection() Section {
	for _, m := range g.Members {
		if m.PresetSection != "" {
			return m.PresetSection
		}
	}
	return ""
}

// SetClassification replaces the group's current classification.
func (g *Group) SetClassification(c Classification) {
	c.ReasonTags = append([]string(nil), c.ReasonTags...)
	g.Class = c
}

// Classification is the section assignment attached to a group.
type Classification struct {
	Section    Section
	Confidence float64
	ReasonTags []string
	Reasoning  string
	Degraded   bool

	// Err records why the semantic call failed when Degraded is set.
	Err error
}

// HasTag reports whether tag was recorded on the classification.
func (c Classification) HasTag(tag string) bool {
	for _, t := range c.ReasonTags {
		if t == tag {
			return true
		}
	}
	return false
}
