package classify

import (
	"math"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/model"
)

// Reason tags recorded on classifications.
const (
	TagSubmitted     = "submitted"
	TagDegraded      = "degraded"
	TagKeywordRoute  = "keyword_route"
	TagInstitutional = "institutional_override"
	TagMultiOutlet   = "multi_outlet"
	TagNeedsReview   = "needs_review"
	TagIsolated      = "isolated_incident"
	TagVetoPrefix    = "veto:"
	TagDemotedPrefix = "demoted:"
)

// Policy holds the reconciliation rules between the exclusion screen and
// the service proposal.
type Policy struct {
	Top          model.Section
	CatchAll     model.Section // empty when none is configured
	Known        map[model.Section]bool
	Floor        float64
	Ceiling      float64
	OutletSignal int
	OutletBoost  float64
}

// PolicyFromConfig derives the policy from the section table and
// classifier tuning.
func PolicyFromConfig(cfg *config.Config) Policy {
	p := Policy{
		Top:          cfg.TopSection(),
		Known:        make(map[model.Section]bool, len(cfg.Sections)),
		Floor:        cfg.Classifier.ConfidenceFloor,
		Ceiling:      cfg.Classifier.DegradedCeiling,
		OutletSignal: cfg.Classifier.OutletSignal,
		OutletBoost:  cfg.Classifier.OutletBoost,
	}
	if p.OutletSignal < 1 {
		p.OutletSignal = 3
	}
	if s, ok := cfg.CatchAllSection(); ok {
		p.CatchAll = s
	}
	for _, s := range cfg.Sections {
		p.Known[s.Section()] = true
	}
	return p
}

// DemoteTarget is where a vetoed top proposal goes for category c. A
// demote_to section that is not configured falls back to the catch-all,
// then skip.
func (p Policy) DemoteTarget(c config.Category) model.Section {
	if c.DemoteTo.IsSkip() || p.Known[c.DemoteTo] {
		return c.DemoteTo
	}
	if p.CatchAll != "" {
		return p.CatchAll
	}
	return model.SectionSkip
}

// Degraded routes a group by keywords alone, for when the service failed.
func (p Policy) Degraded(sc Screen, topics []TopicScore, outlets int) Proposal {
	if sc.TopEligible() && outlets >= p.OutletSignal {
		return Proposal{Section: p.Top, Confidence: p.Ceiling, Reasoning: "multi-outlet coverage"}
	}
	if d, ok := sc.Dominant(); ok && !sc.Overridden() {
		return Proposal{Section: p.DemoteTarget(d), Confidence: p.Ceiling, Reasoning: d.Name + " keywords"}
	}
	for _, t := range topics {
		if t.Section != p.Top {
			return Proposal{Section: t.Section, Confidence: p.Ceiling, Reasoning: "section keywords"}
		}
	}
	if p.CatchAll != "" {
		return Proposal{Section: p.CatchAll, Confidence: p.Ceiling, Reasoning: "no keyword signal"}
	}
	return Proposal{Section: model.SectionSkip, Reasoning: "no keyword signal"}
}

// Reconcile turns a proposal into the final classification.
//
// A vetoed top proposal is demoted to the dominant category's section
// unless institutional tokens override the veto, or the group has
// multi-outlet coverage and is not an isolated incident. Multi-outlet
// coverage also promotes non-top proposals and raises confidence.
// Anything under the floor is held in skip for review.
func (p Policy) Reconcile(prop Proposal, sc Screen, outlets int, degraded bool) model.Classification {
	c := model.Classification{
		Section:    prop.Section,
		Confidence: prop.Confidence,
		Reasoning:  prop.Reasoning,
		Degraded:   degraded,
	}
	if degraded {
		c.ReasonTags = append(c.ReasonTags, TagDegraded, TagKeywordRoute)
	}

	dominant, vetoed := sc.Dominant()
	if vetoed {
		c.ReasonTags = append(c.ReasonTags, TagVetoPrefix+dominant.Name)
	}
	if sc.Isolated() {
		c.ReasonTags = append(c.ReasonTags, TagIsolated)
	}

	multi := outlets >= p.OutletSignal && !sc.Isolated()

	switch {
	case c.Section == p.Top && vetoed:
		switch {
		case sc.Overridden():
			c.ReasonTags = append(c.ReasonTags, TagInstitutional)
		case multi:
		default:
			c.Section = p.DemoteTarget(dominant)
			c.ReasonTags = append(c.ReasonTags, TagDemotedPrefix+dominant.Name)
		}
	case c.Section != p.Top && !c.Section.IsSkip() && multi:
		c.Section = p.Top
	}

	if c.Section == p.Top && multi {
		c.Confidence = math.Min(1, c.Confidence+p.OutletBoost)
		c.ReasonTags = append(c.ReasonTags, TagMultiOutlet)
	}
	if degraded {
		c.Confidence = math.Min(c.Confidence, p.Ceiling)
	}
	if c.Confidence < p.Floor && !c.Section.IsSkip() {
		c.Section = model.SectionSkip
		c.ReasonTags = append(c.ReasonTags, TagNeedsReview)
	}
	return c
}
