package classify

import (
	"sort"
	"strings"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/correlation"
	"github.com/abelbrown/roundup/internal/model"
)

// CategoryHit is one exclusion category that matched a group's text.
type CategoryHit struct {
	Category config.Category
	Keywords []string
}

// Screen is the result of the deterministic exclusion pass.
type Screen struct {
	// Hits are the matching categories, most hits first, ties in taxonomy
	// order.
	Hits []CategoryHit

	// Institutional holds the institutional tokens found in the text.
	Institutional []string
}

// Vetoed reports whether any exclusion category matched.
func (s Screen) Vetoed() bool {
	return len(s.Hits) > 0
}

// Dominant returns the category with the most keyword hits.
func (s Screen) Dominant() (config.Category, bool) {
	if len(s.Hits) == 0 {
		return config.Category{}, false
	}
	return s.Hits[0].Category, true
}

// Overridden reports whether the dominant category allows the
// institutional override and institutional tokens are present.
func (s Screen) Overridden() bool {
	d, ok := s.Dominant()
	return ok && d.InstitutionalOverride && len(s.Institutional) > 0
}

// Isolated reports an isolated incident: some matched category allows the
// institutional override, dominant or not, and no institutional tokens are
// present. Such groups are never promoted by outlet count.
func (s Screen) Isolated() bool {
	if len(s.Institutional) > 0 {
		return false
	}
	for _, h := range s.Hits {
		if h.Category.InstitutionalOverride {
			return true
		}
	}
	return false
}

// TopEligible reports whether the group may sit in the top section on
// keyword grounds alone.
func (s Screen) TopEligible() bool {
	return !s.Vetoed() || s.Overridden()
}

// Reason is a short human explanation of the screen, used when the edit
// session keeps a group out of a bulk sweep.
func (s Screen) Reason() string {
	d, ok := s.Dominant()
	if !ok {
		return "no exclusion keywords"
	}
	if s.Overridden() {
		return d.Name + " keywords with institutional context (" + strings.Join(s.Institutional, ", ") + ")"
	}
	return d.Name + " keywords (" + strings.Join(s.Hits[0].Keywords, ", ") + ")"
}

// TopicScore counts section keyword hits.
type TopicScore struct {
	Section model.Section
	Hits    int
}

// Screener runs the exclusion pass and the secondary topic routing used
// by degraded classification and balancer overflow.
type Screener struct {
	tax    *config.Taxonomy
	topics []config.SectionConfig
}

// NewScreener builds a screener over the taxonomy and section table.
func NewScreener(tax *config.Taxonomy, sections []config.SectionConfig) *Screener {
	return &Screener{tax: tax, topics: sections}
}

// Taxonomy returns the taxonomy the screener matches against.
func (s *Screener) Taxonomy() *config.Taxonomy {
	return s.tax
}

// Screen matches exclusion keywords as case-insensitive substrings and
// institutional tokens on word boundaries.
func (s *Screener) Screen(text string) Screen {
	folded := correlation.Fold(text)

	var out Screen
	for _, c := range s.tax.Exclusion {
		var kws []string
		for _, kw := range c.Keywords {
			if strings.Contains(folded, kw) {
				kws = append(kws, kw)
			}
		}
		if len(kws) > 0 {
			out.Hits = append(out.Hits, CategoryHit{Category: c, Keywords: kws})
		}
	}
	sort.SliceStable(out.Hits, func(i, j int) bool {
		return len(out.Hits[i].Keywords) > len(out.Hits[j].Keywords)
	})

	for _, tok := range s.tax.Institutional {
		if correlation.ContainsWord(folded, tok) {
			out.Institutional = append(out.Institutional, tok)
		}
	}
	return out
}

// ScreenGroup screens every member headline of g.
func (s *Screener) ScreenGroup(g *model.Group) Screen {
	return s.Screen(g.Text())
}

// Topics scores each section with keywords against text. Sections without
// hits are omitted; the result is ordered by hits, then section priority.
func (s *Screener) Topics(text string) []TopicScore {
	folded := correlation.Fold(text)

	var out []TopicScore
	for _, sec := range s.topics {
		n := 0
		for _, kw := range sec.Keywords {
			if correlation.ContainsWordPrefix(folded, strings.ToLower(kw)) {
				n++
			}
		}
		if n > 0 {
			out = append(out, TopicScore{Section: sec.Section(), Hits: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Hits > out[j].Hits })
	return out
}
