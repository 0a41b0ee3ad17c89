package edit

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/correlation"
	"github.com/abelbrown/roundup/internal/model"
)

// Per-token match scores. A candidate scores the mean over the fragment's
// tokens.
const (
	scoreExact = 1.0
	scoreAlias = 0.9
	scoreFuzzy = 0.6
)

// Candidate is a live group scored against a command fragment.
type Candidate struct {
	Group   *model.Group
	Section model.Section
	Index   int
	Score   float64
}

// Resolver matches command fragments against every live group.
type Resolver struct {
	matchMin float64
	margin   float64
	aliases  map[string]string
	events   map[string]string // surface form -> event class
	ignore   map[string]bool
	tax      *config.Taxonomy
}

// NewResolver builds a resolver from the tuning and the taxonomy's
// grouping vocabulary.
func NewResolver(cfg config.ResolverConfig, tax *config.Taxonomy) *Resolver {
	r := &Resolver{
		matchMin: cfg.MatchMin,
		margin:   cfg.AmbiguityMargin,
		aliases:  tax.Grouping.Aliases,
		events:   make(map[string]string),
		ignore:   make(map[string]bool),
		tax:      tax,
	}
	if r.matchMin <= 0 {
		r.matchMin = 0.5
	}
	for class, forms := range tax.Grouping.Events {
		for _, f := range forms {
			r.events[f] = class
		}
	}
	for _, w := range tax.Grouping.Stopwords {
		r.ignore[w] = true
	}
	for _, w := range tax.Grouping.Ubiquitous {
		r.ignore[w] = true
	}
	return r
}

// Category reports whether fragment names an exclusion category, as in
// "remove all crime stories".
func (r *Resolver) Category(fragment string) (config.Category, bool) {
	f := strings.Join(correlation.Words(fragment), " ")
	if f == "" {
		return config.Category{}, false
	}
	for _, c := range r.tax.Exclusion {
		name := strings.ReplaceAll(c.Name, "_", " ")
		if f == name || correlation.Stem(f) == name {
			return c, true
		}
	}
	return config.Category{}, false
}

// Candidates scores every live group in scope against fragment. An empty
// scope searches every section, skip included. Results at or above the
// match minimum are returned best first, ties in draft order.
func (r *Resolver) Candidates(d *model.Draft, fragment string, scope model.Section) []Candidate {
	tokens := r.tokens(fragment)
	if len(tokens) == 0 {
		return nil
	}

	var out []Candidate
	for _, sec := range d.Sections() {
		if scope != "" && sec != scope {
			continue
		}
		for i, g := range d.Groups(sec) {
			score := newVocabulary(g, r).score(tokens)
			if score >= r.matchMin {
				out = append(out, Candidate{Group: g, Section: sec, Index: i, Score: score})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Pick chooses among scored candidates. A clear winner is returned alone;
// several candidates within the ambiguity margin of the best are returned
// with ambiguous set.
func (r *Resolver) Pick(cands []Candidate) (picked []Candidate, ambiguous bool) {
	if len(cands) == 0 {
		return nil, false
	}
	best := cands[0].Score
	for _, c := range cands {
		if best-c.Score <= r.margin {
			picked = append(picked, c)
		}
	}
	return picked, len(picked) > 1
}

// Narrow rescores existing candidates against an extra fragment, keeping
// those that still match.
func (r *Resolver) Narrow(cands []Candidate, fragment string) []Candidate {
	tokens := r.tokens(fragment)
	if len(tokens) == 0 {
		return nil
	}
	var out []Candidate
	for _, c := range cands {
		if s := newVocabulary(c.Group, r).score(tokens); s >= r.matchMin {
			c.Score = s
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (r *Resolver) tokens(fragment string) []string {
	all := correlation.Words(fragment)
	var kept []string
	for _, w := range all {
		if !r.ignore[w] {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return all
	}
	return kept
}

// vocabulary is the matchable text of one group.
type vocabulary struct {
	words   map[string]bool
	stems   map[string]bool
	aliases map[string]bool
	list    []string
	r       *Resolver
}

func newVocabulary(g *model.Group, r *Resolver) *vocabulary {
	v := &vocabulary{
		words:   make(map[string]bool),
		stems:   make(map[string]bool),
		aliases: make(map[string]bool),
		r:       r,
	}
	for _, h := range append([]string{g.RepresentativeHeadline}, g.Headlines()...) {
		ws := correlation.Words(h)
		for i, w := range ws {
			if !v.words[w] {
				v.words[w] = true
				v.list = append(v.list, w)
			}
			v.stems[correlation.Stem(w)] = true
			if a, ok := r.aliases[w]; ok {
				v.aliases[a] = true
			}
			if e, ok := r.events[w]; ok {
				v.aliases[e] = true
			}
			if i+1 < len(ws) {
				if a, ok := r.aliases[w+" "+ws[i+1]]; ok {
					v.aliases[a] = true
				}
			}
		}
	}
	for _, key := range g.Signature {
		if strings.HasPrefix(key, "date:") {
			continue
		}
		v.aliases[correlation.DisplayKey(key)] = true
	}
	return v
}

func (v *vocabulary) score(tokens []string) float64 {
	var sum float64
	for i := 0; i < len(tokens); i++ {
		if i+1 < len(tokens) {
			if a, ok := v.r.aliases[tokens[i]+" "+tokens[i+1]]; ok && v.aliases[a] {
				sum += 2 * scoreAlias
				i++
				continue
			}
		}
		sum += v.tokenScore(tokens[i])
	}
	return sum / float64(len(tokens))
}

func (v *vocabulary) tokenScore(t string) float64 {
	if v.words[t] || v.stems[correlation.Stem(t)] {
		return scoreExact
	}
	if a, ok := v.r.aliases[t]; ok && v.aliases[a] {
		return scoreAlias
	}
	if e, ok := v.r.events[t]; ok && v.aliases[e] {
		return scoreAlias
	}
	if v.aliases[t] || v.aliases[correlation.Stem(t)] {
		return scoreAlias
	}
	if len(t) >= 4 {
		for _, m := range fuzzy.Find(t, v.list) {
			if len(m.Str) >= 4 && abs(len(m.Str)-len(t)) <= 2 {
				return scoreFuzzy
			}
		}
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
