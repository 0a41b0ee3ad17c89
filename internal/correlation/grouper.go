// Package correlation clusters Stories that describe the same real-world
// event into Groups.
//
// Each headline is reduced to a weighted signature of proper nouns,
// numbers, event classes and content terms. Pairs that share enough
// signature weight within a time window become merge candidates, applied
// strongest first through a union-find. A story joining an existing group
// must also match the group's aggregate signature, and two multi-story
// groups are never fused.
package correlation

import (
	"sort"
	"time"
	"unicode/utf8"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/logging"
	"github.com/abelbrown/roundup/internal/metrics"
	"github.com/abelbrown/roundup/internal/model"
	"github.com/abelbrown/roundup/internal/otel"
)

// Options tunes the Grouper.
type Options struct {
	Threshold  float64
	MinShared  int
	TimeWindow time.Duration
}

// OptionsFromConfig converts the grouping config section.
func OptionsFromConfig(c config.GroupingConfig) Options {
	return Options{
		Threshold:  c.SimilarityThreshold,
		MinShared:  c.MinSharedFeatures,
		TimeWindow: time.Duration(c.TimeWindowHours) * time.Hour,
	}
}

// Grouper partitions stories into event groups. It holds no per-run state
// and is safe for concurrent use.
type Grouper struct {
	opts      Options
	extractor *Extractor
	metrics   *metrics.Metrics
	journal   *otel.Logger
}

// NewGrouper creates a Grouper. metrics and journal may be nil.
func NewGrouper(opts Options, tax *config.Taxonomy, m *metrics.Metrics, j *otel.Logger) *Grouper {
	return &Grouper{opts: opts, extractor: NewExtractor(tax), metrics: m, journal: j}
}

// Extractor exposes the signature extractor for callers that need to
// match free text against group features.
func (g *Grouper) Extractor() *Extractor {
	return g.extractor
}

type edge struct {
	i, j  int
	score float64
}

// cluster is a union-find root's state.
type cluster struct {
	members []int
	agg     Signature
}

// Group partitions stories, given in discovery order. The result is a
// pure function of the input: the same stories always produce the same
// groups in the same order.
func (g *Grouper) Group(stories []model.Story) []*model.Group {
	n := len(stories)
	sigs := make([]Signature, n)
	for i, s := range stories {
		sigs[i] = g.extractor.Extract(s.Headline)
	}

	var edges []edge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !g.withinWindow(stories[i], stories[j]) {
				continue
			}
			score, shared := Similarity(sigs[i], sigs[j])
			if shared >= g.opts.MinShared && score >= g.opts.Threshold {
				edges = append(edges, edge{i: i, j: j, score: score})
			}
		}
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].score != edges[b].score {
			return edges[a].score > edges[b].score
		}
		if edges[a].i != edges[b].i {
			return edges[a].i < edges[b].i
		}
		return edges[a].j < edges[b].j
	})

	parent := make([]int, n)
	clusters := make(map[int]*cluster, n)
	for i := range parent {
		parent[i] = i
		agg := newSignature()
		agg.merge(sigs[i])
		clusters[i] = &cluster{members: []int{i}, agg: agg}
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	rejected := 0
	for _, e := range edges {
		ri, rj := find(e.i), find(e.j)
		if ri == rj {
			continue
		}
		ci, cj := clusters[ri], clusters[rj]
		switch {
		case len(ci.members) == 1 && len(cj.members) == 1:
		case len(ci.members) > 1 && len(cj.members) > 1:
			rejected++
			continue
		default:
			single, grp := e.i, cj
			if len(ci.members) > 1 {
				single, grp = e.j, ci
			}
			if !g.joins(stories, sigs, single, grp) {
				rejected++
				continue
			}
		}

		// Lower root survives so the earliest member anchors the group.
		keep, drop := ri, rj
		if rj < ri {
			keep, drop = rj, ri
		}
		parent[drop] = keep
		ck, cd := clusters[keep], clusters[drop]
		ck.members = append(ck.members, cd.members...)
		sort.Ints(ck.members)
		ck.agg.merge(cd.agg)
		delete(clusters, drop)
	}

	roots := make([]int, 0, len(clusters))
	for r := range clusters {
		roots = append(roots, r)
	}
	sort.Ints(roots) // root is the earliest member

	groups := make([]*model.Group, 0, len(roots))
	for seq, r := range roots {
		groups = append(groups, g.build(stories, sigs, clusters[r], seq))
	}

	g.metrics.GroupsFormed(len(groups))
	g.journal.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindGroupSummary,
		Comp:  "correlation",
		Count: len(groups),
		Extra: map[string]any{"stories": n, "candidate_pairs": len(edges), "rejected_merges": rejected},
	})
	logging.Debug("grouping complete", "stories", n, "groups", len(groups), "rejected_merges", rejected)
	return groups
}

// joins re-validates a singleton against a group's aggregate signature
// and time span.
func (g *Grouper) joins(stories []model.Story, sigs []Signature, single int, grp *cluster) bool {
	for _, m := range grp.members {
		if !g.withinWindow(stories[single], stories[m]) {
			return false
		}
	}
	score, shared := Similarity(sigs[single], grp.agg)
	return shared >= g.opts.MinShared && score >= g.opts.Threshold
}

func (g *Grouper) withinWindow(a, b model.Story) bool {
	if g.opts.TimeWindow <= 0 {
		return true
	}
	d := a.PublishedAt.Sub(b.PublishedAt)
	if d < 0 {
		d = -d
	}
	return d <= g.opts.TimeWindow
}

func (g *Grouper) build(stories []model.Story, sigs []Signature, c *cluster, seq int) *model.Group {
	members := make([]model.Story, len(c.members))
	for k, idx := range c.members {
		members[k] = stories[idx]
	}

	rep := c.members[0]
	for _, idx := range c.members[1:] {
		if moreRepresentative(stories[idx], sigs[idx], stories[rep], sigs[rep]) {
			rep = idx
		}
	}

	first := stories[c.members[0]]
	signature := append(c.agg.Keys(), "date:"+first.PublishedAt.Format("2006-01-02"))

	return &model.Group{
		ID:                     "grp-" + first.ID,
		Members:                members,
		RepresentativeHeadline: stories[rep].Headline,
		Signature:              signature,
		Seq:                    seq,
	}
}

// moreRepresentative prefers the most specific headline, then the
// shortest, then the earliest published. Remaining ties keep discovery
// order.
func moreRepresentative(a model.Story, sa Signature, b model.Story, sb Signature) bool {
	if x, y := sa.Specificity(), sb.Specificity(); x != y {
		return x > y
	}
	if x, y := utf8.RuneCountInString(a.Headline), utf8.RuneCountInString(b.Headline); x != y {
		return x < y
	}
	return a.PublishedAt.Before(b.PublishedAt)
}
