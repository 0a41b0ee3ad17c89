// Package balance lays classified groups out into a draft that respects
// each section's capacity.
package balance

import (
	"fmt"
	"sort"

	"github.com/abelbrown/roundup/internal/classify"
	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/logging"
	"github.com/abelbrown/roundup/internal/metrics"
	"github.com/abelbrown/roundup/internal/model"
	"github.com/abelbrown/roundup/internal/otel"
)

// TagOverflowPrefix marks a group the balancer moved out of a full section.
const TagOverflowPrefix = "overflow:"

// SectionReport is one line of the imbalance report.
type SectionReport struct {
	Section     model.Section
	Display     string
	Count       int
	Min         int
	Max         int
	BelowMin    bool
	AtOrOverMax bool
}

// Overflow records a group moved out of a full section.
type Overflow struct {
	Group    string
	Headline string
	From     model.Section
	To       model.Section
	Err      error // wraps model.ErrCapacityOverflow
}

// Report is the structured imbalance report handed to the editor.
type Report struct {
	Sections  []SectionReport
	Overflows []Overflow
	Skipped   int
}

// Underflows returns the sections below their minimum.
func (r Report) Underflows() []SectionReport {
	var out []SectionReport
	for _, s := range r.Sections {
		if s.BelowMin {
			out = append(out, s)
		}
	}
	return out
}

// Balancer builds drafts. It never invents or drops groups: every input
// group lands in a section or in skip.
type Balancer struct {
	sections []config.SectionConfig
	top      model.Section
	catchAll model.Section
	screener *classify.Screener
	metrics  *metrics.Metrics
	journal  *otel.Logger
}

// Option configures a Balancer.
type Option func(*Balancer)

// WithMetrics counts overflow moves.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Balancer) { b.metrics = m }
}

// WithJournal emits overflow and underflow events.
func WithJournal(l *otel.Logger) Option {
	return func(b *Balancer) { b.journal = l }
}

// New creates a Balancer over the configured section table. The screener
// supplies secondary topic signals for overflow.
func New(cfg *config.Config, screener *classify.Screener, opts ...Option) *Balancer {
	b := &Balancer{
		sections: cfg.Sections,
		top:      cfg.TopSection(),
		screener: screener,
	}
	if s, ok := cfg.CatchAllSection(); ok {
		b.catchAll = s
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Less orders groups within a section: confidence desc, outlet count desc,
// most recent first, then group creation order.
func Less(a, b *model.Group) bool {
	if a.Class.Confidence != b.Class.Confidence {
		return a.Class.Confidence > b.Class.Confidence
	}
	if ao, bo := a.OutletCount(), b.OutletCount(); ao != bo {
		return ao > bo
	}
	if ap, bp := a.PublishedAt(), b.PublishedAt(); !ap.Equal(bp) {
		return ap.After(bp)
	}
	return a.Seq < b.Seq
}

// Balance places every group into a new draft and reports the result.
func (b *Balancer) Balance(groups []*model.Group) (*model.Draft, Report) {
	limits := make(map[model.Section]int, len(b.sections))
	order := make([]model.Section, 0, len(b.sections))
	for _, s := range b.sections {
		limits[s.Section()] = s.Max
		order = append(order, s.Section())
	}

	buckets := make(map[model.Section][]*model.Group, len(order)+1)
	for _, g := range groups {
		sec := g.Class.Section
		if _, ok := limits[sec]; !ok && !sec.IsSkip() {
			logging.Warn("group classified into unknown section", "group", g.ID, "section", sec)
			sec = b.fallback()
			b.reassign(g, sec, "unknown:"+string(g.Class.Section))
		}
		buckets[sec] = append(buckets[sec], g)
	}

	var report Report
	for _, sec := range order {
		bucket := buckets[sec]
		sort.SliceStable(bucket, func(i, j int) bool { return Less(bucket[i], bucket[j]) })
		if len(bucket) <= limits[sec] {
			buckets[sec] = bucket
			continue
		}

		buckets[sec] = bucket[:limits[sec]:limits[sec]]
		for _, g := range bucket[limits[sec]:] {
			to := b.overflowTarget(g, sec, buckets, limits)
			buckets[to] = append(buckets[to], g)
			b.reassign(g, to, TagOverflowPrefix+string(sec))

			ov := Overflow{
				Group:    g.ID,
				Headline: g.RepresentativeHeadline,
				From:     sec,
				To:       to,
				Err:      fmt.Errorf("%w: %s is full (max %d), moved to %s", model.ErrCapacityOverflow, sec, limits[sec], to),
			}
			report.Overflows = append(report.Overflows, ov)
			b.metrics.Overflow(string(sec), string(to))
			b.journal.Emit(otel.Event{
				Level:   otel.LevelInfo,
				Kind:    otel.KindBalanceOverflow,
				Comp:    "balance",
				Group:   g.ID,
				Section: string(to),
				Reason:  "from " + string(sec),
			})
		}
	}

	draft := model.NewDraft(order)
	for _, sec := range draft.Sections() {
		bucket := buckets[sec]
		sort.SliceStable(bucket, func(i, j int) bool { return Less(bucket[i], bucket[j]) })
		for _, g := range bucket {
			// Each group sits in exactly one bucket, so Append cannot fail.
			_ = draft.Append(sec, g)
		}
	}

	report.Skipped = draft.Count(model.SectionSkip)
	for _, s := range b.sections {
		n := draft.Count(s.Section())
		sr := SectionReport{
			Section:     s.Section(),
			Display:     s.DisplayName(),
			Count:       n,
			Min:         s.Min,
			Max:         s.Max,
			BelowMin:    n < s.Min,
			AtOrOverMax: n >= s.Max,
		}
		report.Sections = append(report.Sections, sr)
		if sr.BelowMin {
			b.journal.Emit(otel.Event{
				Level:   otel.LevelInfo,
				Kind:    otel.KindBalanceUnderflow,
				Comp:    "balance",
				Section: string(sr.Section),
				Count:   n,
				Extra:   map[string]any{"min": s.Min},
			})
		}
	}

	logging.Info("draft balanced", "groups", len(groups), "overflows", len(report.Overflows), "skipped", report.Skipped)
	return draft, report
}

// overflowTarget picks the section with the strongest secondary topic
// signal that still has room, then the catch-all, then skip.
func (b *Balancer) overflowTarget(g *model.Group, from model.Section, buckets map[model.Section][]*model.Group, limits map[model.Section]int) model.Section {
	fits := func(s model.Section) bool {
		return s != from && s != b.top && len(buckets[s]) < limits[s]
	}
	if b.screener != nil {
		for _, t := range b.screener.Topics(g.Text()) {
			if fits(t.Section) {
				return t.Section
			}
		}
	}
	if b.catchAll != "" && fits(b.catchAll) {
		return b.catchAll
	}
	return model.SectionSkip
}

func (b *Balancer) fallback() model.Section {
	if b.catchAll != "" {
		return b.catchAll
	}
	return model.SectionSkip
}

// reassign replaces the group's classification with one in section to.
func (b *Balancer) reassign(g *model.Group, to model.Section, tag string) {
	c := g.Class
	c.Section = to
	c.ReasonTags = append(append([]string(nil), c.ReasonTags...), tag)
	g.SetClassification(c)
}
