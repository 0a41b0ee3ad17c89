// Package normalize turns raw gathered items into Stories, rejecting
// anything that cannot be attributed, dated into the window, or told apart
// from an item already seen.
package normalize

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/lookback"
	"github.com/abelbrown/roundup/internal/metrics"
	"github.com/abelbrown/roundup/internal/model"
	"github.com/abelbrown/roundup/internal/otel"
)

// Reason names why an item was rejected.
type Reason string

const (
	ReasonMissingURL      Reason = "missing_url"
	ReasonUnparseableURL  Reason = "unparseable_url"
	ReasonMissingHeadline Reason = "missing_headline"
	ReasonMissingSource   Reason = "missing_source"
	ReasonGenericHeadline Reason = "generic_headline"
	ReasonOutsideWindow   Reason = "outside_window"
	ReasonDuplicateURL    Reason = "duplicate_url"
)

// Rejection records one dropped item. Err wraps model.ErrIngestRejected.
type Rejection struct {
	Index  int // position in the input
	Item   model.RawItem
	Reason Reason
	Err    error
}

// Result is the outcome of normalizing a batch.
type Result struct {
	Stories  []model.Story
	Rejected []Rejection
}

// Counts tallies rejections by reason.
func (r Result) Counts() map[Reason]int {
	out := make(map[Reason]int)
	for _, rej := range r.Rejected {
		out[rej.Reason]++
	}
	return out
}

// Normalizer canonicalizes raw items. It remembers canonical URLs across
// calls, so one Normalizer serves one pipeline run.
type Normalizer struct {
	tax     *config.Taxonomy
	window  lookback.Window
	seen    map[string]int // canonical URL -> accepting input index
	seq     int
	metrics *metrics.Metrics
	journal *otel.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithMetrics records accepted and rejected counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Normalizer) { n.metrics = m }
}

// WithJournal emits a journal event per rejection.
func WithJournal(l *otel.Logger) Option {
	return func(n *Normalizer) { n.journal = l }
}

// New creates a Normalizer for one run.
func New(tax *config.Taxonomy, window lookback.Window, opts ...Option) *Normalizer {
	n := &Normalizer{
		tax:    tax,
		window: window,
		seen:   make(map[string]int),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Run normalizes items in arrival order. Arrival order is discovery order.
func (n *Normalizer) Run(items []model.RawItem) Result {
	var res Result
	for i, item := range items {
		story, rej := n.Normalize(i, item)
		if rej != nil {
			res.Rejected = append(res.Rejected, *rej)
			continue
		}
		res.Stories = append(res.Stories, story)
	}
	n.journal.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindIngestSummary,
		Comp:  "normalize",
		Count: len(res.Stories),
		Extra: map[string]any{"rejected": len(res.Rejected)},
	})
	return res
}

// Normalize converts one item. index is its input position, used only for
// reporting.
func (n *Normalizer) Normalize(index int, item model.RawItem) (model.Story, *Rejection) {
	reject := func(r Reason, detail string) (model.Story, *Rejection) {
		rej := &Rejection{
			Index:  index,
			Item:   item,
			Reason: r,
			Err:    fmt.Errorf("%w: %s: %s", model.ErrIngestRejected, r, detail),
		}
		n.metrics.Rejected(string(r))
		n.journal.Emit(otel.Event{
			Level:  otel.LevelDebug,
			Kind:   otel.KindIngestRejected,
			Comp:   "normalize",
			Reason: string(r),
			Msg:    item.Headline,
		})
		return model.Story{}, rej
	}

	if strings.TrimSpace(item.URL) == "" {
		return reject(ReasonMissingURL, "no url")
	}
	canonical, domain, err := CanonicalURL(item.URL, n.tax.TrackingParams)
	if err != nil {
		return reject(ReasonUnparseableURL, err.Error())
	}

	headline := cleanHeadline(item.Headline)
	if headline == "" {
		return reject(ReasonMissingHeadline, canonical)
	}
	if pattern, ok := n.genericPattern(headline); ok {
		return reject(ReasonGenericHeadline, pattern)
	}

	if d := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(item.SourceDomain), "www.")); d != "" {
		domain = d
	}
	source := strings.TrimSpace(item.SourceName)
	if source == "" {
		source, _ = n.tax.OutletName(domain)
	}
	if source == "" {
		return reject(ReasonMissingSource, domain)
	}

	published := item.PublishedAt
	imprecise := false
	if published.IsZero() {
		published = n.window.End
		imprecise = true
	} else if !n.window.Contains(published) {
		return reject(ReasonOutsideWindow, published.Format("2006-01-02 15:04"))
	}

	if first, dup := n.seen[canonical]; dup {
		return reject(ReasonDuplicateURL, fmt.Sprintf("first seen at input %d", first))
	}
	n.seen[canonical] = index

	story := model.Story{
		ID:            StoryID(canonical),
		Headline:      headline,
		CanonicalURL:  canonical,
		SourceName:    source,
		SourceDomain:  domain,
		PublishedAt:   published,
		RawExcerpt:    CleanExcerpt(item.Excerpt),
		DateImprecise: imprecise,
		PresetSection: item.Section,
		Seq:           n.seq,
	}
	n.seq++
	n.metrics.Accepted()
	return story, nil
}

func (n *Normalizer) genericPattern(headline string) (string, bool) {
	lower := strings.ToLower(headline)
	for _, p := range n.tax.GenericHeadlines {
		if p != "" && strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

func cleanHeadline(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
