// Package coord wires the pipeline together: gather raw items from every
// source concurrently, then normalize, group, classify and balance them
// into a draft.
package coord

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/roundup/internal/balance"
	"github.com/abelbrown/roundup/internal/classify"
	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/correlation"
	"github.com/abelbrown/roundup/internal/fetch"
	"github.com/abelbrown/roundup/internal/logging"
	"github.com/abelbrown/roundup/internal/lookback"
	"github.com/abelbrown/roundup/internal/metrics"
	"github.com/abelbrown/roundup/internal/model"
	"github.com/abelbrown/roundup/internal/normalize"
	"github.com/abelbrown/roundup/internal/otel"
)

// fetchTimeout is the timeout for each individual fetch.
const fetchTimeout = 30 * time.Second

// maxConcurrentFetches limits parallel fetch operations.
const maxConcurrentFetches = 5

// SourceResult reports how one source fared.
type SourceResult struct {
	Source string
	Items  int
	Err    error
	Dur    time.Duration
}

// Gather fetches every source in parallel. Items come back grouped by
// source in the order the sources were given, so discovery order does
// not depend on which fetch finished first. A failing source contributes
// nothing and is reported; it never fails the run.
func Gather(ctx context.Context, sources []fetch.Source, journal *otel.Logger) ([]model.RawItem, []SourceResult) {
	batches := make([][]model.RawItem, len(sources))
	results := make([]SourceResult, len(sources))

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)

	for i, src := range sources {
		g.Go(func() error {
			results[i] = SourceResult{Source: src.Name()}
			if ctx.Err() != nil {
				results[i].Err = ctx.Err()
				return nil
			}

			fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
			defer cancel()

			start := time.Now()
			items, err := src.Fetch(fctx)
			results[i].Dur = time.Since(start)
			if err != nil {
				results[i].Err = err
				logging.Warn("fetch failed", "source", src.Name(), "err", err)
				journal.Emit(otel.Event{
					Level: otel.LevelWarn,
					Kind:  otel.KindFetchError,
					Comp:  "coord",
					Msg:   src.Name(),
					Err:   err.Error(),
					Dur:   results[i].Dur,
				})
				return nil // never fail the group - errors reported per-source
			}
			batches[i] = items
			results[i].Items = len(items)
			return nil
		})
	}
	_ = g.Wait()

	var all []model.RawItem
	for _, b := range batches {
		all = append(all, b...)
	}
	return all, results
}

// Result is everything one pipeline run produced.
type Result struct {
	Window  lookback.Window
	Sources []SourceResult
	Ingest  normalize.Result
	Groups  []*model.Group
	Draft   *model.Draft
	Report  balance.Report
}

// Degraded counts groups whose classification fell back to keywords.
func (r *Result) Degraded() int {
	n := 0
	for _, g := range r.Groups {
		if g.Class.Degraded {
			n++
		}
	}
	return n
}

// Pipeline runs the core stages. It holds no per-run state, so one
// Pipeline may run repeatedly.
type Pipeline struct {
	tax        *config.Taxonomy
	screener   *classify.Screener
	grouper    *correlation.Grouper
	classifier *classify.Classifier
	balancer   *balance.Balancer
	metrics    *metrics.Metrics
	journal    *otel.Logger
}

// Option configures a Pipeline.
type Option func(*pipelineOptions)

type pipelineOptions struct {
	metrics  *metrics.Metrics
	journal  *otel.Logger
	classify []classify.Option
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *pipelineOptions) { o.metrics = m }
}

func WithJournal(j *otel.Logger) Option {
	return func(o *pipelineOptions) { o.journal = j }
}

// WithClassifierOptions passes extra options to the classifier, such as a
// custom limiter.
func WithClassifierOptions(opts ...classify.Option) Option {
	return func(o *pipelineOptions) { o.classify = append(o.classify, opts...) }
}

// NewPipeline builds every stage from configuration. svc may be nil, in
// which case every group is classified in degraded mode.
func NewPipeline(cfg *config.Config, tax *config.Taxonomy, svc classify.Service, opts ...Option) *Pipeline {
	var o pipelineOptions
	for _, opt := range opts {
		opt(&o)
	}
	screener := classify.NewScreener(tax, cfg.Sections)
	copts := append([]classify.Option{classify.WithMetrics(o.metrics), classify.WithJournal(o.journal)}, o.classify...)
	return &Pipeline{
		tax:        tax,
		screener:   screener,
		grouper:    correlation.NewGrouper(correlation.OptionsFromConfig(cfg.Grouping), tax, o.metrics, o.journal),
		classifier: classify.New(cfg, screener, svc, copts...),
		balancer:   balance.New(cfg, screener, balance.WithMetrics(o.metrics), balance.WithJournal(o.journal)),
		metrics:    o.metrics,
		journal:    o.journal,
	}
}

// Screener is shared with the edit session for its judgment check.
func (p *Pipeline) Screener() *classify.Screener {
	return p.screener
}

// Run gathers the sources and builds a balanced draft for window.
func (p *Pipeline) Run(ctx context.Context, window lookback.Window, sources []fetch.Source) (*Result, error) {
	items, results := Gather(ctx, sources, p.journal)
	res, err := p.Build(ctx, window, items)
	if res != nil {
		res.Sources = results
	}
	return res, err
}

// Build runs the core stages over already gathered items. Nothing here
// fails the run except cancellation.
func (p *Pipeline) Build(ctx context.Context, window lookback.Window, items []model.RawItem) (*Result, error) {
	res := &Result{Window: window}

	res.Ingest = normalize.New(p.tax, window, normalize.WithMetrics(p.metrics), normalize.WithJournal(p.journal)).Run(items)
	logging.Info("normalized", "items", len(items), "stories", len(res.Ingest.Stories), "rejected", len(res.Ingest.Rejected))

	res.Groups = p.grouper.Group(res.Ingest.Stories)

	p.classifier.Classify(ctx, res.Groups)
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("classify: %w", err)
	}

	res.Draft, res.Report = p.balancer.Balance(res.Groups)
	logging.Info("draft ready",
		"groups", len(res.Groups),
		"degraded", res.Degraded(),
		"overflows", len(res.Report.Overflows),
		"skipped", res.Report.Skipped)
	return res, nil
}
