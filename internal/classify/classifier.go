// Package classify assigns each group a section and confidence. A
// deterministic exclusion screen runs first, then the semantic service
// proposes a section, and a reconciliation policy combines the two.
//
// Service calls are the only blocking work. They run on a bounded pool
// paced by a rate limiter, and results are merged back in group order so
// output never depends on completion order.
package classify

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/logging"
	"github.com/abelbrown/roundup/internal/metrics"
	"github.com/abelbrown/roundup/internal/model"
	"github.com/abelbrown/roundup/internal/otel"
)

// Classifier runs the classification stage.
type Classifier struct {
	screener *Screener
	service  Service
	policy   Policy
	workers  int
	timeout  time.Duration
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
	journal  *otel.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithMetrics records classification outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

// WithJournal emits degraded and summary events.
func WithJournal(l *otel.Logger) Option {
	return func(c *Classifier) { c.journal = l }
}

// WithLimiter replaces the configured rate limiter. nil disables pacing.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Classifier) { c.limiter = l }
}

// New creates a Classifier. svc may be nil, in which case every group is
// routed in degraded mode.
func New(cfg *config.Config, screener *Screener, svc Service, opts ...Option) *Classifier {
	cc := cfg.Classifier
	c := &Classifier{
		screener: screener,
		service:  svc,
		policy:   PolicyFromConfig(cfg),
		workers:  max(cc.Workers, 1),
		timeout:  time.Duration(cc.TimeoutSeconds) * time.Second,
	}
	if c.timeout <= 0 {
		c.timeout = 20 * time.Second
	}
	if cc.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cc.RatePerSecond), max(cc.Burst, 1))
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Policy returns the reconciliation policy in use.
func (c *Classifier) Policy() Policy {
	return c.policy
}

// Screener returns the exclusion screener.
func (c *Classifier) Screener() *Screener {
	return c.screener
}

// Classify assigns a classification to every group, replacing any
// previous one, and returns them in group order. It never fails: service
// errors degrade individual groups.
func (c *Classifier) Classify(ctx context.Context, groups []*model.Group) []model.Classification {
	start := time.Now()
	results := make([]model.Classification, len(groups))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, grp := range groups {
		g.Go(func() error {
			results[i] = c.classifyGroup(ctx, grp)
			return nil // failures degrade the group, never the batch
		})
	}
	_ = g.Wait()

	degraded := 0
	for i, grp := range groups {
		grp.SetClassification(results[i])
		c.metrics.Classified(string(results[i].Section), results[i].Degraded)
		if results[i].Degraded {
			degraded++
		}
	}

	c.journal.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindClassifySummary,
		Comp:  "classify",
		Count: len(groups),
		Dur:   time.Since(start),
		Extra: map[string]any{"degraded": degraded},
	})
	logging.Info("classification complete", "groups", len(groups), "degraded", degraded, "dur", time.Since(start))
	return results
}

func (c *Classifier) classifyGroup(ctx context.Context, g *model.Group) model.Classification {
	start := time.Now()
	defer func() { c.metrics.ObserveClassify(time.Since(start)) }()

	sc := c.screener.ScreenGroup(g)
	prop, submitted, err := c.propose(ctx, g)
	if err != nil {
		prop = c.policy.Degraded(sc, c.screener.Topics(g.Text()), g.OutletCount())
	}

	cl := c.policy.Reconcile(prop, sc, g.OutletCount(), err != nil)
	if submitted {
		cl.ReasonTags = append([]string{TagSubmitted}, cl.ReasonTags...)
	}
	if err != nil {
		cl.Err = fmt.Errorf("%w: %v", model.ErrClassificationDegraded, err)
		logging.Warn("classification degraded", "group", g.ID, "err", err)
		c.journal.Emit(otel.Event{
			Level:   otel.LevelWarn,
			Kind:    otel.KindClassifyDegraded,
			Comp:    "classify",
			Group:   g.ID,
			Section: string(cl.Section),
			Err:     err.Error(),
		})
	}
	return cl
}

// propose returns the preset section of a submission, or asks the
// service.
func (c *Classifier) propose(ctx context.Context, g *model.Group) (Proposal, bool, error) {
	if preset := g.PresetSection(); preset != "" {
		if preset.IsSkip() || c.policy.Known[preset] {
			return Proposal{Section: preset, Confidence: 1, Reasoning: "submitted with section"}, true, nil
		}
		logging.Warn("ignoring unknown submitted section", "group", g.ID, "section", preset)
	}

	if c.service == nil {
		return Proposal{}, false, ErrNoService
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Proposal{}, false, fmt.Errorf("rate limit: %w", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	p, err := c.service.Classify(callCtx, requestFor(g))
	if err != nil {
		return Proposal{}, false, err
	}
	if p.Section.IsSkip() || !c.policy.Known[p.Section] {
		return Proposal{}, false, fmt.Errorf("%w: unknown section %q", ErrMalformedResponse, p.Section)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return Proposal{}, false, fmt.Errorf("%w: confidence %v out of range", ErrMalformedResponse, p.Confidence)
	}
	return p, false, nil
}
