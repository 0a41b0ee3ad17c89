package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abelbrown/roundup/internal/brain"
	"github.com/abelbrown/roundup/internal/classify"
	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/coord"
	"github.com/abelbrown/roundup/internal/edit"
	"github.com/abelbrown/roundup/internal/fetch"
	"github.com/abelbrown/roundup/internal/logging"
	"github.com/abelbrown/roundup/internal/lookback"
	"github.com/abelbrown/roundup/internal/metrics"
	"github.com/abelbrown/roundup/internal/otel"
	"github.com/abelbrown/roundup/internal/render"
	"github.com/abelbrown/roundup/internal/store"
)

// feedTimeout bounds each feed's HTTP client.
const feedTimeout = 20 * time.Second

// app holds the process-wide pieces every command shares.
type app struct {
	cfg      *config.Config
	tax      *config.Taxonomy
	policy   *lookback.Policy
	journal  *otel.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// setup loads configuration and starts logging and the event journal.
// Callers must close the returned app.
func setup() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	tax, err := loadTaxonomy(cfg)
	if err != nil {
		return nil, err
	}

	policy, err := lookback.New(cfg.Lookback)
	if err != nil {
		return nil, fmt.Errorf("lookback: %w", err)
	}

	if err := logging.Init(cfg.LogDir(), cfg.LogLevel); err != nil {
		return nil, err
	}

	journal, err := otel.NewFileLogger(cfg.EventDir())
	if err != nil {
		logging.Warn("event journal disabled", "err", err)
		journal = otel.NewNullLogger()
	}
	journal.Info(otel.KindStartup, "main", "roundup started")

	reg := prometheus.NewRegistry()
	return &app{
		cfg:      cfg,
		tax:      tax,
		policy:   policy,
		journal:  journal,
		registry: reg,
		metrics:  metrics.New(reg),
	}, nil
}

func loadTaxonomy(cfg *config.Config) (*config.Taxonomy, error) {
	if cfg.TaxonomyFile != "" {
		return config.LoadTaxonomy(cfg.TaxonomyFile)
	}
	return config.DefaultTaxonomy()
}

func (a *app) Close() {
	a.journal.Info(otel.KindShutdown, "main", "roundup stopped")
	a.journal.Close()
	logging.Close()
}

// service picks the classification service from the enabled providers.
// With none available every group is classified in degraded mode.
func (a *app) service() classify.Service {
	opts := brain.DefaultTransportOptions()
	if a.cfg.Classifier.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(a.cfg.Classifier.TimeoutSeconds) * time.Second
	}
	opts.MaxRetries = a.cfg.Classifier.MaxRetries

	provider := brain.NewManagerFromConfig(a.cfg, opts, logging.Info).Pick()
	if provider == nil {
		logging.Warn("no classification provider available, using keyword routing")
		return nil
	}
	logging.Info("classification provider", "name", provider.Name())
	return classify.NewLLMService(provider, a.cfg.Sections)
}

// buildOptions are the flags shared by run and serve.
type buildOptions struct {
	inputs []string
	feeds  bool
	hours  int
	now    string
	force  bool
}

// build gathers, classifies and balances one draft, printing a short
// ingest report to w.
func (a *app) build(ctx context.Context, opts buildOptions, w io.Writer) (*coord.Result, *coord.Pipeline, error) {
	now, err := parseNow(opts.now)
	if err != nil {
		return nil, nil, err
	}

	if ok, why := a.policy.PublishDay(now); !ok && !opts.force {
		fmt.Fprintf(w, "warning: %s\n", why)
	}

	window := a.policy.Window(now)
	if opts.hours > 0 {
		window = a.policy.Fixed(now, opts.hours)
	}
	fmt.Fprintf(w, "Window: %s\n", window.Explanation)

	sources := fetch.Files(opts.inputs)
	if opts.feeds || len(opts.inputs) == 0 {
		sources = append(sources, fetch.FromConfig(a.cfg.Sources, feedTimeout)...)
	}

	pipeline := coord.NewPipeline(a.cfg, a.tax, a.service(),
		coord.WithMetrics(a.metrics),
		coord.WithJournal(a.journal))

	res, err := pipeline.Run(ctx, window, sources)
	if err != nil {
		return nil, nil, err
	}

	for _, s := range res.Sources {
		if s.Err != nil {
			fmt.Fprintf(w, "warning: source %s failed: %v\n", s.Source, s.Err)
		}
	}
	fmt.Fprintf(w, "Stories: %d accepted, %d rejected, %d groups, %d classified by keywords\n",
		len(res.Ingest.Stories), len(res.Ingest.Rejected), len(res.Groups), res.Degraded())
	for _, ov := range res.Report.Overflows {
		fmt.Fprintf(w, "note: %v\n", ov.Err)
	}
	return res, pipeline, nil
}

// session starts the edit session over a built draft. Finalized editions
// go to the archive and, when out is set, to a text file.
func (a *app) session(res *coord.Result, pipeline *coord.Pipeline, st *store.Store, out string) *edit.Session {
	pubs := edit.Publishers{st}
	if out != "" {
		pubs = append(pubs, &render.FilePublisher{Path: out, Sections: a.cfg.Sections})
	}
	return edit.NewSession(res.Draft, a.cfg, pipeline.Screener(),
		edit.WithPublisher(pubs),
		edit.WithMetrics(a.metrics),
		edit.WithJournal(a.journal))
}

func (a *app) openStore() (*store.Store, error) {
	st, err := store.Open(a.cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open edition archive: %w", err)
	}
	return st, nil
}
