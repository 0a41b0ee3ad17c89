// Package fetch supplies raw items to the pipeline: RSS and Atom feeds over
// HTTP, and JSON or YAML item files such as reader submissions.
//
// Fetchers do no normalization. Missing dates, sources and duplicate URLs
// are left for the normalizer to judge.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/model"
)

const userAgent = "roundup/1.0 (+https://github.com/abelbrown/roundup)"

// Source yields raw items from one place.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.RawItem, error)
}

// Feed fetches an RSS or Atom feed.
type Feed struct {
	name   string
	url    string
	domain string
	client *http.Client
}

// NewFeed creates a Feed with the given HTTP client timeout.
func NewFeed(src config.SourceConfig, timeout time.Duration) *Feed {
	return &Feed{
		name:   src.Name,
		url:    src.URL,
		domain: src.Domain,
		client: &http.Client{Timeout: timeout},
	}
}

func (f *Feed) Name() string { return f.name }

// Fetch retrieves the feed and converts its entries in feed order.
//
// The function respects context cancellation and will return early
// if the context is cancelled.
func (f *Feed) Fetch(ctx context.Context) ([]model.RawItem, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]model.RawItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, f.convert(it))
	}
	return items, nil
}

// convert maps a feed entry to a raw item. Entries without a date keep a
// zero PublishedAt.
func (f *Feed) convert(it *gofeed.Item) model.RawItem {
	raw := model.RawItem{
		Headline:     it.Title,
		URL:          it.Link,
		SourceName:   f.name,
		SourceDomain: f.domain,
		Excerpt:      it.Description,
	}
	if raw.URL == "" && len(it.Links) > 0 {
		raw.URL = it.Links[0]
	}
	if raw.Excerpt == "" {
		raw.Excerpt = it.Content
	}
	switch {
	case it.PublishedParsed != nil:
		raw.PublishedAt = *it.PublishedParsed
	case it.UpdatedParsed != nil:
		raw.PublishedAt = *it.UpdatedParsed
	}
	return raw
}
