// Package preview implements link previews: the pipeline that turns a link
// target into an extracted fragment, and the controller that runs it for
// links of a host page as they gain and lose focus or hover.
package preview

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/net/html"

	"github.com/hazyhaar/instantpreview/extract"
	"github.com/hazyhaar/instantpreview/resolve"
	"github.com/hazyhaar/instantpreview/sitemap"
)

// Sitemap answers whether a normalized URL is a page of the site.
type Sitemap interface {
	Contains(u string) bool
}

// Fetcher retrieves and parses a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*html.Node, error)
}

// FinalFetcher is a Fetcher that also reports the URL a page was served
// from after redirects. Documents are resolved against that URL.
type FinalFetcher interface {
	FetchFinal(ctx context.Context, pageURL string) (*html.Node, *url.URL, error)
}

// Result is a successful pipeline run.
type Result struct {
	// URL is the fetched page: the target without query and fragment.
	URL *url.URL
	// Anchor is the decoded fragment, empty for whole-page previews.
	Anchor string
	// Content is the extracted fragment.
	Content extract.Fragment
}

// Pipeline runs sitemap check, fetch, resolution, target lookup and
// extraction for one URL. It holds no per-run state.
type Pipeline struct {
	sitemap   Sitemap
	fetcher   Fetcher
	resolver  *resolve.Resolver
	extractor *extract.Extractor
	logger    *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithExtractor replaces the default extractor.
func WithExtractor(e *extract.Extractor) PipelineOption {
	return func(p *Pipeline) { p.extractor = e }
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a Pipeline. The resolver's counter must be shared by
// every pipeline of the process.
func NewPipeline(sm Sitemap, f Fetcher, r *resolve.Resolver, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		sitemap:   sm,
		fetcher:   f,
		resolver:  r,
		extractor: extract.New(extract.Options{}),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run previews target.
func (p *Pipeline) Run(ctx context.Context, target *url.URL) (*Result, error) {
	page := sitemap.Normalize(target)
	pageURL := page.String()

	if !p.sitemap.Contains(pageURL) {
		return nil, fmt.Errorf("%w: %s", ErrNotInSitemap, pageURL)
	}

	doc, base, err := p.fetch(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if base == nil {
		base = page
	}

	doc, err = p.resolver.Resolve(ctx, doc, base)
	if err != nil {
		return nil, err
	}

	anchor := target.Fragment
	el := extract.Target(doc, anchor)
	if el == nil {
		return nil, fmt.Errorf("%w: %q on %s", ErrTargetNotFound, anchor, pageURL)
	}

	content := p.extractor.Extract(el)
	if content.Empty() {
		return nil, fmt.Errorf("%w: %q on %s", ErrEmpty, anchor, pageURL)
	}

	p.logger.Debug("preview: extracted", "url", pageURL, "anchor", anchor, "nodes", len(content.Nodes))
	return &Result{URL: page, Anchor: anchor, Content: content}, nil
}

func (p *Pipeline) fetch(ctx context.Context, pageURL string) (*html.Node, *url.URL, error) {
	if ff, ok := p.fetcher.(FinalFetcher); ok {
		return ff.FetchFinal(ctx, pageURL)
	}
	doc, err := p.fetcher.Fetch(ctx, pageURL)
	return doc, nil, err
}
