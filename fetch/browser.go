package fetch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/net/html"

	"github.com/hazyhaar/instantpreview/browser"
	"github.com/hazyhaar/instantpreview/dom"
)

// Browser renders pages in a stealth Chrome tab.
type Browser struct {
	mgr    *browser.Manager
	logger *slog.Logger
}

// NewBrowser creates a browser fetcher on a started Manager.
func NewBrowser(mgr *browser.Manager, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{mgr: mgr, logger: logger}
}

// Fetch opens pageURL in a fresh tab and parses the rendered DOM.
func (b *Browser) Fetch(ctx context.Context, pageURL string) (*html.Node, error) {
	doc, _, err := b.FetchFinal(ctx, pageURL)
	return doc, err
}

// FetchFinal is Fetch plus the URL the tab ended on.
func (b *Browser) FetchFinal(ctx context.Context, pageURL string) (*html.Node, *url.URL, error) {
	tab, err := browser.OpenTab(ctx, b.mgr, pageURL, true)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch: browser: %w", err)
	}
	defer tab.Close()

	body, err := tab.HTML(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch: browser: %w", err)
	}
	final, err := tab.URL(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch: browser: %w", err)
	}
	b.logger.Debug("fetch: rendered", "url", pageURL, "final", final.String(), "size", len(body))
	doc, err := dom.Parse(bytes.NewReader(body))
	return doc, final, err
}

// Renderer is the browser side of Auto.
type Renderer interface {
	FetchFinal(ctx context.Context, pageURL string) (*html.Node, *url.URL, error)
}

// Auto fetches over HTTP and escalates to a Renderer when the response is
// not sufficient on its own.
type Auto struct {
	http     *HTTP
	renderer Renderer
	logger   *slog.Logger
}

// NewAuto creates an Auto fetcher. renderer may be nil, in which case
// insufficient pages are used as fetched.
func NewAuto(h *HTTP, renderer Renderer, logger *slog.Logger) *Auto {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auto{http: h, renderer: renderer, logger: logger}
}

// Fetch implements the escalation.
func (a *Auto) Fetch(ctx context.Context, pageURL string) (*html.Node, error) {
	doc, _, err := a.FetchFinal(ctx, pageURL)
	return doc, err
}

// FetchFinal is Fetch plus the URL the page was served from.
func (a *Auto) FetchFinal(ctx context.Context, pageURL string) (*html.Node, *url.URL, error) {
	p, err := a.http.Get(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	if p.Sufficient || a.renderer == nil {
		doc, err := dom.Parse(bytes.NewReader(p.Body))
		return doc, p.URL, err
	}
	a.logger.Debug("fetch: escalating to browser", "url", pageURL)
	return a.renderer.FetchFinal(ctx, pageURL)
}
