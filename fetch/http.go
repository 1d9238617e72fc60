// Package fetch retrieves and parses the pages previews are built from.
//
// HTTP is a single GET, enough for statically generated documentation.
// Browser renders the page in Chrome. Auto tries HTTP first and escalates
// to the browser when the body looks like a JavaScript application shell.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/instantpreview/dom"
)

// ErrStatus is returned for non-2xx/3xx responses.
var ErrStatus = errors.New("fetch: unexpected status")

// DefaultTimeout bounds one fetch.
const DefaultTimeout = 10 * time.Second

// maxBody caps the bytes read from a response.
const maxBody = 10 << 20

// Page is a fetched, unparsed response.
type Page struct {
	// URL is where the body was served from, after redirects.
	URL        *url.URL
	StatusCode int
	Body       []byte
	Sufficient bool
}

// HTTP fetches pages with a plain GET.
type HTTP struct {
	client  *http.Client
	ua      string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an HTTP fetcher.
type Option func(*HTTP)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *HTTP) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTP) { f.ua = ua }
}

// WithTimeout bounds each request. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTP) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *HTTP) { f.logger = l }
}

// NewHTTP creates an HTTP fetcher.
func NewHTTP(opts ...Option) *HTTP {
	f := &HTTP{
		client:  http.DefaultClient,
		ua:      "Mozilla/5.0 (compatible; InstantPreview/1.0)",
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Get fetches pageURL without parsing it.
func (f *HTTP) Get(ctx context.Context, pageURL string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %d for %s", ErrStatus, resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	p := &Page{
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode,
		Body:       body,
		Sufficient: IsSufficient(body),
	}
	f.logger.Debug("fetch: fetched",
		"url", pageURL, "final", p.URL.String(), "status", resp.StatusCode,
		"size", len(body), "sufficient", p.Sufficient)
	return p, nil
}

// Fetch fetches and parses pageURL.
func (f *HTTP) Fetch(ctx context.Context, pageURL string) (*html.Node, error) {
	doc, _, err := f.FetchFinal(ctx, pageURL)
	return doc, err
}

// FetchFinal fetches and parses pageURL and reports the URL the page was
// served from.
func (f *HTTP) FetchFinal(ctx context.Context, pageURL string) (*html.Node, *url.URL, error) {
	p, err := f.Get(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := dom.Parse(bytes.NewReader(p.Body))
	return doc, p.URL, err
}
