// Package sitemap loads a site's sitemap.xml and answers whether a URL is a
// page of the site.
//
// Sitemaps are generated with the canonical site URL, which differs from
// the URL the pages are actually served from during local development or
// on a preview deployment. Entries are rebased: the longest common prefix
// of all <loc> values is replaced by the serving base.
package sitemap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// ErrStatus is returned when the sitemap request does not succeed.
var ErrStatus = errors.New("sitemap: unexpected status")

const maxSitemapSize = 10 << 20

type urlset struct {
	URLs []struct {
		Loc        string `xml:"loc"`
		Alternates []struct {
			Href string `xml:"href,attr"`
		} `xml:"link"`
	} `xml:"url"`
}

// Set is an immutable set of normalized page URLs.
type Set struct {
	urls map[string]struct{}
}

// New builds a Set from absolute URLs. Entries are normalized.
func New(urls ...string) *Set {
	s := &Set{urls: make(map[string]struct{}, len(urls))}
	for _, u := range urls {
		s.urls[normalizeString(u)] = struct{}{}
	}
	return s
}

// Contains reports whether u (normalized) is in the set.
func (s *Set) Contains(u string) bool {
	_, ok := s.urls[normalizeString(u)]
	return ok
}

// Len returns the number of entries.
func (s *Set) Len() int { return len(s.urls) }

// URLs returns the entries in no particular order.
func (s *Set) URLs() []string {
	out := make([]string, 0, len(s.urls))
	for u := range s.urls {
		out = append(out, u)
	}
	return out
}

// Normalize returns a copy of u without query and fragment.
func Normalize(u *url.URL) *url.URL {
	c := *u
	c.RawQuery = ""
	c.ForceQuery = false
	c.Fragment = ""
	c.RawFragment = ""
	return &c
}

func normalizeString(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return Normalize(u).String()
}

// Parse reads a sitemap document and rebases its entries onto base. Any
// hreflang alternates are included. base may be nil to keep the entries
// as written.
func Parse(r io.Reader, base *url.URL) (*Set, error) {
	var doc urlset
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("sitemap: decode: %w", err)
	}

	var locs []string
	for _, u := range doc.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			locs = append(locs, loc)
		}
		for _, alt := range u.Alternates {
			if href := strings.TrimSpace(alt.Href); href != "" {
				locs = append(locs, href)
			}
		}
	}
	if base != nil {
		locs = Rebase(locs, base)
	}
	return New(locs...), nil
}

// Rebase replaces the common prefix of locs with base. A single entry is
// treated as the site root.
func Rebase(locs []string, base *url.URL) []string {
	if len(locs) == 0 {
		return nil
	}
	prefix := commonPrefix(locs)
	root := base.String()
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	out := make([]string, len(locs))
	for i, loc := range locs {
		out[i] = root + strings.TrimPrefix(loc, prefix)
	}
	return out
}

// commonPrefix returns the longest prefix shared by all values that ends at
// a path separator.
func commonPrefix(values []string) string {
	prefix := values[0]
	if len(values) == 1 {
		// The only page is the root.
		if !strings.HasSuffix(prefix, "/") {
			prefix = prefix[:strings.LastIndexByte(prefix, '/')+1]
		}
		return prefix
	}
	for _, v := range values[1:] {
		for !strings.HasPrefix(v, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix[:strings.LastIndexByte(prefix, '/')+1]
}

// Loader fetches sitemaps over HTTP.
type Loader struct {
	client *http.Client
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Loader) { l.logger = lg }
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{client: http.DefaultClient, logger: slog.Default()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load fetches <base>/sitemap.xml and rebases it onto base.
func (l *Loader) Load(ctx context.Context, base *url.URL) (*Set, error) {
	ref, _ := url.Parse("sitemap.xml")
	root := *base
	if !strings.HasSuffix(root.Path, "/") {
		root.Path += "/"
	}
	target := root.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("sitemap: request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sitemap: get %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	set, err := Parse(io.LimitReader(resp.Body, maxSitemapSize), &root)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("sitemap: loaded", "url", target.String(), "entries", set.Len())
	return set, nil
}
