package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/instantpreview/dom"
	"github.com/hazyhaar/instantpreview/gate"
	"github.com/hazyhaar/instantpreview/host"
	"github.com/hazyhaar/instantpreview/idgen"
	"github.com/hazyhaar/instantpreview/live"
)

// FeatureFlag enables previews for every eligible link of a site. Without
// it, only links carrying the data-preview attribute are previewed.
const FeatureFlag = "navigation.instant.preview"

// MountRequest is what a Tooltip gets to position and show an overlay.
type MountRequest struct {
	Doc     *host.Document
	Link    *html.Node
	Overlay *html.Node
	// Active is the link's activation state.
	Active *live.Value[bool]
	// Enabled is the shared preview preference.
	Enabled *live.Value[bool]
}

// Handle releases a mounted tooltip.
type Handle interface {
	Close() error
}

// Tooltip positions and shows overlays.
type Tooltip interface {
	Mount(ctx context.Context, req MountRequest) (Handle, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithTooltip sets the tooltip collaborator. Without one the overlay is
// only appended to the body.
func WithTooltip(t Tooltip) Option {
	return func(c *Controller) { c.tooltip = t }
}

// WithReporter receives every run outcome.
func WithReporter(r Reporter) Option {
	return func(c *Controller) { c.reporter = r }
}

// WithSettle sets the hover-leave settle delay of every link gate.
func WithSettle(d time.Duration) Option {
	return func(c *Controller) { c.settle = d }
}

// WithIDs sets the overlay id generator.
func WithIDs(gen idgen.Generator) Option {
	return func(c *Controller) { c.ids = gen }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller attaches previews to the links of a host page.
type Controller struct {
	doc      *host.Document
	pipeline *Pipeline
	enabled  *live.Value[bool]
	tooltip  Tooltip
	reporter Reporter
	settle   time.Duration
	ids      idgen.Generator
	logger   *slog.Logger

	mu    sync.Mutex
	links map[*html.Node]*Link
}

// NewController creates a Controller. enabled is the shared preference
// signal, usually prefs.Store.Enabled().
func NewController(doc *host.Document, p *Pipeline, enabled *live.Value[bool], opts ...Option) *Controller {
	c := &Controller{
		doc:      doc,
		pipeline: p,
		enabled:  enabled,
		settle:   gate.DefaultSettle,
		ids:      idgen.Prefixed("preview_", idgen.Default),
		logger:   slog.Default(),
		links:    make(map[*html.Node]*Link),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Attach starts previewing el. Links that can never preview return an
// error wrapping ErrIneligible and start nothing. Attaching the same
// element twice returns the existing Link.
func (c *Controller) Attach(ctx context.Context, el *html.Node) (*Link, error) {
	target, err := c.eligible(el)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.links[el]; ok {
		return l, nil
	}

	l := newLink(c, el, target)
	c.links[el] = l
	l.start(ctx)
	return l, nil
}

// AttachAll attaches every eligible anchor of the host document.
func (c *Controller) AttachAll(ctx context.Context) ([]*Link, error) {
	var out []*Link
	for _, el := range c.doc.Links() {
		l, err := c.Attach(ctx, el)
		if errors.Is(err, ErrIneligible) {
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, l)
	}
	c.logger.Debug("preview: attached", "links", len(out))
	return out, nil
}

// Close detaches every link.
func (c *Controller) Close() {
	c.mu.Lock()
	links := make([]*Link, 0, len(c.links))
	for _, l := range c.links {
		links = append(links, l)
	}
	c.mu.Unlock()

	for _, l := range links {
		l.Close()
	}
}

func (c *Controller) forget(l *Link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.links[l.el] == l {
		delete(c.links, l.el)
	}
}

// eligible runs the guard clauses and returns the absolute link target.
func (c *Controller) eligible(el *html.Node) (*url.URL, error) {
	var (
		raw               string
		isAnchor, hasHref bool
		optIn, titled     bool
	)
	c.doc.Read(func(*html.Node) {
		isAnchor = dom.IsElement(el, atom.A)
		raw, hasHref = dom.Attr(el, "href")
		optIn = dom.HasAttr(el, "data-preview")
		titled = dom.HasAttr(el, "title")
	})

	switch {
	case !isAnchor:
		return nil, fmt.Errorf("%w: not an anchor", ErrIneligible)
	case !c.doc.CanHover():
		return nil, fmt.Errorf("%w: no hover capability", ErrIneligible)
	case !c.doc.HasFeature(FeatureFlag) && !optIn:
		return nil, fmt.Errorf("%w: previews not enabled for link", ErrIneligible)
	case titled:
		return nil, fmt.Errorf("%w: link has a title", ErrIneligible)
	case !hasHref || strings.TrimSpace(raw) == "":
		return nil, fmt.Errorf("%w: no href", ErrIneligible)
	}

	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: bad href %q", ErrIneligible, raw)
	}
	page := c.doc.URL()
	target := page.ResolveReference(ref)
	if target.Host != page.Host {
		return nil, fmt.Errorf("%w: external host %s", ErrIneligible, target.Host)
	}
	return target, nil
}

func (c *Controller) report(ctx context.Context, r Report) {
	c.logger.Debug("preview: run finished",
		"url", r.URL, "anchor", r.Anchor, "outcome", r.Outcome,
		"duration", r.Duration, "error", r.Err)
	if c.reporter != nil {
		c.reporter.Report(ctx, r)
	}
}
