package preview

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/instantpreview/gate"
	"github.com/hazyhaar/instantpreview/live"
	"github.com/hazyhaar/instantpreview/render"
)

// Link is an attached link. One goroutine owns its run state; Focus and
// Hover feed its gate.
type Link struct {
	ctrl   *Controller
	el     *html.Node
	target *url.URL
	gate   *gate.Gate

	cancel context.CancelFunc
	done   chan struct{}
}

type runResult struct {
	gen     uint64
	started time.Time
	res     *Result
	err     error
}

func newLink(c *Controller, el *html.Node, target *url.URL) *Link {
	return &Link{
		ctrl:   c,
		el:     el,
		target: target,
		gate:   gate.New(c.enabled, gate.WithSettle(c.settle), gate.WithLogger(c.logger)),
		done:   make(chan struct{}),
	}
}

// Element returns the anchor element.
func (l *Link) Element() *html.Node { return l.el }

// URL returns the absolute link target, fragment included.
func (l *Link) URL() *url.URL {
	u := *l.target
	return &u
}

// Active returns the link's activation signal.
func (l *Link) Active() *live.Value[bool] { return l.gate.State() }

// Focus reports focus (true) or blur (false) on the link.
func (l *Link) Focus(v bool) { l.gate.Focus(v) }

// Hover reports pointer enter (true) or leave (false) on the link.
func (l *Link) Hover(v bool) { l.gate.Hover(v) }

// Close stops the link and removes any mounted preview. It waits for the
// link goroutine to finish.
func (l *Link) Close() {
	l.cancel()
	<-l.done
	l.ctrl.forget(l)
}

func (l *Link) start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	go l.loop(ctx)
}

func (l *Link) loop(ctx context.Context) {
	defer close(l.done)

	edges := l.gate.Run(ctx)
	results := make(chan runResult)

	var (
		gen       uint64
		runCancel context.CancelFunc
		current   *mount
	)
	teardown := func() {
		if runCancel != nil {
			runCancel()
			runCancel = nil
		}
		if current != nil {
			current.dispose()
			current = nil
		}
	}
	defer teardown()

	for {
		select {
		case <-ctx.Done():
			return

		case active, ok := <-edges:
			if !ok {
				return
			}
			teardown()
			if !active {
				continue
			}
			gen++
			var runCtx context.Context
			runCtx, runCancel = context.WithCancel(ctx)
			go l.run(runCtx, gen, results)

		case r := <-results:
			if r.gen != gen || runCancel == nil {
				l.report(ctx, r, context.Canceled)
				continue
			}
			runCancel()
			runCancel = nil
			if r.err != nil {
				l.report(ctx, r, r.err)
				continue
			}
			m, err := l.mount(ctx, r.res)
			if err != nil {
				l.ctrl.logger.Warn("preview: mount failed", "url", r.res.URL.String(), "error", err)
				l.ctrl.report(ctx, Report{
					URL: r.res.URL.String(), Anchor: r.res.Anchor,
					Outcome: OutcomeMountFailed, Err: err, Duration: time.Since(r.started),
				})
				continue
			}
			current = m
			l.report(ctx, r, nil)
		}
	}
}

// run executes the pipeline and hands the result to the link goroutine,
// which alone decides whether it is still wanted.
func (l *Link) run(ctx context.Context, gen uint64, results chan<- runResult) {
	r := runResult{gen: gen, started: time.Now()}
	r.res, r.err = l.ctrl.pipeline.Run(ctx, l.target)
	select {
	case results <- r:
	case <-l.done:
		l.report(ctx, r, context.Canceled)
	}
}

func (l *Link) report(ctx context.Context, r runResult, err error) {
	rep := Report{
		URL:      l.target.String(),
		Anchor:   l.target.Fragment,
		Outcome:  Classify(err),
		Err:      err,
		Duration: time.Since(r.started),
	}
	if r.res != nil {
		rep.URL = r.res.URL.String()
	}
	l.ctrl.report(ctx, rep)
}

func (l *Link) mount(ctx context.Context, res *Result) (*mount, error) {
	c := l.ctrl
	overlay := render.Overlay(c.ids(), res.Content.Nodes)
	if err := c.doc.Append(overlay); err != nil {
		return nil, err
	}
	m := &mount{doc: c.doc, overlay: overlay, logger: c.logger}

	if c.tooltip != nil {
		h, err := c.tooltip.Mount(ctx, MountRequest{
			Doc:     c.doc,
			Link:    l.el,
			Overlay: overlay,
			Active:  l.gate.State(),
			Enabled: c.enabled,
		})
		if err != nil {
			c.doc.Remove(overlay)
			return nil, err
		}
		m.handle = h
	}
	c.logger.Debug("preview: mounted", "url", res.URL.String(), "anchor", res.Anchor)
	return m, nil
}

// mount pairs an inserted overlay with its removal.
type mount struct {
	once    sync.Once
	doc     interface{ Remove(*html.Node) bool }
	overlay *html.Node
	handle  Handle
	logger  *slog.Logger
}

func (m *mount) dispose() {
	m.once.Do(func() {
		if m.handle != nil {
			if err := m.handle.Close(); err != nil {
				m.logger.Debug("preview: close tooltip", "error", err)
			}
		}
		m.doc.Remove(m.overlay)
	})
}
