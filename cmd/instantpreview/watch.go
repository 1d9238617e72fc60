package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/instantpreview/browser"
	"github.com/hazyhaar/instantpreview/config"
	"github.com/hazyhaar/instantpreview/dom"
	"github.com/hazyhaar/instantpreview/host"
	"github.com/hazyhaar/instantpreview/prefs"
	"github.com/hazyhaar/instantpreview/preview"
	"github.com/hazyhaar/instantpreview/resolve"
	"github.com/hazyhaar/instantpreview/tooltip"
)

// runWatch opens page in a visible Chrome window and previews its links as
// the user hovers and focuses them.
func runWatch(ctx context.Context, logger *slog.Logger, cfg *config.Config, counter resolve.Counter, page string) error {
	pageURL, err := url.Parse(page)
	if err != nil || !pageURL.IsAbs() {
		return fmt.Errorf("-watch must be absolute: %q", page)
	}

	a, err := setup(ctx, logger, cfg, counter, true)
	if err != nil {
		return err
	}
	defer a.Close()

	mgr := browser.NewManager(browserConfig(cfg, false, logger))
	if _, err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	tab, err := browser.OpenTab(ctx, mgr, page, false)
	if err != nil {
		return err
	}
	defer tab.Close()

	sess, err := browser.NewSession(ctx, tab, logger)
	if err != nil {
		return err
	}
	raw, err := sess.HTML(ctx)
	if err != nil {
		return err
	}
	doc, err := host.Parse(bytes.NewReader(raw), pageURL, host.WithFeatures(cfg.Site.Features...))
	if err != nil {
		return err
	}

	ps, err := prefs.Open(ctx, a.store, doc, prefs.WithLogger(logger))
	if err != nil {
		return err
	}

	ctrl := preview.NewController(doc, a.pipeline, ps.Enabled(),
		preview.WithTooltip(&liveTooltip{inner: tooltip.New(logger), sess: sess, logger: logger}),
		preview.WithReporter(preview.StoreReporter(a.store, logger)),
		preview.WithSettle(*cfg.Gate.Settle),
		preview.WithLogger(logger),
	)
	defer ctrl.Close()

	links, err := ctrl.AttachAll(ctx)
	if err != nil {
		return err
	}
	d := &dispatcher{links: make(map[string]*preview.Link, len(links)), prefs: ps, logger: logger}
	doc.Read(func(*html.Node) {
		for _, l := range links {
			d.links[dom.GetAttr(l.Element(), browser.LinkAttr)] = l
		}
	})
	reflectCtx, stopReflect := context.WithCancel(ctx)
	reflected := ps.Reflect(reflectCtx, sess)
	defer func() {
		stopReflect()
		<-reflected
	}()
	logger.Info("instantpreview: watching", "page", page, "links", len(links), "enabled", ps.Get())

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sess.Events():
			if !ok {
				return nil
			}
			d.handle(ctx, ev)
		}
	}
}

// dispatcher routes live page events to link gates and the preference.
type dispatcher struct {
	links  map[string]*preview.Link
	prefs  *prefs.Store
	logger *slog.Logger
}

func (d *dispatcher) handle(ctx context.Context, ev browser.Event) {
	if ev.Kind == browser.EventToggle {
		if err := d.prefs.Toggle(ctx, ev.Input); err != nil {
			d.logger.Warn("instantpreview: toggle preference", "input", ev.Input, "error", err)
		}
		return
	}
	l, found := d.links[ev.Link]
	if !found {
		return
	}
	switch ev.Kind {
	case browser.EventFocus:
		l.Focus(ev.Value)
	case browser.EventHover:
		l.Hover(ev.Value)
	}
}

// liveTooltip mirrors overlays into the live page on top of the in-memory
// tooltip.
type liveTooltip struct {
	inner  *tooltip.Mounter
	sess   *browser.Session
	logger *slog.Logger
}

func (t *liveTooltip) Mount(ctx context.Context, req preview.MountRequest) (preview.Handle, error) {
	inner, err := t.inner.Mount(ctx, req)
	if err != nil {
		return nil, err
	}

	var link, id string
	var markup strings.Builder
	req.Doc.Read(func(*html.Node) {
		link = dom.GetAttr(req.Link, browser.LinkAttr)
		id = dom.GetAttr(req.Overlay, "id")
		html.Render(&markup, req.Overlay)
	})

	ctx, cancel := context.WithCancel(ctx)
	active := req.Active.Subscribe(ctx)
	enabled := req.Enabled.Subscribe(ctx)
	a, e := <-active, <-enabled

	if err := t.sess.Mount(ctx, link, id, markup.String(), !(a && e)); err != nil {
		cancel()
		inner.Close()
		return nil, err
	}

	h := &liveHandle{inner: inner, cancel: cancel, done: make(chan struct{}), sess: t.sess, id: id}
	go func() {
		defer close(h.done)
		for {
			select {
			case v, ok := <-active:
				if !ok {
					return
				}
				a = v
			case v, ok := <-enabled:
				if !ok {
					return
				}
				e = v
			}
			if err := t.sess.SetHidden(ctx, id, !(a && e)); err != nil {
				t.logger.Debug("instantpreview: set hidden", "id", id, "error", err)
			}
		}
	}()
	return h, nil
}

type liveHandle struct {
	inner  preview.Handle
	cancel context.CancelFunc
	done   chan struct{}
	sess   *browser.Session
	id     string
	once   sync.Once
}

func (h *liveHandle) Close() error {
	var err error
	h.once.Do(func() {
		h.cancel()
		<-h.done
		h.inner.Close()
		err = h.sess.Unmount(context.Background(), h.id)
	})
	return err
}
