// Package tooltip is the default tooltip for in-memory host pages. It ties
// the overlay's visibility to the link activation and the preview
// preference: the overlay carries the hidden attribute whenever either is
// off.
package tooltip

import (
	"context"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/instantpreview/dom"
	"github.com/hazyhaar/instantpreview/preview"
)

// ForAttr names the link an overlay belongs to.
const ForAttr = "data-preview-for"

// Mounter implements preview.Tooltip.
type Mounter struct {
	logger *slog.Logger
}

// New creates a Mounter.
func New(logger *slog.Logger) *Mounter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mounter{logger: logger}
}

// Mount starts mirroring visibility onto req.Overlay until the handle is
// closed.
func (m *Mounter) Mount(ctx context.Context, req preview.MountRequest) (preview.Handle, error) {
	var href string
	req.Doc.Read(func(*html.Node) { href = dom.GetAttr(req.Link, "href") })

	ctx, cancel := context.WithCancel(ctx)
	h := &handle{cancel: cancel, done: make(chan struct{})}

	active := req.Active.Subscribe(ctx)
	enabled := req.Enabled.Subscribe(ctx)
	a, e := <-active, <-enabled

	if err := req.Doc.Update(func(*html.Node) error {
		dom.SetAttr(req.Overlay, ForAttr, href)
		setHidden(req.Overlay, !(a && e))
		return nil
	}); err != nil {
		cancel()
		return nil, err
	}

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
			visible := a && e
			req.Doc.Update(func(*html.Node) error {
				setHidden(req.Overlay, !visible)
				return nil
			})
			m.logger.Debug("tooltip: visibility", "for", href, "visible", visible)
		}
	}()
	return h, nil
}

func setHidden(n *html.Node, hidden bool) {
	if hidden {
		dom.SetAttr(n, "hidden", "")
	} else {
		dom.RemoveAttr(n, "hidden")
	}
}

type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *handle) Close() error {
	h.cancel()
	<-h.done
	return nil
}
