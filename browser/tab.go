package browser

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab is one page open on a Manager's Chrome.
type Tab struct {
	Page    *rod.Page
	PageURL string

	release func()
	once    sync.Once
}

// OpenTab opens pageURL in a new tab and waits for it to load. Stealth tabs
// hide the automation fingerprint from the site; watch mode uses a plain
// tab.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string, useStealth bool) (*Tab, error) {
	b, err := mgr.acquire()
	if err != nil {
		return nil, err
	}
	tab := &Tab{PageURL: pageURL, release: mgr.release}

	if useStealth {
		tab.Page, err = stealth.Page(b)
	} else {
		tab.Page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		tab.Close()
		return nil, fmt.Errorf("browser: new tab: %w", err)
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		newBlockList(mgr.cfg.ResourceBlocking).hijack(tab.Page)
	}

	navCtx, cancel := context.WithTimeout(ctx, mgr.cfg.NavigationTimeout)
	defer cancel()
	page := tab.Page.Context(navCtx)

	if err := page.Navigate(pageURL); err != nil {
		tab.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		if ctx.Err() != nil {
			tab.Close()
			return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, ctx.Err())
		}
		// The DOM is usually usable even when some subresource hangs.
		mgr.cfg.Logger.Warn("browser: load timed out", "url", pageURL, "error", err)
	}
	return tab, nil
}

// HTML serialises the current DOM.
func (t *Tab) HTML(ctx context.Context) ([]byte, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: read DOM: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// URL returns the address the tab currently shows, after redirects.
func (t *Tab) URL(ctx context.Context) (*url.URL, error) {
	info, err := t.Page.Context(ctx).Info()
	if err != nil {
		return nil, fmt.Errorf("browser: page info: %w", err)
	}
	return url.Parse(info.URL)
}

// Close closes the tab and frees its slot on the Manager.
func (t *Tab) Close() error {
	var err error
	t.once.Do(func() {
		if t.Page != nil {
			err = t.Page.Close()
		}
		t.release()
	})
	return err
}
