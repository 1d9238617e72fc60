// Package host models the page previews are attached to: a parsed document
// plus the environment facts the preview controller checks (page URL,
// pointer capability, enabled feature flags).
//
// All access goes through the Document lock. Node pointers handed out by
// Links stay valid but must only be read or written inside Read/Update.
package host

import (
	"errors"
	"io"
	"net/url"
	"slices"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/instantpreview/dom"
)

// ErrNoBody is returned when the document has no body element.
var ErrNoBody = errors.New("host: document has no body")

// Option configures a Document.
type Option func(*Document)

// WithFeatures enables site feature flags.
func WithFeatures(names ...string) Option {
	return func(d *Document) { d.features = append(d.features, names...) }
}

// WithHover sets whether the environment has a pointer that can hover.
// Default: true.
func WithHover(ok bool) Option {
	return func(d *Document) { d.hover = ok }
}

// Document is a host page.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	page     *url.URL
	features []string
	hover    bool
}

// New wraps an already parsed document served at page.
func New(root *html.Node, page *url.URL, opts ...Option) *Document {
	d := &Document{root: root, page: page, hover: true}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Parse reads a document served at page.
func Parse(r io.Reader, page *url.URL, opts ...Option) (*Document, error) {
	root, err := dom.Parse(r)
	if err != nil {
		return nil, err
	}
	return New(root, page, opts...), nil
}

// URL returns a copy of the page URL.
func (d *Document) URL() *url.URL {
	u := *d.page
	return &u
}

// CanHover reports whether the environment supports hover.
func (d *Document) CanHover() bool { return d.hover }

// HasFeature reports whether the feature flag name is enabled.
func (d *Document) HasFeature(name string) bool {
	return slices.Contains(d.features, name)
}

// Read runs fn with the document locked.
func (d *Document) Read(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// Update runs fn with the document locked, for mutation.
func (d *Document) Update(fn func(root *html.Node) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.root)
}

// Append adds n as the last child of body.
func (d *Document) Append(n *html.Node) error {
	return d.Update(func(root *html.Node) error {
		body := dom.Body(root)
		if body == nil {
			return ErrNoBody
		}
		dom.Detach(n)
		body.AppendChild(n)
		return nil
	})
}

// Remove detaches n. It reports false when n was not attached.
func (d *Document) Remove(n *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n.Parent == nil {
		return false
	}
	dom.Detach(n)
	return true
}

// SetBodyAttr sets an attribute on body.
func (d *Document) SetBodyAttr(key, val string) error {
	return d.Update(func(root *html.Node) error {
		body := dom.Body(root)
		if body == nil {
			return ErrNoBody
		}
		dom.SetAttr(body, key, val)
		return nil
	})
}

// BodyAttr returns a body attribute, or "" when absent.
func (d *Document) BodyAttr(key string) string {
	var v string
	d.Read(func(root *html.Node) {
		v = dom.GetAttr(dom.Body(root), key)
	})
	return v
}

// Check marks the input named name with the given value as checked and
// clears the other inputs of the same group. It returns the number of
// inputs that matched value.
func (d *Document) Check(name, value string) int {
	matched := 0
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, in := range dom.QuerySelectorAll(d.root, `input[name="`+name+`"]`) {
		if dom.GetAttr(in, "value") == value {
			dom.SetAttr(in, "checked", "")
			matched++
		} else {
			dom.RemoveAttr(in, "checked")
		}
	}
	return matched
}

// Checked returns the value of the checked input named name.
func (d *Document) Checked(name string) (string, bool) {
	var (
		v  string
		ok bool
	)
	d.Read(func(root *html.Node) {
		for _, in := range dom.QuerySelectorAll(root, `input[name="`+name+`"]`) {
			if dom.HasAttr(in, "checked") {
				v, ok = dom.GetAttr(in, "value"), true
				return
			}
		}
	})
	return v, ok
}

// Links returns every anchor element in document order.
func (d *Document) Links() []*html.Node {
	var links []*html.Node
	d.Read(func(root *html.Node) {
		dom.Walk(root, func(n *html.Node) bool {
			if n.DataAtom == atom.A {
				links = append(links, n)
			}
			return true
		})
	})
	return links
}

// FindByAttr returns the first element whose attribute key equals val.
func (d *Document) FindByAttr(key, val string) *html.Node {
	var found *html.Node
	d.Read(func(root *html.Node) {
		dom.Walk(root, func(n *html.Node) bool {
			if found != nil {
				return false
			}
			if v, ok := dom.Attr(n, key); ok && v == val {
				found = n
				return false
			}
			return true
		})
	})
	return found
}

// Render serialises the whole document.
func (d *Document) Render() string {
	var s string
	d.Read(func(root *html.Node) { s = dom.Render(root) })
	return s
}
