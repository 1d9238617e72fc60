// Package extract selects the part of a resolved document that a link
// points at: the target heading (re-emitted as an h3) followed by the
// sibling content up to the next heading.
//
// Two layouts get special treatment:
//   - a bare anchor used as a heading marker (empty text) also pulls in the
//     content following its parent;
//   - an API documentation block (parent carries the boundary class) keeps
//     only its contents and signature siblings.
package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/instantpreview/dom"
)

// Options controls the class names the extractor reacts to.
type Options struct {
	// BoundaryClass flags content-boundary elements. Default: "doc".
	BoundaryClass string
	// KeepClasses are the sibling classes kept inside a documentation
	// block. Default: "doc-contents", "doc-signature".
	KeepClasses []string
}

func (o *Options) defaults() {
	if o.BoundaryClass == "" {
		o.BoundaryClass = "doc"
	}
	if len(o.KeepClasses) == 0 {
		o.KeepClasses = []string{"doc-contents", "doc-signature"}
	}
}

// Extractor slices fragments out of resolved documents.
type Extractor struct {
	opts Options
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	opts.defaults()
	return &Extractor{opts: opts}
}

// Fragment is the ordered list of nodes to preview. Nodes[0] is always the
// synthesized heading. Every node is a detached copy.
type Fragment struct {
	Nodes []*html.Node
}

// Empty reports whether the fragment holds nothing besides its heading.
func (f Fragment) Empty() bool {
	return len(f.Nodes) <= 1
}

// Heading returns the synthesized heading.
func (f Fragment) Heading() *html.Node {
	if len(f.Nodes) == 0 {
		return nil
	}
	return f.Nodes[0]
}

// HTML renders the fragment.
func (f Fragment) HTML() string {
	return dom.RenderAll(f.Nodes)
}

// Extract builds the fragment for target.
func (e *Extractor) Extract(target *html.Node) Fragment {
	heading := dom.NewElement(atom.H3)
	for c := target.FirstChild; c != nil; c = c.NextSibling {
		heading.AppendChild(dom.Clone(c))
	}
	nodes := []*html.Node{heading}

	parent := target.Parent
	if parent != nil && parent.Type == html.ElementNode && dom.HasClass(parent, e.opts.BoundaryClass) {
		return Fragment{Nodes: append(nodes, e.collectKept(parent)...)}
	}

	nodes = append(nodes, e.collect(target)...)
	if isBareAnchor(target) && parent != nil && parent.Type == html.ElementNode {
		nodes = append(nodes, e.collect(parent)...)
	}
	return Fragment{Nodes: nodes}
}

// collect copies the element siblings after el up to the next heading or
// boundary element.
func (e *Extractor) collect(el *html.Node) []*html.Node {
	var out []*html.Node
	for next := dom.NextElementSibling(el); next != nil; next = dom.NextElementSibling(next) {
		if dom.IsHeading(next) || dom.HasClass(next, e.opts.BoundaryClass) {
			break
		}
		out = append(out, dom.Clone(next))
	}
	return out
}

// collectKept copies the contents/signature siblings after el up to the
// next heading. Other siblings are skipped without ending the scan.
func (e *Extractor) collectKept(el *html.Node) []*html.Node {
	var out []*html.Node
	for next := dom.NextElementSibling(el); next != nil; next = dom.NextElementSibling(next) {
		if dom.IsHeading(next) {
			break
		}
		if e.kept(next) {
			out = append(out, dom.Clone(next))
		}
	}
	return out
}

func (e *Extractor) kept(n *html.Node) bool {
	for _, c := range e.opts.KeepClasses {
		if dom.HasClass(n, c) {
			return true
		}
	}
	return false
}

func isBareAnchor(n *html.Node) bool {
	return dom.IsElement(n, atom.A) && strings.TrimSpace(dom.Text(n)) == ""
}
