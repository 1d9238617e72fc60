package extract

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/instantpreview/dom"
)

// Target finds the element a link points at. With an anchor, it is the
// element inside the article whose id equals anchor. Without one, it is the
// first h1 of the main content region. Returns nil when nothing matches.
func Target(doc *html.Node, anchor string) *html.Node {
	if anchor != "" {
		return byID(doc, anchor)
	}
	for _, landmark := range findContentByLandmarks(doc) {
		if h1 := dom.FindFirst(landmark, atom.H1); h1 != nil {
			return h1
		}
	}
	return nil
}

// byID is `article [id="anchor"]` without going through the selector
// parser, so anchors holding quotes or brackets still match.
func byID(doc *html.Node, anchor string) *html.Node {
	for _, article := range findAllByTag(doc, atom.Article) {
		for c := article.FirstChild; c != nil; c = c.NextSibling {
			var found *html.Node
			dom.Walk(c, func(n *html.Node) bool {
				if found != nil {
					return false
				}
				if dom.GetAttr(n, "id") == anchor {
					found = n
					return false
				}
				return true
			})
			if found != nil {
				return found
			}
		}
	}
	return nil
}

// findContentByLandmarks returns the semantic content containers, articles
// before mains.
func findContentByLandmarks(doc *html.Node) []*html.Node {
	var out []*html.Node
	for _, tag := range []atom.Atom{atom.Article, atom.Main} {
		out = append(out, findAllByTag(doc, tag)...)
	}
	return out
}

func findAllByTag(root *html.Node, tag atom.Atom) []*html.Node {
	var results []*html.Node
	dom.Walk(root, func(n *html.Node) bool {
		if n.DataAtom == tag {
			results = append(results, n)
		}
		return true
	})
	return results
}
