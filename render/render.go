// Package render turns extracted fragments into output: the overlay element
// mounted next to a link, sanitised HTML for the API surfaces, and Markdown.
package render

import (
	"fmt"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/instantpreview/dom"
)

const (
	// OverlayClass marks the outer overlay element.
	OverlayClass = "md-tooltip2"
	// InnerClass marks the content wrapper.
	InnerClass = "md-tooltip2__inner md-typeset"
)

// Overlay wraps nodes in the tooltip container:
//
//	<div class="md-tooltip2" id="..."><div class="md-tooltip2__inner md-typeset">...</div></div>
//
// The nodes are adopted, not copied.
func Overlay(id string, nodes []*html.Node) *html.Node {
	outer := dom.NewElement(atom.Div, html.Attribute{Key: "class", Val: OverlayClass})
	if id != "" {
		dom.SetAttr(outer, "id", id)
	}
	inner := dom.NewElement(atom.Div, html.Attribute{Key: "class", Val: InnerClass})
	for _, n := range nodes {
		dom.Detach(n)
		inner.AppendChild(n)
	}
	outer.AppendChild(inner)
	return outer
}

// Renderer sanitises and converts fragment HTML.
type Renderer struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

// New creates a Renderer. The sanitiser keeps user-generated-content markup
// plus class and id attributes so the site's typeset styles still apply.
func New() *Renderer {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("id").Globally()
	p.AllowAttrs("hidden").OnElements("div")

	return &Renderer{
		policy: p,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Sanitize strips scripts, handlers and anything outside the policy.
func (r *Renderer) Sanitize(s string) string {
	return r.policy.Sanitize(s)
}

// Markdown converts s to Markdown. Relative links are resolved against
// domain when it is non-empty.
func (r *Renderer) Markdown(s, domain string) (string, error) {
	md, err := r.md.ConvertString(s, converter.WithDomain(domain))
	if err != nil {
		return "", fmt.Errorf("render: markdown: %w", err)
	}
	return md, nil
}
