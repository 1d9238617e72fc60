package preview

import (
	"strings"

	"github.com/hazyhaar/instantpreview/dom"
	"github.com/hazyhaar/instantpreview/render"
)

// Rendered is a preview in the shapes the API surfaces return.
type Rendered struct {
	URL      string `json:"url"`
	Anchor   string `json:"anchor,omitempty"`
	Title    string `json:"title"`
	HTML     string `json:"html"`
	Markdown string `json:"markdown"`
}

// Present renders res as sanitised HTML and Markdown.
func Present(res *Result, r *render.Renderer) (*Rendered, error) {
	raw := res.Content.HTML()
	md, err := r.Markdown(raw, res.URL.Scheme+"://"+res.URL.Host)
	if err != nil {
		return nil, err
	}
	return &Rendered{
		URL:      res.URL.String(),
		Anchor:   res.Anchor,
		Title:    strings.TrimSpace(dom.Text(res.Content.Heading())),
		HTML:     r.Sanitize(raw),
		Markdown: md,
	}, nil
}
