package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/instantpreview/dom"
)

func TestOverlay(t *testing.T) {
	h3 := dom.NewElement(atom.H3)
	h3.AppendChild(&html.Node{Type: html.TextNode, Data: "Install"})
	p := dom.NewElement(atom.P)
	p.AppendChild(&html.Node{Type: html.TextNode, Data: "Steps"})

	o := Overlay("preview_1", []*html.Node{h3, p})
	assert.Equal(t,
		`<div class="md-tooltip2" id="preview_1"><div class="md-tooltip2__inner md-typeset"><h3>Install</h3><p>Steps</p></div></div>`,
		dom.Render(o))
}

func TestSanitize(t *testing.T) {
	r := New()
	out := r.Sanitize(`<h3 class="x">T</h3><p onclick="evil()">a<script>alert(1)</script></p>`)
	assert.Contains(t, out, `<h3 class="x">T</h3>`)
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "script")
}

func TestMarkdown(t *testing.T) {
	r := New()
	md, err := r.Markdown(`<h3>Install</h3><p>See <a href="/setup/">setup</a>.</p>`, "https://example.com")
	require.NoError(t, err)
	assert.Contains(t, md, "### Install")
	assert.Contains(t, md, "[setup](https://example.com/setup/)")
}
