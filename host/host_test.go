package host

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/instantpreview/dom"
)

const page = `<html><body>
<a href="/a">A</a>
<form>
<input type="radio" name="__preview" value="on" checked>
<input type="radio" name="__preview" value="off">
</form>
<p><a href="/b">B</a></p>
</body></html>`

func newDoc(t *testing.T, opts ...Option) *Document {
	t.Helper()
	u, err := url.Parse("https://example.com/docs/")
	require.NoError(t, err)
	d, err := Parse(strings.NewReader(page), u, opts...)
	require.NoError(t, err)
	return d
}

func TestDocument_Environment(t *testing.T) {
	d := newDoc(t, WithFeatures("navigation.instant.preview"))
	assert.True(t, d.CanHover())
	assert.True(t, d.HasFeature("navigation.instant.preview"))
	assert.False(t, d.HasFeature("navigation.tabs"))

	u := d.URL()
	u.Host = "other"
	assert.Equal(t, "example.com", d.URL().Host)

	assert.False(t, newDoc(t, WithHover(false)).CanHover())
}

func TestDocument_AppendRemove(t *testing.T) {
	d := newDoc(t)
	div := dom.NewElement(atom.Div)
	require.NoError(t, d.Append(div))
	assert.Contains(t, d.Render(), "<div></div></body>")

	assert.True(t, d.Remove(div))
	assert.False(t, d.Remove(div))
	assert.NotContains(t, d.Render(), "<div></div>")
}

func TestDocument_BodyAttr(t *testing.T) {
	d := newDoc(t)
	require.NoError(t, d.SetBodyAttr("data-md-preview", "off"))
	assert.Equal(t, "off", d.BodyAttr("data-md-preview"))
	assert.Equal(t, "", d.BodyAttr("missing"))
}

func TestDocument_Check(t *testing.T) {
	d := newDoc(t)
	v, ok := d.Checked("__preview")
	require.True(t, ok)
	assert.Equal(t, "on", v)

	assert.Equal(t, 1, d.Check("__preview", "off"))
	v, _ = d.Checked("__preview")
	assert.Equal(t, "off", v)

	assert.Equal(t, 0, d.Check("missing", "on"))
}

func TestDocument_Links(t *testing.T) {
	d := newDoc(t)
	links := d.Links()
	require.Len(t, links, 2)
	assert.Equal(t, "/a", dom.GetAttr(links[0], "href"))
	assert.Equal(t, "/b", dom.GetAttr(links[1], "href"))

	assert.Same(t, links[1], d.FindByAttr("href", "/b"))
	assert.Nil(t, d.FindByAttr("href", "/c"))
}
