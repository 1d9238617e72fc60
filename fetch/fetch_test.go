package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/hazyhaar/instantpreview/dom"
)

var staticPage = `<!DOCTYPE html>
<html>
<head><title>Guide</title></head>
<body>
<main>
<article>
<h1>Guide</h1>
<p>Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur.</p>
</article>
</main>
</body>
</html>`

var spaShell = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>App</title></head>
<body>
<div id="root"></div>
<script src="/static/js/main.chunk.js"></script>
<script>window.__INITIAL_STATE__ = {"some": "state", "that": "is long enough to pass the size floor of the detector"};</script>
</body>
</html>`

func TestIsSufficient(t *testing.T) {
	assert.True(t, IsSufficient([]byte(staticPage)))
	assert.False(t, IsSufficient([]byte(spaShell)))
	assert.False(t, IsSufficient([]byte(`<html><body>hi</body></html>`)))
	assert.False(t, IsSufficient([]byte(`<!DOCTYPE html><html><head></head><body></body></html>`)))
}

func TestTextMarkupRatio_SkipsScripts(t *testing.T) {
	text, markup := textMarkupRatio([]byte(`<div>Hello World</div><script>var x = "lots of code";</script>`))
	assert.Equal(t, len("HelloWorld"), text)
	assert.Greater(t, markup, 0)
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/guide/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(staticPage))
	})
	mux.HandleFunc("/app/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(spaShell))
	})
	mux.HandleFunc("/old/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/guide/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/slow/", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTP_Fetch(t *testing.T) {
	srv := newServer(t)
	f := NewHTTP(WithClient(srv.Client()))

	doc, err := f.Fetch(t.Context(), srv.URL+"/guide/")
	require.NoError(t, err)
	assert.Equal(t, "Guide", dom.Text(dom.QuerySelector(doc, "article h1")))

	p, err := f.Get(t.Context(), srv.URL+"/app/")
	require.NoError(t, err)
	assert.False(t, p.Sufficient)
}

func TestHTTP_Status(t *testing.T) {
	srv := newServer(t)
	_, err := NewHTTP(WithClient(srv.Client())).Fetch(t.Context(), srv.URL+"/missing")
	assert.ErrorIs(t, err, ErrStatus)
}

func TestHTTP_Timeout(t *testing.T) {
	srv := newServer(t)
	f := NewHTTP(WithClient(srv.Client()), WithTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := f.Fetch(t.Context(), srv.URL+"/slow/")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTTP_FinalURLAfterRedirect(t *testing.T) {
	srv := newServer(t)
	doc, final, err := NewHTTP(WithClient(srv.Client())).FetchFinal(t.Context(), srv.URL+"/old/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/guide/", final.String())
	assert.Equal(t, "Guide", dom.Text(dom.QuerySelector(doc, "h1")))
}

func TestHTTP_Cancelled(t *testing.T) {
	srv := newServer(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := NewHTTP(WithClient(srv.Client())).Fetch(ctx, srv.URL+"/guide/")
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeRenderer struct{ calls []string }

func (r *fakeRenderer) FetchFinal(_ context.Context, u string) (*html.Node, *url.URL, error) {
	r.calls = append(r.calls, u)
	final, _ := url.Parse(u)
	doc, err := dom.Parse(strings.NewReader(`<html><body><article><h1>Rendered</h1></article></body></html>`))
	return doc, final, err
}

func TestAuto_Escalates(t *testing.T) {
	srv := newServer(t)
	r := &fakeRenderer{}
	a := NewAuto(NewHTTP(WithClient(srv.Client())), r, nil)

	doc, err := a.Fetch(t.Context(), srv.URL+"/guide/")
	require.NoError(t, err)
	assert.Empty(t, r.calls)
	assert.Equal(t, "Guide", dom.Text(dom.QuerySelector(doc, "h1")))

	doc, err = a.Fetch(t.Context(), srv.URL+"/app/")
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/app/"}, r.calls)
	assert.Equal(t, "Rendered", dom.Text(dom.QuerySelector(doc, "h1")))
}

func TestAuto_WithoutRenderer(t *testing.T) {
	srv := newServer(t)
	a := NewAuto(NewHTTP(WithClient(srv.Client())), nil, nil)
	doc, err := a.Fetch(t.Context(), srv.URL+"/app/")
	require.NoError(t, err)
	assert.NotNil(t, dom.QuerySelector(doc, "#root"))
}
