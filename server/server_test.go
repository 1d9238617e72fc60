package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/instantpreview/fetch"
	"github.com/hazyhaar/instantpreview/idgen"
	"github.com/hazyhaar/instantpreview/prefs"
	"github.com/hazyhaar/instantpreview/preview"
	"github.com/hazyhaar/instantpreview/resolve"
	"github.com/hazyhaar/instantpreview/sitemap"
	"github.com/hazyhaar/instantpreview/store"
)

const guidePage = `<html><body><article>
<h1>Guide</h1><p>Intro</p>
<h2 id="install">Install</h2><p>Steps <a href="../setup/">setup</a><script>alert(1)</script></p>
<h2 id="usage">Usage</h2><h2 id="next">Next</h2>
</article></body></html>`

type fixture struct {
	site  *httptest.Server
	api   *httptest.Server
	store *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/guide/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(guidePage))
	})
	site := httptest.NewServer(mux)
	t.Cleanup(site.Close)

	st := store.OpenMemory(t).WithIDGenerator(idgen.Counter())

	ps, err := prefs.Open(t.Context(), st, nil)
	require.NoError(t, err)

	sm := sitemap.New(site.URL+"/guide/", site.URL+"/gone/")
	p := preview.NewPipeline(sm, fetch.NewHTTP(fetch.WithClient(site.Client())), resolve.New(resolve.NewSequence(0)))

	api := httptest.NewServer(New(Deps{
		Pipeline: p,
		Prefs:    ps,
		Store:    st,
		Reporter: preview.StoreReporter(st, nil),
		IDs:      idgen.Prefixed("req_", idgen.Counter()),
	}))
	t.Cleanup(api.Close)
	return &fixture{site: site, api: api, store: st}
}

func getJSON(t *testing.T, u string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	var body map[string]string
	resp := getJSON(t, f.api.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "req_1", resp.Header.Get("X-Request-ID"))
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	target := f.site.URL + "/guide/#install"

	var got preview.Rendered
	resp := getJSON(t, f.api.URL+"/api/preview?url="+url.QueryEscape(target), &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, f.site.URL+"/guide/", got.URL)
	assert.Equal(t, "Install", got.Title)
	assert.Contains(t, got.HTML, f.site.URL+"/setup/")
	assert.NotContains(t, got.HTML, "script")
	assert.True(t, strings.HasPrefix(got.Markdown, "### Install"))
}

func TestPreview_Errors(t *testing.T) {
	f := newFixture(t)
	cases := map[string]int{
		"":                           http.StatusBadRequest,
		"/guide/":                    http.StatusBadRequest,
		f.site.URL + "/other/":       http.StatusNotFound,
		f.site.URL + "/guide/#no":    http.StatusNotFound,
		f.site.URL + "/guide/#usage": http.StatusUnprocessableEntity,
		f.site.URL + "/gone/":        http.StatusBadGateway,
	}
	for target, want := range cases {
		var body map[string]string
		resp := getJSON(t, f.api.URL+"/api/preview?url="+url.QueryEscape(target), &body)
		assert.Equal(t, want, resp.StatusCode, target)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestPreference(t *testing.T) {
	f := newFixture(t)

	var pref preferenceBody
	getJSON(t, f.api.URL+"/api/preference", &pref)
	assert.Equal(t, preferenceBody{Enabled: true, Value: "on"}, pref)

	req, _ := http.NewRequest(http.MethodPut, f.api.URL+"/api/preference", strings.NewReader(`{"value":"off"}`))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pref))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, preferenceBody{Enabled: false, Value: "off"}, pref)

	v, ok, err := f.store.Load(t.Context(), prefs.Key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", v)

	req, _ = http.NewRequest(http.MethodPut, f.api.URL+"/api/preference", strings.NewReader(`{"value":"sideways"}`))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOutcomes(t *testing.T) {
	f := newFixture(t)
	getJSON(t, f.api.URL+"/api/preview?url="+url.QueryEscape(f.site.URL+"/guide/#install"), nil)
	getJSON(t, f.api.URL+"/api/preview?url="+url.QueryEscape(f.site.URL+"/other/"), nil)

	var body struct {
		Entries []store.Entry  `json:"entries"`
		Counts  map[string]int `json:"counts"`
	}
	getJSON(t, f.api.URL+"/api/outcomes?limit=10", &body)
	require.Len(t, body.Entries, 2)
	assert.Equal(t, map[string]int{"mounted": 1, "not_in_sitemap": 1}, body.Counts)

	getJSON(t, f.api.URL+"/api/outcomes?outcome=not_in_sitemap", &body)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, f.site.URL+"/other/", body.Entries[0].URL)
}
