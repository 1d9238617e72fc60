package main

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/instantpreview/config"
	"github.com/hazyhaar/instantpreview/resolve"
)

const siteSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<url><loc>https://docs.example.org/</loc></url>
<url><loc>https://docs.example.org/guide/</loc></url>
</urlset>`

const siteGuide = `<html><body><article>
<h1>Guide</h1>
<h2 id="install">Install</h2><input name="__opt" id="opt"><label for="opt">Opt</label>
</article></body></html>`

func TestSetup_PipelinesShareCounter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(siteSitemap))
	})
	mux.HandleFunc("/guide/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(siteGuide))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Site.URL = srv.URL + "/"
	counter := resolve.NewSequence(0)

	target, err := url.Parse(srv.URL + "/guide/#install")
	require.NoError(t, err)

	for range 2 {
		a, err := setup(t.Context(), slog.Default(), cfg, counter, false)
		require.NoError(t, err)
		_, err = a.pipeline.Run(t.Context(), target)
		require.NoError(t, err)
		a.Close()
	}
	assert.Equal(t, uint64(2), counter.Peek())
}
