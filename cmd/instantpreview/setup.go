package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/instantpreview/browser"
	"github.com/hazyhaar/instantpreview/config"
	"github.com/hazyhaar/instantpreview/extract"
	"github.com/hazyhaar/instantpreview/fetch"
	"github.com/hazyhaar/instantpreview/preview"
	"github.com/hazyhaar/instantpreview/resolve"
	"github.com/hazyhaar/instantpreview/sitemap"
	"github.com/hazyhaar/instantpreview/store"
)

// app holds what every mode shares.
type app struct {
	pipeline *preview.Pipeline
	store    *store.Store
	mgr      *browser.Manager
}

// setup builds what a mode needs. counter is the process-wide identifier
// sequence; every pipeline must share it.
func setup(ctx context.Context, logger *slog.Logger, cfg *config.Config, counter resolve.Counter, withStore bool) (*app, error) {
	a := &app{}

	sm, err := sitemap.NewLoader(sitemap.WithLogger(logger)).Load(ctx, cfg.SiteURL())
	if err != nil {
		return nil, fmt.Errorf("load sitemap: %w", err)
	}
	logger.Info("instantpreview: sitemap loaded", "pages", sm.Len())

	fetchOpts := []fetch.Option{fetch.WithTimeout(cfg.Fetch.Timeout), fetch.WithLogger(logger)}
	if cfg.Fetch.UserAgent != "" {
		fetchOpts = append(fetchOpts, fetch.WithUserAgent(cfg.Fetch.UserAgent))
	}
	httpFetcher := fetch.NewHTTP(fetchOpts...)

	var f preview.Fetcher = httpFetcher
	if cfg.Fetch.Mode != config.FetchHTTP {
		// Chrome starts with the first rendered page.
		a.mgr = browser.NewManager(browserConfig(cfg, *cfg.Browser.Headless, logger))
		rendered := fetch.NewBrowser(a.mgr, logger)
		if cfg.Fetch.Mode == config.FetchBrowser {
			f = rendered
		} else {
			f = fetch.NewAuto(httpFetcher, rendered, logger)
		}
	}

	a.pipeline = preview.NewPipeline(sm, f, resolve.New(counter),
		preview.WithExtractor(extract.New(extract.Options{
			BoundaryClass: cfg.Extract.BoundaryClass,
			KeepClasses:   cfg.Extract.KeepClasses,
		})),
		preview.WithPipelineLogger(logger),
	)

	if withStore {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = st
	}
	return a, nil
}

func browserConfig(cfg *config.Config, headless bool, logger *slog.Logger) browser.Config {
	return browser.Config{
		RemoteURL:         cfg.Browser.Remote,
		Headless:          headless,
		RecycleInterval:   cfg.Browser.RecycleInterval,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		ResourceBlocking:  cfg.Browser.ResourceBlocking,
		Logger:            logger,
	}
}

func (a *app) Close() {
	if a.mgr != nil {
		a.mgr.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
