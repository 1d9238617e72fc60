// Command instantpreview previews documentation links.
//
// Usage:
//
//	instantpreview -url https://docs.example.org/guide/#install   # print one preview as Markdown
//	instantpreview -serve                                         # HTTP API + MCP over HTTP
//	instantpreview -mcp                                           # MCP over stdio
//	instantpreview -watch https://docs.example.org/               # attach previews to a live page
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/instantpreview/config"
	"github.com/hazyhaar/instantpreview/prefs"
	"github.com/hazyhaar/instantpreview/preview"
	"github.com/hazyhaar/instantpreview/render"
	"github.com/hazyhaar/instantpreview/resolve"
	"github.com/hazyhaar/instantpreview/server"
)

func main() {
	configPath := flag.String("config", "", "path to instantpreview.yaml")
	linkURL := flag.String("url", "", "preview a single link and exit")
	format := flag.String("format", "markdown", "output of -url: markdown, html or json")
	serve := flag.Bool("serve", false, "run the HTTP API")
	mcpStdio := flag.Bool("mcp", false, "serve MCP tools over stdio")
	watchURL := flag.String("watch", "", "open a page in Chrome and attach previews to its links")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			logger.Error("instantpreview: load config", "error", err)
			os.Exit(1)
		}
	}

	counter := resolve.NewSequence(0)

	var err error
	switch {
	case *linkURL != "":
		err = runOnce(ctx, logger, cfg, counter, *linkURL, *format)
	case *serve:
		err = runServe(ctx, logger, cfg, counter)
	case *mcpStdio:
		err = runMCP(ctx, logger, cfg, counter)
	case *watchURL != "":
		err = runWatch(ctx, logger, cfg, counter, *watchURL)
	default:
		fmt.Fprintln(os.Stderr, "usage: instantpreview [-config file] -url <link> | -serve | -mcp | -watch <page>")
		os.Exit(2)
	}
	if err != nil {
		logger.Error("instantpreview: fatal", "error", err)
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, logger *slog.Logger, cfg *config.Config, counter resolve.Counter, raw, format string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("-url must be absolute: %q", raw)
	}

	a, err := setup(ctx, logger, cfg, counter, false)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.pipeline.Run(ctx, u)
	if err != nil {
		return err
	}
	out, err := preview.Present(res, render.New())
	if err != nil {
		return err
	}

	switch format {
	case "html":
		fmt.Println(out.HTML)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		fmt.Println(out.Markdown)
	}
	return nil
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *config.Config, counter resolve.Counter) error {
	a, err := setup(ctx, logger, cfg, counter, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ps, err := prefs.Open(ctx, a.store, nil, prefs.WithLogger(logger))
	if err != nil {
		return err
	}
	r := render.New()

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "instantpreview", Version: "1.0.0"}, nil)
	preview.RegisterMCP(mcpSrv, a.pipeline, r, ps)

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.New(server.Deps{
			Pipeline: a.pipeline,
			Renderer: r,
			Prefs:    ps,
			Store:    a.store,
			Reporter: preview.StoreReporter(a.store, logger),
			MCP:      mcpSrv,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("instantpreview: listening", "addr", cfg.Server.Addr, "site", cfg.Site.URL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP(ctx context.Context, logger *slog.Logger, cfg *config.Config, counter resolve.Counter) error {
	a, err := setup(ctx, logger, cfg, counter, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ps, err := prefs.Open(ctx, a.store, nil, prefs.WithLogger(logger))
	if err != nil {
		return err
	}
	srv := mcp.NewServer(&mcp.Implementation{Name: "instantpreview", Version: "1.0.0"}, nil)
	preview.RegisterMCP(srv, a.pipeline, render.New(), ps)
	return srv.Run(ctx, &mcp.StdioTransport{})
}
