// Package browser drives Chrome through Rod. It renders script-built pages
// for previewing and hosts the live page of watch mode.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// ErrClosed is returned once the Manager has been closed.
var ErrClosed = errors.New("browser: manager closed")

// Config configures a Manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of a running Chrome. Empty
	// launches a local one.
	RemoteURL string

	// Headless launches Chrome without a window. Watch mode needs a
	// window the reader can point at.
	Headless bool

	// RecycleInterval is how long a Chrome process serves tabs before it
	// is replaced. Default: 4h.
	RecycleInterval time.Duration

	// ResourceBlocking lists resource types tabs never load: images,
	// fonts, media, stylesheets or any CDP resource type.
	ResourceBlocking []string

	// NavigationTimeout bounds page loads. Default: 30s.
	NavigationTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns one Chrome process. Chrome is replaced once it is older than
// RecycleInterval and no tab is open on it.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	born    time.Time
	tabs    int
	closed  bool
}

// NewManager creates a Manager. Chrome starts on Start or on the first tab.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start makes sure Chrome is running.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensure()
}

// Browser returns the running Chrome, nil before Start or after Close.
func (m *Manager) Browser() *rod.Browser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser
}

// Close shuts Chrome down. Open tabs die with it.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.shutdown()
	return nil
}

// acquire returns the browser a new tab should open on and counts the tab
// until release.
func (m *Manager) acquire() (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil && m.tabs == 0 && time.Since(m.born) > m.cfg.RecycleInterval {
		m.cfg.Logger.Info("browser: recycling", "uptime", time.Since(m.born))
		m.shutdown()
	}
	b, err := m.ensure()
	if err != nil {
		return nil, err
	}
	m.tabs++
	return b, nil
}

func (m *Manager) release() {
	m.mu.Lock()
	if m.tabs > 0 {
		m.tabs--
	}
	m.mu.Unlock()
}

// ensure requires m.mu.
func (m *Manager) ensure() (*rod.Browser, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if m.browser != nil {
		return m.browser, nil
	}

	controlURL := m.cfg.RemoteURL
	if controlURL == "" {
		l := launcher.New().
			Headless(m.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		controlURL = u
		m.lnch = l
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		m.shutdown()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	m.cfg.Logger.Info("browser: ready", "remote", m.cfg.RemoteURL != "", "headless", m.cfg.Headless)

	m.browser = b
	m.born = time.Now()
	return b, nil
}

// shutdown requires m.mu.
func (m *Manager) shutdown() {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.tabs = 0
}
