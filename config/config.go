// Package config loads the instantpreview configuration from YAML.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Fetch modes.
const (
	FetchHTTP    = "http"
	FetchBrowser = "browser"
	FetchAuto    = "auto"
)

// Config is the top-level configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Gate    GateConfig    `yaml:"gate"`
	Extract ExtractConfig `yaml:"extract"`
	Browser BrowserConfig `yaml:"browser"`
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
}

// SiteConfig describes the documentation site.
type SiteConfig struct {
	// URL is where the site is served from. The sitemap is read from
	// <url>/sitemap.xml and rebased onto it.
	URL      string   `yaml:"url"`
	Features []string `yaml:"features"`
}

// FetchConfig controls page retrieval.
type FetchConfig struct {
	Mode      string        `yaml:"mode"` // http | browser | auto
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// GateConfig controls link activation.
type GateConfig struct {
	// Settle delays hover-leave. Absent = 250ms, 0 disables.
	Settle *time.Duration `yaml:"settle"`
}

// ExtractConfig names the classes the extractor reacts to.
type ExtractConfig struct {
	BoundaryClass string   `yaml:"boundary_class"`
	KeepClasses   []string `yaml:"keep_classes"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote            string        `yaml:"remote"`
	Headless          *bool         `yaml:"headless"`
	RecycleInterval   time.Duration `yaml:"recycle_interval"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	ResourceBlocking  []string      `yaml:"resource_blocking"`
}

// ServerConfig controls the HTTP/MCP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Site.URL == "" {
		c.Site.URL = "http://localhost:8000/"
	}
	if c.Site.Features == nil {
		c.Site.Features = []string{"navigation.instant.preview"}
	}
	if c.Fetch.Mode == "" {
		c.Fetch.Mode = FetchHTTP
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 10 * time.Second
	}
	if c.Gate.Settle == nil {
		d := 250 * time.Millisecond
		c.Gate.Settle = &d
	}
	if c.Extract.BoundaryClass == "" {
		c.Extract.BoundaryClass = "doc"
	}
	if len(c.Extract.KeepClasses) == 0 {
		c.Extract.KeepClasses = []string{"doc-contents", "doc-signature"}
	}
	if c.Browser.Headless == nil {
		t := true
		c.Browser.Headless = &t
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.NavigationTimeout <= 0 {
		c.Browser.NavigationTimeout = 30 * time.Second
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"images", "fonts", "media"}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8086"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/preview.db"
	}
}

// Validate checks values defaults cannot fix.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Site.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("config: site.url must be an absolute URL, got %q", c.Site.URL)
	}
	switch c.Fetch.Mode {
	case FetchHTTP, FetchBrowser, FetchAuto:
	default:
		return fmt.Errorf("config: fetch.mode must be http, browser or auto, got %q", c.Fetch.Mode)
	}
	if *c.Gate.Settle < 0 {
		return fmt.Errorf("config: gate.settle must not be negative")
	}
	return nil
}

// SiteURL returns the parsed site URL. Validate guarantees it parses.
func (c *Config) SiteURL() *url.URL {
	u, _ := url.Parse(c.Site.URL)
	return u
}
