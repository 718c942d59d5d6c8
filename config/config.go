package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SearchConfig controls how the site search index is crawled and cached.
type SearchConfig struct {
	PagesURL       string        `json:"pagesUrl" yaml:"pagesUrl"`
	BaseURL        string        `json:"baseUrl" yaml:"baseUrl"`
	CacheKey       string        `json:"cacheKey" yaml:"cacheKey"`
	TTLHours       int           `json:"ttlHours" yaml:"ttlHours"`
	PageTimeoutSec int           `json:"pageTimeoutSec" yaml:"pageTimeoutSec"`
	TTL            time.Duration `json:"-" yaml:"-"`
	PageTimeout    time.Duration `json:"-" yaml:"-"`
}

// NewsConfig describes the remote news API collaborator.
type NewsConfig struct {
	APIBase            string        `json:"apiBase" yaml:"apiBase"`
	CacheKey           string        `json:"cacheKey" yaml:"cacheKey"`
	CacheTTLSec        int           `json:"cacheTtlSec" yaml:"cacheTtlSec"`
	TimeoutSec         int           `json:"timeoutSec" yaml:"timeoutSec"`
	RefreshIntervalSec int           `json:"refreshIntervalSec" yaml:"refreshIntervalSec"`
	CacheTTL           time.Duration `json:"-" yaml:"-"`
	Timeout            time.Duration `json:"-" yaml:"-"`
	RefreshInterval    time.Duration `json:"-" yaml:"-"`
}

// CacheConfig selects the persistent key-value backend.
type CacheConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path" yaml:"path"`
}

// ListingConfig binds one paginated listing to its JSON data source.
type ListingConfig struct {
	Name          string `json:"name" yaml:"name"`
	Source        string `json:"source" yaml:"source"`
	Discriminator string `json:"discriminator" yaml:"discriminator"`
	SortBy        string `json:"sortBy" yaml:"sortBy"`
	Template      string `json:"template" yaml:"template"`
	PageSize      int    `json:"pageSize" yaml:"pageSize"`
	Limit         int    `json:"limit" yaml:"limit"`
}

// Config encapsulates runtime and build-time options.
type Config struct {
	Listen      string `json:"listen" yaml:"listen"`
	SiteDir     string `json:"siteDir" yaml:"siteDir"`
	OutputDir   string `json:"outputDir" yaml:"outputDir"`
	TemplateDir string `json:"templateDir" yaml:"templateDir"`
	SiteName    string `json:"siteName" yaml:"siteName"`
	BaseURL     string `json:"baseUrl" yaml:"baseUrl"`
	LogLevel    string `json:"logLevel" yaml:"logLevel"`
	EnableTLS   bool   `json:"enableTLS" yaml:"enableTLS"`
	TLSCert     string `json:"tlsCert" yaml:"tlsCert"`
	TLSKey      string `json:"tlsKey" yaml:"tlsKey"`
	// RefreshToken guards POST /api/search/refresh when set.
	RefreshToken string          `json:"refreshToken" yaml:"refreshToken"`
	Search       SearchConfig    `json:"search" yaml:"search"`
	News         NewsConfig      `json:"news" yaml:"news"`
	Cache        CacheConfig     `json:"cache" yaml:"cache"`
	Listings     []ListingConfig `json:"listings" yaml:"listings"`
}

const (
	CacheDriverFile   = "file"
	CacheDriverSQLite = "sqlite"
)

// Load reads configuration from disk, applies environment overrides and sane defaults.
// A missing file yields the default configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	file, err := os.Open(filepath.Clean(path))
	switch {
	case err == nil:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, bytes, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open config: %w", err)
	}

	// .env is optional
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.applyDefaults()
	return cfg
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("GEIP_LISTEN")); v != "" {
		c.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("GEIP_SITE_DIR")); v != "" {
		c.SiteDir = v
	}
	if v := strings.TrimSpace(os.Getenv("GEIP_NEWS_API")); v != "" {
		c.News.APIBase = v
	}
	if v := strings.TrimSpace(os.Getenv("GEIP_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("GEIP_REFRESH_TOKEN")); v != "" {
		c.RefreshToken = v
	}
}

func (c *Config) applyDefaults() error {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.SiteDir == "" {
		c.SiteDir = "./public"
	}
	if c.OutputDir == "" {
		c.OutputDir = "./dist"
	}
	c.SiteName = strings.TrimSpace(c.SiteName)
	if c.SiteName == "" {
		c.SiteName = "GEIP"
	}
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	c.Search.PagesURL = strings.TrimSpace(c.Search.PagesURL)
	if c.Search.PagesURL == "" {
		c.Search.PagesURL = "search_pages.json"
	}
	c.Search.BaseURL = strings.TrimSpace(c.Search.BaseURL)
	if c.Search.CacheKey == "" {
		c.Search.CacheKey = "siteSearchIndexV1"
	}
	if c.Search.TTLHours <= 0 {
		c.Search.TTLHours = 24
	}
	if c.Search.PageTimeoutSec <= 0 {
		c.Search.PageTimeoutSec = 10
	}
	c.Search.TTL = time.Duration(c.Search.TTLHours) * time.Hour
	c.Search.PageTimeout = time.Duration(c.Search.PageTimeoutSec) * time.Second

	c.News.APIBase = strings.TrimRight(strings.TrimSpace(c.News.APIBase), "/")
	if c.News.CacheKey == "" {
		c.News.CacheKey = "geip_news_cache"
	}
	if c.News.CacheTTLSec <= 0 {
		c.News.CacheTTLSec = 300
	}
	if c.News.TimeoutSec <= 0 {
		c.News.TimeoutSec = 15
	}
	if c.News.RefreshIntervalSec < 0 {
		c.News.RefreshIntervalSec = 0
	}
	c.News.CacheTTL = time.Duration(c.News.CacheTTLSec) * time.Second
	c.News.Timeout = time.Duration(c.News.TimeoutSec) * time.Second
	c.News.RefreshInterval = time.Duration(c.News.RefreshIntervalSec) * time.Second

	c.Cache.Driver = strings.ToLower(strings.TrimSpace(c.Cache.Driver))
	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheDriverFile
	}
	if strings.TrimSpace(c.Cache.Path) == "" {
		if c.Cache.Driver == CacheDriverSQLite {
			c.Cache.Path = "./cache/geip.db"
		} else {
			c.Cache.Path = "./cache"
		}
	}

	if len(c.Listings) == 0 {
		c.Listings = defaultListings()
	}
	for i := range c.Listings {
		l := &c.Listings[i]
		l.Name = strings.ToLower(strings.TrimSpace(l.Name))
		l.Source = strings.TrimSpace(l.Source)
		if l.Source == "" && l.Name != "" {
			l.Source = "data/" + l.Name + ".json"
		}
		if l.PageSize <= 0 {
			l.PageSize = 9
		}
		if l.Template == "" {
			l.Template = "list-" + l.Name
		}
	}
	return nil
}

func defaultListings() []ListingConfig {
	return []ListingConfig{
		{Name: "courses", Source: "data/courses.json", Discriminator: "year", PageSize: 50},
		{Name: "projects", Source: "data/projects.json", Discriminator: "year", PageSize: 9},
		{Name: "news", Source: "data/news.json", SortBy: "date", PageSize: 6},
		{Name: "news-latest", Source: "data/news.json", SortBy: "date", PageSize: 6, Limit: 6, Template: "list-news"},
		{Name: "videos", Source: "data/videos.json", PageSize: 6},
		{Name: "albums", Source: "data/albums.json", PageSize: 9, Limit: 9},
	}
}

func (c *Config) validate() error {
	if c.EnableTLS {
		if c.TLSCert == "" || c.TLSKey == "" {
			return fmt.Errorf("tls enabled but certificates missing")
		}
	}
	switch c.Cache.Driver {
	case CacheDriverFile, CacheDriverSQLite:
	default:
		return fmt.Errorf("unsupported cache driver %q", c.Cache.Driver)
	}
	if c.Search.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Search.BaseURL); err != nil {
			return fmt.Errorf("invalid search baseUrl: %w", err)
		}
	}
	if c.News.APIBase != "" {
		if _, err := url.ParseRequestURI(c.News.APIBase); err != nil {
			return fmt.Errorf("invalid news apiBase: %w", err)
		}
	}
	seen := make(map[string]struct{}, len(c.Listings))
	for _, l := range c.Listings {
		if l.Name == "" {
			return fmt.Errorf("listing without name")
		}
		if _, ok := seen[l.Name]; ok {
			return fmt.Errorf("duplicate listing %q", l.Name)
		}
		seen[l.Name] = struct{}{}
		if l.Limit < 0 {
			return fmt.Errorf("listing %q: negative limit", l.Name)
		}
	}
	return nil
}

// Listing returns the listing configuration registered under name.
func (c *Config) Listing(name string) (ListingConfig, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, l := range c.Listings {
		if l.Name == name {
			return l, true
		}
	}
	return ListingConfig{}, false
}
