package pubfront

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
)

// SiteConfig holds all configuration for a pubfront site.
type SiteConfig struct {
	Name        string // Site name (default "Blog")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS and meta tags
	Author      string // Author name for JSON-LD

	Addr           string // Listen address (default ":3000")
	DatabasePath   string // SQLite snapshot path (default "data/pubfront.db")
	BannerCacheDir string // Resized banner cache (default "data/banners")

	CMSEndpoint    string // Required: content API root, e.g. https://repo.cdn.prismic.io/api/v2
	CMSAccessToken string // Content API token (optional for public repositories)
	DocumentType   string // Custom type of posts (default "post")
	PageSize       int    // Posts per listing page (default 5)

	RevalidateTTL time.Duration // How long fetched content is served before refetching (default 2m)
	FeedViewTTL   time.Duration // Idle lifetime of a listing view (default 30m)

	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	Locale         string // BCP 47 tag for dates (default "pt-BR")
	LogLevel       string // zerolog level (default "info")
	MetricsEnabled bool   // Serve /metrics
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/pubfront.db"
	}
	if c.BannerCacheDir == "" {
		c.BannerCacheDir = "data/banners"
	}
	if c.DocumentType == "" {
		c.DocumentType = "post"
	}
	if c.PageSize <= 0 {
		c.PageSize = 5
	}
	if c.RevalidateTTL <= 0 {
		c.RevalidateTTL = 2 * time.Minute
	}
	if c.FeedViewTTL <= 0 {
		c.FeedViewTTL = 30 * time.Minute
	}
	if c.Locale == "" {
		c.Locale = "pt-BR"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports missing or malformed required settings.
func (c SiteConfig) Validate() error {
	var errs []error
	if c.CMSEndpoint == "" {
		errs = append(errs, errors.New("CMSEndpoint is required"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SessionSecret is required"))
	}
	if _, err := language.Parse(c.Locale); c.Locale != "" && err != nil {
		errs = append(errs, fmt.Errorf("locale %q: %w", c.Locale, err))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level %q: %w", c.LogLevel, err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("pubfront: invalid config: %w", err)
	}
	return nil
}

// LoadConfig builds a SiteConfig from the environment. Variables from a
// .env file in the working directory are loaded first; variables already
// set in the process environment win.
func LoadConfig() (SiteConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return SiteConfig{}, fmt.Errorf("pubfront: load .env: %w", err)
	}

	var errs []error
	cfg := SiteConfig{
		Name:           os.Getenv("SITE_NAME"),
		URL:            os.Getenv("SITE_URL"),
		Description:    os.Getenv("SITE_DESCRIPTION"),
		Author:         os.Getenv("SITE_AUTHOR"),
		Addr:           os.Getenv("ADDR"),
		DatabasePath:   os.Getenv("DATABASE_PATH"),
		BannerCacheDir: os.Getenv("BANNER_CACHE_DIR"),
		CMSEndpoint:    os.Getenv("CMS_API_ENDPOINT"),
		CMSAccessToken: os.Getenv("CMS_ACCESS_TOKEN"),
		DocumentType:   os.Getenv("CMS_DOCUMENT_TYPE"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		CookieSecure:   strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true"),
		Locale:         os.Getenv("LOCALE"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		MetricsEnabled: !strings.EqualFold(os.Getenv("METRICS_ENABLED"), "false"),
	}
	if v := os.Getenv("PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PAGE_SIZE: %w", err))
		}
		cfg.PageSize = n
	}
	if v := os.Getenv("REVALIDATE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("REVALIDATE: %w", err))
		}
		cfg.RevalidateTTL = d
	}
	if v := os.Getenv("FEED_VIEW_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FEED_VIEW_TTL: %w", err))
		}
		cfg.FeedViewTTL = d
	}
	if err := errors.Join(errs...); err != nil {
		return SiteConfig{}, fmt.Errorf("pubfront: parse environment: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithSource replaces the content API source, e.g. with a fixture in tests.
func WithSource(src Source) Option {
	return func(a *App) {
		a.source = src
	}
}

// WithLogger replaces the logger built from Config.LogLevel.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) {
		a.Logger = l
		a.loggerSet = true
	}
}
