// Package pubfront is the front end of a blog whose posts live in a headless
// content API. It serves a paginated listing with incremental "load more",
// post pages, RSS and a sitemap, and keeps a SQLite snapshot of the last
// good content so pages keep rendering while the API is down.
//
// Users provide their own templ templates via the ViewFuncs struct, or use
// the defaults from the views package.
package pubfront

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/eringen/pubfront/cms"
)

// ViewFuncs holds the templ components the App renders pages with.
type ViewFuncs struct {
	Home        func(page HomePage) templ.Component
	FeedChunk   func(chunk FeedChunk) templ.Component
	FeedError   func(viewID string) templ.Component
	Post        func(page PostPage) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

// Load-more requests allowed per client IP per minute.
const loadMoreLimit = 30

// App wires together the content source, cache, snapshot store, listing
// views, handlers and middleware.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Store   *Store
	Cache   *ContentCache
	Feeds   *FeedViews
	CMS     *cms.Client // nil when a Source was supplied with WithSource
	Views   ViewFuncs
	Logger  zerolog.Logger
	Metrics *Metrics

	source       Source
	loggerSet    bool
	limiter      *RateLimiter
	bannerClient *http.Client
	bannerGroup  singleflight.Group
	customRoutes []func(*App)
	staticDir    string
	ready        bool
}

// New creates a new App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		staticDir: "public",
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Setup validates the configuration, opens the store, builds the content
// pipeline and registers middleware and routes. Start calls it; tests may
// call it directly and drive a.Echo with httptest.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return err
	}
	if !a.loggerSet {
		a.Logger = NewLogger(a.Config.LogLevel, os.Stderr)
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("pubfront: init store: %w", err)
	}
	a.Store = store

	a.Metrics = NewMetrics(nil, func() int {
		if a.Feeds == nil {
			return 0
		}
		return a.Feeds.Len()
	})

	if a.source == nil {
		client, err := cms.NewClient(a.Config.CMSEndpoint, a.Config.CMSAccessToken,
			cms.WithObserver(a.Metrics.ObserveCMS))
		if err != nil {
			a.Store.Close()
			return fmt.Errorf("pubfront: init content client: %w", err)
		}
		a.CMS = client
		a.source = NewCMSSource(client, a.Config.DocumentType, a.Config.PageSize)
	}

	a.Cache = NewContentCache(a.source, a.Store, a.Config.RevalidateTTL, a.Logger, a.Metrics)
	a.Feeds = NewFeedViews(Fetcher(a.source), a.Config.FeedViewTTL, DefaultMaxFeedViews)
	a.limiter = NewRateLimiter(loadMoreLimit, time.Minute)
	a.bannerClient = &http.Client{Timeout: 15 * time.Second}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

// Start sets the App up and serves HTTP until ctx is cancelled, then shuts
// the server down gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Setup(); err != nil {
		return err
	}
	a.Logger.Info().Str("addr", a.Config.Addr).Str("site", a.Config.URL).Msg("starting server")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Logger.Info().Msg("shutting down")
		return a.Echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) setupRoutes() {
	e := a.Echo

	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/loadmore.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))

	e.Static("/public", a.staticDir)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	e.GET("/", a.handleHome)
	e.POST("/feed/:id/more/", a.handleFeedMore, a.rateLimit)
	e.POST("/feed/:id/close/", a.handleFeedClose)
	e.GET("/post/:slug/", a.handlePost)
	e.GET("/banner/:slug/", a.handleBanner)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/blog/:slug/", handleBlogPostRedirect)

	if a.Config.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.Metrics.Registry, promhttp.HandlerOpts{})))
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Feeds != nil {
		a.Feeds.Stop()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
