package pubfront

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// HeaderFeedHasMore tells the load-more script whether to keep its button.
const HeaderFeedHasMore = "X-Feed-Has-More"

func (a *App) handleHome(c echo.Context) error {
	page, err := a.Cache.FirstPage(c.Request().Context())
	if err != nil {
		return err
	}
	home := HomePage{
		Posts:     page.Items,
		HasMore:   page.Next != "",
		CSRFToken: CsrfToken(c),
		Meta: PageMeta{
			Title:       a.Config.Name,
			Description: a.Config.Description,
			URL:         BuildURL(a.Config.URL),
			OGType:      "website",
		},
	}
	if home.HasMore {
		owner, err := ensureViewerKey(c)
		if err != nil {
			return err
		}
		home.ViewID, _ = a.Feeds.Open(owner, page)
	}
	return Render(c, a.Views.Home(home))
}

func (a *App) handleFeedMore(c echo.Context) error {
	id := c.Param("id")
	owner := ViewerKey(c)
	ctrl, err := a.Feeds.Get(id, owner)
	switch {
	case errors.Is(err, ErrViewNotFound):
		a.Metrics.FeedLoad("gone")
		return c.NoContent(http.StatusGone)
	case errors.Is(err, ErrViewForbidden):
		a.Metrics.FeedLoad("forbidden")
		return c.NoContent(http.StatusForbidden)
	case err != nil:
		return err
	}

	added, err := ctrl.LoadNext(c.Request().Context())
	if err != nil {
		a.Metrics.FeedLoad("failed")
		a.Logger.Warn().Err(err).Str("view", id).Msg("load more")
		return RenderFragment(c, http.StatusBadGateway, a.Views.FeedError(id))
	}

	hasMore := ctrl.HasMore()
	c.Response().Header().Set(HeaderFeedHasMore, strconv.FormatBool(hasMore))
	if !hasMore {
		_ = a.Feeds.Close(id, owner)
	}
	if len(added) == 0 {
		a.Metrics.FeedLoad("noop")
		return c.NoContent(http.StatusNoContent)
	}
	a.Metrics.FeedLoad("loaded")
	chunk := FeedChunk{Posts: added, HasMore: hasMore}
	if hasMore {
		chunk.ViewID = id
	}
	return RenderFragment(c, http.StatusOK, a.Views.FeedChunk(chunk))
}

func (a *App) handleFeedClose(c echo.Context) error {
	err := a.Feeds.Close(c.Param("id"), ViewerKey(c))
	if errors.Is(err, ErrViewForbidden) {
		return c.NoContent(http.StatusForbidden)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !a.limiter.Allow(c.RealIP()) {
			a.Metrics.FeedLoad("limited")
			c.Response().Header().Set("Retry-After", "60")
			return c.NoContent(http.StatusTooManyRequests)
		}
		return next(c)
	}
}

func (a *App) handlePost(c echo.Context) error {
	slug := c.Param("slug")
	post, err := a.Cache.Post(c.Request().Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return err
	}
	meta := PageMeta{
		Title:       post.Title + " | " + a.Config.Name,
		Description: post.Subtitle,
		URL:         BuildURL(a.Config.URL, "post", post.UID),
		OGType:      "article",
	}
	if post.BannerURL != "" {
		meta.Image = BuildURL(a.Config.URL, "banner", post.UID)
	}
	return Render(c, a.Views.Post(PostPage{
		Post:        post,
		ReadingTime: ReadingTime(post),
		Meta:        meta,
		JSONLD:      BlogPostingJsonLD(post, a.Config),
	}))
}

func (a *App) handleSitemap(c echo.Context) error {
	uids, err := a.Cache.UIDs(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, uids)
}

func (a *App) handleFeed(c echo.Context) error {
	page, err := a.Cache.FirstPage(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, page.Items)
}

func handleBlogRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

func handleBlogPostRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/post/"+PathEscape(c.Param("slug"))+"/")
}

func (a *App) handleRobots(c echo.Context) error {
	body := "User-agent: *\nAllow: /\nDisallow: /feed/\n\nSitemap: " + a.Config.URL + "/sitemap.xml\n"
	return c.String(http.StatusOK, body)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("server error")
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
