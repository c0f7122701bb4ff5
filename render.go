package pubfront

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// RenderFragment writes a templ component meant to be inserted into an
// already rendered page. Fragments depend on per-visitor state and are
// never cached.
func RenderFragment(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	return RenderStatus(c, code, cmp)
}
