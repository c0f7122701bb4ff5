// Package views holds the default page templates of a pubfront site.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/pubfront"
)

//go:embed templates/*.html
var templateFS embed.FS

// page is what every full page template receives.
type page struct {
	SiteName string
	Lang     string
	Meta     pubfront.PageMeta
	JSONLD   template.JS
	Labels   Labels
	Page     any
}

type fragment struct {
	Posts  []pubfront.PostSummary
	ViewID string
	Labels Labels
}

// Default returns the built-in templates for cfg.
func Default(cfg pubfront.SiteConfig) pubfront.ViewFuncs {
	t := newTemplates(cfg)
	return pubfront.ViewFuncs{
		Home: func(p pubfront.HomePage) templ.Component {
			return t.page("home.html", p.Meta, pubfront.WebsiteJsonLD(cfg), p)
		},
		FeedChunk: func(c pubfront.FeedChunk) templ.Component {
			return t.fragment("chunk", fragment{Posts: c.Posts, ViewID: c.ViewID, Labels: t.labels})
		},
		FeedError: func(viewID string) templ.Component {
			return t.fragment("feed_error", fragment{ViewID: viewID, Labels: t.labels})
		},
		Post: func(p pubfront.PostPage) templ.Component {
			return t.page("post.html", p.Meta, p.JSONLD, p)
		},
		NotFound: func() templ.Component {
			return t.page("not_found.html", pubfront.PageMeta{Title: "404 | " + cfg.Name}, "", nil)
		},
		ServerError: func() templ.Component {
			return t.page("server_error.html", pubfront.PageMeta{Title: "500 | " + cfg.Name}, "", nil)
		},
	}
}

type templates struct {
	cfg       pubfront.SiteConfig
	labels    Labels
	pages     map[string]*template.Template
	fragments *template.Template
}

func newTemplates(cfg pubfront.SiteConfig) *templates {
	funcs := funcMap(cfg.Locale)
	base := template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/partials.html"))

	t := &templates{
		cfg:    cfg,
		labels: LabelsFor(cfg.Locale),
		pages:  make(map[string]*template.Template),
	}
	for _, name := range []string{"home.html", "post.html", "not_found.html", "server_error.html"} {
		t.pages[name] = template.Must(template.Must(base.Clone()).ParseFS(templateFS, "templates/"+name))
	}
	t.fragments = template.Must(template.Must(base.Clone()).ParseFS(templateFS, "templates/chunk.html", "templates/feed_error.html"))
	return t
}

func (t *templates) page(name string, meta pubfront.PageMeta, jsonLD string, data any) templ.Component {
	if meta.Title == "" {
		meta.Title = t.cfg.Name
	}
	p := page{
		SiteName: t.cfg.Name,
		Lang:     t.cfg.Locale,
		Meta:     meta,
		// JSON-LD is produced by encoding/json, which escapes <, > and &.
		JSONLD: template.JS(jsonLD),
		Labels: t.labels,
		Page:   data,
	}
	tmpl := t.pages[name]
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return tmpl.ExecuteTemplate(w, "layout", p)
	})
}

func (t *templates) fragment(name string, data fragment) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return t.fragments.ExecuteTemplate(w, name, data)
	})
}
