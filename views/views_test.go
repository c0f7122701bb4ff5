package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/pubfront"
	"github.com/eringen/pubfront/richtext"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

var testConfig = pubfront.SiteConfig{Name: "spacetraveling", URL: "https://example.com", Locale: "pt-BR"}

func summaries() []pubfront.PostSummary {
	return []pubfront.PostSummary{
		{UID: "como-utilizar-hooks", Title: "Como utilizar Hooks", Subtitle: "Pensando em sincronização", Author: "Joseph Oliveira",
			FirstPublicationDate: time.Date(2021, 3, 15, 19, 25, 28, 0, time.UTC)},
		{UID: "criando-um-app", Title: "Criando um app <CRA>", Subtitle: "Tudo sobre", Author: "Danilo Vieira",
			FirstPublicationDate: time.Date(2021, 3, 25, 19, 25, 28, 0, time.UTC)},
	}
}

func TestHomeWithMore(t *testing.T) {
	v := Default(testConfig)
	got := render(t, v.Home(pubfront.HomePage{
		Posts:     summaries(),
		HasMore:   true,
		ViewID:    "view-123",
		CSRFToken: "tok",
		Meta:      pubfront.PageMeta{Title: "spacetraveling", URL: "https://example.com"},
	}))

	for _, want := range []string{
		`<html lang="pt-BR">`,
		`href="/post/como-utilizar-hooks/"`,
		"15 mar 21",
		"Joseph Oliveira",
		"Criando um app &lt;CRA&gt;",
		`action="/feed/view-123/more/"`,
		`data-view-id="view-123"`,
		`name="_csrf" value="tok"`,
		"Carregar mais posts",
		`src="/public/loadmore.js"`,
		`<script type="application/ld+json">{"@context":"https://schema.org"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("home page missing %q", want)
		}
	}
}

func TestHomeWithoutMore(t *testing.T) {
	v := Default(testConfig)
	got := render(t, v.Home(pubfront.HomePage{Posts: summaries()}))
	if strings.Contains(got, "data-feed-more") || strings.Contains(got, "loadmore.js") {
		t.Error("exhausted listing should not offer load more")
	}
	if !strings.Contains(got, "<title>spacetraveling</title>") {
		t.Error("title should fall back to the site name")
	}
}

func TestFeedChunk(t *testing.T) {
	v := Default(testConfig)
	got := render(t, v.FeedChunk(pubfront.FeedChunk{Posts: summaries()[1:]}))
	if strings.Contains(got, "<html") {
		t.Error("chunk should be a fragment")
	}
	if !strings.Contains(got, `href="/post/criando-um-app/"`) || !strings.Contains(got, "25 mar 21") {
		t.Errorf("chunk = %q", got)
	}
	if strings.Contains(got, "como-utilizar-hooks") {
		t.Error("chunk should only render the appended posts")
	}
}

func TestFeedError(t *testing.T) {
	got := render(t, Default(testConfig).FeedError("view-9"))
	if !strings.Contains(got, "Não foi possível carregar mais posts") || !strings.Contains(got, `data-view-id="view-9"`) {
		t.Errorf("feed error = %q", got)
	}
}

func TestPostPage(t *testing.T) {
	v := Default(testConfig)
	post := pubfront.Post{
		UID:                  "hello",
		Title:                "Hello",
		Author:               "Ana",
		BannerURL:            "https://images.example/b.png",
		FirstPublicationDate: time.Date(2021, 3, 25, 19, 25, 28, 0, time.UTC),
		LastPublicationDate:  time.Date(2021, 3, 27, 8, 5, 0, 0, time.UTC),
		Content: []pubfront.ContentSection{{
			Heading: "Intro",
			Body:    richtext.Blocks{{Type: "paragraph", Text: "Lorem ipsum", Spans: []richtext.Span{{Start: 0, End: 5, Type: "strong"}}}},
		}},
	}
	got := render(t, v.Post(pubfront.PostPage{
		Post:        post,
		ReadingTime: 4,
		Meta:        pubfront.PageMeta{Title: "Hello | spacetraveling", OGType: "article"},
		JSONLD:      pubfront.BlogPostingJsonLD(post, testConfig),
	}))

	for _, want := range []string{
		`src="/banner/hello/"`,
		"<h1>Hello</h1>",
		"25 mar 2021",
		"4 min",
		"* editado em 27 mar 2021, às 08:05",
		"<h2>Intro</h2>",
		"<p><strong>Lorem</strong> ipsum</p>",
		`"@type":"BlogPosting"`,
		`<meta property="og:type" content="article">`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("post page missing %q", want)
		}
	}
}

func TestErrorPages(t *testing.T) {
	v := Default(pubfront.SiteConfig{Name: "Blog", Locale: "en"})
	if got := render(t, v.NotFound()); !strings.Contains(got, "Page not found.") || !strings.Contains(got, "<title>404 | Blog</title>") {
		t.Errorf("not found page = %q", got)
	}
	if got := render(t, v.ServerError()); !strings.Contains(got, "Something went wrong") {
		t.Errorf("server error page = %q", got)
	}
}

func TestLabelsFor(t *testing.T) {
	if LabelsFor("pt-BR").LoadMore != labelsPT.LoadMore {
		t.Error("pt-BR should use Portuguese labels")
	}
	if LabelsFor("pt").Edited != "editado em" {
		t.Error("pt should use Portuguese labels")
	}
	if LabelsFor("en-GB").LoadMore != labelsEN.LoadMore || LabelsFor("").LoadMore != labelsEN.LoadMore {
		t.Error("other locales should use English labels")
	}
}
