package pubfront

import (
	"time"

	"github.com/eringen/pubfront/richtext"
)

// PostSummary is the listing item: what the home page shows for each post.
type PostSummary struct {
	UID                  string
	Title                string
	Subtitle             string
	Author               string
	FirstPublicationDate time.Time
}

// Link returns the site-relative URL of the post.
func (p PostSummary) Link() string {
	return "/post/" + p.UID + "/"
}

// Post is a full post as rendered by the detail page.
type Post struct {
	UID                  string
	Title                string
	Subtitle             string
	Author               string
	BannerURL            string
	FirstPublicationDate time.Time
	LastPublicationDate  time.Time
	Content              []ContentSection
}

// ContentSection is one heading with its body.
type ContentSection struct {
	Heading string          `json:"heading"`
	Body    richtext.Blocks `json:"body"`
}

// Summary returns the listing view of p.
func (p Post) Summary() PostSummary {
	return PostSummary{
		UID:                  p.UID,
		Title:                p.Title,
		Subtitle:             p.Subtitle,
		Author:               p.Author,
		FirstPublicationDate: p.FirstPublicationDate,
	}
}

// Link returns the site-relative URL of the post.
func (p Post) Link() string {
	return "/post/" + p.UID + "/"
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string // og:image
}

// HomePage is everything the listing template needs.
type HomePage struct {
	Posts     []PostSummary
	HasMore   bool
	ViewID    string // empty when there is nothing more to load
	CSRFToken string
	Meta      PageMeta
}

// FeedChunk is the fragment appended to the listing by "load more".
type FeedChunk struct {
	Posts   []PostSummary
	HasMore bool
	ViewID  string
}

// PostPage is everything the post detail template needs.
type PostPage struct {
	Post        Post
	ReadingTime int // minutes
	Meta        PageMeta
	JSONLD      string
}
