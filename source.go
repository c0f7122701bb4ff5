package pubfront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/eringen/pubfront/cms"
	"github.com/eringen/pubfront/pager"
	"github.com/eringen/pubfront/richtext"
)

// ErrMalformedDocument is returned when a content document lacks the fields
// a post needs.
var ErrMalformedDocument = errors.New("pubfront: malformed document")

// Source provides posts from the content backend.
type Source interface {
	// FirstPage returns the first listing page.
	FirstPage(ctx context.Context) (pager.Page[PostSummary], error)
	// NextPage returns the listing page identified by a locator taken from
	// a previous page.
	NextPage(ctx context.Context, locator string) (pager.Page[PostSummary], error)
	// Post returns a full post by uid, or ErrNotFound.
	Post(ctx context.Context, uid string) (Post, error)
	// UIDs returns every post uid.
	UIDs(ctx context.Context) ([]string, error)
}

// CMSSource is a Source backed by the content API.
type CMSSource struct {
	Client       *cms.Client
	DocumentType string
	PageSize     int
}

// NewCMSSource returns a Source reading documents of docType.
func NewCMSSource(client *cms.Client, docType string, pageSize int) *CMSSource {
	return &CMSSource{Client: client, DocumentType: docType, PageSize: pageSize}
}

func (s *CMSSource) listingQuery() cms.Query {
	return cms.Query{
		DocumentType: s.DocumentType,
		Fetch:        []string{s.DocumentType + ".title", s.DocumentType + ".subtitle", s.DocumentType + ".author"},
		PageSize:     s.PageSize,
		Orderings:    "[document.first_publication_date desc]",
	}
}

func (s *CMSSource) FirstPage(ctx context.Context) (pager.Page[PostSummary], error) {
	resp, err := s.Client.Query(ctx, s.listingQuery())
	if err != nil {
		return pager.Page[PostSummary]{}, err
	}
	return ShapeListing(resp)
}

func (s *CMSSource) NextPage(ctx context.Context, locator string) (pager.Page[PostSummary], error) {
	resp, err := s.Client.FetchPage(ctx, locator)
	if err != nil {
		return pager.Page[PostSummary]{}, err
	}
	return ShapeListing(resp)
}

func (s *CMSSource) Post(ctx context.Context, uid string) (Post, error) {
	doc, err := s.Client.GetByUID(ctx, s.DocumentType, uid)
	if errors.Is(err, cms.ErrNotFound) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, err
	}
	return ShapePost(*doc)
}

func (s *CMSSource) UIDs(ctx context.Context) ([]string, error) {
	return s.Client.AllUIDs(ctx, s.DocumentType)
}

// Fetcher adapts src to the pager's fetch capability.
func Fetcher(src Source) pager.Fetcher[PostSummary] {
	return pager.FetchFunc[PostSummary](src.NextPage)
}

// ShapeListing converts a search response into a listing page. The
// response's next_page URL becomes the page locator unchanged.
func ShapeListing(resp *cms.Response) (pager.Page[PostSummary], error) {
	page := pager.Page[PostSummary]{
		Items: make([]PostSummary, 0, len(resp.Results)),
		Next:  resp.Next(),
	}
	for _, doc := range resp.Results {
		summary, err := ShapeSummary(doc)
		if err != nil {
			return pager.Page[PostSummary]{}, err
		}
		page.Items = append(page.Items, summary)
	}
	return page, nil
}

type postData struct {
	Title    textField `json:"title"`
	Subtitle textField `json:"subtitle"`
	Author   textField `json:"author"`
	Banner   struct {
		URL string `json:"url"`
	} `json:"banner"`
	Content []struct {
		Heading textField       `json:"heading"`
		Body    richtext.Blocks `json:"body"`
	} `json:"content"`
}

// textField accepts either a plain key-text string or a rich-text array,
// which is flattened to plain text.
type textField string

func (f *textField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '[' {
		var blocks richtext.Blocks
		if err := json.Unmarshal(b, &blocks); err != nil {
			return err
		}
		*f = textField(richtext.PlainText(blocks))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*f = textField(s)
	return nil
}

func decodeData(doc cms.Document) (postData, error) {
	var data postData
	if len(doc.Data) == 0 || bytes.Equal(bytes.TrimSpace(doc.Data), []byte("null")) {
		return data, fmt.Errorf("%w: %q has no data", ErrMalformedDocument, doc.UID)
	}
	if err := json.Unmarshal(doc.Data, &data); err != nil {
		return data, fmt.Errorf("%w: %q: %v", ErrMalformedDocument, doc.UID, err)
	}
	if doc.UID == "" {
		return data, fmt.Errorf("%w: document %s has no uid", ErrMalformedDocument, doc.ID)
	}
	if strings.TrimSpace(string(data.Title)) == "" {
		return data, fmt.Errorf("%w: %q has no title", ErrMalformedDocument, doc.UID)
	}
	return data, nil
}

// ShapeSummary converts a document into a listing item.
func ShapeSummary(doc cms.Document) (PostSummary, error) {
	data, err := decodeData(doc)
	if err != nil {
		return PostSummary{}, err
	}
	return PostSummary{
		UID:                  doc.UID,
		Title:                string(data.Title),
		Subtitle:             string(data.Subtitle),
		Author:               string(data.Author),
		FirstPublicationDate: doc.FirstPublicationDate.Time,
	}, nil
}

// ShapePost converts a document into a full post.
func ShapePost(doc cms.Document) (Post, error) {
	data, err := decodeData(doc)
	if err != nil {
		return Post{}, err
	}
	p := Post{
		UID:                  doc.UID,
		Title:                string(data.Title),
		Subtitle:             string(data.Subtitle),
		Author:               string(data.Author),
		BannerURL:            data.Banner.URL,
		FirstPublicationDate: doc.FirstPublicationDate.Time,
		LastPublicationDate:  doc.LastPublicationDate.Time,
		Content:              make([]ContentSection, 0, len(data.Content)),
	}
	for _, c := range data.Content {
		p.Content = append(p.Content, ContentSection{Heading: string(c.Heading), Body: c.Body})
	}
	return p, nil
}
