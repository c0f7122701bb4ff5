package cms

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no document matches a lookup.
	ErrNotFound = errors.New("cms: document not found")
	// ErrMalformedResponse is returned when the API answers with a body
	// that cannot be decoded into the expected shape.
	ErrMalformedResponse = errors.New("cms: malformed response")
	// ErrForeignPage is returned by FetchPage for page URLs that do not
	// belong to the configured API host.
	ErrForeignPage = errors.New("cms: page url does not belong to the api host")
)

// APIError is a non-2xx answer from the content API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cms: api returned status %d: %s", e.Status, e.Body)
}

// Ref is a content release reference advertised by the API root.
type Ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

type apiInfo struct {
	Refs []Ref `json:"refs"`
}

// Document is a single content document as returned by the search API.
// Data is left raw; shaping it is up to the caller.
type Document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid"`
	Type                 string          `json:"type"`
	Href                 string          `json:"href"`
	Tags                 []string        `json:"tags"`
	FirstPublicationDate Timestamp       `json:"first_publication_date"`
	LastPublicationDate  Timestamp       `json:"last_publication_date"`
	Lang                 string          `json:"lang"`
	Data                 json.RawMessage `json:"data"`
}

// Timestamp decodes the API's publication dates, which use a numeric zone
// without a colon ("2021-03-25T19:25:28+0000"). null decodes to the zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{"2006-01-02T15:04:05-0700", time.RFC3339}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		t.Time = time.Time{}
		return nil
	}
	var err error
	for _, layout := range timestampLayouts {
		var parsed time.Time
		if parsed, err = time.Parse(layout, *s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("cms: parse timestamp %q: %w", *s, err)
}

// Response is one page of search results.
type Response struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         *string    `json:"next_page"`
	PrevPage         *string    `json:"prev_page"`
	Results          []Document `json:"results"`
}

// Next returns the next page URL, or "" on the last page.
func (r *Response) Next() string {
	if r == nil || r.NextPage == nil {
		return ""
	}
	return *r.NextPage
}

// Query describes a search for documents of one type.
type Query struct {
	DocumentType string
	Fetch        []string // restrict returned fields, e.g. "post.title"
	PageSize     int
	Page         int
	Orderings    string // e.g. "[document.first_publication_date desc]"
}
