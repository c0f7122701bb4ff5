// Package cms is a small client for a Prismic-style headless content API.
//
// It resolves the master content ref, runs document searches for a single
// document type, looks documents up by uid and follows the API's own
// next_page links. All requests go through a circuit breaker so a failing
// API is not hammered by every page view.
package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrUnavailable wraps breaker rejections while the API is considered down.
var ErrUnavailable = errors.New("cms: api unavailable")

const (
	defaultTimeout = 10 * time.Second
	defaultRefTTL  = 30 * time.Second
	maxErrorBody   = 1024
	uidPageSize    = 100
)

// Observer is notified after every API call with the operation name,
// its duration and its outcome.
type Observer func(operation string, d time.Duration, err error)

// Client talks to one content API repository.
type Client struct {
	endpoint *url.URL
	token    string
	http     *http.Client
	observe  Observer
	refTTL   time.Duration
	settings gobreaker.Settings
	breaker  *gobreaker.CircuitBreaker

	mu         sync.Mutex
	ref        string
	refFetched time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client (10s timeout).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithObserver registers a callback invoked after every API call.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observe = o
	}
}

// WithRefTTL sets how long the master ref is reused before it is refreshed.
func WithRefTTL(d time.Duration) ClientOption {
	return func(c *Client) {
		c.refTTL = d
	}
}

// WithBreakerSettings overrides the circuit breaker policy.
func WithBreakerSettings(s gobreaker.Settings) ClientOption {
	return func(c *Client) {
		c.settings = s
	}
}

// NewClient returns a Client for the API rooted at endpoint
// (e.g. "https://repo.cdn.prismic.io/api/v2"). token may be empty for
// public repositories.
func NewClient(endpoint, token string, opts ...ClientOption) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("cms: endpoint is required")
	}
	u, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("cms: parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("cms: endpoint %q must be an absolute url", endpoint)
	}
	c := &Client{
		endpoint: u,
		token:    token,
		http:     &http.Client{Timeout: defaultTimeout},
		refTTL:   defaultRefTTL,
		settings: defaultBreakerSettings(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.settings.IsSuccessful == nil {
		c.settings.IsSuccessful = countsAsSuccess
	}
	c.breaker = gobreaker.NewCircuitBreaker(c.settings)
	return c, nil
}

func defaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "cms",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: countsAsSuccess,
	}
}

// countsAsSuccess keeps lookups of missing documents, client-side
// cancellations and 4xx answers from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status < http.StatusInternalServerError
	}
	return false
}

// BreakerState reports the circuit breaker state ("closed", "half-open", "open").
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Ref returns the master ref, reusing a cached value for the ref TTL.
func (c *Client) Ref(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.ref != "" && time.Since(c.refFetched) < c.refTTL {
		ref := c.ref
		c.mu.Unlock()
		return ref, nil
	}
	c.mu.Unlock()

	var info apiInfo
	if err := c.getJSON(ctx, "ref", c.withToken(c.endpoint.String()), &info); err != nil {
		return "", err
	}
	for _, r := range info.Refs {
		if r.IsMasterRef && r.Ref != "" {
			c.mu.Lock()
			c.ref = r.Ref
			c.refFetched = time.Now()
			c.mu.Unlock()
			return r.Ref, nil
		}
	}
	return "", fmt.Errorf("%w: no master ref advertised", ErrMalformedResponse)
}

// Query runs a search for documents of q.DocumentType against the master ref.
func (c *Client) Query(ctx context.Context, q Query) (*Response, error) {
	ref, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	v := url.Values{}
	v.Set("ref", ref)
	if q.DocumentType != "" {
		v.Set("q", atPredicate("document.type", q.DocumentType))
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if len(q.Fetch) > 0 {
		v.Set("fetch", strings.Join(q.Fetch, ","))
	}
	if q.Orderings != "" {
		v.Set("orderings", q.Orderings)
	}
	return c.search(ctx, "query", c.searchURL(v))
}

// FetchPage fetches a results page by the URL the API returned as next_page.
// The URL is requested as given; only an access token is appended when the
// client has one and the URL does not carry it.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*Response, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("cms: parse page url: %w", err)
	}
	if !strings.EqualFold(u.Host, c.endpoint.Host) {
		return nil, fmt.Errorf("%w: %s", ErrForeignPage, u.Host)
	}
	if c.token != "" && u.Query().Get("access_token") == "" {
		pageURL = c.withToken(pageURL)
	}
	return c.search(ctx, "page", pageURL)
}

// GetByUID returns the document of docType with the given uid.
func (c *Client) GetByUID(ctx context.Context, docType, uid string) (*Document, error) {
	ref, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	v := url.Values{}
	v.Set("ref", ref)
	v.Set("q", atPredicate("my."+docType+".uid", uid))
	v.Set("pageSize", "1")
	resp, err := c.search(ctx, "uid", c.searchURL(v))
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Results[0], nil
}

// AllUIDs walks every page of docType documents and returns their uids in
// API order.
func (c *Client) AllUIDs(ctx context.Context, docType string) ([]string, error) {
	resp, err := c.Query(ctx, Query{
		DocumentType: docType,
		Fetch:        []string{docType + ".uid"},
		PageSize:     uidPageSize,
	})
	if err != nil {
		return nil, err
	}
	var uids []string
	for {
		for _, doc := range resp.Results {
			if doc.UID != "" {
				uids = append(uids, doc.UID)
			}
		}
		next := resp.Next()
		if next == "" {
			return uids, nil
		}
		if resp, err = c.FetchPage(ctx, next); err != nil {
			return nil, err
		}
	}
}

func (c *Client) search(ctx context.Context, op, rawURL string) (*Response, error) {
	var resp Response
	if err := c.getJSON(ctx, op, rawURL, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return nil, fmt.Errorf("%w: missing results", ErrMalformedResponse)
	}
	return &resp, nil
}

func (c *Client) searchURL(v url.Values) string {
	if c.token != "" {
		v.Set("access_token", c.token)
	}
	return c.endpoint.String() + "/documents/search?" + v.Encode()
}

func (c *Client) withToken(rawURL string) string {
	if c.token == "" {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "access_token=" + url.QueryEscape(c.token)
}

func (c *Client) getJSON(ctx context.Context, op, rawURL string, dst any) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, rawURL, dst)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if c.observe != nil {
		c.observe(op, time.Since(start), err)
	}
	return err
}

func (c *Client) do(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("cms: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cms: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func atPredicate(path, value string) string {
	return "[[at(" + path + "," + strconv.Quote(value) + ")]]"
}
