package pubfront

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eringen/pubfront/pager"
	"github.com/eringen/pubfront/richtext"
)

var errBackend = errors.New("backend down")

// fakeSource serves a fixed chain of listing pages. The first page has the
// locator "", later pages are keyed by the locator that leads to them.
type fakeSource struct {
	mu     sync.Mutex
	pages  map[string]pager.Page[PostSummary]
	posts  map[string]Post
	err    error
	calls  map[string]int
	gate   chan struct{} // when set, NextPage waits on it
	issued []string
}

// newFakeSource builds n pages of size posts each, newest first.
func newFakeSource(n, size int) *fakeSource {
	f := &fakeSource{
		pages: make(map[string]pager.Page[PostSummary]),
		posts: make(map[string]Post),
		calls: make(map[string]int),
	}
	base := time.Date(2021, 3, 25, 19, 25, 28, 0, time.UTC)
	k := 0
	for i := 0; i < n; i++ {
		locator := ""
		if i > 0 {
			locator = fmt.Sprintf("page-%d", i+1)
		}
		var page pager.Page[PostSummary]
		for j := 0; j < size; j++ {
			uid := fmt.Sprintf("post-%d", k)
			p := Post{
				UID:                  uid,
				Title:                fmt.Sprintf("Post %d", k),
				Subtitle:             "subtitle",
				Author:               "Ana",
				FirstPublicationDate: base.Add(-time.Duration(k) * 24 * time.Hour),
				LastPublicationDate:  base.Add(-time.Duration(k) * 24 * time.Hour),
				Content: []ContentSection{{
					Heading: "Intro",
					Body:    richtext.Blocks{{Type: "paragraph", Text: "one two three four five"}},
				}},
			}
			f.posts[uid] = p
			page.Items = append(page.Items, p.Summary())
			k++
		}
		if i < n-1 {
			page.Next = fmt.Sprintf("page-%d", i+2)
		}
		f.pages[locator] = page
	}
	return f
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSource) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeSource) page(key, locator string) (pager.Page[PostSummary], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if f.err != nil {
		return pager.Page[PostSummary]{}, f.err
	}
	p, ok := f.pages[locator]
	if !ok {
		return pager.Page[PostSummary]{}, fmt.Errorf("unknown locator %q", locator)
	}
	return p, nil
}

func (f *fakeSource) FirstPage(ctx context.Context) (pager.Page[PostSummary], error) {
	return f.page("first", "")
}

func (f *fakeSource) NextPage(ctx context.Context, locator string) (pager.Page[PostSummary], error) {
	f.mu.Lock()
	gate := f.gate
	f.issued = append(f.issued, locator)
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return pager.Page[PostSummary]{}, ctx.Err()
		}
	}
	return f.page("next", locator)
}

func (f *fakeSource) Post(ctx context.Context, uid string) (Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["post"]++
	if f.err != nil {
		return Post{}, f.err
	}
	p, ok := f.posts[uid]
	if !ok {
		return Post{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeSource) UIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["uids"]++
	if f.err != nil {
		return nil, f.err
	}
	var uids []string
	for locator := ""; ; {
		page := f.pages[locator]
		for _, p := range page.Items {
			uids = append(uids, p.UID)
		}
		if page.Next == "" {
			return uids, nil
		}
		locator = page.Next
	}
}
