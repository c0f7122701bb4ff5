// Package pager implements the incremental "load more" pagination controller
// used by listing views.
//
// A Controller starts from a first page that is already known, accumulates
// further pages fetched through a Fetcher, and stops once the source reports
// no next page. The page locator is opaque: the controller stores whatever
// the fetcher returned and hands it back verbatim on the next call.
package pager

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// Page is one page of results and the locator of the page after it.
// An empty Next means there are no further pages.
type Page[T any] struct {
	Items []T
	Next  string
}

// Fetcher resolves a page locator to the page it identifies.
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, locator string) (Page[T], error)
}

// FetchFunc adapts a plain function to the Fetcher interface.
type FetchFunc[T any] func(ctx context.Context, locator string) (Page[T], error)

// FetchPage calls f(ctx, locator).
func (f FetchFunc[T]) FetchPage(ctx context.Context, locator string) (Page[T], error) {
	return f(ctx, locator)
}

// FetchError is returned by LoadNext when the fetch for Locator failed.
// The controller state is unchanged when it is returned.
type FetchError struct {
	Locator string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("pager: fetch page %q: %v", e.Locator, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// State is the observable state of a Controller.
type State int

const (
	Idle State = iota
	Fetching
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Controller accumulates the items of a paginated source.
//
// It is safe for concurrent use. At most one fetch is in flight at a time;
// LoadNext calls that arrive while a fetch is running return immediately
// without fetching.
type Controller[T any] struct {
	fetcher Fetcher[T]
	pending atomic.Bool

	mu    sync.RWMutex
	items []T
	next  string
}

// New returns a Controller seeded with the first page.
func New[T any](fetcher Fetcher[T], first Page[T]) *Controller[T] {
	return &Controller[T]{
		fetcher: fetcher,
		items:   slices.Clone(first.Items),
		next:    first.Next,
	}
}

// LoadNext fetches the next page and appends its items, returning the items
// it appended.
//
// It is a no-op returning (nil, nil) when another fetch is already in flight
// or when there is no next page. On failure the items and next locator are
// left untouched and a *FetchError is returned; the call is not retried.
// If ctx is done by the time the fetch returns, the page is discarded and
// the context error is reported the same way.
func (c *Controller[T]) LoadNext(ctx context.Context) ([]T, error) {
	if !c.pending.CompareAndSwap(false, true) {
		return nil, nil
	}
	defer c.pending.Store(false)

	c.mu.RLock()
	locator := c.next
	c.mu.RUnlock()
	if locator == "" {
		return nil, nil
	}

	page, err := c.fetcher.FetchPage(ctx, locator)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, &FetchError{Locator: locator, Err: err}
	}

	c.mu.Lock()
	c.items = append(c.items, page.Items...)
	c.next = page.Next
	c.mu.Unlock()
	return page.Items, nil
}

// HasMore reports whether a next page locator is known.
func (c *Controller[T]) HasMore() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.next != ""
}

// Pending reports whether a fetch is in flight.
func (c *Controller[T]) Pending() bool {
	return c.pending.Load()
}

// Items returns a copy of the accumulated items in display order.
func (c *Controller[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Len returns the number of accumulated items.
func (c *Controller[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Next returns the locator of the next page, or "" when exhausted.
func (c *Controller[T]) Next() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.next
}

// State returns the current state of the controller.
func (c *Controller[T]) State() State {
	if c.Pending() {
		return Fetching
	}
	if !c.HasMore() {
		return Exhausted
	}
	return Idle
}
