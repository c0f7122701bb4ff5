package pubfront

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/pubfront/pager"
)

// DefaultMaxFeedViews caps how many listing views are held at once.
const DefaultMaxFeedViews = 10000

var (
	// ErrViewNotFound is returned for unknown, closed or expired views.
	ErrViewNotFound = errors.New("pubfront: feed view not found")
	// ErrViewForbidden is returned when a view is accessed by a visitor
	// other than the one it was opened for.
	ErrViewForbidden = errors.New("pubfront: feed view belongs to another visitor")
)

// FeedViews holds the pagination state of open listing views. Each view
// owns one pager.Controller, is bound to the visitor that opened it and
// expires after ttl without use.
type FeedViews struct {
	fetcher pager.Fetcher[PostSummary]
	ttl     time.Duration
	max     int
	now     func() time.Time

	mu    sync.Mutex
	views map[string]*feedView

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type feedView struct {
	owner    string
	ctrl     *pager.Controller[PostSummary]
	lastSeen time.Time
}

// NewFeedViews creates a registry whose controllers fetch through fetcher.
// A background goroutine removes expired views until Stop is called.
func NewFeedViews(fetcher pager.Fetcher[PostSummary], ttl time.Duration, max int) *FeedViews {
	if max <= 0 {
		max = DefaultMaxFeedViews
	}
	r := &FeedViews{
		fetcher: fetcher,
		ttl:     ttl,
		max:     max,
		now:     time.Now,
		views:   make(map[string]*feedView),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.sweepLoop(sweepInterval(ttl))
	return r
}

func sweepInterval(ttl time.Duration) time.Duration {
	d := ttl / 4
	if d < time.Second {
		d = time.Second
	}
	return d
}

func (r *FeedViews) sweepLoop(every time.Duration) {
	defer close(r.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Stop ends the sweeper goroutine and waits for it to exit.
func (r *FeedViews) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

// Open registers a new view for owner starting from first and returns its id.
// When the registry is full the least recently used view is dropped.
func (r *FeedViews) Open(owner string, first pager.Page[PostSummary]) (string, *pager.Controller[PostSummary]) {
	id := uuid.NewString()
	ctrl := pager.New(r.fetcher, first)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) >= r.max {
		r.evictOldestLocked()
	}
	r.views[id] = &feedView{owner: owner, ctrl: ctrl, lastSeen: r.now()}
	return id, ctrl
}

func (r *FeedViews) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, v := range r.views {
		if oldestID == "" || v.lastSeen.Before(oldest) {
			oldestID, oldest = id, v.lastSeen
		}
	}
	delete(r.views, oldestID)
}

// Get returns the controller of view id and marks the view as used.
func (r *FeedViews) Get(id, owner string) (*pager.Controller[PostSummary], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	now := r.now()
	if r.expired(v, now) {
		delete(r.views, id)
		return nil, ErrViewNotFound
	}
	if v.owner != owner {
		return nil, ErrViewForbidden
	}
	v.lastSeen = now
	return v.ctrl, nil
}

// Close drops view id.
func (r *FeedViews) Close(id, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	if !ok {
		return ErrViewNotFound
	}
	if v.owner != owner {
		return ErrViewForbidden
	}
	delete(r.views, id)
	return nil
}

// Sweep removes expired views and reports how many were removed.
// Views with a fetch in flight are kept.
func (r *FeedViews) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, v := range r.views {
		if r.expired(v, now) && !v.ctrl.Pending() {
			delete(r.views, id)
			n++
		}
	}
	return n
}

// Len reports the number of open views.
func (r *FeedViews) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *FeedViews) expired(v *feedView, now time.Time) bool {
	return now.Sub(v.lastSeen) >= r.ttl
}
