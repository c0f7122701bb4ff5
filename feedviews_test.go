package pubfront

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/eringen/pubfront/pager"
)

// Idle keep-alive connections from the httptest servers of other tests in
// this package may still be winding down.
var leakOpts = []goleak.Option{
	goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
}

func newTestViews(t *testing.T, src *fakeSource, ttl time.Duration, max int) (*FeedViews, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewFeedViews(Fetcher(src), ttl, max)
	r.now = clock.Now
	t.Cleanup(r.Stop)
	return r, clock
}

func firstPage(t *testing.T, src *fakeSource) pager.Page[PostSummary] {
	t.Helper()
	p, err := src.FirstPage(context.Background())
	require.NoError(t, err)
	return p
}

func TestFeedViewsOpenAndLoad(t *testing.T) {
	src := newFakeSource(3, 2)
	r, _ := newTestViews(t, src, time.Minute, 0)

	id, ctrl := r.Open("alice", firstPage(t, src))
	require.NotEmpty(t, id)
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(id, "alice")
	require.NoError(t, err)
	assert.Same(t, ctrl, got)

	added, err := got.LoadNext(context.Background())
	require.NoError(t, err)
	assert.Len(t, added, 2)
	assert.Equal(t, 4, got.Len())
	assert.Equal(t, "page-3", got.Next())
}

func TestFeedViewsUnknownAndForbidden(t *testing.T) {
	src := newFakeSource(2, 1)
	r, _ := newTestViews(t, src, time.Minute, 0)

	_, err := r.Get("missing", "alice")
	assert.ErrorIs(t, err, ErrViewNotFound)

	id, _ := r.Open("alice", firstPage(t, src))
	_, err = r.Get(id, "mallory")
	assert.ErrorIs(t, err, ErrViewForbidden)
	assert.ErrorIs(t, r.Close(id, "mallory"), ErrViewForbidden)
	assert.Equal(t, 1, r.Len())
}

func TestFeedViewsClose(t *testing.T) {
	src := newFakeSource(2, 1)
	r, _ := newTestViews(t, src, time.Minute, 0)

	id, _ := r.Open("alice", firstPage(t, src))
	require.NoError(t, r.Close(id, "alice"))
	assert.ErrorIs(t, r.Close(id, "alice"), ErrViewNotFound)

	_, err := r.Get(id, "alice")
	assert.ErrorIs(t, err, ErrViewNotFound)
	assert.Zero(t, r.Len())
}

func TestFeedViewsExpire(t *testing.T) {
	src := newFakeSource(2, 1)
	r, clock := newTestViews(t, src, time.Minute, 0)

	stale, _ := r.Open("alice", firstPage(t, src))
	clock.Advance(40 * time.Second)
	live, _ := r.Open("bob", firstPage(t, src))

	// Using a view keeps it alive.
	clock.Advance(30 * time.Second)
	_, err := r.Get(live, "bob")
	require.NoError(t, err)

	assert.Equal(t, 1, r.Sweep())
	_, err = r.Get(stale, "alice")
	assert.ErrorIs(t, err, ErrViewNotFound)

	clock.Advance(59 * time.Second)
	_, err = r.Get(live, "bob")
	assert.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = r.Get(live, "bob")
	assert.ErrorIs(t, err, ErrViewNotFound)
	assert.Zero(t, r.Len())
}

func TestFeedViewsSweepKeepsPendingViews(t *testing.T) {
	src := newFakeSource(2, 1)
	src.gate = make(chan struct{})
	r, clock := newTestViews(t, src, time.Minute, 0)

	id, ctrl := r.Open("alice", firstPage(t, src))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = ctrl.LoadNext(context.Background())
	}()
	require.Eventually(t, ctrl.Pending, time.Second, time.Millisecond)

	clock.Advance(2 * time.Minute)
	assert.Zero(t, r.Sweep())

	close(src.gate)
	wg.Wait()
	assert.Equal(t, 1, r.Sweep())
	_, err := r.Get(id, "alice")
	assert.ErrorIs(t, err, ErrViewNotFound)
}

func TestFeedViewsEvictLeastRecentlyUsed(t *testing.T) {
	src := newFakeSource(2, 1)
	r, clock := newTestViews(t, src, time.Hour, 2)

	a, _ := r.Open("alice", firstPage(t, src))
	clock.Advance(time.Second)
	b, _ := r.Open("bob", firstPage(t, src))
	clock.Advance(time.Second)
	_, err := r.Get(a, "alice")
	require.NoError(t, err)
	clock.Advance(time.Second)

	c, _ := r.Open("carol", firstPage(t, src))
	assert.Equal(t, 2, r.Len())

	_, err = r.Get(b, "bob")
	assert.ErrorIs(t, err, ErrViewNotFound)
	_, err = r.Get(a, "alice")
	assert.NoError(t, err)
	_, err = r.Get(c, "carol")
	assert.NoError(t, err)
}

func TestFeedViewsStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	r := NewFeedViews(Fetcher(newFakeSource(1, 1)), 10*time.Millisecond, 0)
	r.Stop()
	r.Stop()
}

func TestFeedViewsSweeperRemovesExpired(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	src := newFakeSource(2, 1)
	r := NewFeedViews(Fetcher(src), 20*time.Millisecond, 0)
	defer r.Stop()

	r.Open("alice", firstPage(t, src))
	// sweepInterval clamps to one second.
	assert.Eventually(t, func() bool { return r.Len() == 0 }, 3*time.Second, 50*time.Millisecond)
}
