package pubfront

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/eringen/pubfront/pager"
)

// ContentCache serves the first listing page and posts from memory for the
// revalidate TTL, refetching from the Source once it expires. Concurrent
// refetches of the same key are coalesced. When the Source fails, the last
// good value is served: from memory, else from the Store snapshot.
type ContentCache struct {
	src     Source
	store   *Store
	ttl     time.Duration
	log     zerolog.Logger
	metrics *Metrics
	now     func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	listing *cachedListing
	posts   map[string]cachedPost
}

type cachedListing struct {
	page    pager.Page[PostSummary]
	fetched time.Time
}

type cachedPost struct {
	post    Post
	fetched time.Time
}

// NewContentCache creates a ContentCache over src. store may be nil, in which
// case no snapshot is kept.
func NewContentCache(src Source, store *Store, ttl time.Duration, log zerolog.Logger, m *Metrics) *ContentCache {
	return &ContentCache{
		src:     src,
		store:   store,
		ttl:     ttl,
		log:     log,
		metrics: m,
		now:     time.Now,
		posts:   make(map[string]cachedPost),
	}
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ContentCache) Invalidate() {
	c.mu.Lock()
	c.listing = nil
	c.posts = make(map[string]cachedPost)
	c.mu.Unlock()
}

func (c *ContentCache) fresh(fetched time.Time) bool {
	return c.now().Sub(fetched) < c.ttl
}

// FirstPage returns the first listing page.
func (c *ContentCache) FirstPage(ctx context.Context) (pager.Page[PostSummary], error) {
	c.mu.RLock()
	l := c.listing
	c.mu.RUnlock()
	if l != nil && c.fresh(l.fetched) {
		c.metrics.CacheServe("listing", "fresh")
		return clonePage(l.page), nil
	}

	v, err, _ := c.group.Do("listing", func() (any, error) {
		page, err := c.src.FirstPage(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.listing = &cachedListing{page: page, fetched: c.now()}
		c.mu.Unlock()
		if c.store != nil {
			if err := c.store.SaveListing(page); err != nil {
				c.log.Warn().Err(err).Msg("save listing snapshot")
			}
		}
		return page, nil
	})
	if err == nil {
		c.metrics.CacheServe("listing", "fresh")
		return clonePage(v.(pager.Page[PostSummary])), nil
	}

	if l != nil {
		c.log.Warn().Err(err).Time("fetched", l.fetched).Msg("serving stale listing")
		c.metrics.CacheServe("listing", "stale")
		return clonePage(l.page), nil
	}
	if c.store != nil {
		page, serr := c.store.LoadListing()
		if serr == nil {
			c.log.Warn().Err(err).Msg("serving listing snapshot")
			c.metrics.CacheServe("listing", "snapshot")
			return page, nil
		}
		if !errors.Is(serr, ErrNotFound) {
			c.log.Error().Err(serr).Msg("load listing snapshot")
		}
	}
	return pager.Page[PostSummary]{}, err
}

// Post returns the post with the given uid. A post the Source reports as
// missing is dropped from the cache and ErrNotFound is returned.
func (c *ContentCache) Post(ctx context.Context, uid string) (Post, error) {
	c.mu.RLock()
	cp, ok := c.posts[uid]
	c.mu.RUnlock()
	if ok && c.fresh(cp.fetched) {
		c.metrics.CacheServe("post", "fresh")
		return cp.post, nil
	}

	v, err, _ := c.group.Do("post:"+uid, func() (any, error) {
		p, err := c.src.Post(context.WithoutCancel(ctx), uid)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.posts[uid] = cachedPost{post: p, fetched: c.now()}
		c.mu.Unlock()
		if c.store != nil {
			if err := c.store.SavePost(p); err != nil {
				c.log.Warn().Err(err).Str("uid", uid).Msg("save post snapshot")
			}
		}
		return p, nil
	})
	if err == nil {
		c.metrics.CacheServe("post", "fresh")
		return v.(Post), nil
	}
	if errors.Is(err, ErrNotFound) {
		c.mu.Lock()
		delete(c.posts, uid)
		c.mu.Unlock()
		return Post{}, ErrNotFound
	}

	if ok {
		c.log.Warn().Err(err).Str("uid", uid).Msg("serving stale post")
		c.metrics.CacheServe("post", "stale")
		return cp.post, nil
	}
	if c.store != nil {
		p, serr := c.store.GetPost(uid)
		if serr == nil {
			c.log.Warn().Err(err).Str("uid", uid).Msg("serving post snapshot")
			c.metrics.CacheServe("post", "snapshot")
			return p, nil
		}
		if !errors.Is(serr, ErrNotFound) {
			c.log.Error().Err(serr).Str("uid", uid).Msg("load post snapshot")
		}
	}
	return Post{}, err
}

// UIDs returns every post uid from the Source, falling back to the uids of
// stored snapshots when the Source fails.
func (c *ContentCache) UIDs(ctx context.Context) ([]string, error) {
	v, err, _ := c.group.Do("uids", func() (any, error) {
		return c.src.UIDs(context.WithoutCancel(ctx))
	})
	if err == nil {
		return slices.Clone(v.([]string)), nil
	}
	if c.store != nil {
		uids, serr := c.store.ListPostUIDs()
		if serr == nil && len(uids) > 0 {
			c.log.Warn().Err(err).Msg("serving stored uids")
			return uids, nil
		}
	}
	return nil, err
}

func clonePage(p pager.Page[PostSummary]) pager.Page[PostSummary] {
	return pager.Page[PostSummary]{Items: slices.Clone(p.Items), Next: p.Next}
}
