package pubfront

import (
	"errors"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/eringen/pubfront/cms"
)

// Metrics records content API and listing activity in Prometheus.
type Metrics struct {
	Registry *prom.Registry

	cmsRequests *prom.CounterVec
	cmsDuration *prom.HistogramVec
	feedLoads   *prom.CounterVec
	cacheServes *prom.CounterVec
}

// NewMetrics constructs and registers the metrics on reg, or on a fresh
// registry when reg is nil. activeViews is sampled at scrape time.
func NewMetrics(reg *prom.Registry, activeViews func() int) *Metrics {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	m := &Metrics{
		Registry: reg,
		cmsRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pubfront",
			Name:      "cms_requests_total",
			Help:      "Content API requests by operation and result",
		}, []string{"operation", "result"}),
		cmsDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "pubfront",
			Name:      "cms_request_duration_seconds",
			Help:      "Content API request latency",
			Buckets:   prom.DefBuckets,
		}, []string{"operation"}),
		feedLoads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pubfront",
			Name:      "feed_loads_total",
			Help:      "Load-more attempts by outcome",
		}, []string{"result"}),
		cacheServes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pubfront",
			Name:      "content_cache_serves_total",
			Help:      "Content cache reads by kind and freshness",
		}, []string{"kind", "freshness"}),
	}
	views := prom.NewGaugeFunc(prom.GaugeOpts{
		Namespace: "pubfront",
		Name:      "feed_views_active",
		Help:      "Listing views currently holding pagination state",
	}, func() float64 {
		if activeViews == nil {
			return 0
		}
		return float64(activeViews())
	})
	reg.MustRegister(m.cmsRequests, m.cmsDuration, m.feedLoads, m.cacheServes, views)
	reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return m
}

// ObserveCMS is a cms.Observer.
func (m *Metrics) ObserveCMS(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.cmsDuration.WithLabelValues(op).Observe(d.Seconds())
	m.cmsRequests.WithLabelValues(op, cmsResult(err)).Inc()
}

func cmsResult(err error) string {
	var apiErr *cms.APIError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, cms.ErrNotFound):
		return "not_found"
	case errors.Is(err, cms.ErrUnavailable):
		return "breaker_open"
	case errors.Is(err, cms.ErrMalformedResponse):
		return "malformed"
	case errors.As(err, &apiErr):
		return "api_error"
	default:
		return "error"
	}
}

// FeedLoad counts one load-more attempt. result is one of "loaded",
// "noop", "failed", "gone", "forbidden" or "limited".
func (m *Metrics) FeedLoad(result string) {
	if m == nil {
		return
	}
	m.feedLoads.WithLabelValues(result).Inc()
}

// CacheServe counts a content cache read. freshness is "fresh", "stale"
// or "snapshot".
func (m *Metrics) CacheServe(kind, freshness string) {
	if m == nil {
		return
	}
	m.cacheServes.WithLabelValues(kind, freshness).Inc()
}
