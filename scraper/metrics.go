package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scraper's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	PagesTotal      *prometheus.CounterVec
	RecordsTotal    *prometheus.CounterVec
	CrawlsTotal     *prometheus.CounterVec
	CrawlDuration   *prometheus.HistogramVec
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics registers the scraper collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "HTTP requests issued by the fetcher, by phase.",
		}, []string{"phase"}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "Latency of catalog page requests.",
			Buckets: prometheus.DefBuckets,
		}),
		PagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_pages_accepted_total",
			Help: "Catalog pages whose listings were processed.",
		}, []string{"source"}),
		RecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_records_total",
			Help: "Listings processed by outcome.",
		}, []string{"source", "outcome"}),
		CrawlsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_crawls_total",
			Help: "Finished crawls by result.",
		}, []string{"source", "result"}),
		CrawlDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_crawl_duration_seconds",
			Help:    "Wall time of a full source crawl.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"source"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_fetch_errors_total",
			Help: "Failed page fetches by error kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncRequest(phase string) {
	if m != nil {
		m.RequestsTotal.WithLabelValues(phase).Inc()
	}
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m != nil {
		m.RequestDuration.Observe(d.Seconds())
	}
}

// IncPage counts an accepted page.
func (m *Metrics) IncPage(source string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(source).Inc()
}

// IncRecord counts a listing outcome.
func (m *Metrics) IncRecord(source, outcome string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveCrawl records the result and duration of a crawl.
func (m *Metrics) ObserveCrawl(source, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.CrawlsTotal.WithLabelValues(source, result).Inc()
	m.CrawlDuration.WithLabelValues(source).Observe(d.Seconds())
}

// IncError counts a failed fetch of the given kind.
func (m *Metrics) IncError(kind string) {
	if m != nil {
		m.ErrorsTotal.WithLabelValues(kind).Inc()
	}
}
