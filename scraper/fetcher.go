package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-catalogs/config"
	"github.com/gocolly/colly/v2"
)

// Page is the raw result of one page request.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher issues single page requests through a shared colly backend.
type Fetcher struct {
	collector *colly.Collector
	metrics   *Metrics
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config, metrics *Metrics) *Fetcher {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &Fetcher{
		collector: collector,
		metrics:   metrics,
	}
}

// Fetch retrieves pageURL, following redirects.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	c := f.collector.Clone()

	var (
		page     *Page
		fetchErr error
		start    time.Time
	)

	c.OnRequest(func(r *colly.Request) {
		start = time.Now()
		f.metrics.IncRequest("started")
	})

	c.OnResponse(func(r *colly.Response) {
		f.metrics.ObserveDuration(time.Since(start))
		f.metrics.IncRequest("completed")
		page = &Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = newFetchError(pageURL, statusCode, err)
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(pageURL)
	}()

	// colly has no per-request context; after cancellation the abandoned
	// Visit finishes on its own within the collector's request timeout and
	// its callbacks write only to this call's locals.
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch %s canceled: %w", pageURL, ctx.Err())
	case err := <-done:
		if fetchErr == nil && err != nil {
			fetchErr = newFetchError(pageURL, 0, err)
		}
		if fetchErr == nil && page == nil {
			fetchErr = newFetchError(pageURL, 0, errors.New("no response received"))
		}
		if fetchErr != nil {
			f.metrics.IncError(errorTypeLabel(fetchErr))
			return nil, fetchErr
		}
		return page, nil
	}
}

// Resolve requests pageURL and returns the URL the server settled on after
// redirects.
func (f *Fetcher) Resolve(ctx context.Context, pageURL string) (*url.URL, error) {
	page, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	resolved, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("parse resolved url %q: %w", page.URL, err)
	}
	return resolved, nil
}
