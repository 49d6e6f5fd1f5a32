package models

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies one of the crawled catalog sites.
type Source string

const (
	// SourceKitapsepeti clamps out-of-range page numbers with a redirect.
	SourceKitapsepeti Source = "kitapsepeti"
	// SourceKitapyurdu serves short pages once the results run out.
	SourceKitapyurdu Source = "kitapyurdu"
)

// StopStrategy selects how the end of a catalog is detected.
type StopStrategy int

const (
	// StopRedirectClamp compares the requested page to the server-confirmed one.
	StopRedirectClamp StopStrategy = iota
	// StopShortPages counts pages with fewer listings than the page limit.
	StopShortPages
)

// Sources lists every supported source in crawl order.
var Sources = []Source{SourceKitapyurdu, SourceKitapsepeti}

// ParseSource validates a source name.
func ParseSource(name string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown source %q", name)
	}
	return s, nil
}

// Valid reports whether s is a supported source.
func (s Source) Valid() bool {
	return s == SourceKitapsepeti || s == SourceKitapyurdu
}

// PageParam is the query parameter carrying the page number.
func (s Source) PageParam() string {
	if s == SourceKitapsepeti {
		return "pg"
	}
	return "page"
}

// Stop returns the termination rule of the source.
func (s Source) Stop() StopStrategy {
	if s == SourceKitapsepeti {
		return StopRedirectClamp
	}
	return StopShortPages
}

// PriceSuffixLen is the width of the currency suffix trailing the price text.
func (s Source) PriceSuffixLen() int {
	if s == SourceKitapsepeti {
		return 3
	}
	return 0
}

// Title returns the display name used in notifications.
func (s Source) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Target is a source together with its configured search URL.
type Target struct {
	Source  Source
	BaseURL string
}

// TerminationReason explains why a crawl ended.
type TerminationReason string

const (
	// ReasonExhausted means the stop condition detected the last page.
	ReasonExhausted TerminationReason = "exhausted"
	// ReasonPageLimit means the configured page cap was reached.
	ReasonPageLimit TerminationReason = "page_limit"
)

// CrawlState is the mutable state of a single crawl.
type CrawlState struct {
	Source                 Source
	PageNumber             int
	RepeatedShortPageCount int
	AcceptedRecordCount    int
}

// NewCrawlState returns the initial state for a crawl of source.
func NewCrawlState(source Source) *CrawlState {
	return &CrawlState{
		Source:              source,
		PageNumber:          1,
		AcceptedRecordCount: 1,
	}
}

// CrawlReport summarises a finished crawl.
type CrawlReport struct {
	Source     Source
	BaseURL    string
	Accepted   int
	Pages      int
	Duplicates int
	Suppressed int
	Invalid    int
	Reason     TerminationReason
	StartTime  time.Time
	EndTime    time.Time
}

// Duration returns how long the crawl took.
func (r *CrawlReport) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
