package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/aluiziolira/go-scrape-catalogs/config"
	"github.com/aluiziolira/go-scrape-catalogs/models"
	"github.com/aluiziolira/go-scrape-catalogs/pipeline"
)

const (
	storeCloseTimeout = 10 * time.Second
	// shortPageStrikes is the number of short pages, in total, that end a
	// short-page crawl.
	shortPageStrikes = 2
)

// PageFetcher retrieves catalog pages.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
	Resolve(ctx context.Context, pageURL string) (*url.URL, error)
}

// Extractor locates listing fields in a page body.
type Extractor interface {
	Extract(source models.Source, body []byte) (models.FieldSet, error)
}

// Store is a per-crawl store session.
type Store interface {
	pipeline.RecordStore
	Close(ctx context.Context) error
}

// StoreOpener opens a store session for one source.
type StoreOpener func(ctx context.Context, source models.Source) (Store, error)

// Notifier announces finished crawls.
type Notifier interface {
	Notify(ctx context.Context, report *models.CrawlReport) error
}

// Deps are the collaborators of a Scraper. Notifier, Export and Metrics
// are optional.
type Deps struct {
	Fetcher   PageFetcher
	Extractor Extractor
	OpenStore StoreOpener
	Notifier  Notifier
	Export    pipeline.OutputWriter
	Metrics   *Metrics
}

// Scraper crawls one source at a time, page by page, until the source's
// stop condition holds.
type Scraper struct {
	cfg       *config.Config
	fetcher   PageFetcher
	extractor Extractor
	openStore StoreOpener
	notifier  Notifier
	export    pipeline.OutputWriter
	Metrics   *Metrics
}

// NewScraper builds a scraper from cfg and its collaborators.
func NewScraper(cfg *config.Config, deps Deps) (*Scraper, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if deps.OpenStore == nil {
		return nil, errors.New("store opener is required")
	}
	return &Scraper{
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		extractor: deps.Extractor,
		openStore: deps.OpenStore,
		notifier:  deps.Notifier,
		export:    deps.Export,
		Metrics:   deps.Metrics,
	}, nil
}

// Run crawls target to completion and notifies once it is done.
//
// Fetch, extraction and store failures abort the crawl without a
// notification. A failed notification still returns the report, together
// with an error wrapping ErrNotify.
func (s *Scraper) Run(ctx context.Context, target models.Target) (*models.CrawlReport, error) {
	start := time.Now()
	source := target.Source
	logger := slog.With(slog.String("source", string(source)))

	if !source.Valid() {
		return nil, fmt.Errorf("unknown source %q", source)
	}
	base, err := url.Parse(target.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	limit := 0
	if source.Stop() == models.StopShortPages {
		if limit, err = pageLimit(base); err != nil {
			return nil, err
		}
	}

	store, err := s.openStore(ctx, source)
	if err != nil {
		s.Metrics.ObserveCrawl(string(source), "failed", time.Since(start))
		return nil, fmt.Errorf("open store for %s: %w", source, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeCloseTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("close store", slog.Any("error", err))
		}
	}()

	p, err := pipeline.NewPipeline(store, s.cfg.DedupeCacheSize, s.export)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	logger.Info("crawl started", slog.String("url", target.BaseURL))

	state := models.NewCrawlState(source)
	report := &models.CrawlReport{
		Source:    source,
		BaseURL:   target.BaseURL,
		StartTime: start,
	}

	reason, err := s.crawl(ctx, base, limit, state, p, report, logger)

	report.EndTime = time.Now()
	report.Accepted = state.AcceptedRecordCount - 1
	report.Duplicates = p.Count(pipeline.OutcomeDuplicate)
	report.Suppressed = p.Count(pipeline.OutcomeSuppressed)
	report.Invalid = p.Count(pipeline.OutcomeInvalid)

	if err != nil {
		s.Metrics.ObserveCrawl(string(source), "failed", report.Duration())
		logger.Error("crawl aborted",
			slog.Int("page", state.PageNumber),
			slog.Int("accepted", report.Accepted),
			slog.String("category", errorTypeLabel(err)),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("crawl %s: %w", source, err)
	}
	report.Reason = reason

	logger.Info("crawl finished",
		slog.Int("accepted", report.Accepted),
		slog.Int("pages", report.Pages),
		slog.Int("duplicates", report.Duplicates),
		slog.Int("suppressed", report.Suppressed),
		slog.Int("invalid", report.Invalid),
		slog.String("reason", string(reason)),
		slog.Duration("duration", report.Duration()),
	)

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, report); err != nil {
			s.Metrics.ObserveCrawl(string(source), "notify_failed", report.Duration())
			return report, fmt.Errorf("%w: %w", ErrNotify, err)
		}
	}
	s.Metrics.ObserveCrawl(string(source), "ok", report.Duration())
	return report, nil
}

func (s *Scraper) crawl(
	ctx context.Context,
	base *url.URL,
	limit int,
	state *models.CrawlState,
	p *pipeline.Pipeline,
	report *models.CrawlReport,
	logger *slog.Logger,
) (models.TerminationReason, error) {
	source := state.Source
	param := source.PageParam()

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if s.cfg.MaxPages > 0 && report.Pages >= s.cfg.MaxPages {
			logger.Info("page limit reached", slog.Int("max_pages", s.cfg.MaxPages))
			return models.ReasonPageLimit, nil
		}

		pageURL := withPage(base, param, state.PageNumber)
		logger.Debug("fetching page", slog.Int("page", state.PageNumber), slog.String("url", pageURL))

		page, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return "", err
		}
		logger.Debug("page fetched",
			slog.Int("page", state.PageNumber),
			slog.Int("status", page.StatusCode),
			slog.Int("bytes", len(page.Body)),
		)
		fields, err := s.extractor.Extract(source, page.Body)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", state.PageNumber, err)
		}

		last := false
		switch source.Stop() {
		case models.StopRedirectClamp:
			confirmed, err := s.confirmedPage(ctx, pageURL, param)
			if err != nil {
				return "", err
			}
			if state.PageNumber > confirmed {
				logger.Info("page clamped by server",
					slog.Int("requested", state.PageNumber),
					slog.Int("confirmed", confirmed),
				)
				return models.ReasonExhausted, nil
			}
		case models.StopShortPages:
			if fields.Len() < limit {
				state.RepeatedShortPageCount++
				logger.Debug("short page",
					slog.Int("page", state.PageNumber),
					slog.Int("items", fields.Len()),
					slog.Int("limit", limit),
					slog.Int("strikes", state.RepeatedShortPageCount),
				)
				last = state.RepeatedShortPageCount >= shortPageStrikes
			}
		}

		if err := s.processPage(ctx, state, fields, p, logger); err != nil {
			return "", err
		}
		report.Pages++
		s.Metrics.IncPage(string(source))

		if last {
			return models.ReasonExhausted, nil
		}
		state.PageNumber++
	}
}

func (s *Scraper) processPage(
	ctx context.Context,
	state *models.CrawlState,
	fields models.FieldSet,
	p *pipeline.Pipeline,
	logger *slog.Logger,
) error {
	// Fields of unequal length cannot be paired with their listing.
	if !fields.Aligned() {
		logger.Warn("misaligned page skipped",
			slog.Int("page", state.PageNumber),
			slog.Int("titles", len(fields.Titles)),
			slog.Int("authors", len(fields.Authors)),
			slog.Int("publishers", len(fields.Publishers)),
			slog.Int("prices", len(fields.Prices)),
		)
		return nil
	}

	for i := 0; i < fields.Len(); i++ {
		res, err := p.Process(ctx, state.Source, fields.Listing(i))
		if err != nil {
			return err
		}
		s.Metrics.IncRecord(string(state.Source), string(res.Outcome))

		switch res.Outcome {
		case pipeline.OutcomeInserted:
			logger.Info("record accepted",
				slog.Int("ordinal", state.AcceptedRecordCount),
				slog.String("title", res.Record.Title),
				slog.Any("authors", res.Record.Authors),
				slog.String("publisher", res.Record.Publisher),
				slog.Float64("price", res.Record.Price),
			)
			state.AcceptedRecordCount++
		case pipeline.OutcomeDuplicate:
			logger.Info("already stored", slog.String("title", res.Record.Title))
		case pipeline.OutcomeSuppressed:
			logger.Debug("unattributed listing skipped", slog.String("title", res.Record.Title))
		case pipeline.OutcomeInvalid:
			logger.Warn("invalid listing skipped",
				slog.Int("page", state.PageNumber),
				slog.Int("position", i),
				slog.Any("error", res.Err),
			)
		}
	}
	return nil
}

// confirmedPage resolves pageURL and returns the page number the server
// settled on. A resolved URL without the parameter is page 1.
func (s *Scraper) confirmedPage(ctx context.Context, pageURL, param string) (int, error) {
	resolved, err := s.fetcher.Resolve(ctx, pageURL)
	if err != nil {
		return 0, err
	}
	value := resolved.Query().Get(param)
	if value == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("resolved url %s: invalid %s value %q", resolved, param, value)
	}
	return n, nil
}

func withPage(base *url.URL, param string, page int) string {
	u := *base
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func pageLimit(base *url.URL) (int, error) {
	raw := base.Query().Get("limit")
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("base url %s: invalid limit %q", base, raw)
	}
	return limit, nil
}
