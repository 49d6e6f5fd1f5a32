// Package schedule runs crawls of every configured source, once or on a
// cron schedule, never overlapping.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-catalogs/models"
	"github.com/aluiziolira/go-scrape-catalogs/scraper"
)

// ErrRunInProgress is returned when another run holds the run lock.
var ErrRunInProgress = errors.New("run already in progress")

// Crawler crawls a single target.
type Crawler interface {
	Run(ctx context.Context, target models.Target) (*models.CrawlReport, error)
}

// Runner crawls targets one after another.
type Runner struct {
	crawler Crawler
	targets []models.Target
	lock    Lock
}

// NewRunner returns a runner over targets. A nil lock defaults to a
// LocalLock.
func NewRunner(crawler Crawler, targets []models.Target, lock Lock) *Runner {
	if lock == nil {
		lock = &LocalLock{}
	}
	return &Runner{crawler: crawler, targets: targets, lock: lock}
}

// RunAll crawls every target in order. A failing target does not stop the
// following ones; all failures are joined into the returned error.
func (r *Runner) RunAll(ctx context.Context) ([]*models.CrawlReport, error) {
	acquired, err := r.lock.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := r.lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("release run lock", slog.Any("error", err))
		}
	}()

	start := time.Now()
	var (
		reports []*models.CrawlReport
		errs    []error
	)
	for _, target := range r.targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		report, err := r.crawler.Run(ctx, target)
		if report != nil {
			reports = append(reports, report)
		}
		switch {
		case err == nil:
		case errors.Is(err, scraper.ErrNotify):
			slog.Warn("completion notice failed",
				slog.String("source", string(target.Source)),
				slog.Any("error", err),
			)
			errs = append(errs, err)
		default:
			slog.Error("crawl failed",
				slog.String("source", string(target.Source)),
				slog.Any("error", err),
			)
			errs = append(errs, err)
		}
	}

	total := 0
	for _, report := range reports {
		total += report.Accepted
	}
	slog.Info("run finished",
		slog.Int("sources", len(r.targets)),
		slog.Int("completed", len(reports)),
		slog.Int("accepted", total),
		slog.Duration("duration", time.Since(start)),
	)
	return reports, errors.Join(errs...)
}
