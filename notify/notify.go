// Package notify delivers crawl completion notices.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-catalogs/models"
)

// Notifier announces a finished crawl.
type Notifier interface {
	Notify(ctx context.Context, report *models.CrawlReport) error
}

// Message is a rendered completion notice.
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// Compose renders the completion notice for report.
func Compose(report *models.CrawlReport, recipient string) Message {
	return Message{
		Recipient: recipient,
		Subject:   report.Source.Title() + " Scraping Finished.",
		Body: fmt.Sprintf("Scraping finished! Number of books: %d scraped from %s.",
			report.Accepted, report.BaseURL),
	}
}

// Multi fans a report out to every notifier. All notifiers are tried; the
// failures are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, report *models.CrawlReport) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards notifications.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, *models.CrawlReport) error { return nil }
