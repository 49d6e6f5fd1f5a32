package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aluiziolira/go-scrape-catalogs/models"
)

func testReport(source models.Source, accepted int) *models.CrawlReport {
	return &models.CrawlReport{
		Source:   source,
		BaseURL:  "https://www.example.com/search?q=Python",
		Accepted: accepted,
		Pages:    3,
		Reason:   models.ReasonExhausted,
		EndTime:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCompose(t *testing.T) {
	tests := []struct {
		source  models.Source
		subject string
	}{
		{source: models.SourceKitapsepeti, subject: "Kitapsepeti Scraping Finished."},
		{source: models.SourceKitapyurdu, subject: "Kitapyurdu Scraping Finished."},
	}

	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			msg := Compose(testReport(tt.source, 42), "ops@example.com")
			if msg.Subject != tt.subject {
				t.Fatalf("subject = %q, want %q", msg.Subject, tt.subject)
			}
			want := "Scraping finished! Number of books: 42 scraped from https://www.example.com/search?q=Python."
			if msg.Body != want {
				t.Fatalf("body = %q, want %q", msg.Body, want)
			}
			if msg.Recipient != "ops@example.com" {
				t.Fatalf("recipient = %q", msg.Recipient)
			}
		})
	}
}

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) Notify(context.Context, *models.CrawlReport) error {
	r.calls++
	return r.err
}

func TestMultiTriesEveryNotifier(t *testing.T) {
	boom := errors.New("smtp down")
	first := &recordingNotifier{err: boom}
	second := &recordingNotifier{}

	err := Multi{first, second}.Notify(context.Background(), testReport(models.SourceKitapyurdu, 1))
	if !errors.Is(err, boom) {
		t.Fatalf("Notify() error = %v, want %v", err, boom)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", first.calls, second.calls)
	}

	if err := (Multi{second, Nop{}}).Notify(context.Background(), testReport(models.SourceKitapyurdu, 1)); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
}

func TestSMTPMessage(t *testing.T) {
	s := NewSMTP(SMTPConfig{
		Host:      "smtp.example.com",
		Port:      587,
		Username:  "scraper@example.com",
		Recipient: "ops@example.com",
	})

	msg, err := s.message(Compose(testReport(models.SourceKitapsepeti, 20), s.cfg.Recipient))
	if err != nil {
		t.Fatalf("message() error = %v", err)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	raw := buf.String()
	for _, want := range []string{
		"Subject: Kitapsepeti Scraping Finished.",
		"scraper@example.com",
		"ops@example.com",
		"Number of books: 20",
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("message missing %q:\n%s", want, raw)
		}
	}
}

func TestSMTPRejectsInvalidRecipient(t *testing.T) {
	s := NewSMTP(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "scraper@example.com", Recipient: "not an address"})
	if err := s.Notify(context.Background(), testReport(models.SourceKitapyurdu, 1)); err == nil {
		t.Fatal("expected recipient error")
	}
}

func TestRedisStreamNotify(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	stream := "test_scraper_crawls"
	client.Del(ctx, stream)
	defer client.Del(ctx, stream)

	n := NewRedisStream("localhost:6379", 0, stream, 100)
	defer n.Close()

	if err := n.Notify(ctx, testReport(models.SourceKitapyurdu, 7)); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	entries, err := client.XRange(ctx, stream, "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	values := entries[0].Values
	if values["source"] != "kitapyurdu" || values["accepted"] != "7" {
		t.Fatalf("values = %v", values)
	}
}
