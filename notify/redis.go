package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aluiziolira/go-scrape-catalogs/models"
)

// RedisStream appends one entry per finished crawl to a Redis stream.
type RedisStream struct {
	client    *redis.Client
	stream    string
	maxLength int64
}

// NewRedisStream connects to the Redis server at addr.
func NewRedisStream(addr string, db int, stream string, maxLength int64) *RedisStream {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &RedisStream{client: client, stream: stream, maxLength: maxLength}
}

// Notify implements Notifier.
func (r *RedisStream) Notify(ctx context.Context, report *models.CrawlReport) error {
	msg := Compose(report, "")
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"source":     string(report.Source),
			"url":        report.BaseURL,
			"accepted":   report.Accepted,
			"pages":      report.Pages,
			"duplicates": report.Duplicates,
			"reason":     string(report.Reason),
			"finished":   report.EndTime.UTC().Format(time.RFC3339),
			"subject":    msg.Subject,
			"body":       msg.Body,
		},
	}
	if r.maxLength > 0 {
		args.MaxLen = r.maxLength
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisStream) Close() error {
	return r.client.Close()
}
