// Package store persists catalog records in MongoDB, one collection per
// source inside a single database.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aluiziolira/go-scrape-catalogs/models"
)

// ErrStoreUnavailable is returned when the database cannot be reached at
// session start.
var ErrStoreUnavailable = errors.New("store unavailable")

// Options configure a Connector.
type Options struct {
	URI      string
	Database string
	// Timeout bounds connect, ping and every single operation.
	Timeout time.Duration
}

// Connector opens per-crawl sessions.
type Connector struct {
	opts Options
}

// NewConnector returns a connector for opts.
func NewConnector(opts Options) *Connector {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Connector{opts: opts}
}

// Open connects, verifies the server is reachable and returns a session on
// the collection named after source. The caller must Close the session.
func (c *Connector) Open(ctx context.Context, source models.Source) (*Session, error) {
	connectCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(c.opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("%w: ping mongodb: %w", ErrStoreUnavailable, err)
	}

	s := &Session{
		client:  client,
		coll:    client.Database(c.opts.Database).Collection(string(source)),
		timeout: c.opts.Timeout,
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		slog.Warn("create record index", slog.String("collection", string(source)), slog.Any("error", err))
	}
	slog.Debug("store session opened", slog.String("database", c.opts.Database), slog.String("collection", string(source)))
	return s, nil
}

// Session reads and writes the records of one source.
type Session struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

// NewSession wraps an existing collection. Close leaves the client
// connected.
func NewSession(coll *mongo.Collection, timeout time.Duration) *Session {
	return &Session{coll: coll, timeout: timeout}
}

// EnsureIndexes creates the natural-key index used by Exists.
func (s *Session) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "title", Value: 1},
			{Key: "author", Value: 1},
			{Key: "publisher", Value: 1},
		},
		Options: options.Index().SetName("natural_key"),
	})
	return err
}

// Exists reports whether a record with the exact natural key is stored.
// Authors must match in order.
func (s *Session) Exists(ctx context.Context, key models.NaturalKey) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.coll.CountDocuments(ctx, keyFilter(key), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count %q: %w", key.Title, err)
	}
	return n > 0, nil
}

// Insert stores record.
func (s *Session) Insert(ctx context.Context, record *models.Record) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.coll.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("insert into %s: %w", s.coll.Name(), err)
	}
	return nil
}

// Close disconnects the session's client, if it owns one.
func (s *Session) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func keyFilter(key models.NaturalKey) bson.D {
	authors := key.Authors
	if authors == nil {
		authors = []string{}
	}
	return bson.D{
		{Key: "title", Value: key.Title},
		{Key: "author", Value: authors},
		{Key: "publisher", Value: key.Publisher},
	}
}
