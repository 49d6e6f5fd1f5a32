// Package pipeline normalizes, de-duplicates and stores extracted listings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-scrape-catalogs/models"
	"github.com/aluiziolira/go-scrape-catalogs/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// RecordStore is the persistence side of the pipeline.
type RecordStore interface {
	KeyLookup
	Insert(ctx context.Context, record *models.Record) error
}

// OutputWriter defines the interface for exporting inserted records.
type OutputWriter interface {
	Write(records []*models.Record) error
	Close() error
	Validate() error
}

// Outcome is what happened to one listing.
type Outcome string

const (
	OutcomeInserted   Outcome = "inserted"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeInvalid    Outcome = "invalid"
)

// Result describes a processed listing. Err is set for invalid listings.
type Result struct {
	Outcome Outcome
	Record  *models.Record
	Err     error
}

// Pipeline runs listings of one crawl through normalizer, gate and store.
// It is not safe for concurrent use; a crawl processes listings in order.
type Pipeline struct {
	store  RecordStore
	gate   *Gate
	export OutputWriter

	counts map[Outcome]int
	closed bool
}

// NewPipeline builds a pipeline writing to store. export may be nil.
func NewPipeline(store RecordStore, cacheSize int, export OutputWriter) (*Pipeline, error) {
	gate, err := NewGate(store, cacheSize)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		store:  store,
		gate:   gate,
		export: export,
		counts: make(map[Outcome]int),
	}, nil
}

// Process normalizes raw, checks it against the gate and inserts it when new.
// Only store failures are returned as errors.
func (p *Pipeline) Process(ctx context.Context, source models.Source, raw models.RawListing) (Result, error) {
	if p.closed {
		return Result{}, ErrPipelineClosed
	}

	record, err := parser.Normalize(source, raw)
	if err != nil {
		p.counts[OutcomeInvalid]++
		return Result{Outcome: OutcomeInvalid, Err: err}, nil
	}

	duplicate, err := p.gate.IsDuplicate(ctx, record)
	if err != nil {
		return Result{}, err
	}
	if duplicate {
		outcome := OutcomeDuplicate
		if record.HasUnknownAuthor() {
			outcome = OutcomeSuppressed
		}
		p.counts[outcome]++
		return Result{Outcome: outcome, Record: record}, nil
	}

	if err := p.store.Insert(ctx, record); err != nil {
		return Result{}, fmt.Errorf("insert %q: %w", record.Title, err)
	}
	p.gate.Remember(record)
	p.counts[OutcomeInserted]++

	if p.export != nil {
		if err := p.export.Write([]*models.Record{record}); err != nil {
			slog.Error("export record", slog.String("title", record.Title), slog.Any("error", err))
		}
	}
	return Result{Outcome: OutcomeInserted, Record: record}, nil
}

// Close prevents further processing. The store and export writer are owned
// by the caller.
func (p *Pipeline) Close() {
	p.closed = true
}

// Count returns how many listings ended with outcome.
func (p *Pipeline) Count(outcome Outcome) int {
	return p.counts[outcome]
}
