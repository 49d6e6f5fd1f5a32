package pipeline

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-catalogs/models"
)

// KeyLookup answers whether a natural key is already stored.
type KeyLookup interface {
	Exists(ctx context.Context, key models.NaturalKey) (bool, error)
}

// Gate decides whether a record already exists in storage. Keys known to
// exist are kept in a bounded LRU so repeated listings skip the store.
type Gate struct {
	lookup KeyLookup
	known  *lru.Cache[string, struct{}]
}

// NewGate builds a gate backed by lookup with room for size cached keys.
func NewGate(lookup KeyLookup, size int) (*Gate, error) {
	known, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create key cache: %w", err)
	}
	return &Gate{lookup: lookup, known: known}, nil
}

// IsDuplicate reports whether r must be skipped. Records whose only
// author is Unknown are always duplicates and never reach the store.
func (g *Gate) IsDuplicate(ctx context.Context, r *models.Record) (bool, error) {
	if r.HasUnknownAuthor() {
		return true, nil
	}

	key := r.Key().String()
	if g.known.Contains(key) {
		return true, nil
	}

	exists, err := g.lookup.Exists(ctx, r.Key())
	if err != nil {
		return false, fmt.Errorf("check existing record: %w", err)
	}
	if exists {
		g.known.Add(key, struct{}{})
	}
	return exists, nil
}

// Remember marks r as stored.
func (g *Gate) Remember(r *models.Record) {
	g.known.Add(r.Key().String(), struct{}{})
}
