// Package models defines data structures for the scraper.
package models

import (
	"strings"
	"time"
)

// UnknownAuthor is the single author recorded when a listing names none.
const UnknownAuthor = "Unknown"

// Record is the canonical book entry persisted to the document store.
type Record struct {
	Title     string    `bson:"title" csv:"title" json:"title"`
	Authors   []string  `bson:"author" csv:"author" json:"author"`
	Publisher string    `bson:"publisher" csv:"publisher" json:"publisher"`
	Price     float64   `bson:"price" csv:"price" json:"price"`
	ScrapedAt time.Time `bson:"scraped_at" csv:"scraped_at" json:"scraped_at"`
	Source    Source    `bson:"-" csv:"source" json:"source"`
}

// Key returns the natural key of the record. Price is not part of it.
func (r *Record) Key() NaturalKey {
	return NaturalKey{Title: r.Title, Authors: r.Authors, Publisher: r.Publisher}
}

// HasUnknownAuthor reports whether the record carries only the sentinel author.
func (r *Record) HasUnknownAuthor() bool {
	return len(r.Authors) == 1 && r.Authors[0] == UnknownAuthor
}

// NaturalKey identifies a record for de-duplication.
type NaturalKey struct {
	Title     string
	Authors   []string
	Publisher string
}

// String encodes the key with separators that do not occur in page text.
func (k NaturalKey) String() string {
	return k.Title + "\x1f" + strings.Join(k.Authors, "\x1e") + "\x1f" + k.Publisher
}

// RawListing is one listing as extracted from the page, before normalization.
type RawListing struct {
	Title     string
	Authors   []string
	Publisher string
	Price     string
}

// FieldSet holds the aligned field sequences extracted from one page.
type FieldSet struct {
	Titles     []string
	Authors    [][]string
	Publishers []string
	Prices     []string
}

// Len returns the number of complete listings, i.e. the shortest sequence.
func (f FieldSet) Len() int {
	n := len(f.Titles)
	for _, l := range []int{len(f.Authors), len(f.Publishers), len(f.Prices)} {
		if l < n {
			n = l
		}
	}
	return n
}

// Aligned reports whether all four sequences have the same length.
func (f FieldSet) Aligned() bool {
	n := len(f.Titles)
	return len(f.Authors) == n && len(f.Publishers) == n && len(f.Prices) == n
}

// Listing zips the sequences at position i.
func (f FieldSet) Listing(i int) RawListing {
	return RawListing{
		Title:     f.Titles[i],
		Authors:   f.Authors[i],
		Publisher: f.Publishers[i],
		Price:     f.Prices[i],
	}
}
