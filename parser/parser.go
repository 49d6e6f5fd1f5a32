package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-catalogs/models"
)

// ErrInvalidPrice is returned when price text cannot be parsed.
var ErrInvalidPrice = errors.New("invalid price")

// Normalize converts one extracted listing into a canonical record.
func Normalize(source models.Source, raw models.RawListing) (*models.Record, error) {
	price, err := ParsePrice(raw.Price, source.PriceSuffixLen())
	if err != nil {
		return nil, err
	}

	record := &models.Record{
		Title:     NormalizeText(raw.Title),
		Authors:   NormalizeAuthors(raw.Authors),
		Publisher: NormalizeText(raw.Publisher),
		Price:     price,
		ScrapedAt: time.Now().UTC(),
		Source:    source,
	}
	if err := ValidateRecord(record); err != nil {
		return nil, err
	}
	return record, nil
}

// ValidateRecord ensures the normalizer produced the required fields.
func ValidateRecord(r *models.Record) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("record missing title")
	}
	if len(r.Authors) == 0 {
		return fmt.Errorf("record missing authors for %s", r.Title)
	}
	return nil
}

// ParsePrice strips a fixed-width currency suffix and parses the remaining
// Turkish-formatted amount ("1.249,00" -> 1249.00).
func ParsePrice(text string, suffixLen int) (float64, error) {
	text = strings.TrimSpace(text)
	if suffixLen > 0 {
		runes := []rune(text)
		if len(runes) <= suffixLen {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, text)
		}
		text = string(runes[:len(runes)-suffixLen])
	}

	// Separators are translated only after the suffix is gone.
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, ".", "")
	text = strings.ReplaceAll(text, ",", ".")

	// Only plain decimal digits reach ParseFloat, which would also accept
	// NaN, Inf, exponents and hex floats.
	if strings.IndexFunc(text, notDecimal) >= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, text)
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, text)
	}
	return value, nil
}

func notDecimal(r rune) bool {
	return (r < '0' || r > '9') && r != '.'
}

// NormalizeAuthors trims each author and falls back to the Unknown sentinel.
func NormalizeAuthors(raw []string) []string {
	authors := make([]string, 0, len(raw))
	for _, name := range raw {
		name = NormalizeText(name)
		if name == "" {
			continue
		}
		authors = append(authors, name)
	}
	if len(authors) == 0 {
		return []string{models.UnknownAuthor}
	}
	return authors
}

// NormalizeText trims surrounding whitespace.
func NormalizeText(text string) string {
	return strings.TrimSpace(text)
}
