// Package extractor locates listing fields on catalog pages.
package extractor

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"

	"github.com/aluiziolira/go-scrape-catalogs/models"
)

//go:embed rules.yaml
var defaultRules []byte

// FieldRule locates one field of a listing.
type FieldRule struct {
	Selector string `yaml:"selector"`
	Inner    string `yaml:"inner"`
	Parts    string `yaml:"parts"`
}

// SourceRules holds the field rules of one source. Item selects one
// element per listing; the field selectors are matched inside it.
type SourceRules struct {
	Item      string    `yaml:"item"`
	Title     FieldRule `yaml:"title"`
	Authors   FieldRule `yaml:"authors"`
	Publisher FieldRule `yaml:"publisher"`
	Price     FieldRule `yaml:"price"`
}

// Extractor turns page markup into aligned field sequences.
type Extractor struct {
	rules map[models.Source]SourceRules
}

// New builds an extractor from the embedded rules.
func New() (*Extractor, error) {
	return Parse(defaultRules)
}

// Load builds an extractor from a YAML rules file, or the embedded rules
// when path is empty.
func Load(path string) (*Extractor, error) {
	if path == "" {
		return New()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selector rules: %w", err)
	}
	return Parse(data)
}

// Parse builds an extractor from YAML rules.
func Parse(data []byte) (*Extractor, error) {
	raw := make(map[string]SourceRules)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode selector rules: %w", err)
	}

	rules := make(map[models.Source]SourceRules, len(raw))
	for name, r := range raw {
		source, err := models.ParseSource(name)
		if err != nil {
			return nil, fmt.Errorf("selector rules: %w", err)
		}
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("selector rules for %s: %w", source, err)
		}
		rules[source] = r
	}
	return &Extractor{rules: rules}, nil
}

func (r SourceRules) validate() error {
	if strings.TrimSpace(r.Item) == "" {
		return fmt.Errorf("item selector cannot be empty")
	}
	fields := map[string]FieldRule{
		"title":     r.Title,
		"authors":   r.Authors,
		"publisher": r.Publisher,
		"price":     r.Price,
	}
	for name, f := range fields {
		if strings.TrimSpace(f.Selector) == "" {
			return fmt.Errorf("%s selector cannot be empty", name)
		}
	}
	return nil
}

// Extract returns the field sequences found in body for source.
func (e *Extractor) Extract(source models.Source, body []byte) (models.FieldSet, error) {
	rules, ok := e.rules[source]
	if !ok {
		return models.FieldSet{}, fmt.Errorf("no selector rules for source %q", source)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return models.FieldSet{}, fmt.Errorf("parse html: %w", err)
	}

	var fields models.FieldSet
	doc.Find(rules.Item).Each(func(_ int, item *goquery.Selection) {
		fields.Titles = append(fields.Titles, text(item, rules.Title))
		fields.Authors = append(fields.Authors, authors(item, rules.Authors))
		fields.Publishers = append(fields.Publishers, text(item, rules.Publisher))
		fields.Prices = append(fields.Prices, text(item, rules.Price))
	})
	return fields, nil
}

// text returns the trimmed text of the first match of rule inside item, or
// "" when the listing lacks the element.
func text(item *goquery.Selection, rule FieldRule) string {
	s := item.Find(rule.Selector).First()
	if rule.Inner != "" {
		s = s.Find(rule.Inner).First()
	}
	return strings.TrimSpace(s.Text())
}

// authors returns the author names of one listing. A listing without an
// author element yields no names.
func authors(item *goquery.Selection, rule FieldRule) []string {
	container := item.Find(rule.Selector).First()
	if rule.Parts == "" {
		if name := strings.TrimSpace(container.Text()); name != "" {
			return []string{name}
		}
		return nil
	}

	var names []string
	container.Find(rule.Parts).Each(func(_ int, part *goquery.Selection) {
		names = append(names, strings.TrimSpace(part.Text()))
	})
	return names
}
