package extractor

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/aluiziolira/go-scrape-catalogs/models"
)

const kitapsepetiPage = `<html><body>
<div class="productItem">
  <a class="fl col-12 text-description detailLink" href="/p/1"> Python Crash Course </a>
  <a id="productModelText" href="/a/1"> Eric Matthes </a>
  <a class="col col-12 text-title mt" href="/y/1">No Starch</a>
  <div class="col col-12 currentPrice">1.249,00TL</div>
</div>
<div class="productItem">
  <a class="fl col-12 text-description detailLink" href="/p/2">Anonim Python</a>
  <a id="productModelText" href="/a/2"></a>
  <a class="col col-12 text-title mt" href="/y/2">Kodlab</a>
  <div class="col col-12 currentPrice">149,90 TL</div>
</div>
</body></html>`

const kitapyurduPage = `<html><body>
<div class="product-cr">
  <div class="name ellipsis"><a href="/k/1"><span> Fluent Python </span></a></div>
  <div class="author compact ellipsis">
    <a class="alt" href="/y/1">Luciano Ramalho</a>
    <a class="alt" href="/y/2"> Ceviren Kisi </a>
  </div>
  <div class="publisher"><span><a href="/p/1"><span>O'Reilly</span></a></span></div>
  <div class="price-new"><span class="value">1.005,75</span> TL</div>
</div>
<div class="product-cr">
  <div class="name ellipsis"><a href="/k/2"><span>Python 101</span></a></div>
  <div class="author compact ellipsis"></div>
  <div class="publisher"><span><a href="/p/2"><span>Pusula</span></a></span></div>
  <div class="price-new"><span class="value">99,90</span> TL</div>
</div>
</body></html>`

func TestExtractKitapsepeti(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fields, err := e.Extract(models.SourceKitapsepeti, []byte(kitapsepetiPage))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !fields.Aligned() || fields.Len() != 2 {
		t.Fatalf("fields not aligned: %+v", fields)
	}

	want := models.FieldSet{
		Titles:     []string{"Python Crash Course", "Anonim Python"},
		Authors:    [][]string{{"Eric Matthes"}, nil},
		Publishers: []string{"No Starch", "Kodlab"},
		Prices:     []string{"1.249,00TL", "149,90 TL"},
	}
	if !reflect.DeepEqual(fields, want) {
		t.Fatalf("Extract() = %+v, want %+v", fields, want)
	}
}

func TestExtractKitapyurdu(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fields, err := e.Extract(models.SourceKitapyurdu, []byte(kitapyurduPage))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !fields.Aligned() || fields.Len() != 2 {
		t.Fatalf("fields not aligned: %+v", fields)
	}

	first := fields.Listing(0)
	if first.Title != "Fluent Python" {
		t.Errorf("title = %q", first.Title)
	}
	if !reflect.DeepEqual(first.Authors, []string{"Luciano Ramalho", "Ceviren Kisi"}) {
		t.Errorf("authors = %q", first.Authors)
	}
	if first.Publisher != "O'Reilly" {
		t.Errorf("publisher = %q", first.Publisher)
	}
	if first.Price != "1.005,75" {
		t.Errorf("price = %q", first.Price)
	}
	if got := fields.Listing(1).Authors; len(got) != 0 {
		t.Errorf("second listing authors = %q, want none", got)
	}
}

func TestExtractKeepsFieldsWithTheirListing(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// The first listing has no author element at all.
	page := `<html><body>
<div class="productItem">
  <a class="fl col-12 text-description detailLink">Book 1</a>
  <a class="col col-12 text-title mt">Kodlab</a>
  <div class="col col-12 currentPrice">10,00 TL</div>
</div>
<div class="productItem">
  <a class="fl col-12 text-description detailLink">Book 2</a>
  <a id="productModelText">Author 2</a>
  <a class="col col-12 text-title mt">Kodlab</a>
  <div class="col col-12 currentPrice">20,00 TL</div>
</div>
<div class="productItem">
  <a class="fl col-12 text-description detailLink">Book 3</a>
  <a id="productModelText">Author 3</a>
  <div class="col col-12 currentPrice">30,00 TL</div>
</div>
</body></html>`

	fields, err := e.Extract(models.SourceKitapsepeti, []byte(page))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !fields.Aligned() || fields.Len() != 3 {
		t.Fatalf("fields not aligned: %+v", fields)
	}

	want := []models.RawListing{
		{Title: "Book 1", Publisher: "Kodlab", Price: "10,00 TL"},
		{Title: "Book 2", Authors: []string{"Author 2"}, Publisher: "Kodlab", Price: "20,00 TL"},
		{Title: "Book 3", Authors: []string{"Author 3"}, Price: "30,00 TL"},
	}
	for i, w := range want {
		if got := fields.Listing(i); !reflect.DeepEqual(got, w) {
			t.Errorf("Listing(%d) = %+v, want %+v", i, got, w)
		}
	}
}

func TestExtractEmptyPage(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fields, err := e.Extract(models.SourceKitapyurdu, []byte("<html><body></body></html>"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if fields.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", fields.Len())
	}
}

func TestExtractUnknownSource(t *testing.T) {
	e, err := Parse([]byte(`kitapyurdu:
  item: "div"
  title: {selector: "h1"}
  authors: {selector: "h2"}
  publisher: {selector: "h3"}
  price: {selector: "h4"}
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, err := e.Extract(models.SourceKitapsepeti, []byte("<html></html>")); err == nil {
		t.Fatal("expected error for source without rules")
	}
}

func TestParseRejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name    string
		rules   string
		wantErr string
	}{
		{
			name:    "unknown source",
			rules:   "amazon:\n  title: {selector: h1}\n",
			wantErr: "unknown source",
		},
		{
			name:    "missing selector",
			rules:   "kitapyurdu:\n  title: {selector: h1}\n",
			wantErr: "selector cannot be empty",
		},
		{
			name:    "missing item selector",
			rules:   "kitapyurdu:\n  title: {selector: h1}\n  authors: {selector: h2}\n  publisher: {selector: h3}\n  price: {selector: h4}\n",
			wantErr: "item selector cannot be empty",
		},
		{
			name:    "malformed yaml",
			rules:   "kitapyurdu: [",
			wantErr: "decode selector rules",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.rules)); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	rules := `kitapsepeti:
  item: "article"
  title: {selector: "h2.title"}
  authors: {selector: "p.by", parts: "a"}
  publisher: {selector: "p.pub"}
  price: {selector: "p.price"}
`
	if err := os.WriteFile(path, []byte(rules), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	e, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	page := `<article><h2 class="title">Book</h2><p class="by"><a>A</a><a>B</a></p><p class="pub">P</p><p class="price">10,00 TL</p></article>`
	fields, err := e.Extract(models.SourceKitapsepeti, []byte(page))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := fields.Listing(0).Authors; !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("authors = %q", got)
	}
}
