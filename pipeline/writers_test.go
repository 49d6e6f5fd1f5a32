package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-catalogs/models"
)

func testRecord() *models.Record {
	return &models.Record{
		Title:     "Learning Python",
		Authors:   []string{"Mark Lutz", "David Ascher"},
		Publisher: "O'Reilly",
		Price:     1249,
		ScrapedAt: time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC),
		Source:    models.SourceKitapsepeti,
	}
}

func TestCSVWriterRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "records.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter() error = %v", err)
	}
	if err := writer.Write([]*models.Record{testRecord()}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := [][]string{
		csvHeader,
		{"kitapsepeti", "Learning Python", "Mark Lutz; David Ascher", "O'Reilly", "1249.00", "2025-11-04T13:09:13Z"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(rows), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Fatalf("row %d col %d = %q, want %q", i, j, rows[i][j], want[i][j])
			}
		}
	}
}

func TestJSONWriterLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("NewJSONWriter() error = %v", err)
	}
	second := testRecord()
	second.Title = "Python Cookbook"
	if err := writer.Write([]*models.Record{testRecord(), second}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	var titles []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var decoded models.Record
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if len(decoded.Authors) != 2 || decoded.Source != models.SourceKitapsepeti {
			t.Fatalf("unexpected decoded record: %+v", decoded)
		}
		titles = append(titles, decoded.Title)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if len(titles) != 2 || titles[1] != "Python Cookbook" {
		t.Fatalf("titles = %v", titles)
	}
}

func TestWriterValidateDetectsRemovedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("NewJSONWriter() error = %v", err)
	}
	defer writer.Close()

	if err := writer.Validate(); err != nil {
		t.Fatalf("empty export should validate, got %v", err)
	}
	if err := writer.Write([]*models.Record{testRecord()}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := writer.Validate(); err == nil {
		t.Fatal("expected error for removed export file")
	}
}

func TestDualWriter(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "records.csv")
	jsonPath := filepath.Join(dir, "records.jsonl")

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("NewDualWriter() error = %v", err)
	}
	if err := writer.Write([]*models.Record{testRecord()}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, path := range []string{csvPath, jsonPath} {
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Fatalf("%s missing or empty", path)
		}
	}
}

func TestMultiWriterReachesEveryWriter(t *testing.T) {
	diskFull := errors.New("disk full")
	failing := &mockWriter{writeErr: diskFull}
	healthy := &mockWriter{}

	err := MultiWriter{failing, healthy}.Write([]*models.Record{testRecord()})
	if !errors.Is(err, diskFull) {
		t.Fatalf("Write() error = %v, want %v", err, diskFull)
	}
	if healthy.totalWritten() != 1 {
		t.Fatalf("healthy writer got %d records, want 1", healthy.totalWritten())
	}
}
