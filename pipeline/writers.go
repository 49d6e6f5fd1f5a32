package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-catalogs/models"
)

var csvHeader = []string{"source", "title", "author", "publisher", "price", "scraped_at"}

// exportFile is the buffered file shared by the export writers. It counts
// the bytes handed to the file so Validate can detect truncation.
type exportFile struct {
	path    string
	file    *os.File
	buf     *bufio.Writer
	written int64
}

func createExportFile(path string) (*exportFile, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	out := &exportFile{path: path, file: f}
	out.buf = bufio.NewWriter(writerFunc(func(p []byte) (int, error) {
		n, err := f.Write(p)
		out.written += int64(n)
		return n, err
	}))
	return out, nil
}

func (e *exportFile) close() error {
	if err := e.buf.Flush(); err != nil {
		e.file.Close()
		return fmt.Errorf("flush %s: %w", e.path, err)
	}
	return e.file.Close()
}

// validate checks that everything flushed so far is still on disk.
func (e *exportFile) validate() error {
	info, err := os.Stat(e.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", e.path, err)
	}
	if info.Size() < e.written {
		return fmt.Errorf("%s truncated: %d bytes on disk, %d written", e.path, info.Size(), e.written)
	}
	return nil
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// CSVWriter writes inserted records to CSV, one row per record. Authors
// are joined with "; ".
type CSVWriter struct {
	mu  sync.Mutex
	out *exportFile
	csv *csv.Writer
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	out, err := createExportFile(filename)
	if err != nil {
		return nil, err
	}
	cw := &CSVWriter{out: out, csv: csv.NewWriter(out.buf)}
	if err := cw.writeRows([][]string{csvHeader}); err != nil {
		out.file.Close()
		return nil, err
	}
	return cw, nil
}

// Write implements OutputWriter.
func (cw *CSVWriter) Write(records []*models.Record) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, csvRow(r))
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.writeRows(rows)
}

func (cw *CSVWriter) writeRows(rows [][]string) error {
	if err := cw.csv.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	if err := cw.out.buf.Flush(); err != nil {
		return fmt.Errorf("flush csv rows: %w", err)
	}
	return nil
}

// Close implements OutputWriter.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.out.close()
}

// Validate implements OutputWriter.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.out.validate()
}

func csvRow(r *models.Record) []string {
	return []string{
		string(r.Source),
		r.Title,
		strings.Join(r.Authors, "; "),
		r.Publisher,
		strconv.FormatFloat(r.Price, 'f', 2, 64),
		r.ScrapedAt.Format(time.RFC3339),
	}
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	mu  sync.Mutex
	out *exportFile
	enc *json.Encoder
}

// NewJSONWriter creates filename.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	out, err := createExportFile(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{out: out, enc: json.NewEncoder(out.buf)}, nil
}

// Write implements OutputWriter.
func (jw *JSONWriter) Write(records []*models.Record) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, r := range records {
		if err := jw.enc.Encode(r); err != nil {
			return fmt.Errorf("encode %q: %w", r.Title, err)
		}
	}
	if err := jw.out.buf.Flush(); err != nil {
		return fmt.Errorf("flush json records: %w", err)
	}
	return nil
}

// Close implements OutputWriter.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.out.close()
}

// Validate implements OutputWriter.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.out.validate()
}
