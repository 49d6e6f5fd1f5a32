package pipeline

import (
	"errors"

	"github.com/aluiziolira/go-scrape-catalogs/models"
)

// MultiWriter sends every batch to each of its writers. A failing writer
// does not keep the others from receiving the batch.
type MultiWriter []OutputWriter

// NewDualWriter writes CSV to csvFilename and JSONL to jsonFilename.
func NewDualWriter(csvFilename, jsonFilename string) (MultiWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, err
	}
	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		return nil, errors.Join(err, csvWriter.Close())
	}
	return MultiWriter{csvWriter, jsonWriter}, nil
}

// Write implements OutputWriter.
func (m MultiWriter) Write(records []*models.Record) error {
	return m.each(func(w OutputWriter) error { return w.Write(records) })
}

// Close implements OutputWriter.
func (m MultiWriter) Close() error {
	return m.each(OutputWriter.Close)
}

// Validate implements OutputWriter.
func (m MultiWriter) Validate() error {
	return m.each(OutputWriter.Validate)
}

func (m MultiWriter) each(fn func(OutputWriter) error) error {
	var errs []error
	for _, w := range m {
		if err := fn(w); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
