package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/bookcatalog/models"
)

// DualSink writes every record to a CSV file and a JSONL file side by side.
type DualSink struct {
	csv  *CSVSink
	json *JSONLSink
}

// NewDualSink opens both files; the CSV sink is released if the JSONL one fails.
func NewDualSink(csvFilename, jsonFilename string) (*DualSink, error) {
	csvSink, err := NewCSVSink(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("create csv sink: %w", err)
	}

	jsonSink, err := NewJSONLSink(jsonFilename)
	if err != nil {
		csvSink.Close()
		return nil, fmt.Errorf("create json sink: %w", err)
	}

	return &DualSink{csv: csvSink, json: jsonSink}, nil
}

// SaveHeader arms both sinks.
func (ds *DualSink) SaveHeader() error {
	if err := ds.csv.SaveHeader(); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	if err := ds.json.SaveHeader(); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// SaveItem writes the record to both sinks.
func (ds *DualSink) SaveItem(book *models.Book) error {
	if err := ds.csv.SaveItem(book); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	if err := ds.json.SaveItem(book); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// Close closes both sinks and reports every failure.
func (ds *DualSink) Close() error {
	var errs []error
	if err := ds.csv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("csv close: %w", err))
	}
	if err := ds.json.Close(); err != nil {
		errs = append(errs, fmt.Errorf("json close: %w", err))
	}
	return errors.Join(errs...)
}
