package mtf

import (
	"encoding/csv"
	stdErrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
)

// ErrNothingToExport is returned by Export for an empty record set. No file is written.
var ErrNothingToExport = stdErrors.New("nothing to export")

// Export writes records to path as CSV with the Fields header.
func Export(records []Record, path string) error {
	if len(records) == 0 {
		return ErrNothingToExport
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open export file: %w", err)
	}

	if err := WriteCSV(file, records); err != nil {
		_ = file.Close()
		return err
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}

	return nil
}

// WriteCSV writes the header and one row per record. An absent searchId is written as an empty field.
func WriteCSV(w io.Writer, records []Record) error {
	if len(records) == 0 {
		return ErrNothingToExport
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(Fields); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, rec := range records {
		searchID := ""
		if rec.SearchID != nil {
			searchID = *rec.SearchID
		}

		if err := writer.Write([]string{rec.CompanyName, rec.SymbolISIN, rec.Leverage.String(), searchID}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}

// ReadCSV parses a file produced by WriteCSV.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Fields)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, name := range Fields {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected csv column %d: %q", i, header[i])
		}
	}

	var records []Record
	for {
		row, err := reader.Read()
		if stdErrors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		leverage, err := decimal.NewFromString(row[2])
		if err != nil {
			return nil, fmt.Errorf("parse leverage %q: %w", row[2], err)
		}

		rec := Record{CompanyName: row[0], SymbolISIN: row[1], Leverage: leverage}
		if row[3] != "" {
			id := row[3]
			rec.SearchID = &id
		}
		records = append(records, rec)
	}
}
