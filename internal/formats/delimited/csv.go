// Package delimited reads and writes comma-separated tables.
package delimited

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klytics/sheetbot/internal/table"
)

// ReadFile loads a CSV file. The first record is the header.
func ReadFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s — check that the path is correct", path)
		}
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses CSV records from r into a table.
func Read(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return table.New("Sheet1"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid CSV header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV data: %w", err)
	}

	return table.FromRows("Sheet1", header, rows), nil
}

// Write encodes the table as CSV with a header record.
func Write(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("could not write CSV: %w", err)
	}
	return nil
}

// String renders the table as CSV text.
func String(t *table.Table) string {
	var b strings.Builder
	_ = Write(&b, t)
	return b.String()
}
