// Package xlsx reads and writes .xlsx workbooks as typed tables.
package xlsx

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/sheetbot/internal/table"
)

// ReadFile loads the first worksheet of an .xlsx file. The first row is the header.
func ReadFile(path string) (*table.Table, error) {
	return ReadSheet(path, "")
}

// ReadSheet loads the named worksheet, or the first one when sheet is empty.
func ReadSheet(path, sheet string) (*table.Table, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s — check that the path is correct", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s — is this a valid .xlsx file? %w", path, err)
	}
	defer f.Close()

	return readTable(f, sheet)
}

// Read loads the first worksheet from r.
func Read(r io.Reader) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not read Excel data: %w", err)
	}
	defer f.Close()

	return readTable(f, "")
}

// ReadBytes loads the first worksheet from an in-memory workbook.
func ReadBytes(data []byte) (*table.Table, error) {
	return Read(bytes.NewReader(data))
}

// SheetNames lists the worksheets of an .xlsx file in workbook order.
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func readTable(f *excelize.File, sheet string) (*table.Table, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, fmt.Errorf("sheet %q not found — available sheets: %v", sheet, sheets)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("could not read sheet %q: %w", sheet, err)
	}

	rows = trimEmpty(rows)
	if len(rows) == 0 {
		return table.New(sheet), nil
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	header := make([]string, width)
	copy(header, rows[0])

	return table.FromRows(sheet, header, rows[1:]), nil
}

// trimEmpty drops trailing rows without any data.
func trimEmpty(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && isEmptyRow(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
