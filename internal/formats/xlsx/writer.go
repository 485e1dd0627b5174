package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/sheetbot/internal/table"
)

// Write encodes the table as a single-sheet workbook. Typed cells keep their
// type; nil cells are left blank.
func Write(w io.Writer, t *table.Table) error {
	f, err := build(t)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("could not encode workbook: %w", err)
	}
	return nil
}

// WriteFile creates a new .xlsx file from the table.
func WriteFile(t *table.Table, path string) error {
	f, err := build(t)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	return nil
}

func build(t *table.Table) (*excelize.File, error) {
	f := excelize.NewFile()

	sheetName := t.Name
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	defaultSheet := f.GetSheetName(0)
	if sheetName != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("could not rename sheet: %w", err)
		}
	}

	for colIdx, name := range t.Names() {
		if err := setCell(f, sheetName, colIdx, 0, name); err != nil {
			f.Close()
			return nil, err
		}
	}

	for rowIdx := 0; rowIdx < t.NumRows(); rowIdx++ {
		for colIdx, v := range t.Row(rowIdx) {
			if v == nil {
				continue
			}
			if err := setCell(f, sheetName, colIdx, rowIdx+1, v); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	return f, nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cellName, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return fmt.Errorf("invalid cell coordinates: %w", err)
	}
	if err := f.SetCellValue(sheet, cellName, v); err != nil {
		return fmt.Errorf("could not set cell %s: %w", cellName, err)
	}
	return nil
}
