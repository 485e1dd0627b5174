// Package dataset loads and persists tables, picking the codec from the file
// extension.
package dataset

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/klytics/sheetbot/internal/formats/delimited"
	"github.com/klytics/sheetbot/internal/formats/xlsx"
	"github.com/klytics/sheetbot/internal/table"
)

// Format identifies a supported spreadsheet encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// FormatOf returns the format for a path's extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported file type %q (expected .xlsx or .csv)", filepath.Ext(path))
	}
}

// Supported reports whether the path has a loadable extension.
func Supported(path string) bool {
	_, err := FormatOf(path)
	return err == nil
}

// Load reads a table from disk. Nothing is cached; every call reads the file.
func Load(path string) (*table.Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatCSV:
		return delimited.ReadFile(path)
	default:
		return xlsx.ReadFile(path)
	}
}

// Save writes the table to path in the format of its extension. The bytes are
// encoded in memory and moved into place atomically, so a failed save never
// leaves a partial file at path.
func Save(t *table.Table, path string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch format {
	case FormatCSV:
		err = delimited.Write(&buf, t)
	default:
		err = xlsx.Write(&buf, t)
	}
	if err != nil {
		return err
	}

	if err := AtomicWrite(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	return nil
}
