package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klytics/sheetbot/internal/table"
)

func scores() *table.Table {
	return table.FromRows("Sheet1", []string{"name", "score"}, [][]string{{"a", "1"}, {"b", "2"}})
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.xlsx", "out.csv"} {
		path := filepath.Join(dir, name)
		if err := Save(scores(), path); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", name, err)
		}
		if got.NumRows() != 2 {
			t.Errorf("%s: expected 2 rows, got %d", name, got.NumRows())
		}
		if v := got.Column("score").Values[1]; v != int64(2) {
			t.Errorf("%s: expected score 2, got %v", name, v)
		}
	}
}

func TestSaveUnsupportedLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := Save(scores(), path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no file should be written for a failed save")
	}
}

func TestAtomicWriteReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.csv")
	if err := AtomicWrite(path, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWrite(path, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("expected new content, got %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestFormatOf(t *testing.T) {
	cases := map[string]Format{"a.XLSX": FormatXLSX, "b.xlsm": FormatXLSX, "c.csv": FormatCSV}
	for path, want := range cases {
		got, err := FormatOf(path)
		if err != nil || got != want {
			t.Errorf("FormatOf(%q) = %q, %v", path, got, err)
		}
	}
	if Supported("notes.txt") {
		t.Error("txt should not be supported")
	}
}
