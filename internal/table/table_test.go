package table

import (
	"strings"
	"testing"
)

func sample() *Table {
	return FromRows("Sheet1", []string{"name", "score", ""}, [][]string{
		{"a", "1", "x"},
		{"b", "2.5"},
		{"c", "", "TRUE"},
	})
}

func TestFromRowsInfersKinds(t *testing.T) {
	tbl := sample()
	if tbl.NumRows() != 3 || tbl.NumCols() != 3 {
		t.Fatalf("expected 3x3, got %dx%d", tbl.NumRows(), tbl.NumCols())
	}
	if got := tbl.Column("name").Kind; got != KindString {
		t.Errorf("name kind = %s, want string", got)
	}
	score := tbl.Column("score")
	if score.Kind != KindFloat {
		t.Errorf("score kind = %s, want float", score.Kind)
	}
	if score.Values[0] != float64(1) {
		t.Errorf("int cell should widen to float, got %#v", score.Values[0])
	}
	if score.Values[2] != nil {
		t.Errorf("empty cell should be nil, got %#v", score.Values[2])
	}
	if tbl.Names()[2] != "Unnamed: 2" {
		t.Errorf("blank header should be named, got %q", tbl.Names()[2])
	}
	if got := tbl.Column("Unnamed: 2").Kind; got != KindString {
		t.Errorf("mixed string/bool column kind = %s, want string", got)
	}
}

func TestSetColumnLengthCheck(t *testing.T) {
	tbl := sample()
	if err := tbl.SetColumn(NewColumn("bad", []any{1})); err == nil {
		t.Error("expected length mismatch error")
	}
	if err := tbl.SetColumn(NewColumn("score", []any{1, 2, 3})); err != nil {
		t.Fatal(err)
	}
	if tbl.Column("score").Kind != KindInt {
		t.Error("replaced column should be int")
	}
	if tbl.NumCols() != 3 {
		t.Error("replacing must not append")
	}
}

func TestRenameAndDrop(t *testing.T) {
	tbl := sample()
	if err := tbl.Rename("score", "name"); err == nil {
		t.Error("rename onto an existing column should fail")
	}
	if err := tbl.Rename("score", "points"); err != nil {
		t.Fatal(err)
	}
	if !tbl.Drop("points") || tbl.Drop("points") {
		t.Error("drop should succeed once")
	}
}

func TestHeadTailTake(t *testing.T) {
	tbl := sample()
	if tbl.Head(2).NumRows() != 2 || tbl.Head(10).NumRows() != 3 {
		t.Error("head bounds")
	}
	tail := tbl.Tail(1)
	if tail.Column("name").Values[0] != "c" {
		t.Errorf("tail = %v", tail.Column("name").Values)
	}
	rev := tbl.Take([]int{2, 0})
	if rev.Column("name").Values[0] != "c" || rev.Column("name").Values[1] != "a" {
		t.Errorf("take order = %v", rev.Column("name").Values)
	}
}

func TestCloneIsDeep(t *testing.T) {
	tbl := sample()
	c := tbl.Clone()
	c.Column("name").Values[0] = "z"
	if tbl.Column("name").Values[0] != "a" {
		t.Error("clone shares storage with original")
	}
}

func TestAppendRow(t *testing.T) {
	tbl := FromRows("s", []string{"n"}, [][]string{{"1"}})
	if err := tbl.AppendRow([]any{2.5}); err != nil {
		t.Fatal(err)
	}
	if tbl.Column("n").Kind != KindFloat {
		t.Errorf("kind after append = %s", tbl.Column("n").Kind)
	}
	if err := tbl.AppendRow([]any{1, 2}); err == nil {
		t.Error("expected width error")
	}
}

func TestConvert(t *testing.T) {
	c := NewColumn("v", []any{"1", "2.9", "x"})
	c.Convert(KindInt)
	if c.Values[0] != int64(1) || c.Values[1] != int64(2) || c.Values[2] != nil {
		t.Errorf("convert to int = %#v", c.Values)
	}
	k, ok := ParseKind("Integer")
	if !ok || k != KindInt {
		t.Error("ParseKind(Integer)")
	}
}

func TestRecordsAndText(t *testing.T) {
	tbl := FromRows("s", []string{"name", "ok"}, [][]string{{"a", "true"}})
	rec := tbl.Records()
	if len(rec) != 2 || rec[1][1] != "True" {
		t.Errorf("records = %v", rec)
	}
	text := tbl.Text()
	if !strings.Contains(text, "name") || !strings.Contains(text, "0") {
		t.Errorf("text = %q", text)
	}
	if got := tbl.Describe(); got != "name: string\nok: bool\n" {
		t.Errorf("describe = %q", got)
	}
}
