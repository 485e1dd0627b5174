package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/klytics/sheetbot/internal/table"
)

func scores() *table.Table {
	return table.FromRows("Sheet1", []string{"name", "score"}, [][]string{{"a", "1"}, {"b", "2"}})
}

func run(t *testing.T, code string) *table.Table {
	t.Helper()
	out, err := Run(context.Background(), scores(), code, Options{})
	if err != nil {
		t.Fatalf("Run(%q): %v", code, err)
	}
	return out
}

func TestDoubleScore(t *testing.T) {
	in := scores()
	out, err := Run(context.Background(), in, "df['score'] = df['score'] * 2", Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := out.Column("score").Values
	if got[0] != int64(2) || got[1] != int64(4) {
		t.Errorf("score = %v, want [2 4]", got)
	}
	if out.Column("name").Values[1] != "b" {
		t.Error("name column should be untouched")
	}
	if in.Column("score").Values[0] != int64(1) {
		t.Error("input table must not be modified")
	}
}

func TestUndefinedNameFails(t *testing.T) {
	for _, code := range []string{
		"open('/etc/passwd')",
		"pd.read_csv('x.csv')",
		"import os",
		"load('x.star', 'y')",
	} {
		if _, err := Run(context.Background(), scores(), code, Options{}); err == nil {
			t.Errorf("%q: expected failure", code)
		}
	}
}

func TestUndefinedNameReportsFragmentLine(t *testing.T) {
	_, err := Run(context.Background(), scores(), "df['x'] = 1\nos.remove('f')", Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "line 2") || !strings.Contains(err.Error(), "os") {
		t.Errorf("error = %q", err)
	}
}

func TestRebindingDf(t *testing.T) {
	out := run(t, "df = df[df['score'].gt(1)]")
	if out.NumRows() != 1 || out.Column("name").Values[0] != "b" {
		t.Errorf("filtered table = %v", out.Records())
	}

	out = run(t, "df = df.drop(columns=['name'])")
	if out.NumCols() != 1 || out.Names()[0] != "score" {
		t.Errorf("columns = %v", out.Names())
	}
}

func TestRebindingToNonFrameFails(t *testing.T) {
	_, err := Run(context.Background(), scores(), "df = 3", Options{})
	if err == nil || !strings.Contains(err.Error(), "frame") {
		t.Errorf("expected frame error, got %v", err)
	}
}

func TestRuntimeErrorFails(t *testing.T) {
	for _, code := range []string{
		"df['name'] = df['name'] * 2",
		"df['score'] = [1, 2, 3]",
		"x = 1 // 0",
		"df['missing']",
	} {
		if _, err := Run(context.Background(), scores(), code, Options{}); err == nil {
			t.Errorf("%q: expected failure", code)
		}
	}
}

func TestColumnDivisionByZeroFails(t *testing.T) {
	for _, code := range []string{
		"df['score'] = df['score'] / 0",
		"df['score'] = df['score'] // 0",
		"df['score'] = df['score'] % 0",
		"df['score'] = 10 / (df['score'] - 1)",
	} {
		_, err := Run(context.Background(), scores(), code, Options{})
		if err == nil || !strings.Contains(err.Error(), "division by zero") {
			t.Errorf("%q: err = %v, want division by zero", code, err)
		}
	}
}

func TestColumnDivisionSkipsEmptyCells(t *testing.T) {
	in := table.FromRows("Sheet1", []string{"score"}, [][]string{{"4"}, {""}})
	out, err := Run(context.Background(), in, "df['score'] = df['score'] / 2", Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := out.Column("score").Values
	if got[0] != 2.0 || got[1] != nil {
		t.Errorf("score = %v, want [2 <nil>]", got)
	}
}

func TestStepBudget(t *testing.T) {
	_, err := Run(context.Background(), scores(), "while True:\n    pass", Options{MaxSteps: 1000})
	if err == nil {
		t.Fatal("expected step budget error")
	}
}

func TestContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Run(ctx, scores(), "while True:\n    pass", Options{MaxSteps: 1 << 62})
	if err == nil {
		t.Fatal("expected cancellation")
	}
}

func TestPrintIsRouted(t *testing.T) {
	var lines []string
	_, err := Run(context.Background(), scores(), "print(len(df), df.shape)", Options{Print: func(msg string) { lines = append(lines, msg) }})
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != "2 (2, 2)" {
		t.Errorf("print output = %q", lines)
	}
}

func TestEmptyFragmentKeepsTable(t *testing.T) {
	out := run(t, "  \n")
	if out.NumRows() != 2 || out.NumCols() != 2 {
		t.Errorf("table changed: %v", out.Records())
	}
}

func TestFrameOperations(t *testing.T) {
	out := run(t, `
df['bonus'] = 10
df['total'] = df['score'] + df['bonus']
df.rename(columns={'total': 'sum'}, inplace=True)
df = df.sort_values('sum', ascending=False)
df['label'] = df['name'].upper() + '!'
`)
	if got := out.Names(); strings.Join(got, ",") != "name,score,bonus,sum,label" {
		t.Errorf("columns = %v", got)
	}
	if out.Column("sum").Values[0] != int64(12) {
		t.Errorf("sorted sum = %v", out.Column("sum").Values)
	}
	if out.Column("label").Values[0] != "B!" {
		t.Errorf("label = %v", out.Column("label").Values)
	}
}

func TestMaskCombination(t *testing.T) {
	out := run(t, "df = df[df['score'].ge(1) & ~df['name'].eq('a')]")
	if out.NumRows() != 1 || out.Column("name").Values[0] != "b" {
		t.Errorf("rows = %v", out.Records())
	}
}

func TestApplyAndMap(t *testing.T) {
	out := run(t, `
df['grade'] = df.apply(lambda r: 'high' if r['score'] > 1 else 'low', axis=1)
df['code'] = df['name'].map({'a': 'A1', 'b': 'B2'})
df['half'] = df['score'] / 2
`)
	if g := out.Column("grade").Values; g[0] != "low" || g[1] != "high" {
		t.Errorf("grade = %v", g)
	}
	if c := out.Column("code").Values; c[1] != "B2" {
		t.Errorf("code = %v", c)
	}
	if h := out.Column("half"); h.Kind != table.KindFloat || h.Values[0] != 0.5 {
		t.Errorf("half = %v (%s)", h.Values, h.Kind)
	}
}

func TestNamespace(t *testing.T) {
	out := run(t, `
extra = tab.frame({'name': ['c'], 'score': [3]})
df = tab.concat([df, extra])
df['flag'] = tab.where(df['score'].gt(2), 'top', 'rest')
df['n'] = tab.to_numeric(tab.series(['1', 'x', '3']), errors='coerce')
`)
	if out.NumRows() != 3 {
		t.Fatalf("rows = %d", out.NumRows())
	}
	if f := out.Column("flag").Values; f[2] != "top" || f[0] != "rest" {
		t.Errorf("flag = %v", f)
	}
	if n := out.Column("n").Values; n[0] != int64(1) || n[1] != nil {
		t.Errorf("n = %v", n)
	}
}

func TestAppendAndDropna(t *testing.T) {
	out := run(t, `
df = df.append({'name': 'c'})
df = df.dropna(subset=['score'])
df = df.drop_duplicates()
`)
	if out.NumRows() != 2 {
		t.Errorf("rows = %v", out.Records())
	}
}

func TestReductions(t *testing.T) {
	var lines []string
	_, err := Run(context.Background(), scores(), `
print(df['score'].sum(), df['score'].mean(), df['score'].max(), df['name'].min())
`, Options{Print: func(m string) { lines = append(lines, m) }})
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != "3 1.5 2 a" {
		t.Errorf("print = %q", lines)
	}
}
