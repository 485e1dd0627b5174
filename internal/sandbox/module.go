package sandbox

import (
	"fmt"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/klytics/sheetbot/internal/table"
)

// Namespace is the tabular helper module bound as tab.
var Namespace = &starlarkstruct.Module{
	Name: "tab",
	Members: starlark.StringDict{
		"frame":      starlark.NewBuiltin("tab.frame", tabFrame),
		"series":     starlark.NewBuiltin("tab.series", tabSeries),
		"to_numeric": starlark.NewBuiltin("tab.to_numeric", tabToNumeric),
		"where":      starlark.NewBuiltin("tab.where", tabWhere),
		"concat":     starlark.NewBuiltin("tab.concat", tabConcat),
		"isna":       starlark.NewBuiltin("tab.isna", tabIsna),
	},
}

// NamespaceHelp documents the tab module and the df API for prompts.
const NamespaceHelp = `- df[name] is a column; df[name] = column, list or scalar sets it.
- Arithmetic (+ - * / // %) works between columns and numbers; empty cells stay empty and a zero divisor is an error, so use tab.where or fillna first.
- Comparisons build masks with methods: df[c].gt(x), .ge, .lt, .le, .eq, .ne, .isin([...]), .between(a, b), .contains(s), .isna(), .notna(); combine masks with & and |, negate with ~.
- df[mask] keeps matching rows; df[[c1, c2]] keeps columns.
- Column methods: sum, mean, median, min, max, count, round, abs, fillna, astype, map, apply, upper, lower, strip, title, replace, cumsum, unique, tolist.
- Frame methods: head, tail, copy, drop(columns=[...]), rename(columns={...}), sort_values(by, ascending), dropna, fillna, drop_duplicates, append(row_dict), insert(loc, name, value), apply(fn, axis=1), filter(fn), rows().
- tab.frame(dict_of_lists), tab.series(list), tab.to_numeric(col, errors="coerce"), tab.where(mask, a, b), tab.concat([df1, df2]), tab.isna(value).`

func tabFrame(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "data?", &data); err != nil {
		return nil, err
	}
	switch x := data.(type) {
	case starlark.NoneType:
		return NewFrame(table.New("Sheet1")), nil
	case *starlark.Dict:
		t := table.New("Sheet1")
		for _, item := range x.Items() {
			name, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("%s: column names must be strings", b.Name())
			}
			values, err := valuesOf(item[1])
			if err != nil {
				return nil, fmt.Errorf("%s: column %q: %w", b.Name(), name, err)
			}
			if err := t.SetColumn(table.NewColumn(name, values)); err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
		}
		return NewFrame(t), nil
	case starlark.Iterable:
		var dicts []*starlark.Dict
		it := x.Iterate()
		defer it.Done()
		var v starlark.Value
		for it.Next(&v) {
			d, ok := v.(*starlark.Dict)
			if !ok {
				return nil, fmt.Errorf("%s: expected dict rows, got %s", b.Name(), v.Type())
			}
			dicts = append(dicts, d)
		}
		t, err := tableFromDicts("Sheet1", dicts)
		if err != nil {
			return nil, err
		}
		return NewFrame(t), nil
	}
	return nil, fmt.Errorf("%s: expected a dict of columns or a list of rows, got %s", b.Name(), data.Type())
}

func tabSeries(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data starlark.Value
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "data", &data, "name?", &name); err != nil {
		return nil, err
	}
	values, err := valuesOf(data)
	if err != nil {
		return nil, err
	}
	return newSeries(name, values), nil
}

func tabToNumeric(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var arg starlark.Value
	errorsMode := "raise"
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "arg", &arg, "errors?", &errorsMode); err != nil {
		return nil, err
	}

	convert := func(v any) (any, error) {
		switch x := v.(type) {
		case nil, int64, float64:
			return x, nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
			if f, ok := table.ToFloat(s); ok {
				return f, nil
			}
			switch errorsMode {
			case "coerce":
				return nil, nil
			case "ignore":
				return x, nil
			}
			return nil, fmt.Errorf("%s: unable to parse %q", b.Name(), x)
		}
		return nil, fmt.Errorf("%s: unsupported value %T", b.Name(), v)
	}

	if s, ok := arg.(*Series); ok {
		return s.mapCells(convert)
	}
	cell, err := fromValue(arg)
	if err != nil {
		return nil, err
	}
	r, err := convert(cell)
	if err != nil {
		return nil, err
	}
	return toValue(r), nil
}

func tabWhere(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cond *Series
	var x, y starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "cond", &cond, "x", &x, "y", &y); err != nil {
		return nil, err
	}
	keep, err := cond.mask()
	if err != nil {
		return nil, err
	}
	left, err := cond.operand(x)
	if err != nil {
		return nil, err
	}
	right, err := cond.operand(y)
	if err != nil {
		return nil, err
	}

	name := ""
	if s, ok := x.(*Series); ok {
		name = s.col.Name
	}
	out := make([]any, len(keep))
	for i, k := range keep {
		if k {
			out[i] = left(i)
		} else {
			out[i] = right(i)
		}
	}
	return newSeries(name, out), nil
}

func tabConcat(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var frames starlark.Iterable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "objs", &frames); err != nil {
		return nil, err
	}
	var tables []*table.Table
	it := frames.Iterate()
	defer it.Done()
	var v starlark.Value
	for it.Next(&v) {
		f, ok := v.(*Frame)
		if !ok {
			return nil, fmt.Errorf("%s: expected frames, got %s", b.Name(), v.Type())
		}
		tables = append(tables, f.t)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%s: no frames to concatenate", b.Name())
	}
	return NewFrame(concatTables(tables)), nil
}

func tabIsna(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "obj", &v); err != nil {
		return nil, err
	}
	if s, ok := v.(*Series); ok {
		return s.mapCells(func(c any) (any, error) { return c == nil, nil })
	}
	return starlark.Bool(v == starlark.None), nil
}

// concatTables stacks rows, matching columns by name. Columns missing from a
// table get empty cells.
func concatTables(tables []*table.Table) *table.Table {
	var names []string
	seen := map[string]bool{}
	for _, t := range tables {
		for _, n := range t.Names() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}

	out := table.New(tables[0].Name)
	for _, n := range names {
		var values []any
		for _, t := range tables {
			if c := t.Column(n); c != nil {
				values = append(values, c.Values...)
			} else {
				values = append(values, make([]any, t.NumRows())...)
			}
		}
		out.Columns = append(out.Columns, table.NewColumn(n, values))
	}
	return out
}

func tableFromDicts(name string, dicts []*starlark.Dict) (*table.Table, error) {
	var names []string
	seen := map[string]bool{}
	for _, d := range dicts {
		for _, k := range d.Keys() {
			n, ok := starlark.AsString(k)
			if !ok {
				return nil, fmt.Errorf("row keys must be column names, got %s", k.Type())
			}
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}

	t := table.New(name)
	for _, n := range names {
		values := make([]any, len(dicts))
		for i, d := range dicts {
			v, found, err := d.Get(starlark.String(n))
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			if values[i], err = fromValue(v); err != nil {
				return nil, err
			}
		}
		t.Columns = append(t.Columns, table.NewColumn(n, values))
	}
	return t, nil
}
