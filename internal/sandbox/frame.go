package sandbox

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/klytics/sheetbot/internal/table"
)

// Frame exposes a table to a fragment as df. Indexing by a column name gives
// a Series, indexing by a boolean mask gives the matching rows, and item
// assignment replaces or adds a column.
type Frame struct {
	t      *table.Table
	frozen bool
}

var (
	_ starlark.HasSetKey = (*Frame)(nil)
	_ starlark.Sequence  = (*Frame)(nil)
	_ starlark.HasAttrs  = (*Frame)(nil)
)

// NewFrame wraps t. The frame mutates t in place.
func NewFrame(t *table.Table) *Frame {
	return &Frame{t: t}
}

// Table returns the wrapped table.
func (f *Frame) Table() *table.Table { return f.t }

func (f *Frame) String() string {
	return fmt.Sprintf("DataFrame(%d rows x %d columns)\n%s", f.t.NumRows(), f.t.NumCols(), f.t.Head(5).Text())
}

func (f *Frame) Type() string          { return "frame" }
func (f *Frame) Freeze()               { f.frozen = true }
func (f *Frame) Truth() starlark.Bool  { return f.t.NumRows() > 0 }
func (f *Frame) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: frame") }
func (f *Frame) Len() int              { return f.t.NumRows() }

// Iterate yields the column names, as iterating a pandas DataFrame does.
func (f *Frame) Iterate() starlark.Iterator {
	names := f.t.Names()
	values := make([]starlark.Value, len(names))
	for i, n := range names {
		values[i] = starlark.String(n)
	}
	return starlark.NewList(values).Iterate()
}

func (f *Frame) Get(k starlark.Value) (starlark.Value, bool, error) {
	switch key := k.(type) {
	case starlark.String:
		c := f.t.Column(string(key))
		if c == nil {
			return nil, false, nil
		}
		return &Series{col: c.Clone()}, true, nil
	case *Series:
		rows, err := f.maskRows(key)
		if err != nil {
			return nil, false, err
		}
		return NewFrame(f.t.Take(rows)), true, nil
	case *starlark.List, starlark.Tuple:
		names, err := stringList(k)
		if err != nil {
			return nil, false, err
		}
		sub, err := f.selectColumns(names)
		if err != nil {
			return nil, false, err
		}
		return sub, true, nil
	}
	return nil, false, fmt.Errorf("frame index must be a column name, list of names or boolean mask, got %s", k.Type())
}

func (f *Frame) maskRows(mask *Series) ([]int, error) {
	if mask.Len() != f.t.NumRows() {
		return nil, fmt.Errorf("mask has %d values, frame has %d rows", mask.Len(), f.t.NumRows())
	}
	keep, err := mask.mask()
	if err != nil {
		return nil, err
	}
	var rows []int
	for i, ok := range keep {
		if ok {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

func (f *Frame) selectColumns(names []string) (*Frame, error) {
	out := table.New(f.t.Name)
	for _, n := range names {
		c := f.t.Column(n)
		if c == nil {
			return nil, fmt.Errorf("no column named %q", n)
		}
		out.Columns = append(out.Columns, c.Clone())
	}
	return NewFrame(out), nil
}

func (f *Frame) SetKey(k, v starlark.Value) error {
	if f.frozen {
		return fmt.Errorf("cannot modify frozen frame")
	}
	name, ok := starlark.AsString(k)
	if !ok {
		return fmt.Errorf("column name must be a string, got %s", k.Type())
	}
	col, err := f.columnFrom(name, v)
	if err != nil {
		return err
	}
	return f.t.SetColumn(col)
}

// columnFrom turns a series, list or scalar into a column sized to the frame.
func (f *Frame) columnFrom(name string, v starlark.Value) (*table.Column, error) {
	if isScalar(v) {
		cell, err := fromValue(v)
		if err != nil {
			return nil, err
		}
		values := make([]any, f.t.NumRows())
		for i := range values {
			values[i] = cell
		}
		return table.NewColumn(name, values), nil
	}
	values, err := valuesOf(v)
	if err != nil {
		return nil, err
	}
	if f.t.NumCols() > 0 && len(values) != f.t.NumRows() {
		return nil, fmt.Errorf("length of values (%d) does not match length of frame (%d)", len(values), f.t.NumRows())
	}
	return table.NewColumn(name, values), nil
}

func (f *Frame) replace(t *table.Table) error {
	if f.frozen {
		return fmt.Errorf("cannot modify frozen frame")
	}
	f.t.Columns = t.Columns
	return nil
}

var frameMethods = map[string]*starlark.Builtin{
	"head":            starlark.NewBuiltin("head", frameHeadTail),
	"tail":            starlark.NewBuiltin("tail", frameHeadTail),
	"copy":            starlark.NewBuiltin("copy", frameCopy),
	"reset_index":     starlark.NewBuiltin("reset_index", frameCopy),
	"drop":            starlark.NewBuiltin("drop", frameDrop),
	"rename":          starlark.NewBuiltin("rename", frameRename),
	"sort_values":     starlark.NewBuiltin("sort_values", frameSortValues),
	"dropna":          starlark.NewBuiltin("dropna", frameDropna),
	"fillna":          starlark.NewBuiltin("fillna", frameFillna),
	"drop_duplicates": starlark.NewBuiltin("drop_duplicates", frameDropDuplicates),
	"append":          starlark.NewBuiltin("append", frameAppend),
	"insert":          starlark.NewBuiltin("insert", frameInsert),
	"rows":            starlark.NewBuiltin("rows", frameRows),
	"filter":          starlark.NewBuiltin("filter", frameFilter),
	"apply":           starlark.NewBuiltin("apply", frameApply),
}

func (f *Frame) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		names := f.t.Names()
		values := make([]starlark.Value, len(names))
		for i, n := range names {
			values[i] = starlark.String(n)
		}
		return starlark.NewList(values), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(f.t.NumRows()), starlark.MakeInt(f.t.NumCols())}, nil
	case "dtypes":
		d := starlark.NewDict(f.t.NumCols())
		for _, c := range f.t.Columns {
			_ = d.SetKey(starlark.String(c.Name), starlark.String(c.Kind.String()))
		}
		return d, nil
	case "empty":
		return starlark.Bool(f.t.NumRows() == 0), nil
	}
	if b, ok := frameMethods[name]; ok {
		return b.BindReceiver(f), nil
	}
	return nil, nil
}

func (f *Frame) AttrNames() []string {
	names := []string{"columns", "dtypes", "empty", "shape"}
	for name := range frameMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func frameOf(b *starlark.Builtin) *Frame {
	return b.Receiver().(*Frame)
}

// result returns t as a new frame, or applies it in place and returns None.
func (f *Frame) result(t *table.Table, inplace bool) (starlark.Value, error) {
	if !inplace {
		return NewFrame(t), nil
	}
	if err := f.replace(t); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func stringList(v starlark.Value) ([]string, error) {
	if s, ok := starlark.AsString(v); ok {
		return []string{s}, nil
	}
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("expected a name or list of names, got %s", v.Type())
	}
	var out []string
	it := iterable.Iterate()
	defer it.Done()
	var x starlark.Value
	for it.Next(&x) {
		s, ok := starlark.AsString(x)
		if !ok {
			return nil, fmt.Errorf("expected column name, got %s", x.Type())
		}
		out = append(out, s)
	}
	return out, nil
}

func frameHeadTail(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	f := frameOf(b)
	if b.Name() == "tail" {
		return NewFrame(f.t.Tail(n)), nil
	}
	return NewFrame(f.t.Head(n)), nil
}

func frameCopy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var drop, inplace bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "drop?", &drop, "inplace?", &inplace); err != nil {
		return nil, err
	}
	f := frameOf(b)
	if inplace {
		return starlark.None, nil
	}
	return NewFrame(f.t.Clone()), nil
}

func frameDrop(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var labels, columns starlark.Value = starlark.None, starlark.None
	axis := 0
	var inplace bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"labels?", &labels, "axis?", &axis, "columns?", &columns, "inplace?", &inplace); err != nil {
		return nil, err
	}
	f := frameOf(b)
	out := f.t.Clone()

	if columns == starlark.None && axis == 1 {
		columns = labels
		labels = starlark.None
	}
	if columns != starlark.None {
		names, err := stringList(columns)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if !out.Drop(n) {
				return nil, fmt.Errorf("drop: no column named %q", n)
			}
		}
	}
	if labels != starlark.None {
		rows, err := rowLabels(labels, out.NumRows())
		if err != nil {
			return nil, err
		}
		out = out.Take(rows)
	}
	return f.result(out, inplace)
}

// rowLabels converts row positions to drop into the positions to keep.
func rowLabels(v starlark.Value, n int) ([]int, error) {
	drop := map[int]bool{}
	add := func(x starlark.Value) error {
		var i int
		if err := starlark.AsInt(x, &i); err != nil {
			return fmt.Errorf("drop: row labels must be integers")
		}
		if i < 0 || i >= n {
			return fmt.Errorf("drop: row %d out of range", i)
		}
		drop[i] = true
		return nil
	}
	if iterable, ok := v.(starlark.Iterable); ok {
		it := iterable.Iterate()
		defer it.Done()
		var x starlark.Value
		for it.Next(&x) {
			if err := add(x); err != nil {
				return nil, err
			}
		}
	} else if err := add(v); err != nil {
		return nil, err
	}

	keep := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !drop[i] {
			keep = append(keep, i)
		}
	}
	return keep, nil
}

func frameRename(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var columns *starlark.Dict
	var inplace bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "columns", &columns, "inplace?", &inplace); err != nil {
		return nil, err
	}
	f := frameOf(b)
	out := f.t.Clone()
	for _, item := range columns.Items() {
		from, ok1 := starlark.AsString(item[0])
		to, ok2 := starlark.AsString(item[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("rename: column names must be strings")
		}
		// pandas ignores labels that are not present.
		if out.Index(from) < 0 {
			continue
		}
		if err := out.Rename(from, to); err != nil {
			return nil, err
		}
	}
	return f.result(out, inplace)
}

func frameSortValues(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var by starlark.Value
	ascending := true
	var inplace bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "by", &by, "ascending?", &ascending, "inplace?", &inplace); err != nil {
		return nil, err
	}
	names, err := stringList(by)
	if err != nil {
		return nil, err
	}
	f := frameOf(b)
	var keys []*table.Column
	for _, n := range names {
		c := f.t.Column(n)
		if c == nil {
			return nil, fmt.Errorf("sort_values: no column named %q", n)
		}
		keys = append(keys, c)
	}

	rows := make([]int, f.t.NumRows())
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, c := range keys {
			a, b := c.Values[rows[i]], c.Values[rows[j]]
			if a == nil || b == nil {
				// Missing values go last in either direction.
				if a == nil && b == nil {
					continue
				}
				return b == nil
			}
			cmp, _ := compareCells(a, b)
			if cmp == 0 {
				continue
			}
			if ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	return f.result(f.t.Take(rows), inplace)
}

func frameDropna(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var subset starlark.Value = starlark.None
	var inplace bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "subset?", &subset, "inplace?", &inplace); err != nil {
		return nil, err
	}
	f := frameOf(b)
	cols := f.t.Columns
	if subset != starlark.None {
		names, err := stringList(subset)
		if err != nil {
			return nil, err
		}
		cols = nil
		for _, n := range names {
			c := f.t.Column(n)
			if c == nil {
				return nil, fmt.Errorf("dropna: no column named %q", n)
			}
			cols = append(cols, c)
		}
	}

	var rows []int
next:
	for i := 0; i < f.t.NumRows(); i++ {
		for _, c := range cols {
			if c.Values[i] == nil {
				continue next
			}
		}
		rows = append(rows, i)
	}
	return f.result(f.t.Take(rows), inplace)
}

func frameFillna(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	var inplace bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &value, "inplace?", &inplace); err != nil {
		return nil, err
	}
	f := frameOf(b)
	out := f.t.Clone()

	fillFor := func(name string) (any, bool, error) {
		if d, ok := value.(*starlark.Dict); ok {
			v, found, err := d.Get(starlark.String(name))
			if err != nil || !found {
				return nil, false, err
			}
			cell, err := fromValue(v)
			return cell, true, err
		}
		cell, err := fromValue(value)
		return cell, true, err
	}

	for _, c := range out.Columns {
		fill, ok, err := fillFor(c.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for i, v := range c.Values {
			if v == nil {
				c.Values[i] = fill
			}
		}
		c.Refresh()
	}
	return f.result(out, inplace)
}

func frameDropDuplicates(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var subset starlark.Value = starlark.None
	var inplace bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "subset?", &subset, "inplace?", &inplace); err != nil {
		return nil, err
	}
	f := frameOf(b)
	idx := make([]int, f.t.NumCols())
	for i := range idx {
		idx[i] = i
	}
	if subset != starlark.None {
		names, err := stringList(subset)
		if err != nil {
			return nil, err
		}
		idx = idx[:0]
		for _, n := range names {
			i := f.t.Index(n)
			if i < 0 {
				return nil, fmt.Errorf("drop_duplicates: no column named %q", n)
			}
			idx = append(idx, i)
		}
	}

	seen := map[string]bool{}
	var rows []int
	for r := 0; r < f.t.NumRows(); r++ {
		key := ""
		for _, i := range idx {
			v := f.t.Columns[i].Values[r]
			key += fmt.Sprintf("%T:%v\x00", v, v)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, r)
	}
	return f.result(f.t.Take(rows), inplace)
}

// frameAppend adds rows given as dicts keyed by column name. Unknown keys add
// columns, missing keys leave empty cells.
func frameAppend(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var other starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "other", &other); err != nil {
		return nil, err
	}
	f := frameOf(b)
	out := f.t.Clone()

	var dicts []*starlark.Dict
	switch x := other.(type) {
	case *starlark.Dict:
		dicts = []*starlark.Dict{x}
	case *Frame:
		return NewFrame(concatTables([]*table.Table{out, x.t})), nil
	case starlark.Iterable:
		it := x.Iterate()
		defer it.Done()
		var v starlark.Value
		for it.Next(&v) {
			d, ok := v.(*starlark.Dict)
			if !ok {
				return nil, fmt.Errorf("append: expected dict rows, got %s", v.Type())
			}
			dicts = append(dicts, d)
		}
	default:
		return nil, fmt.Errorf("append: expected a dict, list of dicts or frame, got %s", other.Type())
	}

	rows, err := tableFromDicts(f.t.Name, dicts)
	if err != nil {
		return nil, err
	}
	return NewFrame(concatTables([]*table.Table{out, rows})), nil
}

func frameInsert(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var loc int
	var name string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "loc", &loc, "column", &name, "value", &value); err != nil {
		return nil, err
	}
	f := frameOf(b)
	if f.frozen {
		return nil, fmt.Errorf("cannot modify frozen frame")
	}
	if f.t.Index(name) >= 0 {
		return nil, fmt.Errorf("insert: column %q already exists", name)
	}
	if loc < 0 || loc > f.t.NumCols() {
		return nil, fmt.Errorf("insert: position %d out of range", loc)
	}
	col, err := f.columnFrom(name, value)
	if err != nil {
		return nil, err
	}
	cols := append([]*table.Column{}, f.t.Columns[:loc]...)
	cols = append(cols, col)
	f.t.Columns = append(cols, f.t.Columns[loc:]...)
	return starlark.None, nil
}

// rowDict returns row i as a dict keyed by column name.
func (f *Frame) rowDict(i int) *starlark.Dict {
	d := starlark.NewDict(f.t.NumCols())
	for _, c := range f.t.Columns {
		_ = d.SetKey(starlark.String(c.Name), toValue(c.Values[i]))
	}
	return d
}

func frameRows(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	f := frameOf(b)
	rows := make([]starlark.Value, f.t.NumRows())
	for i := range rows {
		rows[i] = f.rowDict(i)
	}
	return starlark.NewList(rows), nil
}

func frameFilter(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "func", &fn); err != nil {
		return nil, err
	}
	f := frameOf(b)
	var rows []int
	for i := 0; i < f.t.NumRows(); i++ {
		r, err := starlark.Call(thread, fn, starlark.Tuple{f.rowDict(i)}, nil)
		if err != nil {
			return nil, err
		}
		if r.Truth() {
			rows = append(rows, i)
		}
	}
	return NewFrame(f.t.Take(rows)), nil
}

// frameApply calls fn once per row and collects the results as a series.
func frameApply(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	axis := 1
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "func", &fn, "axis?", &axis); err != nil {
		return nil, err
	}
	if axis != 1 {
		return nil, fmt.Errorf("apply: only axis=1 (per row) is supported")
	}
	f := frameOf(b)
	out := make([]any, f.t.NumRows())
	for i := range out {
		r, err := starlark.Call(thread, fn, starlark.Tuple{f.rowDict(i)}, nil)
		if err != nil {
			return nil, err
		}
		cell, err := fromValue(r)
		if err != nil {
			return nil, err
		}
		out[i] = cell
	}
	return newSeries("", out), nil
}
