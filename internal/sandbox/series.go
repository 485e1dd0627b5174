package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/klytics/sheetbot/internal/table"
)

// Series is a single column as seen by a fragment. Every operation returns a
// new Series; assigning it back with df[name] = s stores it.
type Series struct {
	col *table.Column
}

var (
	_ starlark.Indexable = (*Series)(nil)
	_ starlark.Iterable  = (*Series)(nil)
	_ starlark.HasAttrs  = (*Series)(nil)
	_ starlark.HasBinary = (*Series)(nil)
	_ starlark.HasUnary  = (*Series)(nil)
)

func newSeries(name string, values []any) *Series {
	return &Series{col: table.NewColumn(name, values)}
}

func (s *Series) String() string {
	cells := make([]string, len(s.col.Values))
	for i, v := range s.col.Values {
		cells[i] = toValue(v).String()
	}
	return fmt.Sprintf("Series(%q, [%s])", s.col.Name, strings.Join(cells, ", "))
}

func (s *Series) Type() string          { return "series" }
func (s *Series) Freeze()               {}
func (s *Series) Truth() starlark.Bool  { return s.col.Len() > 0 }
func (s *Series) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: series") }
func (s *Series) Len() int              { return s.col.Len() }

func (s *Series) Index(i int) starlark.Value {
	return toValue(s.col.Values[i])
}

func (s *Series) Iterate() starlark.Iterator {
	return &seriesIterator{s: s}
}

type seriesIterator struct {
	s *Series
	i int
}

func (it *seriesIterator) Next(p *starlark.Value) bool {
	if it.i >= it.s.Len() {
		return false
	}
	*p = it.s.Index(it.i)
	it.i++
	return true
}

func (it *seriesIterator) Done() {}

// Binary implements arithmetic against a scalar or another series of the
// same length. & and | combine boolean masks.
func (s *Series) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	switch op {
	case syntax.PLUS, syntax.MINUS, syntax.STAR, syntax.SLASH, syntax.SLASHSLASH, syntax.PERCENT, syntax.AMP, syntax.PIPE:
	default:
		return nil, nil
	}

	other, err := s.operand(y)
	if err != nil {
		return nil, err
	}
	out := make([]any, s.Len())
	for i, v := range s.col.Values {
		a, b := v, other(i)
		if side == starlark.Right {
			a, b = b, a
		}
		r, err := arith(op, a, b)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", s.col.Name, i, err)
		}
		out[i] = r
	}
	return newSeries(s.col.Name, out), nil
}

// operand returns an accessor for the right-hand side of an element-wise op.
func (s *Series) operand(y starlark.Value) (func(int) any, error) {
	if o, ok := y.(*Series); ok {
		if o.Len() != s.Len() {
			return nil, fmt.Errorf("length mismatch: %d vs %d", s.Len(), o.Len())
		}
		return func(i int) any { return o.col.Values[i] }, nil
	}
	if !isScalar(y) {
		return nil, fmt.Errorf("unsupported operand type %s", y.Type())
	}
	cell, err := fromValue(y)
	if err != nil {
		return nil, err
	}
	return func(int) any { return cell }, nil
}

func (s *Series) Unary(op syntax.Token) (starlark.Value, error) {
	out := make([]any, s.Len())
	for i, v := range s.col.Values {
		switch op {
		case syntax.MINUS:
			switch x := v.(type) {
			case int64:
				out[i] = -x
			case float64:
				out[i] = -x
			case nil:
			default:
				return nil, fmt.Errorf("cannot negate %T", v)
			}
		case syntax.TILDE:
			switch x := v.(type) {
			case bool:
				out[i] = !x
			case nil:
				out[i] = true
			default:
				return nil, fmt.Errorf("~ needs a boolean mask")
			}
		case syntax.PLUS:
			out[i] = v
		default:
			return nil, nil
		}
	}
	return newSeries(s.col.Name, out), nil
}

// mask reports the boolean cells of a mask series.
func (s *Series) mask() ([]bool, error) {
	out := make([]bool, s.Len())
	for i, v := range s.col.Values {
		switch x := v.(type) {
		case bool:
			out[i] = x
		case nil:
		default:
			return nil, fmt.Errorf("column %q is not a boolean mask", s.col.Name)
		}
	}
	return out, nil
}

var seriesMethods = map[string]*starlark.Builtin{
	"sum":        starlark.NewBuiltin("sum", seriesReduce),
	"mean":       starlark.NewBuiltin("mean", seriesReduce),
	"median":     starlark.NewBuiltin("median", seriesReduce),
	"min":        starlark.NewBuiltin("min", seriesReduce),
	"max":        starlark.NewBuiltin("max", seriesReduce),
	"count":      starlark.NewBuiltin("count", seriesCount),
	"round":      starlark.NewBuiltin("round", seriesRound),
	"abs":        starlark.NewBuiltin("abs", seriesAbs),
	"fillna":     starlark.NewBuiltin("fillna", seriesFillna),
	"astype":     starlark.NewBuiltin("astype", seriesAstype),
	"map":        starlark.NewBuiltin("map", seriesMap),
	"apply":      starlark.NewBuiltin("apply", seriesMap),
	"upper":      starlark.NewBuiltin("upper", seriesString),
	"lower":      starlark.NewBuiltin("lower", seriesString),
	"strip":      starlark.NewBuiltin("strip", seriesString),
	"title":      starlark.NewBuiltin("title", seriesString),
	"replace":    starlark.NewBuiltin("replace", seriesReplace),
	"contains":   starlark.NewBuiltin("contains", seriesMatch),
	"startswith": starlark.NewBuiltin("startswith", seriesMatch),
	"endswith":   starlark.NewBuiltin("endswith", seriesMatch),
	"gt":         starlark.NewBuiltin("gt", seriesCompare),
	"ge":         starlark.NewBuiltin("ge", seriesCompare),
	"lt":         starlark.NewBuiltin("lt", seriesCompare),
	"le":         starlark.NewBuiltin("le", seriesCompare),
	"eq":         starlark.NewBuiltin("eq", seriesCompare),
	"ne":         starlark.NewBuiltin("ne", seriesCompare),
	"between":    starlark.NewBuiltin("between", seriesBetween),
	"isin":       starlark.NewBuiltin("isin", seriesIsin),
	"isna":       starlark.NewBuiltin("isna", seriesIsna),
	"notna":      starlark.NewBuiltin("notna", seriesIsna),
	"unique":     starlark.NewBuiltin("unique", seriesUnique),
	"tolist":     starlark.NewBuiltin("tolist", seriesTolist),
	"cumsum":     starlark.NewBuiltin("cumsum", seriesCumsum),
}

func (s *Series) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(s.col.Name), nil
	case "dtype":
		return starlark.String(s.col.Kind.String()), nil
	case "str":
		// String helpers live on the series itself, so s.str.upper() and
		// s.upper() are the same call.
		return s, nil
	case "size":
		return starlark.MakeInt(s.Len()), nil
	}
	if b, ok := seriesMethods[name]; ok {
		return b.BindReceiver(s), nil
	}
	return nil, nil
}

func (s *Series) AttrNames() []string {
	names := []string{"dtype", "name", "size", "str"}
	for name := range seriesMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func receiver(b *starlark.Builtin) *Series {
	return b.Receiver().(*Series)
}

func seriesReduce(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	s := receiver(b)

	if b.Name() == "min" || b.Name() == "max" {
		var best any
		for _, v := range s.col.Values {
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c, ok := compareCells(v, best)
			if !ok {
				return nil, fmt.Errorf("%s: column %q mixes incomparable values", b.Name(), s.col.Name)
			}
			if (b.Name() == "min" && c < 0) || (b.Name() == "max" && c > 0) {
				best = v
			}
		}
		return toValue(best), nil
	}

	var nums []float64
	allInt := true
	var intSum int64
	for _, v := range s.col.Values {
		if v == nil {
			continue
		}
		f, ok := numeric(v)
		if !ok {
			return nil, fmt.Errorf("%s: column %q is not numeric", b.Name(), s.col.Name)
		}
		if n, ok := v.(int64); ok {
			intSum += n
		} else {
			allInt = false
		}
		nums = append(nums, f)
	}

	switch b.Name() {
	case "sum":
		if allInt {
			return starlark.MakeInt64(intSum), nil
		}
		var total float64
		for _, f := range nums {
			total += f
		}
		return starlark.Float(total), nil
	case "mean":
		if len(nums) == 0 {
			return starlark.None, nil
		}
		var total float64
		for _, f := range nums {
			total += f
		}
		return starlark.Float(total / float64(len(nums))), nil
	default: // median
		if len(nums) == 0 {
			return starlark.None, nil
		}
		sort.Float64s(nums)
		mid := len(nums) / 2
		if len(nums)%2 == 1 {
			return starlark.Float(nums[mid]), nil
		}
		return starlark.Float((nums[mid-1] + nums[mid]) / 2), nil
	}
}

func seriesCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	n := 0
	for _, v := range receiver(b).col.Values {
		if v != nil {
			n++
		}
	}
	return starlark.MakeInt(n), nil
}

// mapCells builds a new series by applying fn to every cell.
func (s *Series) mapCells(fn func(any) (any, error)) (*Series, error) {
	out := make([]any, s.Len())
	for i, v := range s.col.Values {
		r, err := fn(v)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return newSeries(s.col.Name, out), nil
}

func seriesRound(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	digits := 0
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "decimals?", &digits); err != nil {
		return nil, err
	}
	scale := math.Pow(10, float64(digits))
	return receiver(b).mapCells(func(v any) (any, error) {
		switch x := v.(type) {
		case float64:
			return math.Round(x*scale) / scale, nil
		case nil, int64:
			return x, nil
		}
		return nil, fmt.Errorf("round: %T is not numeric", v)
	})
}

func seriesAbs(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return receiver(b).mapCells(func(v any) (any, error) {
		switch x := v.(type) {
		case float64:
			return math.Abs(x), nil
		case int64:
			if x < 0 {
				return -x, nil
			}
			return x, nil
		case nil:
			return nil, nil
		}
		return nil, fmt.Errorf("abs: %T is not numeric", v)
	})
}

func seriesFillna(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &value); err != nil {
		return nil, err
	}
	fill, err := fromValue(value)
	if err != nil {
		return nil, err
	}
	return receiver(b).mapCells(func(v any) (any, error) {
		if v == nil {
			return fill, nil
		}
		return v, nil
	})
}

func seriesAstype(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var kindName string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "dtype", &kindName); err != nil {
		return nil, err
	}
	kind, ok := table.ParseKind(kindName)
	if !ok {
		return nil, fmt.Errorf("astype: unknown type %q (use int, float, bool or str)", kindName)
	}
	col := receiver(b).col.Clone()
	col.Convert(kind)
	return &Series{col: col}, nil
}

func seriesMap(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "func", &fn); err != nil {
		return nil, err
	}
	s := receiver(b)

	// map with a dict looks values up, like pandas.
	if d, ok := fn.(*starlark.Dict); ok {
		return s.mapCells(func(v any) (any, error) {
			r, found, err := d.Get(toValue(v))
			if err != nil || !found {
				return nil, err
			}
			return fromValue(r)
		})
	}

	callable, ok := fn.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s: expected a function or dict, got %s", b.Name(), fn.Type())
	}
	return s.mapCells(func(v any) (any, error) {
		r, err := starlark.Call(thread, callable, starlark.Tuple{toValue(v)}, nil)
		if err != nil {
			return nil, err
		}
		return fromValue(r)
	})
}

func seriesString(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	var fn func(string) string
	switch b.Name() {
	case "upper":
		fn = strings.ToUpper
	case "lower":
		fn = strings.ToLower
	case "strip":
		fn = strings.TrimSpace
	case "title":
		fn = titleCase
	}
	return receiver(b).mapCells(func(v any) (any, error) {
		if str, ok := v.(string); ok {
			return fn(str), nil
		}
		return v, nil
	})
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func seriesReplace(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var old, repl starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "old", &old, "new", &repl); err != nil {
		return nil, err
	}
	from, err := fromValue(old)
	if err != nil {
		return nil, err
	}
	to, err := fromValue(repl)
	if err != nil {
		return nil, err
	}
	fromStr, fromIsStr := from.(string)
	toStr, toIsStr := to.(string)
	return receiver(b).mapCells(func(v any) (any, error) {
		if cellsEqual(v, from) {
			return to, nil
		}
		if str, ok := v.(string); ok && fromIsStr && toIsStr && fromStr != "" {
			return strings.ReplaceAll(str, fromStr, toStr), nil
		}
		return v, nil
	})
}

func seriesMatch(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var sub string
	caseSensitive := true
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pat", &sub, "case?", &caseSensitive); err != nil {
		return nil, err
	}
	if !caseSensitive {
		sub = strings.ToLower(sub)
	}
	return receiver(b).mapCells(func(v any) (any, error) {
		str, ok := v.(string)
		if !ok {
			return false, nil
		}
		if !caseSensitive {
			str = strings.ToLower(str)
		}
		switch b.Name() {
		case "startswith":
			return strings.HasPrefix(str, sub), nil
		case "endswith":
			return strings.HasSuffix(str, sub), nil
		}
		return strings.Contains(str, sub), nil
	})
}

func seriesCompare(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var other starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "other", &other); err != nil {
		return nil, err
	}
	s := receiver(b)
	rhs, err := s.operand(other)
	if err != nil {
		return nil, err
	}

	out := make([]any, s.Len())
	for i, v := range s.col.Values {
		w := rhs(i)
		switch b.Name() {
		case "eq":
			out[i] = cellsEqual(v, w)
			continue
		case "ne":
			out[i] = !cellsEqual(v, w)
			continue
		}
		c, ok := compareCells(v, w)
		if !ok {
			out[i] = false
			continue
		}
		switch b.Name() {
		case "gt":
			out[i] = c > 0
		case "ge":
			out[i] = c >= 0
		case "lt":
			out[i] = c < 0
		case "le":
			out[i] = c <= 0
		}
	}
	return newSeries(s.col.Name, out), nil
}

func seriesBetween(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var lo, hi starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "left", &lo, "right", &hi); err != nil {
		return nil, err
	}
	l, err := fromValue(lo)
	if err != nil {
		return nil, err
	}
	h, err := fromValue(hi)
	if err != nil {
		return nil, err
	}
	return receiver(b).mapCells(func(v any) (any, error) {
		c1, ok1 := compareCells(v, l)
		c2, ok2 := compareCells(v, h)
		return ok1 && ok2 && c1 >= 0 && c2 <= 0, nil
	})
}

func seriesIsin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var values starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "values", &values); err != nil {
		return nil, err
	}
	set, err := valuesOf(values)
	if err != nil {
		return nil, err
	}
	return receiver(b).mapCells(func(v any) (any, error) {
		for _, w := range set {
			if cellsEqual(v, w) {
				return true, nil
			}
		}
		return false, nil
	})
}

func seriesIsna(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	want := b.Name() == "isna"
	return receiver(b).mapCells(func(v any) (any, error) {
		return (v == nil) == want, nil
	})
}

func seriesUnique(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	var out []starlark.Value
	var seen []any
outer:
	for _, v := range receiver(b).col.Values {
		for _, w := range seen {
			if v == nil && w == nil || cellsEqual(v, w) {
				continue outer
			}
		}
		seen = append(seen, v)
		out = append(out, toValue(v))
	}
	return starlark.NewList(out), nil
}

func seriesTolist(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	s := receiver(b)
	out := make([]starlark.Value, s.Len())
	for i := range out {
		out[i] = s.Index(i)
	}
	return starlark.NewList(out), nil
}

func seriesCumsum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	var running any = int64(0)
	return receiver(b).mapCells(func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		r, err := arith(syntax.PLUS, running, v)
		if err != nil {
			return nil, err
		}
		running = r
		return r, nil
	})
}
