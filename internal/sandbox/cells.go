package sandbox

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/klytics/sheetbot/internal/table"
)

// toValue converts a table cell to a Starlark value.
func toValue(v any) starlark.Value {
	switch x := v.(type) {
	case nil:
		return starlark.None
	case int64:
		return starlark.MakeInt64(x)
	case float64:
		return starlark.Float(x)
	case bool:
		return starlark.Bool(x)
	case string:
		return starlark.String(x)
	default:
		return starlark.String(table.FormatValue(x))
	}
}

// fromValue converts a Starlark scalar to a table cell.
func fromValue(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		if n, ok := x.Int64(); ok {
			return n, nil
		}
		f, _ := starlark.AsFloat(x)
		return f, nil
	case starlark.Float:
		f := float64(x)
		if math.IsNaN(f) {
			return nil, nil
		}
		return f, nil
	case starlark.String:
		return string(x), nil
	}
	return nil, fmt.Errorf("cannot store %s in a table cell", v.Type())
}

// isScalar reports whether v can be broadcast across a column.
func isScalar(v starlark.Value) bool {
	switch v.(type) {
	case starlark.NoneType, starlark.Bool, starlark.Int, starlark.Float, starlark.String:
		return true
	}
	return false
}

// valuesOf returns the cells of a Series, list or tuple.
func valuesOf(v starlark.Value) ([]any, error) {
	switch x := v.(type) {
	case *Series:
		out := make([]any, len(x.col.Values))
		copy(out, x.col.Values)
		return out, nil
	case starlark.Indexable:
		out := make([]any, x.Len())
		for i := range out {
			cell, err := fromValue(x.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = cell
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a column or list, got %s", v.Type())
}

func isInt(v any) bool {
	_, ok := v.(int64)
	return ok
}

func numeric(v any) (float64, bool) {
	switch v.(type) {
	case int64, float64, bool:
		return table.ToFloat(v)
	}
	return 0, false
}

var errDivisionByZero = errors.New("division by zero")

// arith applies a binary operator to two cells. Missing cells propagate; a
// zero divisor is an error as it is for scalars.
func arith(op syntax.Token, a, b any) (any, error) {
	if a == nil || b == nil {
		return nil, nil
	}

	if op == syntax.AMP || op == syntax.PIPE {
		x, ok1 := a.(bool)
		y, ok2 := b.(bool)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%s needs boolean operands", op)
		}
		if op == syntax.AMP {
			return x && y, nil
		}
		return x || y, nil
	}

	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if op == syntax.PLUS && ok {
			return sa + sb, nil
		}
		return nil, fmt.Errorf("unsupported operand for %s: string and %T", op, b)
	}
	if _, ok := b.(string); ok {
		return nil, fmt.Errorf("unsupported operand for %s: %T and string", op, a)
	}

	if isInt(a) && isInt(b) && op != syntax.SLASH {
		x, y := a.(int64), b.(int64)
		switch op {
		case syntax.PLUS:
			return x + y, nil
		case syntax.MINUS:
			return x - y, nil
		case syntax.STAR:
			return x * y, nil
		case syntax.SLASHSLASH:
			if y == 0 {
				return nil, errDivisionByZero
			}
			q := x / y
			if (x%y != 0) && ((x < 0) != (y < 0)) {
				q--
			}
			return q, nil
		case syntax.PERCENT:
			if y == 0 {
				return nil, errDivisionByZero
			}
			m := x % y
			if m != 0 && ((m < 0) != (y < 0)) {
				m += y
			}
			return m, nil
		}
	}

	x, ok1 := numeric(a)
	y, ok2 := numeric(b)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("unsupported operands for %s", op)
	}
	switch op {
	case syntax.PLUS:
		return x + y, nil
	case syntax.MINUS:
		return x - y, nil
	case syntax.STAR:
		return x * y, nil
	case syntax.SLASH:
		if y == 0 {
			return nil, errDivisionByZero
		}
		return x / y, nil
	case syntax.SLASHSLASH:
		if y == 0 {
			return nil, errDivisionByZero
		}
		return math.Floor(x / y), nil
	case syntax.PERCENT:
		if y == 0 {
			return nil, errDivisionByZero
		}
		m := math.Mod(x, y)
		if m != 0 && ((m < 0) != (y < 0)) {
			m += y
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported operator %s", op)
}

// compareCells orders two cells. Missing cells sort last; numbers sort before
// strings. ok is false when the cells are not comparable.
func compareCells(a, b any) (c int, ok bool) {
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil:
		return 1, false
	case b == nil:
		return -1, false
	}
	if x, isNum := numeric(a); isNum {
		if y, isNum := numeric(b); isNum {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
		return -1, false
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return strings.Compare(sa, sb), true
	}
	if aok {
		return 1, false
	}
	return -1, false
}

// cellsEqual reports equality with numeric widening.
func cellsEqual(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	c, ok := compareCells(a, b)
	return ok && c == 0
}
