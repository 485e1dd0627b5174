package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the inferred type of a column.
type Kind int

const (
	KindEmpty Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "empty"
	}
}

// ParseKind maps a kind name back to a Kind. Unknown names report false.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(s) {
	case "int", "int64", "integer":
		return KindInt, true
	case "float", "float64", "number":
		return KindFloat, true
	case "bool", "boolean":
		return KindBool, true
	case "str", "string", "text", "object":
		return KindString, true
	}
	return KindEmpty, false
}

// Column is a named, typed vector of cells. A cell is nil, int64, float64,
// bool or string.
type Column struct {
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Values []any  `json:"values"`
}

// NewColumn creates a column and infers its kind from the values.
func NewColumn(name string, values []any) *Column {
	c := &Column{Name: name, Values: make([]any, len(values))}
	for i, v := range values {
		c.Values[i] = normalize(v)
	}
	c.Refresh()
	return c
}

// Len returns the number of cells.
func (c *Column) Len() int {
	return len(c.Values)
}

// Clone returns a deep copy.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, Values: make([]any, len(c.Values))}
	copy(out.Values, c.Values)
	return out
}

// Take returns a new column holding the given positions.
func (c *Column) Take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, Values: make([]any, len(rows))}
	for i, r := range rows {
		out.Values[i] = c.Values[r]
	}
	return out
}

// Refresh re-infers the kind after the values changed. Mixed numeric columns
// are widened to float, any other mix becomes string.
func (c *Column) Refresh() {
	var ints, floats, bools, strs int
	for _, v := range c.Values {
		switch v.(type) {
		case int64:
			ints++
		case float64:
			floats++
		case bool:
			bools++
		case string:
			strs++
		}
	}

	switch {
	case ints+floats+bools+strs == 0:
		c.Kind = KindEmpty
	case strs == 0 && bools == 0 && floats == 0:
		c.Kind = KindInt
	case strs == 0 && bools == 0:
		c.Kind = KindFloat
		for i, v := range c.Values {
			if n, ok := v.(int64); ok {
				c.Values[i] = float64(n)
			}
		}
	case strs == 0 && ints == 0 && floats == 0:
		c.Kind = KindBool
	default:
		c.Kind = KindString
		for i, v := range c.Values {
			if v != nil {
				c.Values[i] = FormatValue(v)
			}
		}
	}
}

// Convert casts every cell to the given kind. Cells that cannot be converted
// become nil.
func (c *Column) Convert(k Kind) {
	for i, v := range c.Values {
		c.Values[i] = convert(v, k)
	}
	c.Refresh()
}

func convert(v any, k Kind) any {
	if v == nil {
		return nil
	}
	switch k {
	case KindString:
		return FormatValue(v)
	case KindInt:
		if f, ok := ToFloat(v); ok {
			return int64(f)
		}
	case KindFloat:
		if f, ok := ToFloat(v); ok {
			return f
		}
	case KindBool:
		switch x := v.(type) {
		case bool:
			return x
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b
			}
		default:
			if f, ok := ToFloat(v); ok {
				return f != 0
			}
		}
	}
	return nil
}

// ToFloat reports the numeric value of a cell. Numeric strings are parsed.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		return x
	case int64, bool, string, nil:
		return x
	default:
		return FormatValue(x)
	}
}

// ParseCell converts a raw spreadsheet cell to a typed value.
func ParseCell(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if strings.ContainsAny(s, "0123456789") {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
			return f
		}
	}
	switch strings.ToUpper(s) {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	return s
}

// FormatValue renders a cell for text output.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(x)
	}
}
