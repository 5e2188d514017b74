package model

import (
	"encoding/json"
	"slices"
	"strconv"
	"time"
)

// Value is the tagged value held by a form field: text, boolean or a list of
// option values.
type Value struct {
	shape ValueShape
	text  string
	flag  bool
	list  []string
}

// TextValue returns a scalar value.
func TextValue(s string) Value {
	return Value{shape: ShapeText, text: s}
}

// BoolValue returns a boolean value.
func BoolValue(b bool) Value {
	return Value{shape: ShapeBool, flag: b}
}

// ListValue returns a list value holding a copy of items.
func ListValue(items ...string) Value {
	return Value{shape: ShapeList, list: append([]string{}, items...)}
}

// EmptyValue returns the empty value for kind: false, [] or "".
func EmptyValue(kind FieldKind) Value {
	switch kind.Shape() {
	case ShapeBool:
		return BoolValue(false)
	case ShapeList:
		return ListValue()
	case ShapeText:
		return TextValue("")
	default:
		return Value{}
	}
}

func (v Value) Shape() ValueShape { return v.shape }
func (v Value) Text() string      { return v.text }
func (v Value) Bool() bool        { return v.flag }

// List returns a copy of the list items.
func (v Value) List() []string {
	return append([]string{}, v.list...)
}

// IsEmpty reports kind emptiness: "" for text, false for bool, no items for
// list. Structural values are always empty.
func (v Value) IsEmpty() bool {
	switch v.shape {
	case ShapeText:
		return v.text == ""
	case ShapeBool:
		return !v.flag
	case ShapeList:
		return len(v.list) == 0
	default:
		return true
	}
}

// Contains reports whether a list value holds item.
func (v Value) Contains(item string) bool {
	return slices.Contains(v.list, item)
}

// Toggle adds item to a list value, or removes it if present.
func (v Value) Toggle(item string) Value {
	if v.Contains(item) {
		out := make([]string, 0, len(v.list))
		for _, it := range v.list {
			if it != item {
				out = append(out, it)
			}
		}
		return Value{shape: ShapeList, list: out}
	}
	return ListValue(append(v.List(), item)...)
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	return v.shape == o.shape && v.text == o.text && v.flag == o.flag && slices.Equal(v.list, o.list)
}

// Interface returns the plain Go representation: string, bool, []string or nil.
func (v Value) Interface() any {
	switch v.shape {
	case ShapeText:
		return v.text
	case ShapeBool:
		return v.flag
	case ShapeList:
		return v.List()
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// CoerceValue converts raw into a value of kind's shape. Values of the wrong
// shape become the kind's empty value.
func CoerceValue(kind FieldKind, raw any) Value {
	switch kind.Shape() {
	case ShapeBool:
		if b, ok := raw.(bool); ok {
			return BoolValue(b)
		}
	case ShapeList:
		switch items := raw.(type) {
		case []string:
			return ListValue(items...)
		case []any:
			out := make([]string, 0, len(items))
			for _, it := range items {
				s, ok := it.(string)
				if !ok {
					return EmptyValue(kind)
				}
				out = append(out, s)
			}
			return ListValue(out...)
		}
	case ShapeText:
		switch s := raw.(type) {
		case string:
			return TextValue(s)
		case float64:
			return TextValue(strconv.FormatFloat(s, 'f', -1, 64))
		case int:
			return TextValue(strconv.Itoa(s))
		case int64:
			return TextValue(strconv.FormatInt(s, 10))
		case json.Number:
			return TextValue(s.String())
		case time.Time:
			return TextValue(s.Format(time.DateOnly))
		}
	}
	return EmptyValue(kind)
}

// Values maps field ids to their current values.
type Values map[string]Value

// Clone returns an independent copy of vs.
func (vs Values) Clone() Values {
	out := make(Values, len(vs))
	for k, v := range vs {
		out[k] = v.detach()
	}
	return out
}

// Interface returns vs as plain Go values, suitable for submission payloads.
func (vs Values) Interface() map[string]any {
	out := make(map[string]any, len(vs))
	for k, v := range vs {
		out[k] = v.Interface()
	}
	return out
}

func (v Value) detach() Value {
	if v.shape == ShapeList {
		v.list = v.List()
	}
	return v
}
