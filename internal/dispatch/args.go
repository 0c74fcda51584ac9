package dispatch

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// PackArguments serializes value into the literal argument-bundle string
// handed to an action (spec.md §3 "Argument-bundle"): a scalar is wrapped
// into a one-element JSON array; a sequence or mapping is passed through
// as its own JSON encoding.
func PackArguments(value any) (string, error) {
	switch value.(type) {
	case []any, map[string]any, nil:
		b, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		if value == nil {
			return "[null]", nil
		}
		return string(b), nil

	default:
		b, err := json.Marshal([]any{value})
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// Bundle is a parsed argument-bundle, readable either positionally (when
// the underlying JSON value is an array) or by key (when it is an object).
type Bundle struct {
	seq []any
	obj map[string]any
}

// ParseBundle parses the raw argument-bundle string produced by
// PackArguments (or received over the wire in the same form).
func ParseBundle(raw string) (*Bundle, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("parsing argument bundle: %w", err)
	}

	b := &Bundle{}
	switch t := v.(type) {
	case []any:
		b.seq = t
	case map[string]any:
		b.obj = t
	default:
		b.seq = []any{t}
	}

	return b, nil
}

// Len returns the number of positional elements, or 0 for a keyed bundle.
func (b *Bundle) Len() int {
	return len(b.seq)
}

func (b *Bundle) at(i int) (any, bool) {
	if i < 0 || i >= len(b.seq) {
		return nil, false
	}
	return b.seq[i], true
}

func (b *Bundle) key(name string) (any, bool) {
	if b.obj == nil {
		return nil, false
	}
	v, ok := b.obj[name]
	return v, ok
}

// String reads the positional element at i as a string, falling back to
// def when absent or not coercible.
func (b *Bundle) String(i int, def string) string {
	v, ok := b.at(i)
	if !ok {
		return def
	}
	return coerceString(v, def)
}

// Int reads the positional element at i as an int.
func (b *Bundle) Int(i int, def int) int {
	v, ok := b.at(i)
	if !ok {
		return def
	}
	return int(coerceFloat(v, float64(def)))
}

// Float reads the positional element at i as a float64.
func (b *Bundle) Float(i int, def float64) float64 {
	v, ok := b.at(i)
	if !ok {
		return def
	}
	return coerceFloat(v, def)
}

// Bool reads the positional element at i as a bool.
func (b *Bundle) Bool(i int, def bool) bool {
	v, ok := b.at(i)
	if !ok {
		return def
	}
	return coerceBool(v, def)
}

// StringKey reads key from a keyed (mapping) bundle.
func (b *Bundle) StringKey(key string, def string) string {
	v, ok := b.key(key)
	if !ok {
		return def
	}
	return coerceString(v, def)
}

// IntKey reads key from a keyed (mapping) bundle.
func (b *Bundle) IntKey(key string, def int) int {
	v, ok := b.key(key)
	if !ok {
		return def
	}
	return int(coerceFloat(v, float64(def)))
}

// BoolKey reads key from a keyed (mapping) bundle.
func (b *Bundle) BoolKey(key string, def bool) bool {
	v, ok := b.key(key)
	if !ok {
		return def
	}
	return coerceBool(v, def)
}

func coerceString(v any, def string) string {
	switch t := v.(type) {
	case string:
		return t
	case float64, bool:
		return fmt.Sprintf("%v", t)
	case nil:
		return def
	default:
		return def
	}
}

func coerceFloat(v any, def float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

func coerceBool(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}
