// Package payload reads provider webhook bodies whose shape varies per channel.
// Every logical field is resolved by an ordered list of pure rules; the first
// rule that yields a value wins.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var ErrNotObject = errors.New("invalid_json")

// Payload is a decoded JSON object.
type Payload map[string]any

// Decode parses raw as a JSON object. Numbers are kept as json.Number so ids
// survive without float rounding.
func Decode(raw []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, ErrNotObject
	}
	if dec.More() {
		return nil, ErrNotObject
	}
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return nil, ErrNotObject
	}
	return Payload(obj), nil
}

// Lookup walks nested objects along path.
func (p Payload) Lookup(path ...string) (any, bool) {
	var cur any = map[string]any(p)
	for _, key := range path {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// String returns the scalar at path rendered as a trimmed string. Objects,
// arrays, booleans and empty strings are a miss.
func (p Payload) String(path ...string) (string, bool) {
	v, ok := p.Lookup(path...)
	if !ok {
		return "", false
	}
	s, ok := scalarString(v)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Object returns the nested object at path.
func (p Payload) Object(path ...string) (Payload, bool) {
	v, ok := p.Lookup(path...)
	if !ok {
		return nil, false
	}
	obj, ok := asObject(v)
	if !ok {
		return nil, false
	}
	return Payload(obj), true
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case Payload:
		return obj, true
	default:
		return nil, false
	}
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), true
	case json.Number:
		return formatNumberString(val.String()), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return "", false
	}
}

func formatNumberString(s string) string {
	if !strings.ContainsAny(s, "eE") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
