// Package safejson extracts values from decoded semi-structured payloads
// without panicking on missing keys, nulls, or mistyped fields.
//
// External registries routinely return the wrong shape (numbers as strings,
// single values where lists are documented, nulls everywhere). Every accessor
// here converts where it safely can and otherwise returns the caller's
// default, so parsers degrade field by field instead of failing whole
// responses.
package safejson

import (
	"fmt"
	"strconv"
	"strings"
)

// Str returns data[key] as a string. Numbers and booleans are stringified,
// nil and absent keys yield def.
func Str(data map[string]any, key, def string) string {
	v, ok := lookup(data, key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Bool returns data[key] as a bool. Strings accept true/1/yes/tak, numbers
// are non-zero, nil and absent keys yield def.
func Bool(data map[string]any, key string, def bool) bool {
	v, ok := lookup(data, key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "tak":
			return true
		case "false", "0", "no", "nie":
			return false
		}
		return def
	case float64:
		return t != 0
	default:
		return def
	}
}

// Map returns data[key] as an object, or nil when it is anything else.
func Map(data map[string]any, key string) map[string]any {
	v, ok := lookup(data, key)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

// Slice returns data[key] as a list. A single scalar is promoted to a
// one-element list, which covers sources that collapse singleton arrays.
func Slice(data map[string]any, key string) []any {
	v, ok := lookup(data, key)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		return nil
	default:
		return []any{t}
	}
}

// StrSlice returns data[key] as a list of non-empty strings, dropping
// entries that are not strings.
func StrSlice(data map[string]any, key string) []string {
	raw := Slice(data, key)
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func lookup(data map[string]any, key string) (any, bool) {
	if data == nil {
		return nil, false
	}
	v, ok := data[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
