package tool

import (
	"fmt"
	"time"
)

// Accepted timestamp layouts for time-valued arguments, tried in order.
// Mirrors the formats users and models actually produce.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a timestamp argument, accepting RFC 3339 and the common
// space-separated and date-only forms. Layouts without a zone are read as UTC.
func ParseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (want RFC 3339, YYYY-MM-DD HH:MM or YYYY-MM-DD)", value)
}

// StringArg reads an optional string argument, returning fallback when absent.
func StringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// FloatArg reads an optional numeric argument, returning fallback when absent.
func FloatArg(args map[string]any, key string, fallback float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

// IntArg reads an optional integer argument, returning fallback when absent.
// JSON numbers arrive as float64 and are truncated.
func IntArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// BoolArg reads an optional boolean argument, returning fallback when absent.
func BoolArg(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

// StringSliceArg reads an optional string array argument in either the
// []string form or the []any form produced by JSON decoding.
func StringSliceArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// TimeArg reads a required time argument.
func TimeArg(args map[string]any, key string) (time.Time, error) {
	s, ok := args[key].(string)
	if !ok || s == "" {
		return time.Time{}, fmt.Errorf("missing time argument %q", key)
	}
	return ParseTime(s)
}
