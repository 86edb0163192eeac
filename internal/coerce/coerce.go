// Package coerce parses loosely typed text into typed values and reports
// whether the value came from the input or from a fallback default.
//
// Callers branch on Result.Fallback instead of treating zero or empty values
// as missing, so a legitimate "0" stays distinguishable from "not provided".
package coerce

import (
	"strconv"
	"strings"
)

// Result is a parsed value tagged with its provenance.
type Result[T any] struct {
	Value    T
	Fallback bool
	Reason   string
}

// Ok wraps a value parsed from the input.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Default wraps a fallback value together with the reason the input was not used.
func Default[T any](v T, reason string) Result[T] {
	return Result[T]{Value: v, Fallback: true, Reason: reason}
}

// Int parses s as a base-10 integer. Thousands separators and surrounding
// whitespace are ignored. A leading integer prefix is accepted ("15 items"
// parses as 15) to match how user-entered counts tend to look.
func Int(s string, def int) Result[int] {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if clean == "" {
		return Default(def, "empty")
	}
	end := 0
	for end < len(clean) {
		c := clean[end]
		if (c >= '0' && c <= '9') || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	n, err := strconv.Atoi(clean[:end])
	if err != nil {
		return Default(def, "not a number: "+s)
	}
	return Ok(n)
}

// IntInRange parses s like Int and clamps the result to [lo, hi]. A value
// that had to be clamped is still reported as parsed.
func IntInRange(s string, def, lo, hi int) Result[int] {
	r := Int(s, def)
	r.Value = Clamp(r.Value, lo, hi)
	return r
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}

// Float parses s as a decimal number with thousands separators stripped.
func Float(s string) Result[float64] {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if clean == "" {
		return Default(0.0, "empty")
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return Default(0.0, "not a number: "+s)
	}
	return Ok(v)
}

// Bool parses common truthy and falsy spellings.
func Bool(s string, def bool) Result[bool] {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return Default(def, "empty")
	case "1", "true", "yes", "y", "on":
		return Ok(true)
	case "0", "false", "no", "n", "off":
		return Ok(false)
	default:
		return Default(def, "not a boolean: "+s)
	}
}

// List splits a comma-separated value into trimmed, lower-cased, non-empty
// entries.
func List(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
