// Package args turns a job's invocation argument into named values and
// resolves each logical parameter against persisted settings and defaults.
package args

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Values is a parsed invocation argument keyed by parameter name.
type Values map[string]string

var placeholderPattern = regexp.MustCompile(`^\{[A-Za-z0-9_]+\}$`)

// IsPlaceholder reports whether v is an unfilled template token such as
// "{netNode}", left behind when a user did not fill a settings field.
func IsPlaceholder(v string) bool {
	return placeholderPattern.MatchString(strings.TrimSpace(v))
}

// Parse interprets a raw argument string. It accepts:
//
//   - an empty string (no values)
//   - a JSON object literal, parsed leniently
//   - a query string "a=1&b=2" (a single "a=1" is also accepted)
//   - any other text, stored under bareKey
func Parse(raw, bareKey string) Values {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Values{}
	}

	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && !IsPlaceholder(s) {
		var obj map[string]any
		if err := json5.Unmarshal([]byte(s), &obj); err == nil {
			return FromMap(obj)
		}
	}

	if strings.Contains(s, "=") {
		return ParseQuery(s)
	}

	if bareKey == "" {
		return Values{}
	}
	return Values{bareKey: s}
}

// ParseQuery splits qs on "&" and each segment on its first "=". Keys and
// values are percent-decoded; a segment without "=" maps to "". Segments
// that fail to decode keep their raw text.
func ParseQuery(qs string) Values {
	out := Values{}
	for _, part := range strings.Split(strings.TrimPrefix(qs, "?"), "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		out[unescape(k)] = unescape(v)
	}
	return out
}

func unescape(s string) string {
	d, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return d
}

// FromMap converts a pre-parsed mapping into Values. Numbers and booleans
// are formatted back to text, lists are joined with commas and nulls are
// dropped.
func FromMap(m map[string]any) Values {
	out := make(Values, len(m))
	for k, v := range m {
		if s, ok := stringify(v); ok {
			out[k] = s
		}
	}
	return out
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := stringify(e); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ","), true
	default:
		return fmt.Sprint(t), true
	}
}

// String renders the values back as a sorted query string, for logs and
// run records.
func (v Values) String() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.PathEscape(k)+"="+url.PathEscape(v[k]))
	}
	return strings.Join(parts, "&")
}
