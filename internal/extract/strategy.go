// Package extract turns raw HTML, Markdown, feed and JSON text into
// normalized items.
package extract

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hoanghai1803/pushkit/internal/models"
)

// MinTextLen is the shortest entry text kept; anything shorter is noise.
const MinTextLen = 6

// Source is raw fetched text plus the base URL relative links resolve against.
type Source struct {
	Text    string
	BaseURL string
}

// Strategy is one named way of extracting items from a Source.
type Strategy[T any] struct {
	Name    string
	Extract func(Source) ([]T, error)
}

// Cascade runs the strategies in order and returns the result of the first
// one yielding at least one item, along with its name. Results of later
// strategies are never merged in. A strategy that errors counts as empty.
func Cascade[T any](src Source, strategies ...Strategy[T]) ([]T, string) {
	for _, s := range strategies {
		items, err := s.Extract(src)
		if err != nil {
			slog.Debug("extraction strategy failed", "strategy", s.Name, "error", err)
			continue
		}
		if len(items) > 0 {
			return items, s.Name
		}
	}
	return nil, ""
}

// Dedup drops items whose dedup key was already seen, compared
// case-insensitively. The first occurrence wins; items with an empty key are
// dropped.
func Dedup[T models.Item](items []T) []T {
	seen := make(map[string]bool, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := strings.ToLower(strings.TrimSpace(it.DedupKey()))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}

var whitespace = regexp.MustCompile(`\s+`)

// collapse folds runs of whitespace into single spaces and trims.
func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func tooShort(s string) bool {
	return utf8.RuneCountInString(s) < MinTextLen
}

// absolutize resolves href against base. Only root-relative paths are
// rewritten; other relative forms are returned unchanged.
func absolutize(href, base string) string {
	h := strings.TrimSpace(href)
	switch {
	case h == "":
		return ""
	case strings.HasPrefix(strings.ToLower(h), "http://"), strings.HasPrefix(strings.ToLower(h), "https://"):
		return h
	case strings.HasPrefix(h, "/"):
		return strings.TrimRight(base, "/") + h
	}
	return h
}
