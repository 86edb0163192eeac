// Package rank splits extracted items into focus and rest lists, drops
// already-delivered items and truncates each list.
package rank

import (
	"strings"

	"github.com/hoanghai1803/pushkit/internal/models"
)

// Filter configures Split.
type Filter[T models.Item] struct {
	// Keywords are matched case-insensitively against SearchText. An empty
	// list matches everything.
	Keywords []string
	// Pass is the numeric threshold test. Nil passes every item.
	Pass func(T) bool
	// Delivered reports whether a dedup key was already sent. Nil means
	// nothing was.
	Delivered func(key string) bool
	// MaxFocus and MaxRest bound the returned lists. Zero or negative
	// returns an empty list.
	MaxFocus int
	MaxRest  int
}

// Result is the outcome of Split. The counts are taken after excluding
// delivered items and before truncation.
type Result[T models.Item] struct {
	Focus      []T
	Rest       []T
	FocusCount int
	RestCount  int
	Excluded   int
}

// Total is the number of items considered after exclusion.
func (r Result[T]) Total() int {
	return r.FocusCount + r.RestCount
}

// Split partitions items into focus (keyword hit and threshold pass) and
// rest, preserving input order, then excludes delivered items and truncates
// both lists independently.
func Split[T models.Item](items []T, f Filter[T]) Result[T] {
	var res Result[T]
	var focus, rest []T
	for _, it := range items {
		if f.Delivered != nil && f.Delivered(it.DedupKey()) {
			res.Excluded++
			continue
		}
		if MatchKeywords(it.SearchText(), f.Keywords) && (f.Pass == nil || f.Pass(it)) {
			focus = append(focus, it)
		} else {
			rest = append(rest, it)
		}
	}

	res.FocusCount, res.RestCount = len(focus), len(rest)
	res.Focus = truncate(focus, f.MaxFocus)
	res.Rest = truncate(rest, f.MaxRest)
	return res
}

// MatchKeywords reports whether text contains any keyword, ignoring case.
// A list with no non-blank keyword matches everything.
func MatchKeywords(text string, keywords []string) bool {
	hay := strings.ToLower(text)
	sawKeyword := false
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if strings.Contains(hay, k) {
			return true
		}
		sawKeyword = true
	}
	return !sawKeyword
}

func truncate[T any](items []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}
