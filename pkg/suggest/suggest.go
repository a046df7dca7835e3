// Package suggest finds likely intended names for a mistyped one.
package suggest

import (
	"cmp"
	"slices"
	"strings"

	"github.com/agext/levenshtein"
)

// threshold is the minimum similarity score required for a candidate to be suggested.
const threshold = 0.5

type scored struct {
	name  string
	score float64
}

// FindSimilar returns up to maxResults candidates similar to target, best first. Option prefixes
// like "--" are ignored when comparing.
func FindSimilar(target string, candidates []string, maxResults int) []string {
	if target == "" || maxResults <= 0 {
		return []string{}
	}
	var suggestions []scored
	for _, name := range candidates {
		if score := calculateSimilarity(target, name); score > threshold {
			suggestions = append(suggestions, scored{name, score})
		}
	}
	slices.SortFunc(suggestions, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	result := make([]string, 0, min(maxResults, len(suggestions)))
	for _, s := range suggestions[:min(maxResults, len(suggestions))] {
		result = append(result, s.name)
	}
	return result
}

func calculateSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimLeft(a, "-"))
	b = strings.ToLower(strings.TrimLeft(b, "-"))
	if a == b {
		return 1.0
	}
	if a != "" && strings.HasPrefix(b, a) {
		return 0.9
	}
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein.Distance(a, b, nil))/float64(maxLen)
}
