package domain

import (
	"iter"
	"strings"
)

// CategoryAll is the sentinel category meaning "no filter".
const CategoryAll = "all"

// DistinctCategories yields CategoryAll followed by each distinct category
// in the order it first appears. The sequence reads quotes lazily, so it must
// be requested again after the quote list changes.
func DistinctCategories(quotes []Quote) iter.Seq[string] {
	return func(yield func(string) bool) {
		if !yield(CategoryAll) {
			return
		}

		seen := make(map[string]struct{}, len(quotes))
		for _, q := range quotes {
			if _, ok := seen[q.Category]; ok {
				continue
			}
			seen[q.Category] = struct{}{}

			if !yield(q.Category) {
				return
			}
		}
	}
}

// IsAllCategories reports whether category selects every quote.
func IsAllCategories(category string) bool {
	category = strings.TrimSpace(category)
	return category == "" || strings.EqualFold(category, CategoryAll)
}

// FilterByCategory returns the quotes visible under the given selection.
// The result never aliases the input slice.
func FilterByCategory(quotes []Quote, category string) []Quote {
	if IsAllCategories(category) {
		out := make([]Quote, len(quotes))
		copy(out, quotes)
		return out
	}

	category = strings.TrimSpace(category)
	out := make([]Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.Category == category {
			out = append(out, q)
		}
	}

	return out
}
