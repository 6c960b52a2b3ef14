// Package sliceutil provides generic slice manipulation utilities.
package sliceutil

// Deduplicate removes duplicate items from a slice while preserving order.
// The keyFunc extracts a unique key from each item for comparison.
// Only the first occurrence of each key is kept.
//
// Example:
//
//	aliases := []api.CourseAlias{{Code: "CS-A1110"}, {Code: "CS-A1120"}, {Code: "CS-A1110"}}
//	unique := sliceutil.Deduplicate(aliases, func(a api.CourseAlias) string { return a.Code })
//	// Result: [{Code: "CS-A1110"}, {Code: "CS-A1120"}]
func Deduplicate[T any, K comparable](items []T, keyFunc func(T) K) []T {
	if len(items) == 0 {
		return items
	}

	seen := make(map[K]struct{}, len(items))
	result := make([]T, 0, len(items))

	for _, item := range items {
		key := keyFunc(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
	}

	return result
}
