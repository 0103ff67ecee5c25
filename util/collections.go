package util

import "slices"

// ListContainsElement returns true if the given list contains the given element.
func ListContainsElement[S ~[]E, E comparable](list S, element E) bool {
	return slices.Contains(list, element)
}

// RemoveDuplicatesFromList returns a copy of the given list with all duplicates removed, keeping the first encountered.
func RemoveDuplicatesFromList[S ~[]E, E comparable](list S) S {
	out := make(S, 0, len(list))
	present := make(map[E]bool, len(list))

	for _, item := range list {
		if present[item] {
			continue
		}

		present[item] = true

		out = append(out, item)
	}

	return out
}
