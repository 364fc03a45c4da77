package evaluation

// RecallAtK computes Recall@K: the fraction of relevant items found in the top-K retrieved results.
// Returns 0.0 if relevant is empty.
func RecallAtK[T comparable](relevant, retrieved []T, k int) float64 {
	if len(relevant) == 0 {
		return 0.0
	}

	relevantSet := toSet(relevant)
	found := 0
	for _, r := range topK(retrieved, k) {
		if _, ok := relevantSet[r]; ok {
			found++
			// Count each relevant item once even if retrieved twice.
			delete(relevantSet, r)
		}
	}

	return float64(found) / float64(len(relevant))
}

// MRRAtK computes Mean Reciprocal Rank at K: the reciprocal of the rank of the first relevant item
// in the top-K retrieved results. Returns 0.0 if no relevant item is found in top-K.
func MRRAtK[T comparable](relevant, retrieved []T, k int) float64 {
	if len(relevant) == 0 || len(retrieved) == 0 {
		return 0.0
	}

	relevantSet := toSet(relevant)
	for i, r := range topK(retrieved, k) {
		if _, ok := relevantSet[r]; ok {
			return 1.0 / float64(i+1)
		}
	}

	return 0.0
}

func toSet[T comparable](items []T) map[T]struct{} {
	set := make(map[T]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func topK[T any](items []T, k int) []T {
	if k >= 0 && k < len(items) {
		return items[:k]
	}
	return items
}
