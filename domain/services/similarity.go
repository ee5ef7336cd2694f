package services

// TagJaccard returns |a ∩ b| / |a ∪ b| for two tag sets. Two empty sets
// are not similar.
func TagJaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	intersection := 0
	union := len(set)
	seenB := make(map[string]bool, len(b))
	for _, t := range b {
		if seenB[t] {
			continue
		}
		seenB[t] = true
		if set[t] {
			intersection++
		} else {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

// SharedTags lists tags present in both sets, in a's order.
func SharedTags(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, t := range b {
		set[t] = true
	}
	var shared []string
	for _, t := range a {
		if set[t] {
			shared = append(shared, t)
		}
	}
	return shared
}
