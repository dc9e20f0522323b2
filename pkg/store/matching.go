package store

import "strings"

// ResolveCourseName picks the best-matching known title for a user-supplied
// course name. Exact match wins, then case-insensitive equality, then
// substring containment, then highest token overlap. Returns "" when nothing
// matches.
func ResolveCourseName(name string, titles []string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	for _, t := range titles {
		if t == name {
			return t
		}
	}
	lower := strings.ToLower(name)
	for _, t := range titles {
		if strings.ToLower(t) == lower {
			return t
		}
	}
	for _, t := range titles {
		if strings.Contains(strings.ToLower(t), lower) {
			return t
		}
	}
	words := strings.Fields(lower)
	best := ""
	bestScore := 0
	for _, t := range titles {
		lt := strings.ToLower(t)
		score := 0
		for _, w := range words {
			if strings.Contains(lt, w) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = t
		}
	}
	return best
}
