package research

// Merge unions two branch states with set-union semantics: learnings
// and URLs are concatenated then deduplicated by exact string equality,
// preserving first-seen order. No fuzzy or semantic matching.
func Merge(a, b State) State {
	return State{
		Learnings:   dedupStrings(append(append([]string{}, a.Learnings...), b.Learnings...)),
		VisitedURLs: dedupStrings(append(append([]string{}, a.VisitedURLs...), b.VisitedURLs...)),
	}
}
