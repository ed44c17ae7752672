package citation

// Merge combines two citation lists, deduplicating by normalized URL.
// Existing citations keep their position and ID; when the same URL appears
// in both lists the entry with richer metadata wins the title and favicon.
// The merged list is renumbered 1..N.
func Merge(existing, incoming []Citation) []Citation {
	merged := make([]Citation, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))

	add := func(c Citation) {
		key := NormalizeURL(c.URL)
		pos, seen := index[key]
		if !seen {
			index[key] = len(merged)
			merged = append(merged, c)
			return
		}
		if richness(c) > richness(merged[pos]) {
			merged[pos].Title = c.Title
			merged[pos].Favicon = c.Favicon
		}
	}

	for _, c := range existing {
		add(c)
	}
	for _, c := range incoming {
		add(c)
	}

	Renumber(merged)
	return merged
}

// Renumber rewrites display numbers to 1..N in list order.
func Renumber(citations []Citation) {
	for i := range citations {
		citations[i].DisplayNumber = i + 1
	}
}

// richness scores how much usable metadata a citation carries. A title that
// is just the domain fallback counts for nothing.
func richness(c Citation) int {
	score := 0
	if c.Title != "" && c.Title != c.Domain {
		score += 2
	}
	if c.Favicon != "" {
		score++
	}
	return score
}
