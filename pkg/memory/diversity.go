package memory

import "math"

// SelectDiverse applies greedy diversity selection over score-ordered
// candidates. The top candidate is always taken; each further candidate
// is taken only if its maximum similarity to everything already selected
// stays below the threshold. Selection stops at limit or when the
// candidates run out.
func SelectDiverse(candidates []*ScoredCandidate, limit int, threshold float64) []*ScoredCandidate {
	if limit <= 0 || len(candidates) == 0 {
		return nil
	}

	selected := make([]*ScoredCandidate, 0, limit)
	for _, c := range candidates {
		if len(selected) >= limit {
			break
		}
		if tooSimilar(c, selected, threshold) {
			continue
		}
		selected = append(selected, c)
	}
	return selected
}

func tooSimilar(c *ScoredCandidate, selected []*ScoredCandidate, threshold float64) bool {
	for _, s := range selected {
		if candidateSimilarity(c.Entry, s.Entry) >= threshold {
			return true
		}
	}
	return false
}

// candidateSimilarity measures pairwise similarity for diversity
// filtering. Cosine over embedding vectors is used when both entries
// carry one; otherwise a normalized content-length difference is the
// proxy. The proxy is crude but cheap, and only matters for entries
// stored without vectors.
func candidateSimilarity(a, b *MemoryEntry) float64 {
	if a == nil || b == nil {
		return 0
	}
	if len(a.Vector) > 0 && len(a.Vector) == len(b.Vector) {
		return cosineSimilarity(a.Vector, b.Vector)
	}
	return lengthSimilarity(a.Content, b.Content)
}

// lengthSimilarity approximates similarity as 1 minus the normalized
// length difference.
func lengthSimilarity(a, b string) float64 {
	la := float64(len([]rune(a)))
	lb := float64(len([]rune(b)))
	longest := math.Max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - math.Abs(la-lb)/longest
}
