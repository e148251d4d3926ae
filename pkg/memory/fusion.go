package memory

import "sort"

// FuseCandidates merges vector and lexical search hits into a single
// candidate set using weighted additive score fusion keyed by entry ID.
// Each signal contributes rawScore * weight; entries present in only one
// signal keep that single contribution. The fusion is purely additive, so
// the result is independent of signal order. Each hit list is capped at
// poolSize before fusing.
func FuseCandidates(vectorHits, lexicalHits []SearchHit, weights WeightPair, poolSize int) []*ScoredCandidate {
	if poolSize > 0 {
		if len(vectorHits) > poolSize {
			vectorHits = vectorHits[:poolSize]
		}
		if len(lexicalHits) > poolSize {
			lexicalHits = lexicalHits[:poolSize]
		}
	}

	merged := make(map[string]*ScoredCandidate, len(vectorHits)+len(lexicalHits))

	for rank, hit := range vectorHits {
		c := merged[hit.ID]
		if c == nil {
			c = &ScoredCandidate{Entry: &MemoryEntry{ID: hit.ID}}
			merged[hit.ID] = c
		}
		c.Score += hit.Score * weights.Vector
		c.Provenance.VectorScore = hit.Score
		c.Provenance.VectorRank = rank + 1
	}

	for rank, hit := range lexicalHits {
		c := merged[hit.ID]
		if c == nil {
			c = &ScoredCandidate{Entry: &MemoryEntry{ID: hit.ID}}
			merged[hit.ID] = c
		}
		c.Score += hit.Score * weights.BM25
		c.Provenance.BM25Score = hit.Score
		c.Provenance.BM25Rank = rank + 1
	}

	candidates := make([]*ScoredCandidate, 0, len(merged))
	for _, c := range merged {
		c.Provenance.FusedScore = c.Score
		candidates = append(candidates, c)
	}

	sortCandidates(candidates)
	return candidates
}

// sortCandidates orders candidates by score descending, breaking ties by
// entry ID so the ordering is deterministic.
func sortCandidates(candidates []*ScoredCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Entry.ID < candidates[j].Entry.ID
	})
}
