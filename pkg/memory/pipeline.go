package memory

import "math"

// ScoringParams holds the multipliers and horizons for the scoring
// pipeline. All stages are pure; a stage whose parameter disables it
// returns the input score unchanged.
type ScoringParams struct {
	// RecencyHalfLifeDays controls the short-horizon boost. <= 0 disables.
	RecencyHalfLifeDays float64

	// RecencyWeight scales the recency boost contribution.
	RecencyWeight float64

	// LengthNormAnchor is the content length where the length penalty
	// starts. <= 0 disables.
	LengthNormAnchor float64

	// TimeDecayHalfLifeDays controls the long-horizon decay. <= 0 disables.
	TimeDecayHalfLifeDays float64

	// HardMinScore is the terminal cutoff applied after all transforms.
	HardMinScore float64
}

// RecencyBoost amplifies recently created entries:
//
//	score * (1 + exp(-age/halfLife) * weight)
//
// The boost approaches 1+weight for brand-new entries and fades toward 1
// as the entry ages.
func RecencyBoost(score, ageDays float64, p ScoringParams) float64 {
	if p.RecencyHalfLifeDays <= 0 || p.RecencyWeight <= 0 {
		return score
	}
	if ageDays < 0 {
		ageDays = 0
	}
	return score * (1 + math.Exp(-ageDays/p.RecencyHalfLifeDays)*p.RecencyWeight)
}

// ImportanceWeight scales by stored importance: score * (0.7 + 0.3*imp).
// An importance of 0 still keeps 70% of the score; 1.0 keeps it intact.
func ImportanceWeight(score, importance float64) float64 {
	if importance < 0 {
		importance = 0
	} else if importance > 1 {
		importance = 1
	}
	return score * (0.7 + 0.3*importance)
}

// LengthNormalize penalizes entries much longer than the anchor length:
//
//	score * 1 / (1 + 0.5*log2(max(1, len/anchor)))
//
// Entries at or below the anchor are untouched; the penalty grows
// logarithmically past it.
func LengthNormalize(score float64, contentLen int, p ScoringParams) float64 {
	if p.LengthNormAnchor <= 0 || contentLen <= 0 {
		return score
	}
	ratio := float64(contentLen) / p.LengthNormAnchor
	if ratio < 1 {
		ratio = 1
	}
	return score / (1 + 0.5*math.Log2(ratio))
}

// TimeDecay applies the long-horizon decay floor:
//
//	score * (0.5 + 0.5*exp(-age/halfLife))
//
// The multiplier is bounded to [0.5, 1], so even ancient entries keep
// half their score.
func TimeDecay(score, ageDays float64, p ScoringParams) float64 {
	if p.TimeDecayHalfLifeDays <= 0 {
		return score
	}
	if ageDays < 0 {
		ageDays = 0
	}
	return score * (0.5 + 0.5*math.Exp(-ageDays/p.TimeDecayHalfLifeDays))
}

// ApplyBoosts runs the fixed-order boost stages on a candidate score:
// recency, then importance, then length normalization.
func ApplyBoosts(score float64, entry *MemoryEntry, ageDays float64, p ScoringParams) float64 {
	score = RecencyBoost(score, ageDays, p)
	score = ImportanceWeight(score, entry.Importance)
	score = LengthNormalize(score, len([]rune(entry.Content)), p)
	return score
}

// ApplyCutoff drops candidates scoring below the hard minimum. This is
// the terminal filter; nothing downstream may resurrect a dropped
// candidate.
func ApplyCutoff(candidates []*ScoredCandidate, hardMinScore float64) []*ScoredCandidate {
	kept := candidates[:0]
	for _, c := range candidates {
		if c.Score >= hardMinScore {
			kept = append(kept, c)
		}
	}
	return kept
}
