// Package memory provides a hybrid memory retrieval system combining
// vector similarity, BM25 full-text search, multi-stage relevance scoring,
// and diversity-aware result selection.
package memory

import (
	"time"
)

// Category classifies what kind of knowledge a memory entry holds.
type Category string

// Valid entry categories.
const (
	CategoryPreference Category = "preference"
	CategoryFact       Category = "fact"
	CategoryDecision   Category = "decision"
	CategoryEntity     Category = "entity"
	CategoryOther      Category = "other"
)

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryPreference, CategoryFact, CategoryDecision, CategoryEntity, CategoryOther:
		return true
	}
	return false
}

// MemoryEntry represents a single memory entry stored in the system.
type MemoryEntry struct {
	// ID is the unique identifier for this memory entry.
	ID string `json:"id"`

	// Scope isolates memories by owner (agent, session, or user).
	Scope string `json:"scope"`

	// Content is the raw text content of the memory.
	Content string `json:"content"`

	// Vector is the embedding vector for semantic retrieval.
	// May be nil if the entry was stored without a vector.
	Vector []float32 `json:"vector,omitempty"`

	// Category classifies the entry (preference, fact, decision, entity, other).
	Category Category `json:"category"`

	// Importance weights the entry during scoring (0.0 to 1.0).
	Importance float64 `json:"importance"`

	// Metadata holds arbitrary key-value pairs for filtering.
	Metadata map[string]string `json:"metadata,omitempty"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the last modification timestamp.
	UpdatedAt time.Time `json:"updated_at"`
}

// AgeDays returns the entry age in fractional days relative to now.
func (e *MemoryEntry) AgeDays(now time.Time) float64 {
	age := now.Sub(e.CreatedAt)
	if age < 0 {
		return 0
	}
	return age.Hours() / 24
}

// RetrievalRequest describes a retrieval query against the memory system.
type RetrievalRequest struct {
	// Query is the natural language query text.
	Query string `json:"query"`

	// Limit caps the number of results. Zero means the configured default.
	Limit int `json:"limit,omitempty"`

	// Category restricts results to a single category when non-empty.
	Category Category `json:"category,omitempty"`

	// Filters are metadata key-value pairs for filtering results.
	Filters map[string]string `json:"filters,omitempty"`
}

// WeightPair holds the fusion multipliers for the two search signals.
type WeightPair struct {
	// Vector is the multiplier applied to vector search scores.
	Vector float64 `json:"vector"`

	// BM25 is the multiplier applied to lexical search scores.
	BM25 float64 `json:"bm25"`
}

// SearchHit is a raw result from one search signal.
type SearchHit struct {
	// ID is the matched entry ID.
	ID string `json:"id"`

	// Score is the normalized signal score in [0, 1].
	Score float64 `json:"score"`
}

// Provenance records how a candidate earned its score.
type Provenance struct {
	// VectorScore is the raw vector similarity, when the vector signal hit.
	VectorScore float64 `json:"vector_score,omitempty"`

	// VectorRank is the 1-based rank in the vector result list (0 = no hit).
	VectorRank int `json:"vector_rank,omitempty"`

	// BM25Score is the raw lexical score, when the lexical signal hit.
	BM25Score float64 `json:"bm25_score,omitempty"`

	// BM25Rank is the 1-based rank in the lexical result list (0 = no hit).
	BM25Rank int `json:"bm25_rank,omitempty"`

	// FusedScore is the weighted sum the candidate entered the pipeline with.
	FusedScore float64 `json:"fused_score"`

	// Reranked indicates the cross-encoder contributed to the final score.
	Reranked bool `json:"reranked,omitempty"`

	// RerankScore is the raw cross-encoder relevance, when reranked.
	RerankScore float64 `json:"rerank_score,omitempty"`
}

// ScoredCandidate is a candidate moving through the scoring pipeline.
type ScoredCandidate struct {
	// Entry is the candidate memory entry.
	Entry *MemoryEntry `json:"entry"`

	// Score is the current pipeline score (higher is better).
	Score float64 `json:"score"`

	// Provenance records the signal contributions.
	Provenance Provenance `json:"provenance"`
}

// RetrievalResult wraps a memory entry with its final relevance score.
type RetrievalResult struct {
	// Entry is the matched memory entry.
	Entry *MemoryEntry `json:"entry"`

	// Score is the final relevance score (higher is better).
	Score float64 `json:"score"`

	// Provenance records the signal contributions.
	Provenance Provenance `json:"provenance"`
}

// MemoryStats holds statistics about memory usage within a scope.
type MemoryStats struct {
	// TotalEntries is the total number of memory entries.
	TotalEntries int `json:"total_entries"`

	// AverageImportance is the mean importance across all entries.
	AverageImportance float64 `json:"average_importance"`

	// Categories counts entries per category.
	Categories map[Category]int `json:"categories,omitempty"`

	// OldestCreatedAt is the creation time of the oldest entry.
	OldestCreatedAt time.Time `json:"oldest_created_at,omitempty"`

	// NewestCreatedAt is the creation time of the newest entry.
	NewestCreatedAt time.Time `json:"newest_created_at,omitempty"`
}
