package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zcb617/openclaw-memory-pro/config"
)

// Retrieval modes.
const (
	ModeHybrid = "hybrid"
	ModeVector = "vector"
)

// VectorSearcher is the semantic search signal.
type VectorSearcher interface {
	Search(ctx context.Context, query []float32, topK int, scope string) ([]SearchHit, error)
}

// LexicalSearcher is the full-text search signal.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, topK int, scope string) ([]SearchHit, error)
}

// RerankResult is one scored document from a cross-encoder.
type RerankResult struct {
	// Index refers to the position in the submitted document list.
	Index int `json:"index"`

	// Relevance is the cross-encoder relevance score.
	Relevance float64 `json:"relevance_score"`
}

// Reranker rescores candidate documents against the query with a
// cross-encoder. Implementations make exactly one attempt and must
// respect the context deadline.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
}

// EntryLoader resolves an entry ID to its stored entry. A nil return
// means the index referenced an entry that no longer exists.
type EntryLoader func(ctx context.Context, id string) *MemoryEntry

// Engine runs the multi-stage retrieval pipeline: classification, dual
// search, fusion, scoring, best-effort reranking, decay, cutoff, and
// diversity selection. The engine is stateless between requests and safe
// for concurrent use.
type Engine struct {
	cfg      config.MemoryConfig
	params   ScoringParams
	vector   VectorSearcher
	lexical  LexicalSearcher
	reranker Reranker
	logger   hubLogger
	metrics  MetricsRecorder

	// now is replaceable in tests.
	now func() time.Time
}

// NewEngine creates a retrieval engine. reranker may be nil to disable
// cross-encoder rescoring.
func NewEngine(cfg config.MemoryConfig, vector VectorSearcher, lexical LexicalSearcher, reranker Reranker, logger hubLogger) *Engine {
	if logger == nil {
		logger = &nopHubLogger{}
	}
	return &Engine{
		cfg: cfg,
		params: ScoringParams{
			RecencyHalfLifeDays:   cfg.RecencyHalfLifeDays,
			RecencyWeight:         cfg.RecencyWeight,
			LengthNormAnchor:      cfg.LengthNormAnchor,
			TimeDecayHalfLifeDays: cfg.TimeDecayHalfLifeDays,
			HardMinScore:          cfg.HardMinScore,
		},
		vector:   vector,
		lexical:  lexical,
		reranker: reranker,
		logger:   logger,
		metrics:  nopMetrics{},
		now:      time.Now,
	}
}

// Retrieve runs the full pipeline for one request. queryVector may be nil
// when no embedding is available; the engine then degrades to the lexical
// signal alone. Results are unique, sorted by score descending (ties by
// entry ID), at most limit long, and every score clears the hard minimum.
func (e *Engine) Retrieve(ctx context.Context, scope string, req RetrievalRequest, queryVector []float32, load EntryLoader) ([]*RetrievalResult, error) {
	if scope == "" {
		return nil, ErrInvalidScope
	}
	if req.Query == "" {
		return nil, ErrInvalidQuery
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}

	weights := WeightPair{Vector: e.cfg.VectorWeight, BM25: e.cfg.BM25Weight}
	if e.cfg.DynamicWeighting {
		weights = ClassifyQuery(req.Query)
	}
	e.metrics.RecordQueryStrategy(strategyLabel(weights, e.cfg.DynamicWeighting))

	vectorHits, lexicalHits, err := e.search(ctx, scope, req.Query, queryVector)
	if err != nil {
		return nil, err
	}

	candidates := FuseCandidates(vectorHits, lexicalHits, weights, e.cfg.CandidatePoolSize)
	e.metrics.RecordFusedCandidates(len(candidates))
	candidates = e.resolve(ctx, candidates, req, load)
	if len(candidates) == 0 {
		return nil, nil
	}

	now := e.now()
	for _, c := range candidates {
		c.Score = ApplyBoosts(c.Score, c.Entry, c.Entry.AgeDays(now), e.params)
	}

	e.rerank(ctx, req.Query, candidates)

	for _, c := range candidates {
		c.Score = TimeDecay(c.Score, c.Entry.AgeDays(now), e.params)
	}
	candidates = ApplyCutoff(candidates, e.params.HardMinScore)

	sortCandidates(candidates)
	candidates = SelectDiverse(candidates, limit, e.cfg.SimilarityThreshold)

	results := make([]*RetrievalResult, len(candidates))
	for i, c := range candidates {
		results[i] = &RetrievalResult{
			Entry:      c.Entry,
			Score:      c.Score,
			Provenance: c.Provenance,
		}
	}
	return results, nil
}

// search runs both signals concurrently. A vector signal failure fails
// the request; a lexical failure degrades to vector-only with a warning.
func (e *Engine) search(ctx context.Context, scope, query string, queryVector []float32) ([]SearchHit, []SearchHit, error) {
	poolSize := e.cfg.CandidatePoolSize

	var (
		wg          sync.WaitGroup
		vectorHits  []SearchHit
		lexicalHits []SearchHit
		vectorErr   error
		lexicalErr  error
	)

	if len(queryVector) > 0 && e.vector != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vectorHits, vectorErr = e.vector.Search(ctx, queryVector, poolSize, scope)
		}()
	}

	if e.cfg.Mode != ModeVector && e.lexical != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lexicalHits, lexicalErr = e.lexical.Search(ctx, query, poolSize, scope)
		}()
	}

	wg.Wait()

	if vectorErr != nil {
		return nil, nil, fmt.Errorf("memory: vector search failed: %w", vectorErr)
	}
	if lexicalErr != nil {
		e.logger.Warn("lexical search failed, degrading to vector-only",
			"scope", scope, "error", lexicalErr)
		lexicalHits = nil
	}
	return vectorHits, lexicalHits, nil
}

// resolve swaps fusion placeholders for stored entries and applies the
// request's category and metadata filters. Candidates whose entries are
// gone from storage are dropped.
func (e *Engine) resolve(ctx context.Context, candidates []*ScoredCandidate, req RetrievalRequest, load EntryLoader) []*ScoredCandidate {
	kept := candidates[:0]
	for _, c := range candidates {
		entry := load(ctx, c.Entry.ID)
		if entry == nil {
			continue
		}
		if req.Category != "" && entry.Category != req.Category {
			continue
		}
		if !matchesFilters(entry, req.Filters) {
			continue
		}
		c.Entry = entry
		kept = append(kept, c)
	}
	return kept
}

// rerank rescores candidates with the cross-encoder when one is
// configured. Any failure is logged and the pre-rerank scores stand; a
// rerank must never fail or empty a retrieval.
func (e *Engine) rerank(ctx context.Context, query string, candidates []*ScoredCandidate) {
	if e.reranker == nil || !e.cfg.Rerank.Enabled || len(candidates) == 0 {
		return
	}
	if err := ctx.Err(); err != nil {
		e.logger.Debug("skipping rerank, request context done", "error", err)
		e.metrics.RecordRerankOutcome("skipped")
		return
	}

	topN := e.cfg.Rerank.TopN
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Entry.Content
	}

	results, err := e.reranker.Rerank(ctx, query, docs, topN)
	if err != nil {
		e.logger.Warn("rerank failed, keeping pipeline scores", "error", err)
		e.metrics.RecordRerankOutcome("failed")
		return
	}
	e.metrics.RecordRerankOutcome("applied")

	for _, r := range results {
		if r.Index < 0 || r.Index >= len(candidates) {
			e.logger.Warn("rerank returned out-of-range index", "index", r.Index)
			continue
		}
		c := candidates[r.Index]
		c.Score = r.Relevance*0.6 + c.Score*0.4
		c.Provenance.Reranked = true
		c.Provenance.RerankScore = r.Relevance
	}
}

// strategyLabel names the weighting strategy behind a fusion weight pair.
func strategyLabel(w WeightPair, dynamic bool) string {
	if !dynamic {
		return "static"
	}
	switch w {
	case weightsSpecific:
		return "specific"
	case weightsAbstract:
		return "abstract"
	default:
		return "default"
	}
}

// matchesFilters checks if an entry matches all metadata filters (AND logic).
func matchesFilters(entry *MemoryEntry, filters map[string]string) bool {
	if len(filters) == 0 {
		return true
	}
	for k, v := range filters {
		if entry.Metadata == nil || entry.Metadata[k] != v {
			return false
		}
	}
	return true
}
