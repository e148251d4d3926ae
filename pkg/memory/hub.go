package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zcb617/openclaw-memory-pro/config"
)

// vectorSnapshotFile is the vector index snapshot name under StoragePath.
const vectorSnapshotFile = "vectors.idx"

// Memory event types emitted to the event sink.
const (
	EventStored       = "memory.stored"
	EventDeleted      = "memory.deleted"
	EventRetrieved    = "memory.retrieved"
	EventScopeCleared = "memory.scope_cleared"
)

// Event describes a change in the memory system.
type Event struct {
	Type      string    `json:"type"`
	Scope     string    `json:"scope"`
	EntryID   string    `json:"entry_id,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSink receives memory events. Publish must not block.
type EventSink interface {
	Publish(event Event)
}

// hubLogger is the minimal logger interface used by the memory package.
type hubLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// nopHubLogger is a no-op logger.
type nopHubLogger struct{}

func (n *nopHubLogger) Debug(msg string, args ...any) {}
func (n *nopHubLogger) Info(msg string, args ...any)  {}
func (n *nopHubLogger) Warn(msg string, args ...any)  {}
func (n *nopHubLogger) Error(msg string, args ...any) {}

// MetricsRecorder receives measurements from the hub and the retrieval
// pipeline. Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	RecordRetrieval(status string, duration time.Duration, results int)
	RecordGateDecision(reason string)
	RecordQueryStrategy(strategy string)
	RecordFusedCandidates(count int)
	RecordRerankOutcome(outcome string)
	RecordStoreOperation(operation, status string)
	SetEntriesTotal(count float64)
	SetCacheHitRate(rate float64)
}

// nopMetrics discards all measurements.
type nopMetrics struct{}

func (nopMetrics) RecordRetrieval(status string, duration time.Duration, results int) {}
func (nopMetrics) RecordGateDecision(reason string)                                   {}
func (nopMetrics) RecordQueryStrategy(strategy string)                                {}
func (nopMetrics) RecordFusedCandidates(count int)                                    {}
func (nopMetrics) RecordRerankOutcome(outcome string)                                 {}
func (nopMetrics) RecordStoreOperation(operation, status string)                      {}
func (nopMetrics) SetEntriesTotal(count float64)                                      {}
func (nopMetrics) SetCacheHitRate(rate float64)                                       {}

// MemoryHub is the concrete implementation of the Hub interface. It owns
// the indexes and storage, evaluates the retrieval gate, and delegates
// the scoring pipeline to the engine.
type MemoryHub struct {
	mu sync.RWMutex

	cfg      *config.MemoryConfig
	storage  *TieredStorage
	vector   *VectorIndex
	bm25     *BM25Index
	engine   *Engine
	embedder Embedder
	logger   hubLogger
	sink     EventSink
	metrics  MetricsRecorder
	started  bool
}

// HubOption customizes hub construction.
type HubOption func(*MemoryHub)

// WithEmbedder sets the embedder used to vectorize content and queries.
func WithEmbedder(e Embedder) HubOption {
	return func(h *MemoryHub) { h.embedder = e }
}

// WithReranker sets the cross-encoder used for best-effort rescoring.
func WithReranker(r Reranker) HubOption {
	return func(h *MemoryHub) { h.engine.reranker = r }
}

// WithEventSink sets the sink receiving memory events.
func WithEventSink(s EventSink) HubOption {
	return func(h *MemoryHub) { h.sink = s }
}

// WithMetrics sets the recorder receiving hub and pipeline measurements.
func WithMetrics(m MetricsRecorder) HubOption {
	return func(h *MemoryHub) {
		if m != nil {
			h.metrics = m
			h.engine.metrics = m
		}
	}
}

// NewMemoryHub creates a new MemoryHub from configuration and storage.
func NewMemoryHub(cfg *config.MemoryConfig, storage *TieredStorage, logger hubLogger, opts ...HubOption) *MemoryHub {
	if logger == nil {
		logger = &nopHubLogger{}
	}

	vectorIdx := NewVectorIndex(cfg.VectorDimension, cfg.MinScore)
	bm25Idx := NewBM25Index(cfg.BM25.K1, cfg.BM25.B)

	h := &MemoryHub{
		cfg:     cfg,
		storage: storage,
		vector:  vectorIdx,
		bm25:    bm25Idx,
		engine:  NewEngine(*cfg, vectorIdx, bm25Idx, nil, logger),
		logger:  logger,
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start restores the indexes from storage and the vector snapshot.
func (h *MemoryHub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return fmt.Errorf("memory hub already started")
	}

	h.logger.Info("starting memory hub",
		"vector_dimension", h.cfg.VectorDimension,
		"mode", h.cfg.Mode,
		"dynamic_weighting", h.cfg.DynamicWeighting,
	)

	if err := h.restoreIndexes(ctx); err != nil {
		return fmt.Errorf("memory: restore indexes: %w", err)
	}

	h.started = true
	h.metrics.SetEntriesTotal(float64(h.bm25.Len()))
	h.logger.Info("memory hub started",
		"vectors", h.vector.Len(), "documents", h.bm25.Len())
	return nil
}

// Stop persists the vector snapshot and shuts down.
func (h *MemoryHub) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return nil
	}

	h.logger.Info("stopping memory hub")
	if h.cfg.StoragePath != "" {
		path := filepath.Join(h.cfg.StoragePath, vectorSnapshotFile)
		if err := h.vector.Save(path); err != nil {
			h.logger.Warn("failed to save vector snapshot", "path", path, "error", err)
		}
	}
	h.started = false
	h.logger.Info("memory hub stopped")
	return nil
}

// Ready reports whether the hub has been started and can serve requests.
func (h *MemoryHub) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// restoreIndexes loads the vector snapshot when present and rebuilds the
// lexical index from storage. Entries whose vectors are missing from the
// snapshot are re-added from their stored copies.
func (h *MemoryHub) restoreIndexes(ctx context.Context) error {
	if h.cfg.StoragePath != "" {
		if err := os.MkdirAll(h.cfg.StoragePath, 0o755); err != nil {
			return err
		}
		path := filepath.Join(h.cfg.StoragePath, vectorSnapshotFile)
		if _, err := os.Stat(path); err == nil {
			if err := h.vector.Load(path); err != nil {
				h.logger.Warn("failed to load vector snapshot, rebuilding", "error", err)
			}
		}
	}

	entries, err := h.storage.AllByScope(ctx, "")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Content != "" {
			h.bm25.IndexDocument(e.ID, e.Scope, e.Content)
		}
		if len(e.Vector) > 0 {
			if err := h.vector.Add(e.ID, e.Scope, e.Vector); err != nil {
				h.logger.Warn("failed to restore vector", "entry_id", e.ID, "error", err)
			}
		}
	}
	return nil
}

// Memorize stores a new memory entry.
func (h *MemoryHub) Memorize(ctx context.Context, scope string, req MemorizeRequest) (string, error) {
	if scope == "" {
		return "", ErrInvalidScope
	}
	if req.Content == "" {
		return "", ErrEmptyContent
	}

	category := req.Category
	if category == "" {
		category = CategoryOther
	}
	if !ValidCategory(category) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, req.Category)
	}

	importance := req.Importance
	if importance == 0 {
		importance = 0.5
	}
	if importance < 0 || importance > 1 {
		return "", ErrInvalidImportance
	}

	vector := req.Vector
	if len(vector) == 0 && h.embedder != nil {
		embedded, err := h.embedder.Embed(ctx, req.Content)
		if err != nil {
			// Entry stays lexically searchable without a vector.
			h.logger.Warn("embedding failed, storing without vector", "scope", scope, "error", err)
		} else {
			vector = embedded
		}
	}

	entryID := uuid.New().String()
	now := time.Now()

	entry := &MemoryEntry{
		ID:         entryID,
		Scope:      scope,
		Content:    req.Content,
		Vector:     vector,
		Category:   category,
		Importance: importance,
		Metadata:   req.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.storage.Store(ctx, entry); err != nil {
		h.metrics.RecordStoreOperation("memorize", "error")
		return "", fmt.Errorf("memory: store failed: %w", err)
	}

	if len(vector) > 0 {
		if err := h.vector.Add(entryID, scope, vector); err != nil {
			h.logger.Warn("failed to index vector", "entry_id", entryID, "error", err)
		}
	}
	h.bm25.IndexDocument(entryID, scope, req.Content)

	h.metrics.RecordStoreOperation("memorize", "ok")
	h.metrics.SetEntriesTotal(float64(h.bm25.Len()))
	h.publish(Event{Type: EventStored, Scope: scope, EntryID: entryID, Timestamp: now})
	return entryID, nil
}

// BatchMemorize stores multiple entries in one call.
func (h *MemoryHub) BatchMemorize(ctx context.Context, scope string, reqs []MemorizeRequest) ([]string, error) {
	if scope == "" {
		return nil, ErrInvalidScope
	}

	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		id, err := h.Memorize(ctx, scope, req)
		if err != nil {
			return ids, fmt.Errorf("memory: batch memorize failed at entry %d: %w", len(ids), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Retrieve evaluates the gate and runs the retrieval pipeline.
func (h *MemoryHub) Retrieve(ctx context.Context, scope string, req RetrievalRequest) ([]*RetrievalResult, error) {
	if scope == "" {
		return nil, ErrInvalidScope
	}
	if req.Query == "" {
		return nil, ErrInvalidQuery
	}

	if h.cfg.NoiseFilter {
		decision := EvaluateGate(req.Query)
		h.metrics.RecordGateDecision(decision.Reason)
		if !decision.Retrieve {
			h.logger.Debug("gate skipped retrieval",
				"scope", scope, "reason", decision.Reason)
			return nil, nil
		}
	}

	var queryVector []float32
	if h.embedder != nil {
		embedded, err := h.embedder.Embed(ctx, req.Query)
		if err != nil {
			// Lexical search still works without a query vector.
			h.logger.Warn("query embedding failed, degrading to lexical search",
				"scope", scope, "error", err)
		} else {
			queryVector = embedded
		}
	}

	load := func(ctx context.Context, id string) *MemoryEntry {
		entry, err := h.storage.Get(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				h.logger.Warn("failed to load candidate entry", "entry_id", id, "error", err)
			}
			return nil
		}
		return cloneEntry(entry)
	}

	start := time.Now()
	results, err := h.engine.Retrieve(ctx, scope, req, queryVector, load)
	if err != nil {
		h.metrics.RecordRetrieval("error", time.Since(start), 0)
		return nil, err
	}
	h.metrics.RecordRetrieval("ok", time.Since(start), len(results))
	if rate, accesses := h.storage.HitRate(); accesses > 0 {
		h.metrics.SetCacheHitRate(rate)
	}

	h.publish(Event{Type: EventRetrieved, Scope: scope, Count: len(results), Timestamp: time.Now()})
	return results, nil
}

// Forget deletes specific memory entries by ID.
func (h *MemoryHub) Forget(ctx context.Context, scope string, ids []string) error {
	if scope == "" {
		return ErrInvalidScope
	}

	for _, id := range ids {
		if id == "" {
			return ErrInvalidEntryID
		}
		h.vector.Delete(id)
		h.bm25.RemoveDocument(id)
		if err := h.storage.Delete(ctx, id); err != nil {
			h.logger.Warn("failed to delete entry", "entry_id", id, "error", err)
			h.metrics.RecordStoreOperation("forget", "error")
			continue
		}
		h.metrics.RecordStoreOperation("forget", "ok")
		h.publish(Event{Type: EventDeleted, Scope: scope, EntryID: id, Timestamp: time.Now()})
	}
	h.metrics.SetEntriesTotal(float64(h.bm25.Len()))
	return nil
}

// List returns paginated memory entries for a scope.
func (h *MemoryHub) List(ctx context.Context, scope string, limit, offset int) ([]*MemoryEntry, int, error) {
	if scope == "" {
		return nil, 0, ErrInvalidScope
	}
	if limit <= 0 {
		limit = 20
	}
	return h.storage.ListByScope(ctx, scope, limit, offset)
}

// Count returns the number of memory entries for a scope.
func (h *MemoryHub) Count(ctx context.Context, scope string) (int, error) {
	if scope == "" {
		return 0, ErrInvalidScope
	}
	return h.storage.CountByScope(ctx, scope)
}

// GetStats returns memory statistics for a scope.
func (h *MemoryHub) GetStats(ctx context.Context, scope string) (*MemoryStats, error) {
	if scope == "" {
		return nil, ErrInvalidScope
	}

	entries, err := h.storage.AllByScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("memory: get stats failed: %w", err)
	}

	stats := &MemoryStats{
		TotalEntries: len(entries),
		Categories:   make(map[Category]int),
	}

	if len(entries) == 0 {
		return stats, nil
	}

	totalImportance := 0.0
	for _, e := range entries {
		totalImportance += e.Importance
		stats.Categories[e.Category]++
		if stats.OldestCreatedAt.IsZero() || e.CreatedAt.Before(stats.OldestCreatedAt) {
			stats.OldestCreatedAt = e.CreatedAt
		}
		if e.CreatedAt.After(stats.NewestCreatedAt) {
			stats.NewestCreatedAt = e.CreatedAt
		}
	}
	stats.AverageImportance = totalImportance / float64(len(entries))

	return stats, nil
}

// DeleteScope removes all memory entries for a scope.
func (h *MemoryHub) DeleteScope(ctx context.Context, scope string) (int, error) {
	if scope == "" {
		return 0, ErrInvalidScope
	}

	// Clean up indexes
	h.vector.DeleteByScope(scope)
	h.bm25.DeleteByScope(scope)

	count, err := h.storage.DeleteByScope(ctx, scope)
	if err != nil {
		h.metrics.RecordStoreOperation("delete_scope", "error")
		return count, err
	}
	h.metrics.RecordStoreOperation("delete_scope", "ok")
	h.metrics.SetEntriesTotal(float64(h.bm25.Len()))
	h.publish(Event{Type: EventScopeCleared, Scope: scope, Count: count, Timestamp: time.Now()})
	return count, nil
}

// CacheHitRate reports the L1 cache hit rate and total accesses.
func (h *MemoryHub) CacheHitRate() (float64, int64) {
	return h.storage.HitRate()
}

func (h *MemoryHub) publish(event Event) {
	if h.sink != nil {
		h.sink.Publish(event)
	}
}
