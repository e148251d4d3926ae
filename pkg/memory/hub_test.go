package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zcb617/openclaw-memory-pro/config"
)

// stubEmbedder returns canned vectors keyed by exact text.
type stubEmbedder struct {
	dim  int
	vecs map[string][]float32
	err  error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vecs[text]; ok {
		return v, nil
	}
	return nil, errors.New("no stub vector for text")
}

func (s *stubEmbedder) Dimension() int { return s.dim }

// captureSink records published events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Publish(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *captureSink) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

func testHubConfig() *config.MemoryConfig {
	return &config.MemoryConfig{
		Enabled:             true,
		Mode:                "hybrid",
		VectorDimension:     3,
		VectorWeight:        0.7,
		BM25Weight:          0.3,
		CandidatePoolSize:   20,
		MaxLimit:            20,
		SimilarityThreshold: 0.85,
		L1CacheSize:         100,
		BM25:                config.BM25Config{K1: 1.5, B: 0.75},
	}
}

// setupTestHub builds a started hub over a temp badger store. mutate may
// be nil.
func setupTestHub(t *testing.T, mutate func(*config.MemoryConfig), opts ...HubOption) *MemoryHub {
	t.Helper()

	cfg := testHubConfig()
	if mutate != nil {
		mutate(cfg)
	}

	hub := NewMemoryHub(cfg, setupTestStorage(t), nil, opts...)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { hub.Stop(context.Background()) })
	return hub
}

func TestHub_MemorizeAndRetrieve(t *testing.T) {
	hub := setupTestHub(t, nil)
	ctx := context.Background()

	id, err := hub.Memorize(ctx, "agent-1", MemorizeRequest{
		Content:    "the deployment pipeline runs on staging every night",
		Category:   CategoryFact,
		Importance: 0.8,
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected a non-empty entry ID")
	}
	if _, err := hub.Memorize(ctx, "agent-1", MemorizeRequest{
		Content: "the user prefers dark roast coffee",
	}); err != nil {
		t.Fatal(err)
	}

	// 没有 embedder 时走纯词法检索
	results, err := hub.Retrieve(ctx, "agent-1", RetrievalRequest{Query: "deployment pipeline staging"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected lexical results")
	}
	if results[0].Entry.ID != id {
		t.Errorf("expected entry %q first, got %q", id, results[0].Entry.ID)
	}
	if results[0].Provenance.BM25Rank == 0 {
		t.Error("expected lexical provenance on a lexical hit")
	}
	if results[0].Provenance.VectorRank != 0 {
		t.Error("no query vector, so no vector provenance expected")
	}
}

func TestHub_RetrieveWithEmbedder(t *testing.T) {
	embedder := &stubEmbedder{dim: 3, vecs: map[string][]float32{
		"favorite color":        {1, 0, 0},
		"what is my favorite?":  {0.9, 0.1, 0},
		"unrelated git history": {0, 0, 1},
	}}
	hub := setupTestHub(t, nil, WithEmbedder(embedder))
	ctx := context.Background()

	favID, err := hub.Memorize(ctx, "u1", MemorizeRequest{Content: "favorite color"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := hub.Memorize(ctx, "u1", MemorizeRequest{Content: "unrelated git history"}); err != nil {
		t.Fatal(err)
	}

	results, err := hub.Retrieve(ctx, "u1", RetrievalRequest{Query: "what is my favorite?"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected vector results")
	}
	if results[0].Entry.ID != favID {
		t.Errorf("expected semantically closest entry first, got %q", results[0].Entry.ID)
	}
	if results[0].Provenance.VectorRank != 1 {
		t.Errorf("expected vector rank 1, got %d", results[0].Provenance.VectorRank)
	}
}

func TestHub_EmbedderFailureDegrades(t *testing.T) {
	embedder := &stubEmbedder{dim: 3, err: errors.New("embedding service down")}
	hub := setupTestHub(t, nil, WithEmbedder(embedder))
	ctx := context.Background()

	// 向量化失败时条目仍可词法检索
	if _, err := hub.Memorize(ctx, "u1", MemorizeRequest{Content: "postgres connection pooling settings"}); err != nil {
		t.Fatal(err)
	}
	results, err := hub.Retrieve(ctx, "u1", RetrievalRequest{Query: "postgres pooling"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 lexical result, got %d", len(results))
	}
}

func TestHub_Memorize_Validation(t *testing.T) {
	hub := setupTestHub(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		scope   string
		req     MemorizeRequest
		wantErr error
	}{
		{"empty scope", "", MemorizeRequest{Content: "x"}, ErrInvalidScope},
		{"empty content", "s", MemorizeRequest{}, ErrEmptyContent},
		{"bad category", "s", MemorizeRequest{Content: "x", Category: "gossip"}, ErrInvalidCategory},
		{"importance too high", "s", MemorizeRequest{Content: "x", Importance: 1.5}, ErrInvalidImportance},
		{"importance negative", "s", MemorizeRequest{Content: "x", Importance: -0.1}, ErrInvalidImportance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := hub.Memorize(ctx, tt.scope, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Memorize() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHub_Memorize_Defaults(t *testing.T) {
	hub := setupTestHub(t, nil)
	ctx := context.Background()

	if _, err := hub.Memorize(ctx, "s", MemorizeRequest{Content: "plain note"}); err != nil {
		t.Fatal(err)
	}

	entries, _, err := hub.List(ctx, "s", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Category != CategoryOther {
		t.Errorf("expected default category %q, got %q", CategoryOther, entries[0].Category)
	}
	if entries[0].Importance != 0.5 {
		t.Errorf("expected default importance 0.5, got %v", entries[0].Importance)
	}
}

func TestHub_Retrieve_Validation(t *testing.T) {
	hub := setupTestHub(t, nil)
	ctx := context.Background()

	if _, err := hub.Retrieve(ctx, "", RetrievalRequest{Query: "q"}); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("expected ErrInvalidScope, got %v", err)
	}
	if _, err := hub.Retrieve(ctx, "s", RetrievalRequest{}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestHub_ScopeIsolation(t *testing.T) {
	hub := setupTestHub(t, nil)
	ctx := context.Background()

	if _, err := hub.Memorize(ctx, "alice", MemorizeRequest{Content: "alice works on the billing service"}); err != nil {
		t.Fatal(err)
	}
	if _, err := hub.Memorize(ctx, "bob", MemorizeRequest{Content: "bob works on the billing service"}); err != nil {
		t.Fatal(err)
	}

	results, err := hub.Retrieve(ctx, "alice", RetrievalRequest{Query: "billing service"})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Entry.Scope != "alice" {
			t.Errorf("scope leak: got entry from scope %q", r.Entry.Scope)
		}
	}
}

func TestHub_Forget(t *testing.T) {
	hub := setupTestHub(t, nil)
	ctx := context.Background()

	id, err := hub.Memorize(ctx, "s", MemorizeRequest{Content: "kubernetes ingress annotations cheat sheet"})
	if err != nil {
		t.Fatal(err)
	}

	if err := hub.Forget(ctx, "s", []string{id}); err != nil {
		t.Fatal(err)
	}
	results, err := hub.Retrieve(ctx, "s", RetrievalRequest{Query: "kubernetes ingress"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results after forget, got %d", len(results))
	}

	if err := hub.Forget(ctx, "", []string{id}); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("expected ErrInvalidScope, got %v", err)
	}
	if err := hub.Forget(ctx, "s", []string{""}); !errors.Is(err, ErrInvalidEntryID) {
		t.Errorf("expected ErrInvalidEntryID, got %v", err)
	}
}

func TestHub_ListAndCount(t *testing.T) {
	hub := setupTestHub(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := hub.Memorize(ctx, "s", MemorizeRequest{Content: "note number " + string(rune('a'+i))}); err != nil {
			t.Fatal(err)
		}
	}

	entries, total, err := hub.List(ctx, "s", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected page of 2, got %d", len(entries))
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}

	count, err := hub.Count(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("expected count 5, got %d", count)
	}
}

func TestHub_GetStats(t *testing.T) {
	hub := setupTestHub(t, nil)
	ctx := context.Background()

	reqs := []MemorizeRequest{
		{Content: "fact one", Category: CategoryFact, Importance: 0.6},
		{Content: "fact two", Category: CategoryFact, Importance: 1.0},
		{Content: "likes tea", Category: CategoryPreference, Importance: 0.2},
	}
	if _, err := hub.BatchMemorize(ctx, "s", reqs); err != nil {
		t.Fatal(err)
	}

	stats, err := hub.GetStats(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalEntries != 3 {
		t.Errorf("expected 3 entries, got %d", stats.TotalEntries)
	}
	if stats.Categories[CategoryFact] != 2 || stats.Categories[CategoryPreference] != 1 {
		t.Errorf("unexpected category counts: %v", stats.Categories)
	}
	want := (0.6 + 1.0 + 0.2) / 3
	if diff := stats.AverageImportance - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("average importance = %v, want %v", stats.AverageImportance, want)
	}
	if stats.OldestCreatedAt.IsZero() || stats.NewestCreatedAt.Before(stats.OldestCreatedAt) {
		t.Errorf("bad timestamp range: oldest=%v newest=%v", stats.OldestCreatedAt, stats.NewestCreatedAt)
	}
}

func TestHub_GetStats_EmptyScope(t *testing.T) {
	hub := setupTestHub(t, nil)

	stats, err := hub.GetStats(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalEntries != 0 || stats.AverageImportance != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestHub_BatchMemorize_StopsOnError(t *testing.T) {
	hub := setupTestHub(t, nil)

	ids, err := hub.BatchMemorize(context.Background(), "s", []MemorizeRequest{
		{Content: "valid entry"},
		{Content: ""}, // invalid
		{Content: "never stored"},
	})
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("expected 1 stored ID before the failure, got %d", len(ids))
	}
}

func TestHub_DeleteScope(t *testing.T) {
	hub := setupTestHub(t, nil)
	ctx := context.Background()

	for _, content := range []string{"first note here", "second note here"} {
		if _, err := hub.Memorize(ctx, "doomed", MemorizeRequest{Content: content}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := hub.Memorize(ctx, "kept", MemorizeRequest{Content: "survivor note here"}); err != nil {
		t.Fatal(err)
	}

	deleted, err := hub.DeleteScope(ctx, "doomed")
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}

	count, err := hub.Count(ctx, "kept")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("other scope should be intact, got count %d", count)
	}

	results, err := hub.Retrieve(ctx, "doomed", RetrievalRequest{Query: "note here"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("cleared scope still returned %d results", len(results))
	}
}

func TestHub_NoiseFilter(t *testing.T) {
	hub := setupTestHub(t, func(cfg *config.MemoryConfig) {
		cfg.NoiseFilter = true
	})
	ctx := context.Background()

	if _, err := hub.Memorize(ctx, "s", MemorizeRequest{Content: "the team asked me to say the launch date out loud"}); err != nil {
		t.Fatal(err)
	}

	// 问候语被门控拦下，不算错误
	results, err := hub.Retrieve(ctx, "s", RetrievalRequest{Query: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Errorf("expected gated retrieval to return nil, got %d results", len(results))
	}

	// 回忆意图强制放行
	results, err = hub.Retrieve(ctx, "s", RetrievalRequest{Query: "what did I say"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Error("expected forced recall query to pass the gate and hit")
	}
}

func TestHub_Ready(t *testing.T) {
	cfg := testHubConfig()
	hub := NewMemoryHub(cfg, setupTestStorage(t), nil)

	if hub.Ready() {
		t.Error("hub should not be ready before Start")
	}
	if err := hub.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !hub.Ready() {
		t.Error("hub should be ready after Start")
	}
	if err := hub.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if hub.Ready() {
		t.Error("hub should not be ready after Stop")
	}
}

func TestHub_DoubleStart(t *testing.T) {
	hub := setupTestHub(t, nil)
	if err := hub.Start(context.Background()); err == nil {
		t.Error("expected second Start to fail")
	}
}

func TestHub_IndexRestore(t *testing.T) {
	storage := setupTestStorage(t)
	snapDir := t.TempDir()
	cfg := testHubConfig()
	cfg.StoragePath = snapDir

	ctx := context.Background()
	hub := NewMemoryHub(cfg, storage, nil)
	if err := hub.Start(ctx); err != nil {
		t.Fatal(err)
	}
	for i, vec := range [][]float32{{1, 0, 0}, {0, 1, 0}} {
		if _, err := hub.Memorize(ctx, "s", MemorizeRequest{
			Content: "persisted entry " + string(rune('a'+i)),
			Vector:  vec,
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := hub.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	// 重启后向量和词法索引都要恢复
	restored := NewMemoryHub(cfg, storage, nil)
	if err := restored.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { restored.Stop(ctx) })

	if restored.vector.Len() != 2 {
		t.Errorf("expected 2 restored vectors, got %d", restored.vector.Len())
	}
	if restored.bm25.Len() != 2 {
		t.Errorf("expected 2 restored documents, got %d", restored.bm25.Len())
	}

	results, err := restored.Retrieve(ctx, "s", RetrievalRequest{Query: "persisted entry"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results after restart, got %d", len(results))
	}
}

func TestHub_EventSink(t *testing.T) {
	sink := &captureSink{}
	hub := setupTestHub(t, nil, WithEventSink(sink))
	ctx := context.Background()

	id, err := hub.Memorize(ctx, "s", MemorizeRequest{Content: "observable entry content"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := hub.Retrieve(ctx, "s", RetrievalRequest{Query: "observable entry"}); err != nil {
		t.Fatal(err)
	}
	if err := hub.Forget(ctx, "s", []string{id}); err != nil {
		t.Fatal(err)
	}
	if _, err := hub.DeleteScope(ctx, "s"); err != nil {
		t.Fatal(err)
	}

	want := []string{EventStored, EventRetrieved, EventDeleted, EventScopeCleared}
	got := sink.types()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// captureMetrics counts recorded measurements.
type captureMetrics struct {
	mu           sync.Mutex
	retrievals   []string
	gateReasons  []string
	strategies   []string
	fused        []int
	rerank       []string
	storeOps     []string
	entriesTotal float64
	hitRate      float64
}

func (c *captureMetrics) RecordRetrieval(status string, _ time.Duration, _ int) {
	c.mu.Lock()
	c.retrievals = append(c.retrievals, status)
	c.mu.Unlock()
}

func (c *captureMetrics) RecordGateDecision(reason string) {
	c.mu.Lock()
	c.gateReasons = append(c.gateReasons, reason)
	c.mu.Unlock()
}

func (c *captureMetrics) RecordQueryStrategy(strategy string) {
	c.mu.Lock()
	c.strategies = append(c.strategies, strategy)
	c.mu.Unlock()
}

func (c *captureMetrics) RecordFusedCandidates(count int) {
	c.mu.Lock()
	c.fused = append(c.fused, count)
	c.mu.Unlock()
}

func (c *captureMetrics) RecordRerankOutcome(outcome string) {
	c.mu.Lock()
	c.rerank = append(c.rerank, outcome)
	c.mu.Unlock()
}

func (c *captureMetrics) RecordStoreOperation(operation, status string) {
	c.mu.Lock()
	c.storeOps = append(c.storeOps, operation+"/"+status)
	c.mu.Unlock()
}

func (c *captureMetrics) SetEntriesTotal(count float64) {
	c.mu.Lock()
	c.entriesTotal = count
	c.mu.Unlock()
}

func (c *captureMetrics) SetCacheHitRate(rate float64) {
	c.mu.Lock()
	c.hitRate = rate
	c.mu.Unlock()
}

func TestHub_MetricsRecorder(t *testing.T) {
	m := &captureMetrics{}
	hub := setupTestHub(t, func(cfg *config.MemoryConfig) {
		cfg.NoiseFilter = true
	}, WithMetrics(m))
	ctx := context.Background()

	id, err := hub.Memorize(ctx, "s", MemorizeRequest{Content: "the deployment plan targets the eu region"})
	if err != nil {
		t.Fatal(err)
	}
	if m.entriesTotal != 1 {
		t.Errorf("entries total = %v, want 1", m.entriesTotal)
	}

	// 噪声被门控拦截,不产生检索指标
	if _, err := hub.Retrieve(ctx, "s", RetrievalRequest{Query: "ok"}); err != nil {
		t.Fatal(err)
	}
	if len(m.retrievals) != 0 {
		t.Errorf("gated query should not record a retrieval, got %v", m.retrievals)
	}

	results, err := hub.Retrieve(ctx, "s", RetrievalRequest{Query: "remember the deployment plan"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if err := hub.Forget(ctx, "s", []string{id}); err != nil {
		t.Fatal(err)
	}

	wantGate := []string{GateGreeting, GateForced}
	if len(m.gateReasons) != len(wantGate) {
		t.Fatalf("gate reasons = %v, want %v", m.gateReasons, wantGate)
	}
	for i := range wantGate {
		if m.gateReasons[i] != wantGate[i] {
			t.Errorf("gate reason %d = %q, want %q", i, m.gateReasons[i], wantGate[i])
		}
	}

	if len(m.retrievals) != 1 || m.retrievals[0] != "ok" {
		t.Errorf("retrievals = %v, want [ok]", m.retrievals)
	}
	if len(m.strategies) != 1 || m.strategies[0] != "static" {
		t.Errorf("strategies = %v, want [static]", m.strategies)
	}
	if len(m.fused) != 1 || m.fused[0] != 1 {
		t.Errorf("fused counts = %v, want [1]", m.fused)
	}

	wantOps := []string{"memorize/ok", "forget/ok"}
	if len(m.storeOps) != len(wantOps) {
		t.Fatalf("store ops = %v, want %v", m.storeOps, wantOps)
	}
	for i := range wantOps {
		if m.storeOps[i] != wantOps[i] {
			t.Errorf("store op %d = %q, want %q", i, m.storeOps[i], wantOps[i])
		}
	}
	if m.entriesTotal != 0 {
		t.Errorf("entries total after forget = %v, want 0", m.entriesTotal)
	}
}
