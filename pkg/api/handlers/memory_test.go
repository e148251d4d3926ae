package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/go-chi/chi/v5"

	"github.com/zcb617/openclaw-memory-pro/config"
	"github.com/zcb617/openclaw-memory-pro/pkg/memory"
)

type nopLogger struct{}

func (n *nopLogger) Debug(msg string, args ...any) {}
func (n *nopLogger) Info(msg string, args ...any)  {}
func (n *nopLogger) Warn(msg string, args ...any)  {}
func (n *nopLogger) Error(msg string, args ...any) {}

func setupMemoryHandler(t *testing.T) (*MemoryHandler, *memory.MemoryHub, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "memhandler-*")
	if err != nil {
		t.Fatal(err)
	}
	opts := dgbadger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := dgbadger.Open(opts)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}

	cfg := &config.MemoryConfig{
		Enabled: true, Mode: "hybrid",
		VectorDimension: 3, VectorWeight: 0.7, BM25Weight: 0.3,
		CandidatePoolSize: 20, MaxLimit: 20, SimilarityThreshold: 0.85,
		L1CacheSize: 100,
		BM25:        config.BM25Config{K1: 1.5, B: 0.75},
	}
	l1 := memory.NewL1Cache(cfg.L1CacheSize)
	l2 := memory.NewL2Badger(db)
	ts := memory.NewTieredStorage(l1, l2)
	hub := memory.NewMemoryHub(cfg, ts, nil)
	hub.Start(context.Background())

	handler := NewMemoryHandler(hub, &nopLogger{})
	cleanup := func() {
		hub.Stop(context.Background())
		db.Close()
		os.RemoveAll(dir)
	}
	return handler, hub, cleanup
}

func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- API 端点单元测试 ---

func TestMemoryHandler_StoreMemory(t *testing.T) {
	h, _, cleanup := setupMemoryHandler(t)
	defer cleanup()

	body := `{"content":"the deploy window opens at midnight","category":"fact","importance":0.8}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/memory/agent-1", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withChiURLParam(req, "scope", "agent-1")
	w := httptest.NewRecorder()

	h.StoreMemory(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("StoreMemory() status = %d, want %d, body: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var resp memorizeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID == "" {
		t.Error("expected a non-empty entry ID")
	}
}

func TestMemoryHandler_StoreMemory_Invalid(t *testing.T) {
	h, _, cleanup := setupMemoryHandler(t)
	defer cleanup()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty content", `{"content":""}`, http.StatusBadRequest},
		{"bad category", `{"content":"x","category":"gossip"}`, http.StatusBadRequest},
		{"bad importance", `{"content":"x","importance":2}`, http.StatusBadRequest},
		{"malformed json", `{"content":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/memory/s", bytes.NewBufferString(tt.body))
			req = withChiURLParam(req, "scope", "s")
			w := httptest.NewRecorder()

			h.StoreMemory(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d, body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestMemoryHandler_BatchStoreMemory(t *testing.T) {
	h, _, cleanup := setupMemoryHandler(t)
	defer cleanup()

	body := `{"entries":[{"content":"first entry"},{"content":"second entry"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/memory/agent-1/batch", bytes.NewBufferString(body))
	req = withChiURLParam(req, "scope", "agent-1")
	w := httptest.NewRecorder()

	h.BatchStoreMemory(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("BatchStoreMemory() status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp batchMemorizeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.IDs) != 2 {
		t.Errorf("expected 2 IDs, got %d", len(resp.IDs))
	}
}

func TestMemoryHandler_BatchStoreMemory_Empty(t *testing.T) {
	h, _, cleanup := setupMemoryHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/memory/s/batch", bytes.NewBufferString(`{"entries":[]}`))
	req = withChiURLParam(req, "scope", "s")
	w := httptest.NewRecorder()

	h.BatchStoreMemory(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMemoryHandler_QueryMemory(t *testing.T) {
	h, hub, cleanup := setupMemoryHandler(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := hub.Memorize(ctx, "agent-1", memory.MemorizeRequest{
		Content:  "the staging database lives on host db-04",
		Metadata: map[string]string{"env": "staging"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := hub.Memorize(ctx, "agent-1", memory.MemorizeRequest{
		Content:  "the production database lives on host db-01",
		Metadata: map[string]string{"env": "prod"},
	}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/memory/agent-1?query=staging+database+host&metadata.env=staging", nil)
	req = withChiURLParam(req, "scope", "agent-1")
	w := httptest.NewRecorder()

	h.QueryMemory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("QueryMemory() status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp retrieveResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || len(resp.Results) != 1 {
		t.Fatalf("expected 1 filtered result, got %d", resp.Count)
	}
	if resp.Results[0].Entry.Metadata["env"] != "staging" {
		t.Errorf("metadata filter leaked entry: %+v", resp.Results[0].Entry)
	}
}

func TestMemoryHandler_QueryMemory_MissingQuery(t *testing.T) {
	h, _, cleanup := setupMemoryHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/memory/s", nil)
	req = withChiURLParam(req, "scope", "s")
	w := httptest.NewRecorder()

	h.QueryMemory(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMemoryHandler_QueryMemory_MissingScope(t *testing.T) {
	h, _, cleanup := setupMemoryHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/memory/?query=x", nil)
	req = withChiURLParam(req, "scope", "")
	w := httptest.NewRecorder()

	h.QueryMemory(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMemoryHandler_DeleteMemory(t *testing.T) {
	h, hub, cleanup := setupMemoryHandler(t)
	defer cleanup()
	ctx := context.Background()

	id, err := hub.Memorize(ctx, "s", memory.MemorizeRequest{Content: "soon to be forgotten"})
	if err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(forgetRequest{IDs: []string{id}})
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/memory/s", bytes.NewReader(body))
	req = withChiURLParam(req, "scope", "s")
	w := httptest.NewRecorder()

	h.DeleteMemory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("DeleteMemory() status = %d, body: %s", w.Code, w.Body.String())
	}
	count, err := hub.Count(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected 0 entries after delete, got %d", count)
	}
}

func TestMemoryHandler_DeleteMemory_NoIDs(t *testing.T) {
	h, _, cleanup := setupMemoryHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/memory/s", bytes.NewBufferString(`{"ids":[]}`))
	req = withChiURLParam(req, "scope", "s")
	w := httptest.NewRecorder()

	h.DeleteMemory(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMemoryHandler_ListMemory(t *testing.T) {
	h, hub, cleanup := setupMemoryHandler(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := hub.Memorize(ctx, "s", memory.MemorizeRequest{Content: "entry to page through"}); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/memory/s/list?limit=2&offset=0", nil)
	req = withChiURLParam(req, "scope", "s")
	w := httptest.NewRecorder()

	h.ListMemory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ListMemory() status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Entries []*memory.MemoryEntry `json:"entries"`
		Total   int                   `json:"total"`
		Limit   int                   `json:"limit"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Entries) != 2 || resp.Total != 3 || resp.Limit != 2 {
		t.Errorf("unexpected page: entries=%d total=%d limit=%d", len(resp.Entries), resp.Total, resp.Limit)
	}
}

func TestMemoryHandler_GetStats(t *testing.T) {
	h, hub, cleanup := setupMemoryHandler(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := hub.Memorize(ctx, "s", memory.MemorizeRequest{
		Content: "a fact", Category: memory.CategoryFact, Importance: 0.9,
	}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/memory/s/stats", nil)
	req = withChiURLParam(req, "scope", "s")
	w := httptest.NewRecorder()

	h.GetStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GetStats() status = %d, body: %s", w.Code, w.Body.String())
	}
	var stats memory.MemoryStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalEntries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.TotalEntries)
	}
	if stats.Categories[memory.CategoryFact] != 1 {
		t.Errorf("unexpected categories: %v", stats.Categories)
	}
}

func TestMemoryHandler_DeleteScope(t *testing.T) {
	h, hub, cleanup := setupMemoryHandler(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := hub.Memorize(ctx, "doomed", memory.MemorizeRequest{Content: "short lived entry"}); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/memory/doomed/all", nil)
	req = withChiURLParam(req, "scope", "doomed")
	w := httptest.NewRecorder()

	h.DeleteScope(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("DeleteScope() status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp deleteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", resp.Deleted)
	}
}
