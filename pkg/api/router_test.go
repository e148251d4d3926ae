package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zcb617/openclaw-memory-pro/config"
	"github.com/zcb617/openclaw-memory-pro/pkg/api/handlers"
	"github.com/zcb617/openclaw-memory-pro/pkg/logger"
	"github.com/zcb617/openclaw-memory-pro/pkg/memory"
)

func setupRouter(t *testing.T) (http.Handler, *memory.MemoryHub) {
	t.Helper()

	opts := dgbadger.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := dgbadger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.DefaultConfig()
	cfg.Memory.VectorDimension = 3
	cfg.Memory.NoiseFilter = false
	cfg.Memory.StoragePath = t.TempDir()

	store := memory.NewTieredStorage(
		memory.NewL1Cache(cfg.Memory.L1CacheSize),
		memory.NewL2Badger(db),
	)
	hub := memory.NewMemoryHub(&cfg.Memory, store, nil)
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(func() { hub.Stop(context.Background()) })

	log := logger.New(&logger.Config{Level: logger.ErrorLevel, Format: "text", Output: "stdout"})
	router := NewRouter(cfg, log, &Handlers{
		Memory: handlers.NewMemoryHandler(hub, log),
		Health: handlers.NewHealthHandler(hub),
	})
	return router, hub
}

func TestRouter_MemoryLifecycle(t *testing.T) {
	router, _ := setupRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	// 存储
	storeBody := `{"content":"the rollout plan ships feature flags first","category":"decision","importance":0.9}`
	resp, err := http.Post(server.URL+"/api/v1/memory/agent-1", "application/json", bytes.NewBufferString(storeBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var stored struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stored))
	resp.Body.Close()
	require.NotEmpty(t, stored.ID)

	// 检索
	resp, err = http.Get(server.URL + "/api/v1/memory/agent-1?query=rollout+plan+feature+flags")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var retrieved struct {
		Results []*memory.RetrievalResult `json:"results"`
		Count   int                       `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&retrieved))
	resp.Body.Close()
	require.Equal(t, 1, retrieved.Count)
	assert.Equal(t, stored.ID, retrieved.Results[0].Entry.ID)
	assert.Greater(t, retrieved.Results[0].Score, 0.0)

	// 统计
	resp, err = http.Get(server.URL + "/api/v1/memory/agent-1/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats memory.MemoryStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, 1, stats.TotalEntries)

	// 删除
	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/memory/agent-1/all", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var deleted struct {
		Deleted int `json:"deleted"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&deleted))
	resp.Body.Close()
	assert.Equal(t, 1, deleted.Deleted)
}

func TestRouter_HealthEndpoints(t *testing.T) {
	router, _ := setupRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	for _, path := range []string{"/health", "/ready", "/status"} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router, _ := setupRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, _ := setupRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/unknown")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
