package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler_Health(t *testing.T) {
	h := NewHealthHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health() status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	// 没有 hub 时视为未就绪
	h := NewHealthHandler(nil)
	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Ready() without hub status = %d, want 503", w.Code)
	}

	_, hub, cleanup := setupMemoryHandler(t)
	defer cleanup()

	h = NewHealthHandler(hub)
	w = httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Ready() with started hub status = %d, want 200", w.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body["ready"] {
		t.Error("expected ready=true")
	}
}

func TestHealthHandler_Status(t *testing.T) {
	_, hub, cleanup := setupMemoryHandler(t)
	defer cleanup()

	h := NewHealthHandler(hub)
	w := httptest.NewRecorder()
	h.Status(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Status() status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["version"]; !ok {
		t.Error("expected version info in status")
	}
	if ready, ok := body["ready"].(bool); !ok || !ready {
		t.Errorf("expected ready=true, got %v", body["ready"])
	}
	if _, ok := body["cache"]; !ok {
		t.Error("expected cache stats in status")
	}
}
