package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/zcb617/openclaw-memory-pro/pkg/api/response"
	"github.com/zcb617/openclaw-memory-pro/pkg/memory"
)

// MemoryHandler handles memory-related API endpoints.
type MemoryHandler struct {
	hub    *memory.MemoryHub
	logger memoryLogger
}

type memoryLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(hub *memory.MemoryHub, log memoryLogger) *MemoryHandler {
	return &MemoryHandler{
		hub:    hub,
		logger: log,
	}
}

// --- Request/Response types ---

type memorizeRequest struct {
	Content    string            `json:"content"`
	Category   string            `json:"category,omitempty"`
	Importance float64           `json:"importance,omitempty"`
	Vector     []float32         `json:"vector,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type memorizeResponse struct {
	ID string `json:"id"`
}

type batchMemorizeRequest struct {
	Entries []memorizeRequest `json:"entries"`
}

type batchMemorizeResponse struct {
	IDs []string `json:"ids"`
}

type retrieveResponse struct {
	Results []*memory.RetrievalResult `json:"results"`
	Count   int                       `json:"count"`
}

type forgetRequest struct {
	IDs []string `json:"ids"`
}

type deleteResponse struct {
	Deleted int `json:"deleted"`
}

// StoreMemory handles POST /api/v1/memory/{scope}
func (h *MemoryHandler) StoreMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := chi.URLParam(r, "scope")

	if scope == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Scope is required", getRequestID(ctx))
		return
	}

	var req memorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}

	id, err := h.hub.Memorize(ctx, scope, memory.MemorizeRequest{
		Content:    req.Content,
		Category:   memory.Category(req.Category),
		Importance: req.Importance,
		Vector:     req.Vector,
		Metadata:   req.Metadata,
	})
	if err != nil {
		h.handleMemoryError(w, ctx, scope, "Failed to store memory", err)
		return
	}

	response.JSON(w, http.StatusCreated, memorizeResponse{ID: id})
}

// BatchStoreMemory handles POST /api/v1/memory/{scope}/batch
func (h *MemoryHandler) BatchStoreMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := chi.URLParam(r, "scope")

	if scope == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Scope is required", getRequestID(ctx))
		return
	}

	var req batchMemorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if len(req.Entries) == 0 {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "At least one entry is required", getRequestID(ctx))
		return
	}

	reqs := make([]memory.MemorizeRequest, 0, len(req.Entries))
	for _, e := range req.Entries {
		reqs = append(reqs, memory.MemorizeRequest{
			Content:    e.Content,
			Category:   memory.Category(e.Category),
			Importance: e.Importance,
			Vector:     e.Vector,
			Metadata:   e.Metadata,
		})
	}

	ids, err := h.hub.BatchMemorize(ctx, scope, reqs)
	if err != nil {
		h.handleMemoryError(w, ctx, scope, "Failed to store memories", err)
		return
	}

	response.JSON(w, http.StatusCreated, batchMemorizeResponse{IDs: ids})
}

// QueryMemory handles GET /api/v1/memory/{scope}
func (h *MemoryHandler) QueryMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := chi.URLParam(r, "scope")

	if scope == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Scope is required", getRequestID(ctx))
		return
	}

	queryText := r.URL.Query().Get("query")
	if queryText == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Query parameter is required", getRequestID(ctx))
		return
	}

	req := memory.RetrievalRequest{
		Query:    queryText,
		Category: memory.Category(r.URL.Query().Get("category")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			req.Limit = n
		}
	}

	// Parse metadata filters from query params
	filters := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(key) > 9 && key[:9] == "metadata." {
			filters[key[9:]] = values[0]
		}
	}
	if len(filters) > 0 {
		req.Filters = filters
	}

	results, err := h.hub.Retrieve(ctx, scope, req)
	if err != nil {
		h.handleMemoryError(w, ctx, scope, "Failed to query memory", err)
		return
	}

	response.JSON(w, http.StatusOK, retrieveResponse{Results: results, Count: len(results)})
}

// DeleteMemory handles DELETE /api/v1/memory/{scope}
func (h *MemoryHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := chi.URLParam(r, "scope")

	if scope == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Scope is required", getRequestID(ctx))
		return
	}

	var req forgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}

	if len(req.IDs) == 0 {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "At least one entry ID is required", getRequestID(ctx))
		return
	}

	if err := h.hub.Forget(ctx, scope, req.IDs); err != nil {
		h.handleMemoryError(w, ctx, scope, "Failed to delete memory", err)
		return
	}

	response.JSON(w, http.StatusOK, deleteResponse{Deleted: len(req.IDs)})
}

// ListMemory handles GET /api/v1/memory/{scope}/list
func (h *MemoryHandler) ListMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := chi.URLParam(r, "scope")

	if scope == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Scope is required", getRequestID(ctx))
		return
	}

	limit := 20
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	entries, total, err := h.hub.List(ctx, scope, limit, offset)
	if err != nil {
		h.handleMemoryError(w, ctx, scope, "Failed to list memory", err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetStats handles GET /api/v1/memory/{scope}/stats
func (h *MemoryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := chi.URLParam(r, "scope")

	if scope == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Scope is required", getRequestID(ctx))
		return
	}

	stats, err := h.hub.GetStats(ctx, scope)
	if err != nil {
		h.handleMemoryError(w, ctx, scope, "Failed to get memory stats", err)
		return
	}

	response.JSON(w, http.StatusOK, stats)
}

// DeleteScope handles DELETE /api/v1/memory/{scope}/all
func (h *MemoryHandler) DeleteScope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := chi.URLParam(r, "scope")

	if scope == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Scope is required", getRequestID(ctx))
		return
	}

	count, err := h.hub.DeleteScope(ctx, scope)
	if err != nil {
		h.handleMemoryError(w, ctx, scope, "Failed to delete scope", err)
		return
	}

	response.JSON(w, http.StatusOK, deleteResponse{Deleted: count})
}

// handleMemoryError maps memory errors to HTTP responses. Validation
// sentinels map to 400, missing entries to 404, everything else to 500.
func (h *MemoryHandler) handleMemoryError(w http.ResponseWriter, ctx context.Context, scope, msg string, err error) {
	switch {
	case isMemoryValidationError(err):
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
	case errors.Is(err, memory.ErrNotFound):
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, err.Error(), getRequestID(ctx))
	case errors.Is(err, memory.ErrStorageUnavailable):
		h.logger.Error(msg, "scope", scope, "error", err)
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, msg, getRequestID(ctx))
	default:
		h.logger.Error(msg, "scope", scope, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, msg, getRequestID(ctx))
	}
}

func isMemoryValidationError(err error) bool {
	return errors.Is(err, memory.ErrInvalidScope) ||
		errors.Is(err, memory.ErrInvalidQuery) ||
		errors.Is(err, memory.ErrInvalidEntryID) ||
		errors.Is(err, memory.ErrEmptyContent) ||
		errors.Is(err, memory.ErrInvalidCategory) ||
		errors.Is(err, memory.ErrInvalidImportance) ||
		errors.Is(err, memory.ErrDimensionMismatch)
}

func getRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value("request_id").(string); ok {
		return reqID
	}
	return "unknown"
}
