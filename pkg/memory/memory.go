package memory

import (
	"context"
	"errors"
)

// Sentinel errors for the memory system.
var (
	ErrInvalidScope       = errors.New("memory: invalid scope")
	ErrInvalidQuery       = errors.New("memory: invalid query (empty text)")
	ErrInvalidEntryID     = errors.New("memory: invalid entry ID")
	ErrEmptyContent       = errors.New("memory: empty content")
	ErrInvalidCategory    = errors.New("memory: invalid category")
	ErrInvalidImportance  = errors.New("memory: importance must be in [0, 1]")
	ErrDimensionMismatch  = errors.New("memory: vector dimension mismatch")
	ErrStorageUnavailable = errors.New("memory: storage unavailable")
	ErrNotFound           = errors.New("memory: entry not found")
)

// Hub is the main interface for the hybrid memory system.
type Hub interface {
	// Memorize stores a new memory entry and returns its ID.
	Memorize(ctx context.Context, scope string, req MemorizeRequest) (string, error)

	// BatchMemorize stores multiple memory entries in one call.
	BatchMemorize(ctx context.Context, scope string, reqs []MemorizeRequest) ([]string, error)

	// Retrieve searches for memory entries matching the query.
	Retrieve(ctx context.Context, scope string, req RetrievalRequest) ([]*RetrievalResult, error)

	// Forget deletes specific memory entries by ID.
	Forget(ctx context.Context, scope string, ids []string) error

	// List returns all memory entries for a scope with pagination.
	List(ctx context.Context, scope string, limit, offset int) ([]*MemoryEntry, int, error)

	// Count returns the number of memory entries for a scope.
	Count(ctx context.Context, scope string) (int, error)

	// GetStats returns memory statistics for a scope.
	GetStats(ctx context.Context, scope string) (*MemoryStats, error)

	// DeleteScope removes all memory entries for a scope.
	// Returns the number of deleted entries.
	DeleteScope(ctx context.Context, scope string) (int, error)

	// Start initializes the memory system and restores persisted indexes.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the memory system.
	Stop(ctx context.Context) error
}

// MemorizeRequest describes a single entry to store.
type MemorizeRequest struct {
	// Content is the text to remember.
	Content string `json:"content"`

	// Category classifies the entry. Empty defaults to "other".
	Category Category `json:"category,omitempty"`

	// Importance weights the entry during scoring (0.0 to 1.0).
	// Zero means the default importance of 0.5.
	Importance float64 `json:"importance,omitempty"`

	// Vector is an optional precomputed embedding. When nil the hub
	// embeds Content itself.
	Vector []float32 `json:"vector,omitempty"`

	// Metadata holds arbitrary key-value pairs for filtering.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Embedder produces embedding vectors for text.
type Embedder interface {
	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimensionality.
	Dimension() int
}
