package memory

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"
)

// VectorIndex provides nearest neighbor search using a simple brute-force
// approach with cosine similarity. Scores are normalized to [0, 1] via
// (cos+1)/2 so they compose with the lexical signal during fusion. For
// workloads with 100K+ vectors, this can be replaced with an HNSW
// implementation.
type VectorIndex struct {
	mu        sync.RWMutex
	dimension int
	minScore  float64
	vectors   map[string][]float32 // entryID -> vector
	scopes    map[string]string    // entryID -> scope
}

// NewVectorIndex creates a new vector index. minScore filters out hits
// whose normalized similarity falls below it; zero disables the filter.
func NewVectorIndex(dimension int, minScore float64) *VectorIndex {
	return &VectorIndex{
		dimension: dimension,
		minScore:  minScore,
		vectors:   make(map[string][]float32),
		scopes:    make(map[string]string),
	}
}

// Add inserts or replaces a vector in the index.
func (v *VectorIndex) Add(entryID, scope string, vector []float32) error {
	if len(vector) != v.dimension {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, v.dimension, len(vector))
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vectors[entryID] = vector
	v.scopes[entryID] = scope
	return nil
}

// Delete removes a vector from the index.
func (v *VectorIndex) Delete(entryID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.vectors, entryID)
	delete(v.scopes, entryID)
}

// Search finds the top-K most similar vectors to the query within a scope.
// Returned scores are normalized cosine similarities in [0, 1]; hits below
// the index min score are dropped.
func (v *VectorIndex) Search(ctx context.Context, query []float32, topK int, scope string) ([]SearchHit, error) {
	if len(query) != v.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, v.dimension, len(query))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	var hits []SearchHit
	for id, vec := range v.vectors {
		if scope != "" && v.scopes[id] != scope {
			continue
		}
		sim := (cosineSimilarity(query, vec) + 1) / 2
		if sim < v.minScore {
			continue
		}
		hits = append(hits, SearchHit{ID: id, Score: sim})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if topK > 0 && topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteByScope removes all vectors for a scope.
func (v *VectorIndex) DeleteByScope(scope string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, s := range v.scopes {
		if s == scope {
			delete(v.vectors, id)
			delete(v.scopes, id)
		}
	}
}

// Len returns the number of vectors in the index.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vectors)
}

// Save persists the vector index to a file.
// Format: [dimension:uint32][count:uint32] then for each entry:
// [idLen:uint16][id:bytes][scopeLen:uint16][scope:bytes][vector:float32*dim]
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vector: save failed: %w", err)
	}
	defer f.Close()

	// Header
	if err := binary.Write(f, binary.LittleEndian, uint32(v.dimension)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(v.vectors))); err != nil {
		return err
	}

	for id, vec := range v.vectors {
		scope := v.scopes[id]
		// Write entry ID
		if err := binary.Write(f, binary.LittleEndian, uint16(len(id))); err != nil {
			return err
		}
		if _, err := f.Write([]byte(id)); err != nil {
			return err
		}
		// Write scope
		if err := binary.Write(f, binary.LittleEndian, uint16(len(scope))); err != nil {
			return err
		}
		if _, err := f.Write([]byte(scope)); err != nil {
			return err
		}
		// Write vector
		if err := binary.Write(f, binary.LittleEndian, vec); err != nil {
			return err
		}
	}
	return nil
}

// Load restores the vector index from a file.
func (v *VectorIndex) Load(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("vector: load failed: %w", err)
	}
	defer f.Close()

	var dim, count uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return err
	}
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return err
	}

	if int(dim) != v.dimension {
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, v.dimension)
	}

	vectors := make(map[string][]float32, count)
	scopes := make(map[string]string, count)

	for i := uint32(0); i < count; i++ {
		// Read entry ID
		var idLen uint16
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return err
		}
		idBuf := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBuf); err != nil {
			return err
		}
		id := string(idBuf)

		// Read scope
		var scopeLen uint16
		if err := binary.Read(f, binary.LittleEndian, &scopeLen); err != nil {
			return err
		}
		scopeBuf := make([]byte, scopeLen)
		if _, err := io.ReadFull(f, scopeBuf); err != nil {
			return err
		}
		scope := string(scopeBuf)

		// Read vector
		vec := make([]float32, dim)
		if err := binary.Read(f, binary.LittleEndian, vec); err != nil {
			return err
		}

		vectors[id] = vec
		scopes[id] = scope
	}

	v.vectors = vectors
	v.scopes = scopes
	return nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a []float32, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dotProduct / denom
}
