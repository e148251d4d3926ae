package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// BM25Index provides full-text search using the BM25 scoring algorithm.
// Raw BM25 scores are unbounded, so Search normalizes them to [0, 1)
// via s/(1+s) to compose with the vector signal during fusion.
type BM25Index struct {
	mu sync.RWMutex

	// BM25 parameters
	k1 float64
	b  float64

	// Inverted index: term -> set of entryIDs
	invertedIndex map[string]map[string]struct{}

	// Forward index: entryID -> term frequencies
	termFreqs map[string]map[string]int

	// Document lengths (in tokens)
	docLengths map[string]int

	// Scope mapping
	scopes map[string]string // entryID -> scope

	// Corpus stats
	totalDocs int
	totalLen  int

	// Stop words (optional)
	stopWords map[string]struct{}
}

// NewBM25Index creates a new BM25 index with the given parameters.
func NewBM25Index(k1, b float64) *BM25Index {
	return &BM25Index{
		k1:            k1,
		b:             b,
		invertedIndex: make(map[string]map[string]struct{}),
		termFreqs:     make(map[string]map[string]int),
		docLengths:    make(map[string]int),
		scopes:        make(map[string]string),
		stopWords:     defaultStopWords(),
	}
}

// IndexDocument adds or updates a document in the index.
func (idx *BM25Index) IndexDocument(entryID, scope, content string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Remove old index if updating
	if _, exists := idx.termFreqs[entryID]; exists {
		idx.removeDocLocked(entryID)
	}

	tokens := idx.tokenize(content)
	freqs := make(map[string]int)
	for _, token := range tokens {
		freqs[token]++
	}

	idx.termFreqs[entryID] = freqs
	idx.docLengths[entryID] = len(tokens)
	idx.scopes[entryID] = scope
	idx.totalDocs++
	idx.totalLen += len(tokens)

	for term := range freqs {
		if idx.invertedIndex[term] == nil {
			idx.invertedIndex[term] = make(map[string]struct{})
		}
		idx.invertedIndex[term][entryID] = struct{}{}
	}
}

// RemoveDocument removes a document from the index.
func (idx *BM25Index) RemoveDocument(entryID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeDocLocked(entryID)
}

func (idx *BM25Index) removeDocLocked(entryID string) {
	freqs, exists := idx.termFreqs[entryID]
	if !exists {
		return
	}

	for term := range freqs {
		if docs, ok := idx.invertedIndex[term]; ok {
			delete(docs, entryID)
			if len(docs) == 0 {
				delete(idx.invertedIndex, term)
			}
		}
	}

	idx.totalLen -= idx.docLengths[entryID]
	idx.totalDocs--
	delete(idx.termFreqs, entryID)
	delete(idx.docLengths, entryID)
	delete(idx.scopes, entryID)
}

// Search performs a BM25 search and returns the top-K results with
// normalized scores. If scope is non-empty, results are filtered to it.
func (idx *BM25Index) Search(ctx context.Context, query string, topK int, scope string) ([]SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.totalDocs == 0 {
		return nil, nil
	}

	queryTokens := idx.tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	avgDL := float64(idx.totalLen) / float64(idx.totalDocs)

	// Collect candidate documents
	candidates := make(map[string]struct{})
	for _, token := range queryTokens {
		if docs, ok := idx.invertedIndex[token]; ok {
			for id := range docs {
				if scope != "" && idx.scopes[id] != scope {
					continue
				}
				candidates[id] = struct{}{}
			}
		}
	}

	hits := make([]SearchHit, 0, len(candidates))
	for id := range candidates {
		score := idx.scoreLocked(id, queryTokens, avgDL)
		if score > 0 {
			// s/(1+s) maps unbounded BM25 scores into [0, 1)
			hits = append(hits, SearchHit{ID: id, Score: score / (1 + score)})
		}
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

// DeleteByScope removes all documents for a scope.
func (idx *BM25Index) DeleteByScope(scope string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var toRemove []string
	for id, s := range idx.scopes {
		if s == scope {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		idx.removeDocLocked(id)
	}
}

// Len returns the number of indexed documents.
func (idx *BM25Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.totalDocs
}

// scoreLocked calculates the BM25 score for a document. Must be called with read lock held.
func (idx *BM25Index) scoreLocked(docID string, queryTokens []string, avgDL float64) float64 {
	docLen := float64(idx.docLengths[docID])
	freqs := idx.termFreqs[docID]
	score := 0.0

	for _, term := range queryTokens {
		tf := float64(freqs[term])
		if tf == 0 {
			continue
		}

		// IDF: log((N - n + 0.5) / (n + 0.5) + 1)
		n := float64(len(idx.invertedIndex[term]))
		idf := math.Log((float64(idx.totalDocs)-n+0.5)/(n+0.5) + 1.0)

		// BM25 term score
		numerator := tf * (idx.k1 + 1)
		denominator := tf + idx.k1*(1-idx.b+idx.b*docLen/avgDL)
		score += idf * numerator / denominator
	}

	return score
}

// tokenize splits text into lowercase tokens, removing punctuation and
// stop words. CJK ideographs become single-rune tokens so Chinese text is
// searchable without a segmenter.
func (idx *BM25Index) tokenize(text string) []string {
	text = strings.ToLower(text)

	tokens := make([]string, 0, len(text)/4)
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			token := current.String()
			if _, isStop := idx.stopWords[token]; !isStop {
				tokens = append(tokens, token)
			}
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return tokens
}

func defaultStopWords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "is", "are", "was", "were", "be", "been", "being",
		"have", "has", "had", "do", "does", "did", "will", "would", "could",
		"should", "may", "might", "shall", "can", "need", "dare", "ought",
		"used", "to", "of", "in", "for", "on", "with", "at", "by", "from",
		"as", "into", "through", "during", "before", "after", "above", "below",
		"between", "out", "off", "over", "under", "again", "further", "then",
		"once", "and", "but", "or", "nor", "not", "so", "yet", "both",
		"either", "neither", "each", "every", "all", "any", "few", "more",
		"most", "other", "some", "such", "no", "only", "own", "same", "than",
		"too", "very", "just", "because", "if", "when", "where", "how", "what",
		"which", "who", "whom", "this", "that", "these", "those", "i", "me",
		"my", "myself", "we", "our", "ours", "ourselves", "you", "your",
		"yours", "yourself", "yourselves", "he", "him", "his", "himself",
		"she", "her", "hers", "herself", "it", "its", "itself", "they",
		"them", "their", "theirs", "themselves",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
