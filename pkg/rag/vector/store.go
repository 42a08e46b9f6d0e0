package vector

import (
	"math"
	"sort"
	"sync"
)

type ChunkType string

const (
	ChunkColumn      ChunkType = "column"
	ChunkStatistical ChunkType = "statistical"
	ChunkRowGroup    ChunkType = "row_group"
	ChunkPastQA      ChunkType = "past_qa"
)

type Chunk struct {
	ID        string                 `json:"id"`
	Type      ChunkType              `json:"type"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Embedding []float32              `json:"embedding,omitempty"`
}

type Scored struct {
	Chunk Chunk
	Score float64
}

// Store is one session's chunk corpus.
type Store struct {
	mu     sync.RWMutex
	chunks []Chunk
}

func NewStore(chunks []Chunk) *Store {
	return &Store{chunks: chunks}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Chunks returns a copy of the corpus.
func (s *Store) Chunks() []Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Chunk(nil), s.chunks...)
}

// Nearest ranks chunks by cosine similarity to query and keeps the best k.
func (s *Store) Nearest(query []float32, k int) []Scored {
	s.mu.RLock()
	scored := make([]Scored, 0, len(s.chunks))
	for _, c := range s.chunks {
		scored = append(scored, Scored{Chunk: c, Score: Cosine(query, c.Embedding)})
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k >= 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// Cosine is 0 when either vector is all zeros or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
