package rag

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/ai/column"
	"ai-insights-be/pkg/chat"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/embedding"
	"ai-insights-be/pkg/rag/vector"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopK         = 5
	DefaultBatchSize    = 10
	DefaultBatchPause   = 100 * time.Millisecond
	DefaultBuildTimeout = 2 * time.Minute

	semanticWeight  = 0.7
	keywordWeight   = 0.3
	minKeywordLen   = 4
	pastQueryLimit  = 2
	pastQueryWindow = 10
	answerPreview   = 150
)

var wordPattern = regexp.MustCompile(`[\pL\pN]+`)

// Context is what handlers receive from retrieval.
type Context struct {
	DataChunks       []string `json:"dataChunks"`
	PastQueries      []string `json:"pastQueries"`
	MentionedColumns []string `json:"mentionedColumns"`
	Fallback         bool     `json:"-"`
}

// ChunkStore persists embedded chunks so a restarted process can skip re-embedding.
type ChunkStore interface {
	Load(ctx context.Context, sessionID string) ([]vector.Chunk, error)
	Save(ctx context.Context, sessionID string, chunks []vector.Chunk) error
	Delete(ctx context.Context, sessionID string) error
}

type Config struct {
	TopK         int
	BatchSize    int
	BatchPause   time.Duration
	// BuildTimeout bounds one shared index build. The build outlives the
	// request that started it so concurrent waiters are not cancelled with it.
	BuildTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{TopK: DefaultTopK, BatchSize: DefaultBatchSize, BatchPause: DefaultBatchPause, BuildTimeout: DefaultBuildTimeout}
}

// Retriever blends semantic and keyword matches over a per-session corpus.
type Retriever struct {
	embedder embedding.EmbeddingProvider
	sessions *SessionStore
	chunks   ChunkStore
	config   Config
	logger   logger.ILogger
}

// NewRetriever accepts a nil chunk store when persistence is not wanted.
func NewRetriever(embedder embedding.EmbeddingProvider, sessions *SessionStore, chunks ChunkStore, config Config, log logger.ILogger) *Retriever {
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.BuildTimeout <= 0 {
		config.BuildTimeout = DefaultBuildTimeout
	}
	return &Retriever{embedder: embedder, sessions: sessions, chunks: chunks, config: config, logger: log}
}

// Retrieve never fails. Any internal error, including a panic, yields the
// dataset shape summary with Fallback set.
func (r *Retriever) Retrieve(ctx context.Context, question string, rows []dataset.Row, summary dataset.Summary, history []chat.Message, sessionID string) (out Context) {
	mentioned := column.Mentioned(question, summary.ColumnNames())

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("RAG", "Retrieval panicked", map[string]interface{}{
				"session_id": sessionID,
				"panic":      fmt.Sprint(rec),
			})
			out = FallbackContext(summary, mentioned)
		}
	}()

	res, err := r.retrieve(ctx, question, rows, summary, history, sessionID)
	if err != nil {
		r.logger.Warn("RAG", "Retrieval fell back to dataset summary", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return FallbackContext(summary, mentioned)
	}
	res.MentionedColumns = mentioned
	return res
}

func (r *Retriever) retrieve(ctx context.Context, question string, rows []dataset.Row, summary dataset.Summary, history []chat.Message, sessionID string) (Context, error) {
	if r.embedder == nil {
		return Context{}, errors.New("no embedding provider configured")
	}

	store, err := r.sessions.GetOrBuild(sessionID, func() (*vector.Store, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.BuildTimeout)
		defer cancel()
		return r.buildIndex(buildCtx, sessionID, rows, summary)
	})
	if err != nil {
		return Context{}, fmt.Errorf("build index: %w", err)
	}

	qEmb, err := r.embedder.Generate(ctx, question, embedding.TaskRetrievalQuery)
	if err != nil {
		return Context{}, fmt.Errorf("embed question: %w", err)
	}
	qVec := qEmb.Embedding.Values

	ranked := Blend(store, qVec, question, r.config.TopK)
	data := make([]string, 0, len(ranked))
	for _, s := range ranked {
		data = append(data, s.Chunk.Content)
	}

	return Context{
		DataChunks:  data,
		PastQueries: r.pastQueries(ctx, qVec, history),
	}, nil
}

// Blend scores every chunk as 0.7*cosine (top 2k by similarity) plus
// 0.3*keyword overlap and returns the best k.
func Blend(store *vector.Store, query []float32, question string, k int) []vector.Scored {
	scores := map[string]float64{}
	byID := map[string]vector.Chunk{}

	for _, s := range store.Nearest(query, 2*k) {
		if s.Score <= 0 {
			continue
		}
		scores[s.Chunk.ID] += semanticWeight * s.Score
		byID[s.Chunk.ID] = s.Chunk
	}

	words := keywords(question)
	if len(words) > 0 {
		for _, c := range store.Chunks() {
			content := strings.ToLower(c.Content)
			hits := 0
			for _, w := range words {
				if strings.Contains(content, w) {
					hits++
				}
			}
			if hits == 0 {
				continue
			}
			scores[c.ID] += keywordWeight * float64(hits) / float64(len(words))
			byID[c.ID] = c
		}
	}

	out := make([]vector.Scored, 0, len(scores))
	for id, score := range scores {
		out = append(out, vector.Scored{Chunk: byID[id], Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Chunk.ID < out[j].Chunk.ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func keywords(question string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(question), -1) {
		if utf8.RuneCountInString(w) < minKeywordLen || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func (r *Retriever) buildIndex(ctx context.Context, sessionID string, rows []dataset.Row, summary dataset.Summary) (*vector.Store, error) {
	if r.chunks != nil {
		persisted, err := r.chunks.Load(ctx, sessionID)
		if err != nil {
			r.logger.Warn("RAG", "Could not load persisted chunks", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		} else if len(persisted) > 0 {
			return vector.NewStore(persisted), nil
		}
	}

	chunks := BuildChunks(rows, summary)
	if len(chunks) == 0 {
		return nil, errors.New("dataset produced no chunks")
	}
	r.embedChunks(ctx, chunks)

	if r.chunks != nil {
		if err := r.chunks.Save(ctx, sessionID, chunks); err != nil {
			r.logger.Warn("RAG", "Could not persist chunks", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}

	r.logger.Info("RAG", "Index built", map[string]interface{}{
		"session_id": sessionID,
		"chunks":     len(chunks),
	})
	return vector.NewStore(chunks), nil
}

// embedChunks fills embeddings in place, batch by batch. A failed embedding
// leaves a nil vector, which scores 0 against any query.
func (r *Retriever) embedChunks(ctx context.Context, chunks []vector.Chunk) {
	size := r.config.BatchSize
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				defer func() {
					if rec := recover(); rec != nil {
						r.logger.Warn("EMBEDDING", "Chunk embedding panicked", map[string]interface{}{
							"chunk": chunks[i].ID,
							"panic": fmt.Sprint(rec),
						})
					}
				}()
				res, err := r.embedder.Generate(gctx, chunks[i].Content, embedding.TaskRetrievalDocument)
				if err != nil {
					r.logger.Debug("EMBEDDING", "Chunk embedding failed", map[string]interface{}{
						"chunk": chunks[i].ID,
						"error": err.Error(),
					})
					return nil
				}
				chunks[i].Embedding = res.Embedding.Values
				return nil
			})
		}
		_ = g.Wait()

		if end < len(chunks) && r.config.BatchPause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.config.BatchPause):
			}
		}
	}
}

type qaPair struct {
	question string
	answer   string
}

func (r *Retriever) pastQueries(ctx context.Context, query []float32, history []chat.Message) []string {
	var pairs []qaPair
	for i := 0; i+1 < len(history); i++ {
		if history[i].Role == chat.RoleUser && history[i+1].IsAssistant() {
			pairs = append(pairs, qaPair{question: history[i].Content, answer: history[i+1].Content})
		}
	}
	if len(pairs) > pastQueryWindow {
		pairs = pairs[len(pairs)-pastQueryWindow:]
	}
	if len(pairs) == 0 {
		return []string{}
	}

	chunks := make([]vector.Chunk, len(pairs))
	for i, p := range pairs {
		chunks[i] = vector.Chunk{
			ID:       fmt.Sprintf("qa:%d", i),
			Type:     vector.ChunkPastQA,
			Content:  p.question,
			Metadata: map[string]interface{}{"pair": i},
		}
	}
	r.embedChunks(ctx, chunks)

	store := vector.NewStore(chunks)
	out := []string{}
	for _, s := range store.Nearest(query, pastQueryLimit) {
		if s.Score <= 0 {
			continue
		}
		idx := s.Chunk.Metadata["pair"].(int)
		out = append(out, fmt.Sprintf("Q: %s\nA: %s", pairs[idx].question, preview(pairs[idx].answer)))
	}
	return out
}

// Evict drops the session's index and any persisted chunks.
func (r *Retriever) Evict(ctx context.Context, sessionID string) {
	r.sessions.Evict(sessionID)
	if r.chunks == nil {
		return
	}
	if err := r.chunks.Delete(ctx, sessionID); err != nil {
		r.logger.Warn("RAG", "Could not delete persisted chunks", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}

// FallbackContext is the dataset shape summary used when retrieval is unavailable.
func FallbackContext(summary dataset.Summary, mentioned []string) Context {
	return Context{
		DataChunks:       summary.Describe(),
		PastQueries:      []string{},
		MentionedColumns: mentioned,
		Fallback:         true,
	}
}

func preview(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= answerPreview {
		return string(runes)
	}
	return string(runes[:answerPreview]) + "..."
}
