package integration

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/embedding"
	"ai-insights-be/pkg/llm"
	"ai-insights-be/pkg/llm/ollama"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaURL(t *testing.T) string {
	t.Helper()
	base := os.Getenv("OLLAMA_BASE_URL")
	if base == "" {
		base = "http://localhost:11434"
	}
	client := &http.Client{Timeout: 2 * time.Second}
	res, err := client.Get(base + "/api/tags")
	if err != nil {
		t.Skipf("Skipping Ollama test: %s unreachable", base)
	}
	res.Body.Close()
	return base
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestOllamaChat(t *testing.T) {
	base := ollamaURL(t)
	provider := ollama.NewOllamaProvider(base, envOr("LLM_MODEL", "gemma:2b"), 2*time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reply, err := provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: "Answer with a single number."},
		{Role: "user", Content: "What is 2 + 3?"},
	}, llm.WithTemperature(0))
	require.NoError(t, err)
	assert.Contains(t, reply, "5")
}

func TestOllamaClassifiesQuestion(t *testing.T) {
	base := ollamaURL(t)
	provider := ollama.NewOllamaProvider(base, envOr("LLM_MODEL", "gemma:2b"), 2*time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reply, err := provider.Generate(ctx,
		`Reply with JSON {"type": "..."} where type is one of correlation, statistical, conversational. Question: "What drives Revenue?"`,
		llm.WithJSONResponse(), llm.WithTemperature(0))
	require.NoError(t, err)
	assert.True(t, strings.Contains(reply, string(intent.TypeCorrelation)) ||
		strings.Contains(reply, string(intent.TypeStatistical)), "reply: %s", reply)
}

func TestOllamaEmbedding(t *testing.T) {
	base := ollamaURL(t)
	provider := embedding.NewOllamaProvider(base, envOr("EMBEDDING_MODEL", "nomic-embed-text"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := provider.Generate(ctx, "Revenue grows with AdSpend", embedding.TaskRetrievalDocument)
	require.NoError(t, err)
	require.NotEmpty(t, res.Embedding.Values)

	var norm float64
	for _, v := range res.Embedding.Values {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-3, "vectors are normalized")
}
