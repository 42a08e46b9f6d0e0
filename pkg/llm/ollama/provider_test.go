package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-insights-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat_SendsFormatAndParsesReply(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: `{"ok":true}`}, Done: true})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", 0)
	out, err := p.Chat(context.Background(), []llm.Message{{Role: "model", Content: "hi"}}, llm.WithJSONResponse(), llm.WithModel("qwen2.5"), llm.WithMaxTokens(50))

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "json", got.Format)
	assert.Equal(t, "qwen2.5", got.Model)
	assert.Equal(t, "assistant", got.Messages[0].Role)
	assert.Equal(t, 50, got.Options.NumPredict)
}

func TestChat_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "llama3", 0).Generate(context.Background(), "hi")
	assert.ErrorContains(t, err, "status 500")
}
