package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"go duration", "90s", 90 * time.Second},
		{"plain seconds", "45", 45 * time.Second},
		{"garbage", "soon", time.Minute},
		{"empty", "", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_TIMEOUT", tt.value)
			assert.Equal(t, tt.want, getEnvAsDuration("TEST_TIMEOUT", time.Minute))
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LLM_INTENT_MODEL", "qwen2.5")
	t.Setenv("RAG_TOP_K", "8")
	t.Setenv("LLM_TIMEOUT", "")
	t.Setenv("GO_ENV", "development")

	cfg := Load()

	assert.Equal(t, "qwen2.5", cfg.Ai.IntentModel)
	assert.Equal(t, 8, cfg.Ai.RAGTopK)
	assert.Equal(t, 60*time.Second, cfg.Ai.LLMTimeout)
	assert.False(t, cfg.IsProduction())
}
