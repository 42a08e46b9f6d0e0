package llm

import (
	"context"
	"testing"

	"ai-insights-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_SelectsModelPerTask(t *testing.T) {
	p := &recordingProvider{}
	r := NewRouter(p, TaskModels{
		TaskIntent:     "fast-model",
		TaskGeneration: "smart-model",
	}, 0, logger.NewNop())

	_, err := r.Complete(context.Background(), TaskIntent, nil)
	require.NoError(t, err)
	assert.Equal(t, "fast-model", p.model)

	_, err = r.Complete(context.Background(), TaskGeneration, nil)
	require.NoError(t, err)
	assert.Equal(t, "smart-model", p.model)

	// explicit model options still win
	_, err = r.Complete(context.Background(), TaskIntent, nil, WithModel("override"))
	require.NoError(t, err)
	assert.Equal(t, "override", p.model)
}

func TestRouter_NoProvider(t *testing.T) {
	r := NewRouter(nil, nil, 0, logger.NewNop())
	_, err := r.Complete(context.Background(), TaskIntent, nil)
	assert.Error(t, err)
}
