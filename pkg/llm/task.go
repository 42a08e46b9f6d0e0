package llm

import (
	"context"
	"fmt"
	"time"

	"ai-insights-be/internal/pkg/logger"
)

// Task is the category of work a completion serves. Model choice is a
// function of the task only, so callers never name models directly.
type Task string

const (
	TaskIntent     Task = "intent"
	TaskGeneration Task = "generation"
	TaskEmbeddings Task = "embeddings"
)

// Completer is the narrow capability the analysis pipeline depends on.
type Completer interface {
	Complete(ctx context.Context, task Task, messages []Message, options ...Option) (string, error)
}

// TaskModels maps a task to a model name. Missing entries fall back to the provider default.
type TaskModels map[Task]string

func (m TaskModels) ModelFor(task Task) string {
	return m[task]
}

// Router sends each completion to the model configured for its task.
type Router struct {
	provider LLMProvider
	models   TaskModels
	timeout  time.Duration
	logger   logger.ILogger
}

func NewRouter(provider LLMProvider, models TaskModels, timeout time.Duration, log logger.ILogger) *Router {
	return &Router{provider: provider, models: models, timeout: timeout, logger: log}
}

var _ Completer = &Router{}

func (r *Router) Complete(ctx context.Context, task Task, messages []Message, options ...Option) (string, error) {
	if r.provider == nil {
		return "", fmt.Errorf("no llm provider configured")
	}

	opts := options
	if model := r.models.ModelFor(task); model != "" {
		opts = append([]Option{WithModel(model)}, options...)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := r.provider.Chat(ctx, messages, opts...)
	details := map[string]interface{}{
		"task":        string(task),
		"model":       r.models.ModelFor(task),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		details["error"] = err.Error()
		r.logger.Warn("LLM", "Completion failed", details)
		return "", fmt.Errorf("%s completion: %w", task, err)
	}
	details["response_chars"] = len(out)
	r.logger.Debug("LLM", "Completion finished", details)
	return out, nil
}
