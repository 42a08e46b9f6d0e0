package bootstrap

import (
	"fmt"
	"time"

	"ai-insights-be/internal/config"
	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/ai/correlation"
	"ai-insights-be/pkg/ai/handler"
	"ai-insights-be/pkg/ai/insight"
	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/ai/pipeline"
	"ai-insights-be/pkg/ai/router"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/embedding"
	"ai-insights-be/pkg/embedding/jina"
	openaiEmbedding "ai-insights-be/pkg/embedding/openai"
	"ai-insights-be/pkg/events"
	"ai-insights-be/pkg/llm"
	"ai-insights-be/pkg/llm/factory"
	"ai-insights-be/pkg/rag"
	"ai-insights-be/pkg/store"
)

const sessionJanitor = 10 * time.Minute

// AnalysisDeps are the collaborators the pipeline needs from outside.
// Chunks, Persister and Telemetry may be nil.
type AnalysisDeps struct {
	Completer llm.Completer
	Embedder  embedding.EmbeddingProvider
	Chunks    rag.ChunkStore
	DataOps   store.DataOpsStore
	Persister handler.VersionPersister
	Telemetry events.Publisher
}

type Analysis struct {
	Orchestrator *pipeline.Orchestrator
	Retriever    *rag.Retriever
	Registry     *handler.Registry
}

// NewAnalysis wires the question-answering pipeline. The REST server and the
// trace tool share it.
func NewAnalysis(cfg *config.Config, deps AnalysisDeps, log logger.ILogger) *Analysis {
	sessions := rag.NewSessionStore(cfg.Ai.RAGSessionTTL, sessionJanitor)
	retriever := rag.NewRetriever(deps.Embedder, sessions, deps.Chunks, rag.Config{
		TopK:       cfg.Ai.RAGTopK,
		BatchSize:  rag.DefaultBatchSize,
		BatchPause: rag.DefaultBatchPause,
	}, log)

	processor := chart.NewProcessor()
	synthesizer := insight.NewSynthesizer(deps.Completer, log)
	general := handler.NewGeneralHandler(deps.Completer, processor, synthesizer, log)
	registry := handler.NewRegistry(
		handler.NewConversationalHandler(deps.Completer, log),
		handler.NewStatisticalHandler(processor, synthesizer, log),
		handler.NewComparisonHandler(general, processor, synthesizer, log),
		handler.NewCorrelationHandler(correlation.NewEngine(deps.Completer, synthesizer, processor, log), log),
		general,
		handler.NewDataOpsHandler(deps.Completer, deps.DataOps, deps.Persister, log),
	)

	orchestrator := pipeline.NewOrchestrator(
		router.NewReferenceResolver(log),
		intent.NewClassifier(deps.Completer, cfg.Ai.IntentMaxRetries, log),
		retriever,
		registry,
		deps.Completer,
		deps.Telemetry,
		log,
	)

	return &Analysis{Orchestrator: orchestrator, Retriever: retriever, Registry: registry}
}

// NewCompleter builds the configured provider behind a task router.
func NewCompleter(cfg *config.Config, log logger.ILogger) (*llm.Router, error) {
	provider, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.GenerationModel,
		BaseURL:  llmBaseURL(cfg),
		APIKey:   llmAPIKey(cfg),
		Timeout:  cfg.Ai.LLMTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}

	log.Info("LLM", "Provider ready", map[string]interface{}{
		"provider":         cfg.Ai.LLMProvider,
		"intent_model":     cfg.Ai.IntentModel,
		"generation_model": cfg.Ai.GenerationModel,
	})
	return llm.NewRouter(provider, llm.TaskModels{
		llm.TaskIntent:     cfg.Ai.IntentModel,
		llm.TaskGeneration: cfg.Ai.GenerationModel,
		llm.TaskEmbeddings: cfg.Ai.EmbeddingModel,
	}, cfg.Ai.LLMTimeout, log), nil
}

func NewEmbeddingProvider(cfg *config.Config, log logger.ILogger) embedding.EmbeddingProvider {
	log.Info("EMBEDDING", "Provider ready", map[string]interface{}{
		"provider": cfg.Ai.EmbeddingProvider,
		"model":    cfg.Ai.EmbeddingModel,
	})

	switch cfg.Ai.EmbeddingProvider {
	case "openai":
		return openaiEmbedding.NewProvider(cfg.Keys.OpenAI, cfg.Ai.LLMBaseURL, cfg.Ai.EmbeddingModel)
	case "jina":
		return jina.NewJinaProvider(cfg.Keys.Jina, "")
	case "gemini":
		return embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
	default:
		return embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	}
}

func llmBaseURL(cfg *config.Config) string {
	if cfg.Ai.LLMBaseURL != "" {
		return cfg.Ai.LLMBaseURL
	}
	if cfg.Ai.LLMProvider == "ollama" {
		return cfg.Ai.OllamaBaseURL
	}
	return ""
}

func llmAPIKey(cfg *config.Config) string {
	switch cfg.Ai.LLMProvider {
	case "openai":
		return cfg.Keys.OpenAI
	case "huggingface":
		return cfg.Keys.HuggingFace
	}
	return ""
}
