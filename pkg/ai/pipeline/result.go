package pipeline

import (
	"fmt"

	"ai-insights-be/pkg/ai/handler"
	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/chat"
	"ai-insights-be/pkg/dataset"
)

// Reasons recorded in QueryResult.DegradedReasons.
const (
	ReasonContextFallback = "context_fallback"
	ReasonRAGFallback     = "rag_fallback"
	ReasonIntentHeuristic = "intent_heuristic"
	ReasonHandlerRecovery = "handler_recovery"
	ReasonInsightFallback = "insight_fallback"
	ReasonClarifyFallback = "clarify_fallback"
)

// Query is one question against a session's dataset.
type Query struct {
	Question  string
	History   []chat.Message
	Data      []dataset.Row
	Summary   dataset.Summary
	SessionID string
}

// QueryResult is the uniform answer shape. Answer is never empty.
type QueryResult struct {
	Answer                string                  `json:"answer"`
	Charts                []chart.Spec            `json:"charts,omitempty"`
	Insights              []chart.Insight         `json:"insights,omitempty"`
	Suggestions           []string                `json:"suggestions,omitempty"`
	RequiresClarification bool                    `json:"requiresClarification,omitempty"`
	Error                 string                  `json:"error,omitempty"`
	Dataset               *handler.DatasetVersion `json:"dataset,omitempty"`

	Intent          intent.Intent `json:"intent"`
	ResolvedQuery   string        `json:"resolvedQuestion,omitempty"`
	Handler         string        `json:"handler,omitempty"`
	Degraded        bool          `json:"degraded"`
	DegradedReasons []string      `json:"degradedReasons,omitempty"`
}

func fromResponse(resp *handler.Response) *QueryResult {
	return &QueryResult{
		Answer:                resp.Answer,
		Charts:                resp.Charts,
		Insights:              resp.Insights,
		Suggestions:           resp.Suggestions,
		RequiresClarification: resp.RequiresClarification,
		Error:                 resp.Error,
		Dataset:               resp.Dataset,
	}
}

// degradation collects reasons in first-seen order.
type degradation struct {
	reasons []string
}

func (d *degradation) add(reason string) {
	for _, r := range d.reasons {
		if r == reason {
			return
		}
	}
	d.reasons = append(d.reasons, reason)
}

// HandlerExecutionError wraps a failure raised inside a handler, including a recovered panic.
type HandlerExecutionError struct {
	Handler string
	Err     error
	Panic   bool
}

func (e *HandlerExecutionError) Error() string {
	if e.Panic {
		return fmt.Sprintf("handler %s panicked: %v", e.Handler, e.Err)
	}
	return fmt.Sprintf("handler %s failed: %v", e.Handler, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error {
	return e.Err
}
