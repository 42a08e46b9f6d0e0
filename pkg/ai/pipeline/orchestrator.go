package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/ai/column"
	"ai-insights-be/pkg/ai/handler"
	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/ai/router"
	"ai-insights-be/pkg/chat"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/events"
	"ai-insights-be/pkg/llm"
	"ai-insights-be/pkg/rag"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ClarifyThreshold is the confidence below which a non-conversational
	// intent gets a clarifying question instead of a handler.
	ClarifyThreshold = 0.5

	publishTimeout = 3 * time.Second
	tracerName     = "ai-insights-be/pipeline"
)

// ErrEmptyAnswer marks a handler response whose answer was blank.
var ErrEmptyAnswer = errors.New("handler returned an empty answer")

type ContextResolver interface {
	Resolve(question string, history []chat.Message) router.Resolution
}

type IntentClassifier interface {
	Classify(ctx context.Context, question string, history []chat.Message, summary dataset.Summary) intent.Intent
}

type ContextRetriever interface {
	Retrieve(ctx context.Context, question string, rows []dataset.Row, summary dataset.Summary, history []chat.Message, sessionID string) rag.Context
}

// Orchestrator runs one question through context resolution, classification,
// clarification gating, retrieval and handler dispatch, with a recovery chain
// behind the handler. ProcessQuery never fails.
type Orchestrator struct {
	resolver   ContextResolver
	classifier IntentClassifier
	retriever  ContextRetriever
	registry   *handler.Registry
	llm        llm.Completer
	publisher  events.Publisher
	tracer     trace.Tracer
	logger     logger.ILogger
}

// NewOrchestrator accepts nil for resolver, retriever and publisher.
func NewOrchestrator(
	resolver ContextResolver,
	classifier IntentClassifier,
	retriever ContextRetriever,
	registry *handler.Registry,
	completer llm.Completer,
	publisher events.Publisher,
	log logger.ILogger,
) *Orchestrator {
	if uncovered := registry.Uncovered(); len(uncovered) > 0 {
		log.Warn("ORCHESTRATOR", "Intent types without a handler", map[string]interface{}{
			"types": uncovered,
		})
	}
	return &Orchestrator{
		resolver:   resolver,
		classifier: classifier,
		retriever:  retriever,
		registry:   registry,
		llm:        completer,
		publisher:  publisher,
		tracer:     otel.Tracer(tracerName),
		logger:     log,
	}
}

func (o *Orchestrator) ProcessQuery(ctx context.Context, q Query) (result *QueryResult) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "pipeline.process_query",
		trace.WithAttributes(attribute.String("session.id", q.SessionID)))
	defer span.End()

	d := &degradation{}
	question := q.Question
	in := intent.Intent{Type: intent.TypeCustom, OriginalQuestion: q.Question}

	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("ORCHESTRATOR", "Pipeline panicked", map[string]interface{}{
				"session_id": q.SessionID,
				"panic":      fmt.Sprint(rec),
			})
			d.add(ReasonHandlerRecovery)
			result = structuredError(q.Summary)
		}
		if result == nil || strings.TrimSpace(result.Answer) == "" {
			d.add(ReasonHandlerRecovery)
			result = structuredError(q.Summary)
		}
		o.finish(span, q, question, in, result, d, time.Since(start))
	}()

	// Step 1: rewrite references to earlier charts and insights.
	question = o.resolveContext(ctx, q, d)

	// Step 2: classify.
	in = o.classify(ctx, question, q, d)

	// A handler waiting on an answer to its own clarifying question takes
	// the message before confidence gating.
	if h := o.pendingHandler(ctx, q.SessionID, in); h != nil {
		hc := o.handlerContext(ctx, question, q, d)
		return o.dispatch(ctx, h, in, hc, d)
	}

	// Step 3: conversational intents are never gated.
	if !in.IsConversational() && (in.RequiresClarification || in.Confidence < ClarifyThreshold) {
		return o.clarify(ctx, question, in, q.Summary, d)
	}

	// Step 4: retrieve, then dispatch.
	hc := o.handlerContext(ctx, question, q, d)
	h := o.registry.Lookup(in)
	if h == nil {
		return o.handleFallback(ctx, in, hc, d)
	}
	return o.dispatch(ctx, h, in, hc, d)
}

func (o *Orchestrator) resolveContext(ctx context.Context, q Query, d *degradation) (question string) {
	_, span := o.tracer.Start(ctx, "pipeline.resolve_context")
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Warn("CONTEXT", "Reference resolution panicked, using original question", map[string]interface{}{
				"session_id": q.SessionID,
				"panic":      fmt.Sprint(rec),
			})
			d.add(ReasonContextFallback)
			question = q.Question
		}
	}()

	if o.resolver == nil {
		return q.Question
	}
	res := o.resolver.Resolve(q.Question, q.History)
	if strings.TrimSpace(res.Question) == "" {
		d.add(ReasonContextFallback)
		return q.Question
	}
	span.SetAttributes(attribute.Bool("context.rewritten", res.Rewritten))
	return res.Question
}

func (o *Orchestrator) classify(ctx context.Context, question string, q Query, d *degradation) (in intent.Intent) {
	ctx, span := o.tracer.Start(ctx, "pipeline.classify")
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Warn("INTENT", "Classifier panicked, using keyword heuristics", map[string]interface{}{
				"session_id": q.SessionID,
				"panic":      fmt.Sprint(rec),
			})
			in = intent.Heuristic(question, q.Summary)
		}
		in.OriginalQuestion = q.Question
		if in.Heuristic {
			d.add(ReasonIntentHeuristic)
		}
		span.SetAttributes(
			attribute.String("intent.type", string(in.Type)),
			attribute.Float64("intent.confidence", in.Confidence),
			attribute.Bool("intent.heuristic", in.Heuristic),
		)
	}()

	if o.classifier == nil {
		return intent.Heuristic(question, q.Summary)
	}
	return o.classifier.Classify(ctx, question, q.History, q.Summary)
}

// pendingHandler returns a handler that parked an operation for this
// session, unless the new message is clearly something else.
func (o *Orchestrator) pendingHandler(ctx context.Context, sessionID string, in intent.Intent) handler.Handler {
	if in.IsConversational() {
		return nil
	}
	if in.Type != intent.TypeDataOps && !in.RequiresClarification && in.Confidence >= ClarifyThreshold {
		return nil
	}
	for _, h := range o.registry.Handlers() {
		if r, ok := h.(handler.Resumer); ok && r.Resumes(ctx, sessionID) {
			o.logger.Debug("ORCHESTRATOR", "Routing reply to pending operation", map[string]interface{}{
				"session_id": sessionID,
				"handler":    h.Name(),
			})
			return h
		}
	}
	return nil
}

func (o *Orchestrator) handlerContext(ctx context.Context, question string, q Query, d *degradation) *handler.Context {
	return &handler.Context{
		Question:  question,
		Data:      q.Data,
		Summary:   q.Summary,
		Retrieval: o.retrieve(ctx, question, q, d),
		History:   q.History,
		SessionID: q.SessionID,
	}
}

func (o *Orchestrator) retrieve(ctx context.Context, question string, q Query, d *degradation) (out rag.Context) {
	ctx, span := o.tracer.Start(ctx, "pipeline.retrieve")
	defer span.End()

	fallback := rag.FallbackContext(q.Summary, column.Mentioned(question, q.Summary.ColumnNames()))
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Warn("RAG", "Retriever panicked", map[string]interface{}{
				"session_id": q.SessionID,
				"panic":      fmt.Sprint(rec),
			})
			out = fallback
		}
		if out.Fallback {
			d.add(ReasonRAGFallback)
		}
		span.SetAttributes(
			attribute.Int("rag.chunks", len(out.DataChunks)),
			attribute.Bool("rag.fallback", out.Fallback),
		)
	}()

	if o.retriever == nil {
		return fallback
	}
	return o.retriever.Retrieve(ctx, question, q.Data, q.Summary, q.History, q.SessionID)
}

// dispatch runs h. Domain errors become direct answers; anything else
// enters the recovery chain.
func (o *Orchestrator) dispatch(ctx context.Context, h handler.Handler, in intent.Intent, hc *handler.Context, d *degradation) *QueryResult {
	resp, err := o.run(ctx, h, in, hc)
	if err == nil {
		return accept(h, resp, d)
	}
	if res, ok := describe(h, err, hc.Summary); ok {
		o.logger.Info("ORCHESTRATOR", "Handler answered with an explanation", map[string]interface{}{
			"session_id": hc.SessionID,
			"handler":    h.Name(),
			"reason":     err.Error(),
		})
		return res
	}

	o.logger.Warn("ORCHESTRATOR", "Handler failed, entering recovery", map[string]interface{}{
		"session_id": hc.SessionID,
		"handler":    h.Name(),
		"intent":     string(in.Type),
		"error":      err.Error(),
	})
	return o.recoverFrom(ctx, h, in, hc, d)
}

// run calls the handler, turning panics, error fields and blank answers into
// a HandlerExecutionError.
func (o *Orchestrator) run(ctx context.Context, h handler.Handler, in intent.Intent, hc *handler.Context) (resp *handler.Response, err error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.handler",
		trace.WithAttributes(attribute.String("handler.name", h.Name())))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			resp, err = nil, &HandlerExecutionError{Handler: h.Name(), Err: fmt.Errorf("%v", rec), Panic: true}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	resp, err = h.Handle(ctx, in, hc)
	switch {
	case err != nil:
		return nil, &HandlerExecutionError{Handler: h.Name(), Err: err}
	case resp == nil || strings.TrimSpace(resp.Answer) == "":
		return nil, &HandlerExecutionError{Handler: h.Name(), Err: ErrEmptyAnswer}
	case resp.Error != "":
		return nil, &HandlerExecutionError{Handler: h.Name(), Err: errors.New(resp.Error)}
	}
	return resp, nil
}

// recoverFrom tries, in order: the general handler, a clarifying question
// for low confidence, a canned conversational reply, a structured error.
func (o *Orchestrator) recoverFrom(ctx context.Context, failed handler.Handler, in intent.Intent, hc *handler.Context, d *degradation) *QueryResult {
	d.add(ReasonHandlerRecovery)

	if general := o.registry.Named(handler.NameGeneral); general != nil && general != failed && general.CanHandle(in) {
		resp, err := o.run(ctx, general, in, hc)
		if err == nil {
			return accept(general, resp, d)
		}
		if res, ok := describe(general, err, hc.Summary); ok {
			return res
		}
		o.logger.Warn("ORCHESTRATOR", "General handler also failed", map[string]interface{}{
			"session_id": hc.SessionID,
			"error":      err.Error(),
		})
	}

	if !in.IsConversational() && in.Confidence < ClarifyThreshold {
		return o.clarify(ctx, hc.Question, in, hc.Summary, d)
	}

	if in.IsConversational() {
		return &QueryResult{Answer: handler.CannedReply(hc.Question), Handler: handler.NameConversational}
	}

	return structuredError(hc.Summary)
}

// handleFallback runs when the dispatch table has no entry for the intent.
func (o *Orchestrator) handleFallback(ctx context.Context, in intent.Intent, hc *handler.Context, d *degradation) *QueryResult {
	if h := o.registry.Scan(in); h != nil {
		return o.dispatch(ctx, h, in, hc, d)
	}
	o.logger.Warn("ORCHESTRATOR", "No handler accepts intent", map[string]interface{}{
		"session_id": hc.SessionID,
		"intent":     string(in.Type),
	})
	suggestions := exampleQuestions(in, hc.Summary)
	answer := "I'm not sure how to answer that yet."
	if len(suggestions) > 0 {
		answer += " You could try: " + strings.Join(suggestions, " ")
	}
	return &QueryResult{Answer: answer, Suggestions: suggestions, RequiresClarification: true}
}

func accept(h handler.Handler, resp *handler.Response, d *degradation) *QueryResult {
	if resp.Degraded {
		d.add(ReasonInsightFallback)
	}
	res := fromResponse(resp)
	res.Handler = h.Name()
	return res
}

func describe(h handler.Handler, err error, summary dataset.Summary) (*QueryResult, bool) {
	resp, ok := handler.DescribeError(err, summary)
	if !ok {
		return nil, false
	}
	res := fromResponse(resp)
	res.Handler = h.Name()
	return res, true
}

const maxErrorSuggestions = 5

// structuredError is the last stop of the recovery chain.
func structuredError(summary dataset.Summary) *QueryResult {
	suggestions := summary.NumericColumns
	if len(suggestions) == 0 {
		suggestions = summary.ColumnNames()
	}
	if len(suggestions) > maxErrorSuggestions {
		suggestions = suggestions[:maxErrorSuggestions]
	}
	answer := "I ran into a problem answering that. Try rephrasing your question."
	if len(suggestions) > 0 {
		answer = fmt.Sprintf("I ran into a problem answering that. Try rephrasing, or ask about one of these columns: %s.",
			strings.Join(suggestions, ", "))
	}
	return &QueryResult{
		Answer:      answer,
		Suggestions: append([]string(nil), suggestions...),
		Error:       "analysis_failed",
	}
}

func (o *Orchestrator) finish(span trace.Span, q Query, question string, in intent.Intent, res *QueryResult, d *degradation, elapsed time.Duration) {
	res.Intent = in
	if question != q.Question {
		res.ResolvedQuery = question
	}
	res.Degraded = len(d.reasons) > 0
	res.DegradedReasons = d.reasons

	span.SetAttributes(
		attribute.String("pipeline.handler", res.Handler),
		attribute.Bool("pipeline.degraded", res.Degraded),
		attribute.StringSlice("pipeline.degraded_reasons", d.reasons),
	)

	o.logger.Info("ORCHESTRATOR", "Query processed", map[string]interface{}{
		"session_id":       q.SessionID,
		"intent":           string(in.Type),
		"confidence":       in.Confidence,
		"handler":          res.Handler,
		"clarified":        res.RequiresClarification,
		"degraded_reasons": d.reasons,
		"duration_ms":      elapsed.Milliseconds(),
	})

	o.publish(events.NewQueryProcessed(events.QueryProcessedData{
		SessionID:       q.SessionID,
		Intent:          string(in.Type),
		Confidence:      in.Confidence,
		Handler:         res.Handler,
		Clarified:       res.RequiresClarification,
		Degraded:        res.Degraded,
		DegradedReasons: d.reasons,
		Charts:          len(res.Charts),
		Duration:        elapsed,
	}))
}

// publish sends telemetry off the request path.
func (o *Orchestrator) publish(event events.Event) {
	if o.publisher == nil {
		return
	}
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				o.logger.Warn("ORCHESTRATOR", "Telemetry publisher panicked", map[string]interface{}{
					"panic": fmt.Sprint(rec),
				})
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := o.publisher.Publish(ctx, event); err != nil {
			o.logger.Warn("ORCHESTRATOR", "Failed to publish telemetry", map[string]interface{}{
				"event": event.EventType(),
				"error": err.Error(),
			})
		}
	}()
}
