package intent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/chat"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/llm"

	"github.com/go-playground/validator/v10"
)

const DefaultMaxRetries = 2

// wireIntent mirrors Intent with an optional confidence so a missing value is
// distinguishable from zero.
type wireIntent struct {
	Intent
	Confidence *float64 `json:"confidence"`
}

// Classifier maps a question to an Intent with an LLM, retrying the same
// prompt on malformed output and falling back to keyword heuristics.
type Classifier struct {
	llm        llm.Completer
	validate   *validator.Validate
	maxRetries int
	logger     logger.ILogger
}

func NewClassifier(completer llm.Completer, maxRetries int, log logger.ILogger) *Classifier {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Classifier{
		llm:        completer,
		validate:   validator.New(),
		maxRetries: maxRetries,
		logger:     log,
	}
}

// Classify always returns an intent. Model failures surface only as
// Heuristic=true on the result.
func (c *Classifier) Classify(ctx context.Context, question string, history []chat.Message, summary dataset.Summary) Intent {
	in, err := c.classifyWithModel(ctx, question, history, summary)
	if err == nil {
		in.OriginalQuestion = question
		return in
	}

	c.logger.Warn("INTENT", "Falling back to keyword heuristics", map[string]interface{}{
		"question": question,
		"error":    err.Error(),
	})
	return Heuristic(question, summary)
}

func (c *Classifier) classifyWithModel(ctx context.Context, question string, history []chat.Message, summary dataset.Summary) (Intent, error) {
	if c.llm == nil {
		return Intent{}, &ClassificationError{Err: errors.New("no completer configured")}
	}
	prompt, err := renderClassifyPrompt(question, history, summary)
	if err != nil {
		return Intent{}, &ClassificationError{Err: err}
	}
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return Intent{}, &ClassificationError{Attempts: attempt - 1, Err: ctx.Err()}
		}

		raw, err := c.llm.Complete(ctx, llm.TaskIntent, messages, llm.WithJSONResponse(), llm.WithTemperature(0.1))
		if err != nil {
			lastErr = err
		} else {
			in, perr := c.Parse(raw)
			if perr == nil {
				c.logger.Debug("INTENT", "Classified", map[string]interface{}{
					"type":       string(in.Type),
					"confidence": in.Confidence,
					"attempt":    attempt,
				})
				return in, nil
			}
			lastErr = perr
		}

		c.logger.Debug("INTENT", "Attempt failed", map[string]interface{}{
			"attempt": attempt,
			"error":   lastErr.Error(),
		})
	}
	return Intent{}, &ClassificationError{Attempts: c.maxRetries, Err: lastErr}
}

// Parse decodes raw model output (bare JSON or a fenced block), strips null
// fields and validates the result.
func (c *Classifier) Parse(raw string) (Intent, error) {
	var generic interface{}
	if err := llm.DecodeJSON(raw, &generic); err != nil {
		return Intent{}, err
	}
	obj, ok := StripNulls(generic).(map[string]interface{})
	if !ok {
		return Intent{}, &llm.ParseError{Raw: raw, Err: errors.New("reply is not a JSON object")}
	}

	normalized, err := json.Marshal(obj)
	if err != nil {
		return Intent{}, err
	}
	var w wireIntent
	if err := json.Unmarshal(normalized, &w); err != nil {
		return Intent{}, &llm.ParseError{Raw: raw, Err: err}
	}
	if err := checkConfidence(w.Confidence); err != nil {
		return Intent{}, &llm.ParseError{Raw: raw, Err: err}
	}

	in := w.Intent
	in.Confidence = *w.Confidence
	in.Type = normalizeType(in.Type)
	if err := c.validate.Struct(in); err != nil {
		return Intent{}, &llm.ParseError{Raw: raw, Err: err}
	}
	return in, nil
}

// StripNulls removes null values recursively; objects left empty collapse to nil.
func StripNulls(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if cleaned := StripNulls(val); cleaned != nil {
				out[k] = cleaned
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(t))
		for _, val := range t {
			if cleaned := StripNulls(val); cleaned != nil {
				out = append(out, cleaned)
			}
		}
		return out
	default:
		return v
	}
}

// normalizeType accepts case variants such as "dataops" or "Data_Ops".
func normalizeType(t Type) Type {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(string(t)))
	for _, known := range AllTypes {
		if strings.ToLower(string(known)) == key {
			return known
		}
	}
	return t
}
