package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ErrNoJSON is returned when no JSON document can be located in a reply.
var ErrNoJSON = errors.New("no json found in model output")

// ParseError wraps a reply that could not be decoded or validated.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("structured output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FencedJSON returns the contents of the first fenced code block, if any.
func FencedJSON(raw string) (string, bool) {
	m := fencedBlock.FindStringSubmatch(raw)
	if len(m) < 2 {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// ExtractObject slices the outermost {...} out of free text.
func ExtractObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// DecodeJSON tries the raw reply as JSON, then the first fenced block.
func DecodeJSON(raw string, v interface{}) error {
	raw = strings.TrimSpace(raw)
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	if block, ok := FencedJSON(raw); ok {
		if ferr := json.Unmarshal([]byte(block), v); ferr == nil {
			return nil
		}
	}
	return &ParseError{Raw: raw, Err: err}
}

// DecodeLenient additionally accepts an object embedded in prose.
func DecodeLenient(raw string, v interface{}) error {
	if err := DecodeJSON(raw, v); err == nil {
		return nil
	}
	obj, ok := ExtractObject(raw)
	if !ok {
		return &ParseError{Raw: raw, Err: ErrNoJSON}
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return &ParseError{Raw: raw, Err: err}
	}
	return nil
}

// CompleteJSON asks for a JSON reply and decodes it into T. validate may be nil.
func CompleteJSON[T any](ctx context.Context, c Completer, task Task, messages []Message, validate func(T) error, options ...Option) (T, error) {
	var out T
	raw, err := c.Complete(ctx, task, messages, append([]Option{WithJSONResponse()}, options...)...)
	if err != nil {
		return out, err
	}
	if err := DecodeLenient(raw, &out); err != nil {
		return out, err
	}
	if validate != nil {
		if err := validate(out); err != nil {
			return out, &ParseError{Raw: raw, Err: err}
		}
	}
	return out, nil
}
