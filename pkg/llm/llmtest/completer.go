// Package llmtest provides scripted llm.Completer fakes for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"ai-insights-be/pkg/llm"
)

// ErrExhausted is returned once a Scripted completer has no replies left.
var ErrExhausted = errors.New("llmtest: no scripted reply left")

type Reply struct {
	Text string
	Err  error
}

type Call struct {
	Task     llm.Task
	Messages []llm.Message
	Options  *llm.Options
}

// Scripted replays Replies in order. Safe for concurrent use.
type Scripted struct {
	mu      sync.Mutex
	Replies []Reply
	Calls   []Call
}

var _ llm.Completer = &Scripted{}

func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{Replies: replies}
}

// Text is shorthand for a successful reply.
func Text(s string) Reply { return Reply{Text: s} }

// Fail is shorthand for a failing reply.
func Fail(err error) Reply { return Reply{Err: err} }

func (s *Scripted) Complete(ctx context.Context, task llm.Task, messages []llm.Message, options ...llm.Option) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, Call{Task: task, Messages: messages, Options: llm.Apply(options...)})
	if len(s.Replies) == 0 {
		return "", ErrExhausted
	}
	r := s.Replies[0]
	s.Replies = s.Replies[1:]
	return r.Text, r.Err
}

func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// Func adapts a function into a Completer, for replies that depend on the prompt.
type Func func(ctx context.Context, task llm.Task, messages []llm.Message) (string, error)

func (f Func) Complete(ctx context.Context, task llm.Task, messages []llm.Message, options ...llm.Option) (string, error) {
	return f(ctx, task, messages)
}

// Failing always returns err.
func Failing(err error) llm.Completer {
	return Func(func(context.Context, llm.Task, []llm.Message) (string, error) {
		return "", err
	})
}
