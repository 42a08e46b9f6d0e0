package handler

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/llm"
)

const NameConversational = "conversational"

var (
	greetingReply = regexp.MustCompile(`(?i)\b(hi|hello|hey|hiya|howdy|good (morning|afternoon|evening))\b`)
	thanksReply   = regexp.MustCompile(`(?i)\b(thanks|thank you|thx|cheers|appreciate)\b`)
	farewellReply = regexp.MustCompile(`(?i)\b(bye|goodbye|see you|later|good night)\b`)
)

const (
	cannedGreeting = "Hello! I can help you explore your data. Try asking what affects one of your numeric columns, or ask for a chart."
	cannedThanks   = "You're welcome! Let me know if there's anything else you want to dig into."
	cannedFarewell = "Goodbye! Your charts and insights will be here when you come back."
	cannedDefault  = "I'm here to help with your dataset. Ask me about trends, comparisons or what drives a column."
)

// CannedReply picks a fixed reply by keyword. It needs no upstream service.
func CannedReply(question string) string {
	switch {
	case thanksReply.MatchString(question):
		return cannedThanks
	case farewellReply.MatchString(question):
		return cannedFarewell
	case greetingReply.MatchString(question):
		return cannedGreeting
	}
	return cannedDefault
}

type ConversationalHandler struct {
	llm    llm.Completer
	logger logger.ILogger
}

var _ Handler = &ConversationalHandler{}

func NewConversationalHandler(completer llm.Completer, log logger.ILogger) *ConversationalHandler {
	return &ConversationalHandler{llm: completer, logger: log}
}

func (h *ConversationalHandler) Name() string { return NameConversational }

func (h *ConversationalHandler) CanHandle(in intent.Intent) bool {
	return in.Type == intent.TypeConversational
}

func (h *ConversationalHandler) Handle(ctx context.Context, in intent.Intent, hc *Context) (*Response, error) {
	reply, err := h.chat(ctx, hc)
	if err != nil {
		h.logger.Warn("HANDLER", "Conversational reply fell back to canned text", map[string]interface{}{
			"session_id": hc.SessionID,
			"error":      err.Error(),
		})
		return &Response{Answer: CannedReply(hc.Question), Degraded: true}, nil
	}
	return &Response{Answer: reply}, nil
}

func (h *ConversationalHandler) chat(ctx context.Context, hc *Context) (string, error) {
	if h.llm == nil {
		return "", errors.New("no completer configured")
	}
	prompt, err := render(conversationalTemplate, newPromptData(hc.Question, hc))
	if err != nil {
		return "", err
	}
	out, err := h.llm.Complete(ctx, llm.TaskGeneration,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}},
		llm.WithTemperature(0.9),
		llm.WithMaxTokens(150),
	)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("empty reply")
	}
	return out, nil
}
