package chat

import (
	"time"

	"ai-insights-be/pkg/chart"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversational turn as the pipeline sees it.
type Message struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Charts    []chart.Spec    `json:"charts,omitempty"`
	Insights  []chart.Insight `json:"insights,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// Recent returns the last n messages whose content is shorter than maxLen.
func Recent(history []Message, n, maxLen int) []Message {
	start := len(history) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, 0, n)
	for _, m := range history[start:] {
		if maxLen > 0 && len(m.Content) >= maxLen {
			continue
		}
		out = append(out, m)
	}
	return out
}
