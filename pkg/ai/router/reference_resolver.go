package router

import (
	"regexp"
	"strings"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/chat"
)

const insightPrefixLen = 50

// placeholder marks substituted spans so later patterns cannot match inside a referent.
const placeholder = "\x00"

var (
	// Substitution order when the referent is a chart.
	chartSubstitutions = []string{"that chart", "the chart", "that", "it", "the previous one", "the last one"}
	// Only demonstratives are rewritten when the referent is an insight.
	insightSubstitutions = []string{"that", "it"}

	substitutionPatterns = func() map[string]*regexp.Regexp {
		m := make(map[string]*regexp.Regexp)
		for _, p := range referencePatterns {
			m[p.phrase] = p.re
		}
		return m
	}()
)

// Resolution is the outcome of rewriting one question.
type Resolution struct {
	Question  string
	Rewritten bool
	Referent  string
}

// ReferenceResolver rewrites pronouns and demonstratives into the chart or
// insight they most likely point at. It is best effort: when nothing can be
// resolved the question comes back unchanged.
type ReferenceResolver struct {
	logger logger.ILogger
}

func NewReferenceResolver(log logger.ILogger) *ReferenceResolver {
	return &ReferenceResolver{logger: log}
}

func (r *ReferenceResolver) Resolve(question string, history []chat.Message) Resolution {
	unchanged := Resolution{Question: question}
	if len(history) == 0 || !ParseReferences(question).HasRefs {
		return unchanged
	}

	// Most recent assistant turn with a chart wins.
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if !msg.IsAssistant() || len(msg.Charts) == 0 {
			continue
		}
		last := msg.Charts[len(msg.Charts)-1]
		title := last.Title
		if title == "" {
			title = last.DefaultTitle()
		}
		referent := `the "` + title + `" chart`
		return r.rewrite(question, referent, chartSubstitutions)
	}

	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if !msg.IsAssistant() || len(msg.Insights) == 0 {
			continue
		}
		referent := `the insight "` + prefix(msg.Insights[0].Text, insightPrefixLen) + `"`
		return r.rewrite(question, referent, insightSubstitutions)
	}

	return unchanged
}

func (r *ReferenceResolver) rewrite(question, referent string, phrases []string) Resolution {
	out := question
	for _, phrase := range phrases {
		out = substitutionPatterns[phrase].ReplaceAllLiteralString(out, placeholder)
	}
	if !strings.Contains(out, placeholder) {
		return Resolution{Question: question}
	}
	out = strings.ReplaceAll(out, placeholder, referent)

	if r.logger != nil {
		r.logger.Debug("CONTEXT", "Resolved reference", map[string]interface{}{
			"original": question,
			"resolved": out,
		})
	}
	return Resolution{Question: out, Rewritten: true, Referent: referent}
}

func prefix(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "..."
}
