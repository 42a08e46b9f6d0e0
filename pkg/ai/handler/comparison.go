package handler

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/ai/column"
	"ai-insights-be/pkg/ai/correlation"
	"ai-insights-be/pkg/ai/insight"
	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/chat"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/stats"
)

const (
	NameComparison = "comparison"

	historyListWindow = 6
)

var (
	bestPattern      = regexp.MustCompile(`(?i)\bbest\s+(.+?)\s+(?:to|for|of|with)\s+(?:the\s+)?(.+?)\s*[?.!]*$`)
	directPattern    = regexp.MustCompile(`(?i)\b(vs\.?|versus|compared (?:to|with)|against)\b`)
	candidatePhrase  = regexp.MustCompile(`(?i)\b(?:among|between|from|out of)\s+(.+?)(?:[,]?\s+(?:which|what|who)\b|[?.!]|$)`)
	listSplit        = regexp.MustCompile(`(?i)\s*(?:,|;|\band\b|\bor\b|&)\s*`)
	historyListEntry = regexp.MustCompile(`(?m)^\s*(?:\d+[.)]|[-*•])\s+\**([^:*\n(]+?)\**\s*(?:[:(–-].*)?$`)
)

// ComparisonHandler answers "which factor is the best X for Y" by ranking
// candidate columns on positive correlation with the target.
type ComparisonHandler struct {
	general     Handler
	processor   *chart.Processor
	synthesizer *insight.Synthesizer
	logger      logger.ILogger
}

var _ Handler = &ComparisonHandler{}

// NewComparisonHandler delegates direct "X vs Y" questions to general.
func NewComparisonHandler(general Handler, processor *chart.Processor, synthesizer *insight.Synthesizer, log logger.ILogger) *ComparisonHandler {
	return &ComparisonHandler{general: general, processor: processor, synthesizer: synthesizer, logger: log}
}

func (h *ComparisonHandler) Name() string { return NameComparison }

func (h *ComparisonHandler) CanHandle(in intent.Intent) bool {
	return in.Type == intent.TypeComparison
}

func (h *ComparisonHandler) Handle(ctx context.Context, in intent.Intent, hc *Context) (*Response, error) {
	if len(hc.Data) == 0 {
		return nil, ErrEmptyDataset
	}

	relationship, entity, isBest := parseBest(hc.Question)
	if !isBest && (directPattern.MatchString(hc.Question) || in.TargetVariable == "") {
		h.logger.Debug("HANDLER", "Delegating direct comparison", map[string]interface{}{
			"session_id": hc.SessionID,
		})
		return h.general.Handle(ctx, in, hc)
	}

	target, err := comparisonTarget(entity, in, hc)
	if err != nil {
		return nil, err
	}
	if relationship == "" {
		relationship = "factor"
	}

	candidates, source := comparisonCandidates(hc.Question, in, hc, target)
	h.logger.Debug("HANDLER", "Comparison candidates", map[string]interface{}{
		"session_id": hc.SessionID,
		"target":     target,
		"source":     source,
		"candidates": candidates,
	})
	if len(candidates) == 0 {
		return nil, explain(ErrEmptyFilterResult, "There are no other numeric columns to compare against %s.", target)
	}

	ranked := correlation.Rank(hc.Data, correlation.Request{
		Target:     target,
		Candidates: candidates,
		Filter:     correlation.FilterPositive,
	})
	if len(ranked) == 0 {
		return nil, explain(ErrEmptyFilterResult,
			"None of %s moves together with %s, so none of them stands out as the best %s for it.",
			strings.Join(candidates, ", "), target, relationship)
	}

	data := make([]chart.Point, len(ranked))
	lines := make([]string, len(ranked))
	for i, c := range ranked {
		data[i] = chart.Point{correlation.RankingVariable: c.Variable, correlation.RankingValue: c.R}
		lines[i] = fmt.Sprintf("%s: r = %.2f (%s positive, n = %d).", c.Variable, c.R, stats.Strength(c.R), c.N)
	}
	spec := chart.Spec{
		Type:      chart.TypeBar,
		Title:     fmt.Sprintf("Best %s for %s", relationship, target),
		X:         correlation.RankingVariable,
		Y:         correlation.RankingValue,
		Aggregate: chart.AggregateNone,
		Data:      data,
	}
	charts, degraded := h.synthesizer.Enrich(ctx, []chart.Spec{spec}, hc.Summary)

	top := ranked[0]
	answer := fmt.Sprintf("%s is the best %s for %s, with a %s positive correlation (r = %.2f).",
		top.Variable, relationship, target, stats.Strength(top.R), top.R)
	if len(ranked) > 1 {
		answer += fmt.Sprintf(" It is followed by %s (r = %.2f).", ranked[1].Variable, ranked[1].R)
	}
	if dropped := len(candidates) - len(ranked); dropped > 0 {
		answer += fmt.Sprintf(" %d candidate(s) with no positive relationship were left out.", dropped)
	}

	return &Response{
		Answer:   answer,
		Charts:   charts,
		Insights: chart.NumberInsights(lines),
		Degraded: degraded,
	}, nil
}

// parseBest detects "best <relationship> to/for <entity>".
func parseBest(question string) (relationship, entity string, ok bool) {
	m := bestPattern.FindStringSubmatch(question)
	if m == nil {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
}

func comparisonTarget(entity string, in intent.Intent, hc *Context) (string, error) {
	columns := hc.Summary.ColumnNames()
	name := in.TargetVariable
	if entity != "" {
		if col, ok := column.Resolve(entity, columns); ok {
			name = col
		} else if name == "" {
			name = entity
		}
	}
	if name == "" {
		return "", columnNotFound("", hc.Summary)
	}
	col, ok := column.Resolve(name, columns)
	if !ok {
		return "", columnNotFound(name, hc.Summary)
	}
	if !hc.Summary.IsNumeric(col) {
		return "", &NonNumericTargetError{Column: col, NumericColumns: hc.Summary.NumericColumns}
	}
	return col, nil
}

// comparisonCandidates picks, in priority order: columns listed in the
// question, a list from recent assistant turns, the intent's variables, or
// every other numeric column.
func comparisonCandidates(question string, in intent.Intent, hc *Context, target string) ([]string, string) {
	keep := func(names []string) []string {
		var out []string
		for _, c := range column.ResolveAll(names, hc.Summary.ColumnNames()) {
			if c != target && hc.Summary.IsNumeric(c) {
				out = append(out, c)
			}
		}
		return out
	}

	if m := candidatePhrase.FindStringSubmatch(question); m != nil {
		if c := keep(listSplit.Split(m[1], -1)); len(c) >= 2 {
			return c, "question"
		}
	}
	if c := keep(historyListNames(hc.History)); len(c) >= 2 {
		return c, "history"
	}
	if c := keep(in.Variables); len(c) > 0 {
		return c, "intent"
	}
	return otherNumeric(hc.Summary, target), "numeric_columns"
}

// historyListNames collects list-item labels from recent assistant turns, newest first.
func historyListNames(history []chat.Message) []string {
	start := len(history) - historyListWindow
	if start < 0 {
		start = 0
	}
	for i := len(history) - 1; i >= start; i-- {
		if !history[i].IsAssistant() {
			continue
		}
		matches := historyListEntry.FindAllStringSubmatch(history[i].Content, -1)
		if len(matches) < 2 {
			continue
		}
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, strings.TrimSpace(m[1]))
		}
		return names
	}
	return nil
}

func otherNumeric(summary dataset.Summary, target string) []string {
	var out []string
	for _, c := range summary.NumericColumns {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}
